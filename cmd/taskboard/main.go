package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/app"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/config"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/db"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/engine"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/migrate"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/repo"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "TaskBoard Pro CLI",
	Long: `TaskBoard Pro manages projects, tasks, and automation rules.
Core concepts:
- Workspace: your .taskboard directory holding the database; taskboard.yml supplies defaults.
- Project: a board with its own member list and ordered status columns.
- Task: a work item with a status, optional assignee, due date, and earned badges.
- Automation: a per-project rule; when a trigger matches a task the action fires (change status, assign a user, or add a badge).
- Badge: a named award kept on the task and mirrored onto the assignee.
- Event log: diary of changes, view with 'taskboard log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides the single-project default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(automationCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskboard.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userRegisterCmd())
	user.AddCommand(userShowCmd())
	return user
}

func userRegisterCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.RegisterUser(ctx, name, email, password)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user and the badges they earned",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := id
			if target == "" {
				target = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, target)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id (defaults to --actor-id)")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectInviteCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title, desc string
	var statuses []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					Title:       title,
					Description: desc,
					Statuses:    statuses,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringSliceVar(&statuses, "statuses", nil, "ordered status columns (defaults from taskboard.yml)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects you are a member of",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				p, err := e.GetProject(ctx, target, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var title, description string
	var statuses []string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update a project (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				opts := engine.ProjectUpdateOptions{ID: target, ActorID: actorID}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("statuses") {
					opts.Statuses = statuses
				}
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringSliceVar(&statuses, "statuses", nil, "ordered status columns")
	return cmd
}

func projectInviteCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invite a registered user by email (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				p, err := e.InviteMember(ctx, target, email, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user to invite")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				return e.DeleteProject(ctx, target, actorID)
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskBadgeCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var title, desc, due, status, assignee string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					ProjectID:   target,
					Title:       title,
					Description: desc,
					DueDate:     due,
					Status:      status,
					AssigneeID:  assignee,
					ActorID:     actorID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (defaults to the project's first column)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				tasks, err := e.ListTasks(ctx, target, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Assignee", "Due", "Badges"})
				for _, t := range tasks {
					assignee := ""
					if t.AssigneeID != nil {
						assignee = *t.AssigneeID
					}
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					names := make([]string, 0, len(t.Badges))
					for _, b := range t.Badges {
						names = append(names, b.Name)
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, assignee, due, strings.Join(names, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, desc, due, status, assignee string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task and run matching automations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TaskUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("title") {
					opts.Title = &title
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &desc
				}
				if cmd.Flags().Changed("due") {
					opts.DueDate = &due
				}
				if cmd.Flags().Changed("status") {
					opts.Status = &status
				}
				if cmd.Flags().Changed("assignee") {
					opts.AssigneeID = &assignee
				}
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339, empty clears)")
	cmd.Flags().StringVar(&status, "status", "", "status column")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id (empty clears)")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func taskBadgeCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "badge <id>",
		Short: "Award a badge to a task and its assignee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AwardBadge(ctx, args[0], name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "badge name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func automationCmd() *cobra.Command {
	auto := &cobra.Command{Use: "automation", Short: "Manage automation rules"}
	auto.AddCommand(automationCreateCmd())
	auto.AddCommand(automationListCmd())
	auto.AddCommand(automationShowCmd())
	auto.AddCommand(automationUpdateCmd())
	auto.AddCommand(automationDeleteCmd())
	return auto
}

func automationCreateCmd() *cobra.Command {
	var trigger, whenStatus, whenUser string
	var action, toStatus, assignUser, badge string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an automation rule (owner only)",
		Long: `Create a rule for the project. Triggers: status_change (--when-status),
assignee_change (--when-user), due_date_passed. Actions: change_status
(--to-status), assign_user (--assign-user), add_badge (--badge).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				a, err := e.CreateAutomation(ctx, engine.AutomationCreateOptions{
					ProjectID: target,
					Trigger: domain.Trigger{
						Type:      domain.TriggerType(trigger),
						Condition: domain.TriggerCondition{Status: whenStatus, UserID: whenUser},
					},
					Action: domain.Action{
						Type:  domain.ActionType(action),
						Value: domain.ActionValue{Status: toStatus, UserID: assignUser, Badge: badge},
					},
					ActorID: actorID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger type")
	cmd.Flags().StringVar(&whenStatus, "when-status", "", "status the trigger matches")
	cmd.Flags().StringVar(&whenUser, "when-user", "", "assignee the trigger matches")
	cmd.Flags().StringVar(&action, "action", "", "action type")
	cmd.Flags().StringVar(&toStatus, "to-status", "", "status the action sets")
	cmd.Flags().StringVar(&assignUser, "assign-user", "", "user the action assigns")
	cmd.Flags().StringVar(&badge, "badge", "", "badge the action awards")
	_ = cmd.MarkFlagRequired("trigger")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func automationListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List automation rules in the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				items, err := e.ListAutomations(ctx, target, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func automationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an automation rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.GetAutomation(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func automationUpdateCmd() *cobra.Command {
	var trigger, whenStatus, whenUser string
	var action, toStatus, assignUser, badge string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an automation rule (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.AutomationUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("trigger") {
					opts.Trigger = &domain.Trigger{
						Type:      domain.TriggerType(trigger),
						Condition: domain.TriggerCondition{Status: whenStatus, UserID: whenUser},
					}
				}
				if cmd.Flags().Changed("action") {
					opts.Action = &domain.Action{
						Type:  domain.ActionType(action),
						Value: domain.ActionValue{Status: toStatus, UserID: assignUser, Badge: badge},
					}
				}
				a, err := e.UpdateAutomation(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger type")
	cmd.Flags().StringVar(&whenStatus, "when-status", "", "status the trigger matches")
	cmd.Flags().StringVar(&whenUser, "when-user", "", "assignee the trigger matches")
	cmd.Flags().StringVar(&action, "action", "", "action type")
	cmd.Flags().StringVar(&toStatus, "to-status", "", "status the action sets")
	cmd.Flags().StringVar(&assignUser, "assign-user", "", "user the action assigns")
	cmd.Flags().StringVar(&badge, "badge", "", "badge the action awards")
	return cmd
}

func automationDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an automation rule (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAutomation(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: registrations, task changes, badge awards, and more.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				target, err := app.ResolveProject(ctx, viper.GetString("project"), actorID, e.Repo)
				if err != nil {
					return err
				}
				events, err := e.Repo.LatestEvents(ctx, n, target, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:     os.Getenv("TASKBOARD_JWT_SECRET"),
				TokenTTLHours: cfg.Auth.TokenTTLHours,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TASKBOARD_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving TaskBoard Pro API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	if _, err := app.EnsureActor(ctx, r, viper.GetString("actor-id")); err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
