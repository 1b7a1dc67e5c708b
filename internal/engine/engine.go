package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/config"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/engine/auth"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/engine/automation"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/events"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Auth       auth.Service
	Automation *automation.Engine
	Config     *config.Config
	Logger     *log.Logger
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:         db,
		Repo:       r,
		Events:     events.Writer{DB: db},
		Auth:       auth.Service{DB: db},
		Automation: automation.New(r, nil),
		Config:     cfg,
		Now:        time.Now,
	}
}

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// RegisterUser creates an account with a bcrypt-hashed password.
func (e Engine) RegisterUser(ctx context.Context, name, email, password string) (domain.User, error) {
	if name == "" {
		return domain.User{}, errors.New("name is required")
	}
	if email == "" {
		return domain.User{}, errors.New("email is required")
	}
	if password == "" {
		return domain.User{}, errors.New("password is required")
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ErrEmailTaken
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.registered", "", "user", u.ID, u.ID, events.EventPayload{"email": u.Email}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate checks credentials and returns the user on success.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Title       string
	Description string
	Statuses    []string
	ActorID     string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Title == "" {
		return domain.Project{}, errors.New("title is required")
	}
	statuses := opts.Statuses
	if len(statuses) == 0 && e.Config != nil {
		statuses = e.Config.Defaults.Statuses
	}
	if err := validateStatuses(statuses); err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:          uuid.NewString(),
		Title:       opts.Title,
		Description: opts.Description,
		OwnerID:     opts.ActorID,
		Members:     []string{opts.ActorID},
		Statuses:    statuses,
		CreatedAt:   e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.AddMember(ctx, tx, p.ID, opts.ActorID); err != nil {
		return domain.Project{}, fmt.Errorf("add owner as member: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"title": p.Title}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id, actorID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if err := e.Auth.RequireMember(ctx, id, actorID); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) ListProjects(ctx context.Context, actorID string) ([]domain.Project, error) {
	return e.Repo.ListProjectsForUser(ctx, actorID)
}

// ProjectUpdateOptions are parameters for updating a project. Nil
// pointers leave the field untouched.
type ProjectUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Statuses    []string
	ActorID     string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := e.Auth.RequireOwner(ctx, opts.ID, opts.ActorID); err != nil {
		return domain.Project{}, err
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Project{}, errors.New("title is required")
		}
		p.Title = *opts.Title
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.Statuses != nil {
		if err := validateStatuses(opts.Statuses); err != nil {
			return domain.Project{}, err
		}
		p.Statuses = opts.Statuses
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.updated", p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"title": p.Title}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// InviteMember adds the user with the given email to the project.
func (e Engine) InviteMember(ctx context.Context, projectID, email, actorID string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := e.Auth.RequireOwner(ctx, projectID, actorID); err != nil {
		return domain.Project{}, err
	}
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Project{}, fmt.Errorf("no user with email %s: %w", email, repo.ErrNotFound)
	}
	if err != nil {
		return domain.Project{}, err
	}
	for _, m := range p.Members {
		if m == u.ID {
			return domain.Project{}, fmt.Errorf("user %s is already a member", email)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.AddMember(ctx, tx, projectID, u.ID); err != nil {
		return domain.Project{}, fmt.Errorf("add member: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.member_added", projectID, "project", projectID, actorID, events.EventPayload{"user_id": u.ID, "email": email}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	p.Members = append(p.Members, u.ID)
	return p, nil
}

func (e Engine) DeleteProject(ctx context.Context, id, actorID string) error {
	if _, err := e.Repo.GetProject(ctx, id); err != nil {
		return err
	}
	if err := e.Auth.RequireOwner(ctx, id, actorID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Events.Append(ctx, tx, "project.deleted", id, "project", id, actorID, nil); err != nil {
		return err
	}
	if err := e.Repo.DeleteProject(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// TaskCreateOptions are parameters for creating a task. An empty
// Status falls back to the project's first column.
type TaskCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	DueDate     string
	Status      string
	AssigneeID  string
	ActorID     string
}

// CreateTask inserts the task and then runs every automation of the
// project against it. Rule failures are logged, never returned.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Task{}, errors.New("project is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Auth.RequireMember(ctx, opts.ProjectID, opts.ActorID); err != nil {
		return domain.Task{}, err
	}
	status := opts.Status
	if status == "" {
		status = "To Do"
		if len(p.Statuses) > 0 {
			status = p.Statuses[0]
		}
	}
	now := e.stamp()
	t := domain.Task{
		ID:          uuid.NewString(),
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		DueDate:     optionalString(opts.DueDate),
		Status:      status,
		AssigneeID:  optionalString(opts.AssigneeID),
		CreatorID:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "status": t.Status}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	e.Automation.RunOnCreate(ctx, &t)
	return e.rereadTask(ctx, t), nil
}

// TaskUpdateOptions are parameters for updating a task. Nil pointers
// leave the field untouched; an empty DueDate clears it, an empty
// Status is ignored.
type TaskUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	DueDate     *string
	Status      *string
	AssigneeID  *string
	ActorID     string
}

// UpdateTask saves the field changes and then evaluates automations:
// status rules when the status changed, assignee rules when the
// assignee changed, due-date rules on every update. The evaluators run
// in that order over the same task, so one rule's effect is visible to
// the next. One pass only; rule actions do not re-trigger evaluation.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Auth.RequireMember(ctx, t.ProjectID, opts.ActorID); err != nil {
		return domain.Task{}, err
	}
	statusChanged := false
	assigneeChanged := false
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, errors.New("title is required")
		}
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.DueDate != nil {
		t.DueDate = optionalString(*opts.DueDate)
	}
	if opts.Status != nil && *opts.Status != "" && *opts.Status != t.Status {
		t.Status = *opts.Status
		statusChanged = true
	}
	if opts.AssigneeID != nil {
		prev := ""
		if t.AssigneeID != nil {
			prev = *t.AssigneeID
		}
		if *opts.AssigneeID != prev {
			t.AssigneeID = optionalString(*opts.AssigneeID)
			assigneeChanged = true
		}
	}
	t.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	payload := events.EventPayload{"status": t.Status}
	if t.AssigneeID != nil {
		payload["assignee_id"] = *t.AssigneeID
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.ProjectID, "task", t.ID, opts.ActorID, payload); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}

	if statusChanged {
		e.Automation.RunOnStatusChange(ctx, &t)
	}
	if assigneeChanged {
		e.Automation.RunOnAssigneeChange(ctx, &t)
	}
	e.Automation.RunOnDueDatePassed(ctx, &t)
	return e.rereadTask(ctx, t), nil
}

func (e Engine) GetTask(ctx context.Context, id, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Auth.RequireMember(ctx, t.ProjectID, actorID); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context, projectID, actorID string) ([]domain.Task, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := e.Auth.RequireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListTasks(ctx, projectID)
}

func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Auth.RequireMember(ctx, t.ProjectID, actorID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Events.Append(ctx, tx, "task.deleted", t.ProjectID, "task", t.ID, actorID, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

// AwardBadge is the manual award path. Unlike automation awards it does
// not deduplicate: the badge is appended to the task ledger and, when
// the task is assigned, to the assignee's ledger, even if either
// already holds it.
func (e Engine) AwardBadge(ctx context.Context, taskID, name, actorID string) (domain.Task, error) {
	if name == "" {
		return domain.Task{}, errors.New("badge name is required")
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.Auth.RequireMember(ctx, t.ProjectID, actorID); err != nil {
		return domain.Task{}, err
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTaskBadge(ctx, tx, t.ID, domain.TaskBadge{ID: uuid.NewString(), Name: name, AwardedAt: now}); err != nil {
		return domain.Task{}, fmt.Errorf("insert task badge: %w", err)
	}
	if t.AssigneeID != nil {
		if err := e.Repo.InsertUserBadge(ctx, tx, *t.AssigneeID, domain.UserBadge{ID: uuid.NewString(), Name: name, ProjectID: t.ProjectID, AwardedAt: now}); err != nil {
			return domain.Task{}, fmt.Errorf("insert user badge: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "badge.added", t.ProjectID, "task", t.ID, actorID, events.EventPayload{"badge": name}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.rereadTask(ctx, t), nil
}

// AutomationCreateOptions are parameters for creating an automation rule.
type AutomationCreateOptions struct {
	ProjectID string
	Trigger   domain.Trigger
	Action    domain.Action
	ActorID   string
}

func (e Engine) CreateAutomation(ctx context.Context, opts AutomationCreateOptions) (domain.Automation, error) {
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Automation{}, err
	}
	if err := e.Auth.RequireOwner(ctx, opts.ProjectID, opts.ActorID); err != nil {
		return domain.Automation{}, err
	}
	if err := validateRule(opts.Trigger, opts.Action); err != nil {
		return domain.Automation{}, err
	}
	now := e.stamp()
	a := domain.Automation{
		ID:        uuid.NewString(),
		ProjectID: opts.ProjectID,
		Trigger:   opts.Trigger,
		Action:    opts.Action,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Automation{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAutomation(ctx, tx, a); err != nil {
		return domain.Automation{}, fmt.Errorf("insert automation: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "automation.created", a.ProjectID, "automation", a.ID, opts.ActorID, events.EventPayload{
		"trigger": string(a.Trigger.Type), "action": string(a.Action.Type),
	}); err != nil {
		return domain.Automation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Automation{}, err
	}
	return a, nil
}

func (e Engine) ListAutomations(ctx context.Context, projectID, actorID string) ([]domain.Automation, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := e.Auth.RequireMember(ctx, projectID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.AutomationsByProject(ctx, projectID)
}

func (e Engine) GetAutomation(ctx context.Context, id, actorID string) (domain.Automation, error) {
	a, err := e.Repo.GetAutomation(ctx, id)
	if err != nil {
		return domain.Automation{}, err
	}
	if err := e.Auth.RequireMember(ctx, a.ProjectID, actorID); err != nil {
		return domain.Automation{}, err
	}
	return a, nil
}

// AutomationUpdateOptions are parameters for updating a rule. Nil
// pointers leave the part untouched.
type AutomationUpdateOptions struct {
	ID      string
	Trigger *domain.Trigger
	Action  *domain.Action
	ActorID string
}

func (e Engine) UpdateAutomation(ctx context.Context, opts AutomationUpdateOptions) (domain.Automation, error) {
	a, err := e.Repo.GetAutomation(ctx, opts.ID)
	if err != nil {
		return domain.Automation{}, err
	}
	if err := e.Auth.RequireOwner(ctx, a.ProjectID, opts.ActorID); err != nil {
		return domain.Automation{}, err
	}
	if opts.Trigger != nil {
		a.Trigger = *opts.Trigger
	}
	if opts.Action != nil {
		a.Action = *opts.Action
	}
	if err := validateRule(a.Trigger, a.Action); err != nil {
		return domain.Automation{}, err
	}
	a.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Automation{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateAutomation(ctx, tx, a); err != nil {
		return domain.Automation{}, err
	}
	if err := e.Events.Append(ctx, tx, "automation.updated", a.ProjectID, "automation", a.ID, opts.ActorID, events.EventPayload{
		"trigger": string(a.Trigger.Type), "action": string(a.Action.Type),
	}); err != nil {
		return domain.Automation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Automation{}, err
	}
	return a, nil
}

func (e Engine) DeleteAutomation(ctx context.Context, id, actorID string) error {
	a, err := e.Repo.GetAutomation(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Auth.RequireOwner(ctx, a.ProjectID, actorID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteAutomation(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "automation.deleted", a.ProjectID, "automation", a.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// rereadTask reloads the task so the caller sees the state automations
// left behind, badges included. On failure the pre-reload copy is
// returned and the error is only logged.
func (e Engine) rereadTask(ctx context.Context, t domain.Task) domain.Task {
	fresh, err := e.Repo.GetTask(ctx, t.ID)
	if err != nil {
		e.logf("reread task %s: %v", t.ID, err)
		return t
	}
	return fresh
}

func validateStatuses(statuses []string) error {
	if len(statuses) == 0 {
		return errors.New("at least one status is required")
	}
	seen := map[string]bool{}
	for _, s := range statuses {
		if strings.TrimSpace(s) == "" {
			return errors.New("status names must not be empty")
		}
		if seen[s] {
			return fmt.Errorf("duplicate status %q", s)
		}
		seen[s] = true
	}
	return nil
}

func validateRule(trigger domain.Trigger, action domain.Action) error {
	switch trigger.Type {
	case domain.TriggerStatusChange, domain.TriggerAssigneeChange, domain.TriggerDueDatePassed:
	default:
		return fmt.Errorf("invalid trigger type %q", trigger.Type)
	}
	switch action.Type {
	case domain.ActionChangeStatus, domain.ActionAssignUser, domain.ActionAddBadge:
	default:
		return fmt.Errorf("invalid action type %q", action.Type)
	}
	return nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
