package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/config"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/db"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/engine"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/engine/auth"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/migrate"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Owner  domain.User
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return fixed }
	eng.Automation.Now = eng.Now
	ctx := context.Background()
	owner, err := eng.RegisterUser(ctx, "Owner", "owner@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Owner: owner}
}

func (env testEnv) newUser(t *testing.T, name, email string) domain.User {
	t.Helper()
	u, err := env.Engine.RegisterUser(env.Ctx, name, email, "secret-pass")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (env testEnv) newProject(t *testing.T) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Title:   "Board",
		ActorID: env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (env testEnv) newRule(t *testing.T, projectID string, trigger domain.Trigger, action domain.Action) domain.Automation {
	t.Helper()
	a, err := env.Engine.CreateAutomation(env.Ctx, engine.AutomationCreateOptions{
		ProjectID: projectID,
		Trigger:   trigger,
		Action:    action,
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create automation: %v", err)
	}
	return a
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.RegisterUser(env.Ctx, "Other", "owner@example.com", "secret-pass")
	if !errors.Is(err, engine.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.Authenticate(env.Ctx, "owner@example.com", "secret-pass")
	if err != nil || u.ID != env.Owner.ID {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "owner@example.com", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "ghost@example.com", "secret-pass"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestCreateTaskDefaultsToFirstStatus(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Do work",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "To Do" {
		t.Fatalf("expected first column status, got %q", task.Status)
	}
}

func TestCreateTaskWithInitialStatusTriggersRules(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerStatusChange, Condition: domain.TriggerCondition{Status: "Done"}},
		domain.Action{Type: domain.ActionAddBadge, Value: domain.ActionValue{Badge: "Finisher"}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID:  p.ID,
		Title:      "Already done",
		Status:     "Done",
		AssigneeID: env.Owner.ID,
		ActorID:    env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "Done" {
		t.Fatalf("expected the supplied status, got %q", task.Status)
	}
	if len(task.Badges) != 1 || task.Badges[0].Name != "Finisher" {
		t.Fatalf("expected the rule to fire on the initial status, got %+v", task.Badges)
	}
}

func TestEmptyStatusUpdateIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Steady",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	empty := ""
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &empty, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if task.Status != "To Do" {
		t.Fatalf("expected the status to survive an empty update, got %q", task.Status)
	}
}

func TestStatusChangeRuleAwardsBadgeOnce(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerStatusChange, Condition: domain.TriggerCondition{Status: "Done"}},
		domain.Action{Type: domain.ActionAddBadge, Value: domain.ActionValue{Badge: "Finisher"}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID:  p.ID,
		Title:      "Ship it",
		AssigneeID: env.Owner.ID,
		ActorID:    env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(task.Badges) != 0 {
		t.Fatalf("no badge expected before the status matches, got %d", len(task.Badges))
	}

	done := "Done"
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &done, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if len(task.Badges) != 1 || task.Badges[0].Name != "Finisher" {
		t.Fatalf("expected one Finisher badge, got %+v", task.Badges)
	}
	u, err := env.Engine.GetUser(env.Ctx, env.Owner.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.HasBadge("Finisher", p.ID) {
		t.Fatalf("expected assignee to hold the badge, got %+v", u.Badges)
	}

	// Bounce the status away and back; the ledger must not grow.
	inProgress := "In Progress"
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &inProgress, ActorID: env.Owner.ID}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &done, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if len(task.Badges) != 1 {
		t.Fatalf("expected badge awarded once, got %+v", task.Badges)
	}
	u, _ = env.Engine.GetUser(env.Ctx, env.Owner.ID)
	if len(u.Badges) != 1 {
		t.Fatalf("expected one user badge, got %+v", u.Badges)
	}
}

func TestRulesRunOnCreate(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerStatusChange, Condition: domain.TriggerCondition{Status: "To Do"}},
		domain.Action{Type: domain.ActionAssignUser, Value: domain.ActionValue{UserID: env.Owner.ID}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Fresh",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.AssigneeID == nil || *task.AssigneeID != env.Owner.ID {
		t.Fatalf("expected rule to assign the owner on create, got %v", task.AssigneeID)
	}
}

func TestAssigneeChangeRuleChangesStatus(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	member := env.newUser(t, "Member", "member@example.com")
	if _, err := env.Engine.InviteMember(env.Ctx, p.ID, member.Email, env.Owner.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerAssigneeChange, Condition: domain.TriggerCondition{UserID: member.ID}},
		domain.Action{Type: domain.ActionChangeStatus, Value: domain.ActionValue{Status: "In Progress"}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Handover",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssigneeID: &member.ID, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if task.Status != "In Progress" {
		t.Fatalf("expected rule to move the task, got %q", task.Status)
	}
}

func TestDueDateRuleRefiresOnEveryUpdate(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerDueDatePassed},
		domain.Action{Type: domain.ActionChangeStatus, Value: domain.ActionValue{Status: "Done"}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Late",
		DueDate:   "2024-05-01T00:00:00Z",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "Done" {
		t.Fatalf("expected overdue rule on create, got %q", task.Status)
	}

	// Moving the task back does not stick: the due-date pass runs on
	// every update and flips it again.
	inProgress := "In Progress"
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &inProgress, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if task.Status != "Done" {
		t.Fatalf("expected due-date rule to refire, got %q", task.Status)
	}
}

func TestFutureDueDateDoesNotMatch(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerDueDatePassed},
		domain.Action{Type: domain.ActionAddBadge, Value: domain.ActionValue{Badge: "Overdue"}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "On time",
		DueDate:   "2024-07-01T00:00:00Z",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(task.Badges) != 0 {
		t.Fatalf("expected no badge for a future due date, got %+v", task.Badges)
	}
}

func TestStatusRulesOnlyRunOnStatusChange(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	env.newRule(t, p.ID,
		domain.Trigger{Type: domain.TriggerStatusChange, Condition: domain.TriggerCondition{Status: "To Do"}},
		domain.Action{Type: domain.ActionAssignUser, Value: domain.ActionValue{UserID: env.Owner.ID}},
	)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Sticky",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.AssigneeID == nil {
		t.Fatalf("expected assignment on create")
	}

	// Clearing the assignee changes the assignee, not the status, so the
	// status rule stays quiet and the task remains unassigned.
	empty := ""
	task, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssigneeID: &empty, ActorID: env.Owner.ID})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if task.AssigneeID != nil {
		t.Fatalf("expected assignee cleared, got %v", *task.AssigneeID)
	}
}

func TestManualBadgeStacksDuplicates(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID:  p.ID,
		Title:      "Pile on",
		AssigneeID: env.Owner.ID,
		ActorID:    env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.Engine.AwardBadge(env.Ctx, task.ID, "Hero", env.Owner.ID); err != nil {
		t.Fatalf("award badge: %v", err)
	}
	task, err = env.Engine.AwardBadge(env.Ctx, task.ID, "Hero", env.Owner.ID)
	if err != nil {
		t.Fatalf("award badge: %v", err)
	}
	if len(task.Badges) != 2 {
		t.Fatalf("manual awards stack, expected 2 task badges, got %+v", task.Badges)
	}
	u, err := env.Engine.GetUser(env.Ctx, env.Owner.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(u.Badges) != 2 {
		t.Fatalf("manual awards stack, expected 2 user badges, got %+v", u.Badges)
	}
}

func TestAutomationWritesRequireOwner(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	member := env.newUser(t, "Member", "member@example.com")
	if _, err := env.Engine.InviteMember(env.Ctx, p.ID, member.Email, env.Owner.ID); err != nil {
		t.Fatalf("invite: %v", err)
	}
	_, err := env.Engine.CreateAutomation(env.Ctx, engine.AutomationCreateOptions{
		ProjectID: p.ID,
		Trigger:   domain.Trigger{Type: domain.TriggerStatusChange, Condition: domain.TriggerCondition{Status: "Done"}},
		Action:    domain.Action{Type: domain.ActionAddBadge, Value: domain.ActionValue{Badge: "Nope"}},
		ActorID:   member.ID,
	})
	var ownerErr auth.ForbiddenOwnerError
	if !errors.As(err, &ownerErr) {
		t.Fatalf("expected ForbiddenOwnerError, got %v", err)
	}
}

func TestNonMemberCannotReadTasks(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	outsider := env.newUser(t, "Outsider", "outsider@example.com")
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: p.ID,
		Title:     "Private",
		ActorID:   env.Owner.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	_, err = env.Engine.GetTask(env.Ctx, task.ID, outsider.ID)
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestInviteMember(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	member := env.newUser(t, "Member", "member@example.com")
	p, err := env.Engine.InviteMember(env.Ctx, p.ID, member.Email, env.Owner.ID)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if len(p.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", p.Members)
	}
	if _, err := env.Engine.InviteMember(env.Ctx, p.ID, member.Email, env.Owner.ID); err == nil || !strings.Contains(err.Error(), "already") {
		t.Fatalf("expected already-a-member error, got %v", err)
	}
	if _, err := env.Engine.InviteMember(env.Ctx, p.ID, "ghost@example.com", env.Owner.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}
}

func TestInvalidRuleRejected(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	_, err := env.Engine.CreateAutomation(env.Ctx, engine.AutomationCreateOptions{
		ProjectID: p.ID,
		Trigger:   domain.Trigger{Type: "on_comment"},
		Action:    domain.Action{Type: domain.ActionAddBadge, Value: domain.ActionValue{Badge: "X"}},
		ActorID:   env.Owner.ID,
	})
	if err == nil || !strings.Contains(err.Error(), "invalid trigger type") {
		t.Fatalf("expected trigger validation error, got %v", err)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProject(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: p.ID, Title: "evented", ActorID: env.Owner.ID})
	if err != nil {
		t.Fatal(err)
	}
	done := "Done"
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: &done, ActorID: env.Owner.ID}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if _, err := env.Engine.AwardBadge(env.Ctx, task.ID, "Hero", env.Owner.ID); err != nil {
		t.Fatalf("award badge: %v", err)
	}
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events WHERE entity_id=?`, task.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	if count < 3 {
		t.Fatalf("expected create, update, and badge events, got %d", count)
	}
}
