package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

// Applier executes a matched rule's action against a task. The task
// pointer is mutated in place so later rules in the same pass see the
// result.
type Applier struct {
	Store Store
	Now   func() time.Time
}

// Apply runs a single action. change_status and assign_user write the
// task as-is with no domain validation. add_badge appends to the task
// ledger only when the name is new on that task, then independently to
// the assignee's ledger only when the (name, project) pair is new for
// that user. An action whose value field is empty applies nothing.
func (ap Applier) Apply(ctx context.Context, t *domain.Task, a domain.Automation) error {
	switch a.Action.Type {
	case domain.ActionChangeStatus:
		if a.Action.Value.Status == "" {
			return nil
		}
		t.Status = a.Action.Value.Status
		t.UpdatedAt = ap.stamp()
		return ap.Store.SaveTask(ctx, t)
	case domain.ActionAssignUser:
		if a.Action.Value.UserID == "" {
			return nil
		}
		userID := a.Action.Value.UserID
		t.AssigneeID = &userID
		t.UpdatedAt = ap.stamp()
		return ap.Store.SaveTask(ctx, t)
	case domain.ActionAddBadge:
		return ap.addBadge(ctx, t, a.Action.Value.Badge)
	}
	return fmt.Errorf("unknown action type %q", a.Action.Type)
}

func (ap Applier) addBadge(ctx context.Context, t *domain.Task, name string) error {
	if name == "" {
		return nil
	}
	if !t.HasBadge(name) {
		t.Badges = append(t.Badges, domain.TaskBadge{Name: name, AwardedAt: ap.stamp()})
		if err := ap.Store.SaveTask(ctx, t); err != nil {
			return err
		}
	}
	if t.AssigneeID == nil {
		return nil
	}
	user, err := ap.Store.GetUser(ctx, *t.AssigneeID)
	if err != nil {
		return fmt.Errorf("load assignee %s: %w", *t.AssigneeID, err)
	}
	if user.HasBadge(name, t.ProjectID) {
		return nil
	}
	user.Badges = append(user.Badges, domain.UserBadge{Name: name, ProjectID: t.ProjectID, AwardedAt: ap.stamp()})
	return ap.Store.SaveUser(ctx, &user)
}

func (ap Applier) stamp() string {
	now := time.Now
	if ap.Now != nil {
		now = ap.Now
	}
	return now().UTC().Format(time.RFC3339)
}
