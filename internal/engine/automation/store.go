// Package automation evaluates project rules against task transitions
// and applies their follow-up actions. Everything in here is
// best-effort: a rule that fails to apply is logged and skipped, the
// triggering operation never fails because of it.
package automation

import (
	"context"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

// Store is the persistence surface the rule engine needs. repo.Repo
// implements it. Rules read and write through this boundary only.
type Store interface {
	AutomationsByProject(ctx context.Context, projectID string) ([]domain.Automation, error)
	AutomationsByProjectAndTrigger(ctx context.Context, projectID string, trigger domain.TriggerType) ([]domain.Automation, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	SaveTask(ctx context.Context, t *domain.Task) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	SaveUser(ctx context.Context, u *domain.User) error
}
