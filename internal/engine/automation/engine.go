package automation

import (
	"context"
	"log"
	"time"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

// Engine runs one evaluation pass over a project's rules. Rules apply
// sequentially in creation order against the same task, so an earlier
// action's mutation is visible to later actions. The status pass
// selects its rules against the triggering status up front; the other
// passes match each rule against the task as it currently stands. A
// pass never re-triggers itself: actions that change status or
// assignee do not cascade into another evaluation.
type Engine struct {
	Store  Store
	Logger *log.Logger
	Now    func() time.Time
}

func New(store Store, logger *log.Logger) *Engine {
	return &Engine{Store: store, Logger: logger}
}

// Outcome records what happened to one matched rule.
type Outcome struct {
	AutomationID string
	Action       domain.ActionType
	Err          error
}

// RunOnCreate evaluates every rule of the project against a freshly
// created task, whatever its trigger kind.
func (e *Engine) RunOnCreate(ctx context.Context, t *domain.Task) []Outcome {
	autos, err := e.Store.AutomationsByProject(ctx, t.ProjectID)
	if err != nil {
		e.logf("automation: load rules for project %s: %v", t.ProjectID, err)
		return nil
	}
	m := e.matcher()
	return e.run(ctx, "create", t, autos, func(a domain.Automation) bool {
		return m.MatchOnCreate(a, *t)
	})
}

// RunOnStatusChange evaluates status_change rules after a status
// update. The matched set is fixed against the status the task just
// moved to: every rule conditioned on that status applies, even when
// an earlier action in the pass moves the task elsewhere, and rules
// conditioned on a post-action status do not fire.
func (e *Engine) RunOnStatusChange(ctx context.Context, t *domain.Task) []Outcome {
	autos, err := e.Store.AutomationsByProjectAndTrigger(ctx, t.ProjectID, domain.TriggerStatusChange)
	if err != nil {
		e.logf("automation: load status rules for project %s: %v", t.ProjectID, err)
		return nil
	}
	m := e.matcher()
	var matched []domain.Automation
	for _, a := range autos {
		if m.MatchOnStatusChange(a, *t) {
			matched = append(matched, a)
		}
	}
	return e.run(ctx, "status_change", t, matched, nil)
}

// RunOnAssigneeChange evaluates assignee_change rules after a
// reassignment.
func (e *Engine) RunOnAssigneeChange(ctx context.Context, t *domain.Task) []Outcome {
	autos, err := e.Store.AutomationsByProjectAndTrigger(ctx, t.ProjectID, domain.TriggerAssigneeChange)
	if err != nil {
		e.logf("automation: load assignee rules for project %s: %v", t.ProjectID, err)
		return nil
	}
	m := e.matcher()
	return e.run(ctx, "assignee_change", t, autos, func(a domain.Automation) bool {
		return m.MatchOnAssigneeChange(a, *t)
	})
}

// RunOnDueDatePassed evaluates due_date_passed rules. Callers invoke it
// on every task update; the matcher filters out tasks whose due date
// has not passed, so a rule here fires again on each later update.
func (e *Engine) RunOnDueDatePassed(ctx context.Context, t *domain.Task) []Outcome {
	autos, err := e.Store.AutomationsByProjectAndTrigger(ctx, t.ProjectID, domain.TriggerDueDatePassed)
	if err != nil {
		e.logf("automation: load due-date rules for project %s: %v", t.ProjectID, err)
		return nil
	}
	m := e.matcher()
	return e.run(ctx, "due_date_passed", t, autos, func(a domain.Automation) bool {
		return m.MatchOnDueDatePassed(a, *t)
	})
}

// run applies the rules in order. A nil match means the caller already
// selected the set; otherwise each rule is checked against the task as
// it stands when its turn comes.
func (e *Engine) run(ctx context.Context, pass string, t *domain.Task, autos []domain.Automation, match func(domain.Automation) bool) []Outcome {
	applier := Applier{Store: e.Store, Now: e.Now}
	var outcomes []Outcome
	for _, a := range autos {
		if match != nil && !match(a) {
			continue
		}
		err := applier.Apply(ctx, t, a)
		outcomes = append(outcomes, Outcome{AutomationID: a.ID, Action: a.Action.Type, Err: err})
		if err != nil {
			e.logf("automation: rule %s action %s on task %s: %v", a.ID, a.Action.Type, t.ID, err)
		}
	}
	if len(outcomes) > 0 {
		applied := 0
		for _, o := range outcomes {
			if o.Err == nil {
				applied++
			}
		}
		e.logf("automation: pass=%s task=%s matched=%d applied=%d", pass, t.ID, len(outcomes), applied)
	}
	return outcomes
}

func (e *Engine) matcher() Matcher {
	return Matcher{Now: e.Now}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
