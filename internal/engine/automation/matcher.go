package automation

import (
	"time"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

// Matcher decides whether a rule fires for a task. All checks are pure
// reads; a condition field left empty is the zero value and never
// matches.
type Matcher struct {
	Now func() time.Time
}

// MatchOnCreate evaluates a rule of any trigger kind against a freshly
// created task.
func (m Matcher) MatchOnCreate(a domain.Automation, t domain.Task) bool {
	switch a.Trigger.Type {
	case domain.TriggerStatusChange:
		return m.MatchOnStatusChange(a, t)
	case domain.TriggerAssigneeChange:
		return m.MatchOnAssigneeChange(a, t)
	case domain.TriggerDueDatePassed:
		return m.MatchOnDueDatePassed(a, t)
	}
	return false
}

// MatchOnStatusChange fires when the rule's status equals the task's
// current status.
func (m Matcher) MatchOnStatusChange(a domain.Automation, t domain.Task) bool {
	return a.Trigger.Condition.Status == t.Status
}

// MatchOnAssigneeChange fires when the rule names a user and the task
// is assigned to exactly that user.
func (m Matcher) MatchOnAssigneeChange(a domain.Automation, t domain.Task) bool {
	if a.Trigger.Condition.UserID == "" || t.AssigneeID == nil {
		return false
	}
	return a.Trigger.Condition.UserID == *t.AssigneeID
}

// MatchOnDueDatePassed fires when the task has a due date strictly in
// the past. An unparsable due date never matches.
func (m Matcher) MatchOnDueDatePassed(a domain.Automation, t domain.Task) bool {
	if t.DueDate == nil {
		return false
	}
	due, err := time.Parse(time.RFC3339, *t.DueDate)
	if err != nil {
		return false
	}
	return due.Before(m.now())
}

func (m Matcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
