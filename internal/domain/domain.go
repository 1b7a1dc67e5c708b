package domain

type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Badges       []UserBadge `json:"badges"`
	CreatedAt    string      `json:"created_at" format:"date-time"`
}

// UserBadge is one entry in a user's badge ledger, scoped to the
// project the badge was earned in.
type UserBadge struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	AwardedAt string `json:"awarded_at" format:"date-time"`
}

type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	OwnerID     string   `json:"owner_id"`
	Members     []string `json:"members"`
	Statuses    []string `json:"statuses"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

type Task struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	DueDate     *string     `json:"due_date,omitempty" format:"date-time"`
	Status      string      `json:"status"`
	AssigneeID  *string     `json:"assignee_id,omitempty"`
	CreatorID   string      `json:"creator_id"`
	Badges      []TaskBadge `json:"badges"`
	CreatedAt   string      `json:"created_at" format:"date-time"`
	UpdatedAt   string      `json:"updated_at" format:"date-time"`
}

// TaskBadge is one entry in a task's badge ledger.
type TaskBadge struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AwardedAt string `json:"awarded_at" format:"date-time"`
}

// HasBadge reports whether the task ledger already holds a badge with
// the given name. Automation-applied awards use it to collapse
// duplicates; the manual award path deliberately does not.
func (t Task) HasBadge(name string) bool {
	for _, b := range t.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// HasBadge reports whether the user ledger already holds a badge with
// the given (name, project) pair.
func (u User) HasBadge(name, projectID string) bool {
	for _, b := range u.Badges {
		if b.Name == name && b.ProjectID == projectID {
			return true
		}
	}
	return false
}

type TriggerType string

const (
	TriggerStatusChange   TriggerType = "status_change"
	TriggerAssigneeChange TriggerType = "assignee_change"
	TriggerDueDatePassed  TriggerType = "due_date_passed"
)

type ActionType string

const (
	ActionChangeStatus ActionType = "change_status"
	ActionAssignUser   ActionType = "assign_user"
	ActionAddBadge     ActionType = "add_badge"
)

// TriggerCondition carries the per-kind trigger parameters. Only the
// field matching Trigger.Type is meaningful: Status for status_change,
// UserID for assignee_change, nothing for due_date_passed. A missing
// field is the zero value and never matches.
type TriggerCondition struct {
	Status string `json:"status,omitempty"`
	UserID string `json:"userId,omitempty"`
}

type Trigger struct {
	Type      TriggerType      `json:"type" enum:"status_change,assignee_change,due_date_passed"`
	Condition TriggerCondition `json:"condition"`
}

// ActionValue carries the per-kind action parameters. Only the field
// matching Action.Type is meaningful: Status for change_status, UserID
// for assign_user, Badge for add_badge.
type ActionValue struct {
	Status string `json:"status,omitempty"`
	UserID string `json:"userId,omitempty"`
	Badge  string `json:"badge,omitempty"`
}

type Action struct {
	Type  ActionType  `json:"type" enum:"change_status,assign_user,add_badge"`
	Value ActionValue `json:"value"`
}

type Automation struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Trigger   Trigger `json:"trigger"`
	Action    Action  `json:"action"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
