package server

import (
	"encoding/json"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

type RegisterRequest struct {
	Name     string `json:"name" example:"Ada"`
	Email    string `json:"email" format:"email" example:"ada@example.com"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Email     string              `json:"email"`
	Badges    []UserBadgeResponse `json:"badges"`
	CreatedAt string              `json:"created_at"`
}

type UserBadgeResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	AwardedAt string `json:"awarded_at"`
}

type CreateProjectRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
}

type UpdateProjectRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Statuses    []string `json:"statuses,omitempty"`
}

type InviteMemberRequest struct {
	Email string `json:"email" format:"email"`
}

type ProjectResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	OwnerID     string   `json:"owner_id"`
	Members     []string `json:"members"`
	Statuses    []string `json:"statuses"`
	CreatedAt   string   `json:"created_at"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	Status      *string `json:"status,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	Status      *string `json:"status,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

type AwardBadgeRequest struct {
	Name string `json:"name" example:"Speedster"`
}

type TaskResponse struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"project_id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	DueDate     *string             `json:"due_date,omitempty"`
	Status      string              `json:"status"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
	CreatorID   string              `json:"creator_id"`
	Badges      []TaskBadgeResponse `json:"badges"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

type TaskBadgeResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AwardedAt string `json:"awarded_at"`
}

type CreateAutomationRequest struct {
	Trigger domain.Trigger `json:"trigger"`
	Action  domain.Action  `json:"action"`
}

type UpdateAutomationRequest struct {
	Trigger *domain.Trigger `json:"trigger,omitempty"`
	Action  *domain.Action  `json:"action,omitempty"`
}

type AutomationResponse struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Trigger   domain.Trigger `json:"trigger"`
	Action    domain.Action  `json:"action"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func userResponse(u domain.User) UserResponse {
	badges := make([]UserBadgeResponse, 0, len(u.Badges))
	for _, b := range u.Badges {
		badges = append(badges, UserBadgeResponse{ID: b.ID, Name: b.Name, ProjectID: b.ProjectID, AwardedAt: b.AwardedAt})
	}
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Badges: badges, CreatedAt: u.CreatedAt}
}

func projectResponse(p domain.Project) ProjectResponse {
	members := p.Members
	if members == nil {
		members = []string{}
	}
	return ProjectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		Members:     members,
		Statuses:    p.Statuses,
		CreatedAt:   p.CreatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func taskResponse(t domain.Task) TaskResponse {
	badges := make([]TaskBadgeResponse, 0, len(t.Badges))
	for _, b := range t.Badges {
		badges = append(badges, TaskBadgeResponse{ID: b.ID, Name: b.Name, AwardedAt: b.AwardedAt})
	}
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Status:      t.Status,
		AssigneeID:  t.AssigneeID,
		CreatorID:   t.CreatorID,
		Badges:      badges,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func automationResponse(a domain.Automation) AutomationResponse {
	return AutomationResponse{
		ID:        a.ID,
		ProjectID: a.ProjectID,
		Trigger:   a.Trigger,
		Action:    a.Action,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	payload := map[string]any{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}
