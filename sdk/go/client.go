package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal TaskBoard Pro HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents an account with its earned badges.
type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Badges    []UserBadge `json:"badges"`
	CreatedAt string      `json:"created_at"`
}

// UserBadge is a badge earned by a user within a project.
type UserBadge struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	AwardedAt string `json:"awarded_at"`
}

// Project represents a board.
type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	OwnerID     string   `json:"owner_id"`
	Members     []string `json:"members"`
	Statuses    []string `json:"statuses"`
	CreatedAt   string   `json:"created_at"`
}

// Task represents a work item.
type Task struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	DueDate     *string     `json:"due_date,omitempty"`
	Status      string      `json:"status"`
	AssigneeID  *string     `json:"assignee_id,omitempty"`
	CreatorID   string      `json:"creator_id"`
	Badges      []TaskBadge `json:"badges"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

// TaskBadge is a badge pinned on a task.
type TaskBadge struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AwardedAt string `json:"awarded_at"`
}

// Automation represents a project rule.
type Automation struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Trigger   map[string]any `json:"trigger"`
	Action    map[string]any `json:"action"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// AuthResponse carries a bearer token and the account it belongs to.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Register creates an account and stores the returned bearer token on
// the client for subsequent calls.
func (c *Client) Register(ctx context.Context, name, email, password string) (AuthResponse, error) {
	body := map[string]any{"name": name, "email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "v0/auth/register", body, &resp); err != nil {
		return AuthResponse{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Login authenticates and stores the returned bearer token on the
// client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]any{"email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "v0/auth/login", body, &resp); err != nil {
		return AuthResponse{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "v0/auth/me", nil, &resp)
	return resp, err
}

// CreateProject creates a board owned by the authenticated user.
func (c *Client) CreateProject(ctx context.Context, title, description string, statuses []string) (Project, error) {
	body := map[string]any{"title": title}
	if description != "" {
		body["description"] = description
	}
	if len(statuses) > 0 {
		body["statuses"] = statuses
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", body, &resp)
	return resp, err
}

// InviteMember adds a registered user to the project by email.
func (c *Client) InviteMember(ctx context.Context, projectID, email string) (Project, error) {
	body := map[string]any{"email": email}
	var resp Project
	endpoint := fmt.Sprintf("v0/projects/%s/invite", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateTask creates a task in the project. Extra fields such as
// "status", "due_date" or "assignee_id" go in fields; nil is fine.
func (c *Client) CreateTask(ctx context.Context, projectID, title string, fields map[string]any) (Task, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp Task
	endpoint := fmt.Sprintf("v0/projects/%s/tasks", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateTask patches the given fields; nil map entries are omitted.
func (c *Client) UpdateTask(ctx context.Context, taskID string, fields map[string]any) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, fields, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListTasks returns the project's tasks.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var resp []Task
	endpoint := fmt.Sprintf("v0/projects/%s/tasks", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AwardBadge pins a badge on the task and its assignee.
func (c *Client) AwardBadge(ctx context.Context, taskID, name string) (Task, error) {
	body := map[string]any{"name": name}
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/badge", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateAutomation creates a rule in the project. Trigger and action
// use the API's JSON shapes, for example:
//
//	trigger: {"type": "status_change", "condition": {"status": "Done"}}
//	action:  {"type": "add_badge", "value": {"badge": "Finisher"}}
func (c *Client) CreateAutomation(ctx context.Context, projectID string, trigger, action map[string]any) (Automation, error) {
	body := map[string]any{"trigger": trigger, "action": action}
	var resp Automation
	endpoint := fmt.Sprintf("v0/projects/%s/automations", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ListAutomations returns the project's rules.
func (c *Client) ListAutomations(ctx context.Context, projectID string) ([]Automation, error) {
	var resp []Automation
	endpoint := fmt.Sprintf("v0/projects/%s/automations", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events for a project.
func (c *Client) Events(ctx context.Context, projectID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, projectID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, projectID string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	q.Set("project_id", projectID)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, "v0/events?"+q.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
