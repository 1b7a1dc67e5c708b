package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	statuses, err := json.Marshal(p.Statuses)
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO projects(id,title,description,owner_id,statuses_json,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Title, nullable(p.Description), p.OwnerID, string(statuses), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var desc sql.NullString
	var statusesJSON string
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,description,owner_id,statuses_json,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &desc, &p.OwnerID, &statusesJSON, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if err := json.Unmarshal([]byte(statusesJSON), &p.Statuses); err != nil {
		return p, fmt.Errorf("project %s statuses: %w", id, err)
	}
	members, err := r.ListMembers(ctx, p.ID)
	if err != nil {
		return p, err
	}
	p.Members = members
	return p, nil
}

func (r Repo) ListProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT p.id,p.title,p.description,p.owner_id,p.statuses_json,p.created_at
FROM projects p JOIN project_members m ON m.project_id=p.id WHERE m.user_id=? ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var desc sql.NullString
		var statusesJSON string
		if err := rows.Scan(&p.ID, &p.Title, &desc, &p.OwnerID, &statusesJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		if err := json.Unmarshal([]byte(statusesJSON), &p.Statuses); err != nil {
			return nil, fmt.Errorf("project %s statuses: %w", p.ID, err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		members, err := r.ListMembers(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Members = members
	}
	return res, nil
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	statuses, err := json.Marshal(p.Statuses)
	if err != nil {
		return fmt.Errorf("marshal statuses: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE projects SET title=?, description=?, statuses_json=? WHERE id=?`,
		p.Title, nullable(p.Description), string(statuses), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,description,due_date,status,assignee_id,creator_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, nullable(t.Description), nullableStringPtr(t.DueDate), t.Status,
		nullableStringPtr(t.AssigneeID), t.CreatorID, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, due_date=?, status=?, assignee_id=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), nullableStringPtr(t.DueDate), t.Status, nullableStringPtr(t.AssigneeID), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	var desc, dueDate, assigneeID sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,title,description,due_date,status,assignee_id,creator_id,created_at,updated_at FROM tasks WHERE id=?`, id).
		Scan(&t.ID, &t.ProjectID, &t.Title, &desc, &dueDate, &t.Status, &assigneeID, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = desc.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.String
	}
	badges, err := r.ListTaskBadges(ctx, t.ID)
	if err != nil {
		return t, err
	}
	t.Badges = badges
	return t, nil
}

func (r Repo) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,title,description,due_date,status,assignee_id,creator_id,created_at,updated_at FROM tasks WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var desc, dueDate, assigneeID sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &desc, &dueDate, &t.Status, &assigneeID, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			t.Description = desc.String
		}
		if dueDate.Valid {
			t.DueDate = &dueDate.String
		}
		if assigneeID.Valid {
			t.AssigneeID = &assigneeID.String
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		badges, err := r.ListTaskBadges(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Badges = badges
	}
	return res, nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTask persists the task's scalar fields and appends any badges the
// caller added in memory (entries without an id). New entries get their
// id assigned in place so a later save does not insert them twice.
// Automation applies go through here.
func (r Repo) SaveTask(ctx context.Context, t *domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, due_date=?, status=?, assignee_id=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), nullableStringPtr(t.DueDate), t.Status, nullableStringPtr(t.AssigneeID), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	for i := range t.Badges {
		if t.Badges[i].ID != "" {
			continue
		}
		t.Badges[i].ID = uuid.NewString()
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO task_badges(id,task_id,name,awarded_at) VALUES (?,?,?,?)`,
			t.Badges[i].ID, t.ID, t.Badges[i].Name, t.Badges[i].AwardedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, projectID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, projectID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var projectID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &projectID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if projectID.Valid {
			e.ProjectID = projectID.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
