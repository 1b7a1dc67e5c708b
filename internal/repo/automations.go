package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

func (r Repo) InsertAutomation(ctx context.Context, tx *sql.Tx, a domain.Automation) error {
	condition, err := json.Marshal(a.Trigger.Condition)
	if err != nil {
		return fmt.Errorf("marshal trigger condition: %w", err)
	}
	value, err := json.Marshal(a.Action.Value)
	if err != nil {
		return fmt.Errorf("marshal action value: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO automations(id,project_id,trigger_type,trigger_condition_json,action_type,action_value_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, string(a.Trigger.Type), string(condition), string(a.Action.Type), string(value), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) UpdateAutomation(ctx context.Context, tx *sql.Tx, a domain.Automation) error {
	condition, err := json.Marshal(a.Trigger.Condition)
	if err != nil {
		return fmt.Errorf("marshal trigger condition: %w", err)
	}
	value, err := json.Marshal(a.Action.Value)
	if err != nil {
		return fmt.Errorf("marshal action value: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE automations SET trigger_type=?, trigger_condition_json=?, action_type=?, action_value_json=?, updated_at=? WHERE id=?`,
		string(a.Trigger.Type), string(condition), string(a.Action.Type), string(value), a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAutomation(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM automations WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAutomation(ctx context.Context, id string) (domain.Automation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,project_id,trigger_type,trigger_condition_json,action_type,action_value_json,created_at,updated_at FROM automations WHERE id=?`, id)
	a, err := scanAutomation(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// AutomationsByProject returns all rules for a project in creation order.
func (r Repo) AutomationsByProject(ctx context.Context, projectID string) ([]domain.Automation, error) {
	return r.listAutomations(ctx, `SELECT id,project_id,trigger_type,trigger_condition_json,action_type,action_value_json,created_at,updated_at FROM automations WHERE project_id=? ORDER BY created_at, id`, projectID)
}

// AutomationsByProjectAndTrigger returns rules for one trigger kind in creation order.
func (r Repo) AutomationsByProjectAndTrigger(ctx context.Context, projectID string, trigger domain.TriggerType) ([]domain.Automation, error) {
	return r.listAutomations(ctx, `SELECT id,project_id,trigger_type,trigger_condition_json,action_type,action_value_json,created_at,updated_at FROM automations WHERE project_id=? AND trigger_type=? ORDER BY created_at, id`, projectID, string(trigger))
}

func (r Repo) listAutomations(ctx context.Context, query string, args ...any) ([]domain.Automation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func scanAutomation(scan func(...any) error) (domain.Automation, error) {
	var a domain.Automation
	var triggerType, conditionJSON, actionType, valueJSON string
	if err := scan(&a.ID, &a.ProjectID, &triggerType, &conditionJSON, &actionType, &valueJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return a, err
	}
	a.Trigger.Type = domain.TriggerType(triggerType)
	a.Action.Type = domain.ActionType(actionType)
	// A malformed payload decodes to the zero condition/value, which
	// never matches and applies nothing. Rules stay best-effort.
	_ = json.Unmarshal([]byte(conditionJSON), &a.Trigger.Condition)
	_ = json.Unmarshal([]byte(valueJSON), &a.Action.Value)
	return a, nil
}
