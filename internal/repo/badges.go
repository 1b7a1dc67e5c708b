package repo

import (
	"context"
	"database/sql"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

func (r Repo) InsertTaskBadge(ctx context.Context, tx *sql.Tx, taskID string, b domain.TaskBadge) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_badges(id,task_id,name,awarded_at) VALUES (?,?,?,?)`,
		b.ID, taskID, b.Name, b.AwardedAt)
	return err
}

func (r Repo) ListTaskBadges(ctx context.Context, taskID string) ([]domain.TaskBadge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,awarded_at FROM task_badges WHERE task_id=? ORDER BY awarded_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskBadge
	for rows.Next() {
		var b domain.TaskBadge
		if err := rows.Scan(&b.ID, &b.Name, &b.AwardedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) InsertUserBadge(ctx context.Context, tx *sql.Tx, userID string, b domain.UserBadge) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO user_badges(id,user_id,project_id,name,awarded_at) VALUES (?,?,?,?,?)`,
		b.ID, userID, b.ProjectID, b.Name, b.AwardedAt)
	return err
}

func (r Repo) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,name,awarded_at FROM user_badges WHERE user_id=? ORDER BY awarded_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserBadge
	for rows.Next() {
		var b domain.UserBadge
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.AwardedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
