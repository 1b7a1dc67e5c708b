package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,name,email,password_hash,created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,password_hash,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	badges, err := r.ListUserBadges(ctx, u.ID)
	if err != nil {
		return u, err
	}
	u.Badges = badges
	return u, nil
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,email,password_hash,created_at FROM users WHERE email=?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	badges, err := r.ListUserBadges(ctx, u.ID)
	if err != nil {
		return u, err
	}
	u.Badges = badges
	return u, nil
}

// SaveUser appends badges the caller added in memory (entries without
// an id) and assigns their ids in place. User scalar fields are
// immutable after registration, so only the ledger is written.
func (r Repo) SaveUser(ctx context.Context, u *domain.User) error {
	for i := range u.Badges {
		if u.Badges[i].ID != "" {
			continue
		}
		u.Badges[i].ID = uuid.NewString()
		if _, err := r.DB.ExecContext(ctx, `INSERT INTO user_badges(id,user_id,project_id,name,awarded_at) VALUES (?,?,?,?,?)`,
			u.Badges[i].ID, u.ID, u.Badges[i].ProjectID, u.Badges[i].Name, u.Badges[i].AwardedAt); err != nil {
			return err
		}
	}
	return nil
}
