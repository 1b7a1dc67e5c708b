package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// ForbiddenError indicates the actor is not a member of the project.
type ForbiddenError struct {
	ProjectID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("membership in project %s required", e.ProjectID)
}

// ForbiddenOwnerError indicates the actor does not own the project.
type ForbiddenOwnerError struct {
	ProjectID string
}

func (e ForbiddenOwnerError) Error() string {
	return fmt.Sprintf("ownership of project %s required", e.ProjectID)
}

// Service provides membership checks backed by SQL.
type Service struct {
	DB *sql.DB
}

func (s Service) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT 1 FROM project_members WHERE project_id=? AND user_id=? LIMIT 1`, projectID, userID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s Service) IsOwner(ctx context.Context, projectID, userID string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id=? AND owner_id=? LIMIT 1`, projectID, userID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RequireMember returns ForbiddenError when the actor is not a member.
func (s Service) RequireMember(ctx context.Context, projectID, userID string) error {
	ok, err := s.IsMember(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{ProjectID: projectID}
	}
	return nil
}

// RequireOwner returns ForbiddenOwnerError when the actor does not own
// the project.
func (s Service) RequireOwner(ctx context.Context, projectID, userID string) error {
	ok, err := s.IsOwner(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenOwnerError{ProjectID: projectID}
	}
	return nil
}
