package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/domain"
	"github.com/itz-rajshekhar18/TaskBoard-Pro/internal/repo"
)

// ResolveProject picks the active project for CLI commands: the
// explicit override when given, otherwise the actor's only project.
func ResolveProject(ctx context.Context, projectOverride, actorID string, r repo.Repo) (string, error) {
	if projectOverride != "" {
		if _, err := r.GetProject(ctx, projectOverride); err != nil {
			return "", err
		}
		return projectOverride, nil
	}
	projects, err := r.ListProjectsForUser(ctx, actorID)
	if err != nil {
		return "", err
	}
	if len(projects) == 0 {
		return "", fmt.Errorf("project not specified; use --project")
	}
	if len(projects) > 1 {
		return "", fmt.Errorf("multiple projects exist; specify --project")
	}
	return projects[0].ID, nil
}

// EnsureActor guarantees a local user row exists for direct CLI use.
// The user is created with a synthetic email when missing.
func EnsureActor(ctx context.Context, r repo.Repo, actorID string) (domain.User, error) {
	if actorID == "" {
		actorID = "local-user"
	}
	u, err := r.GetUser(ctx, actorID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u = domain.User{
		ID:        actorID,
		Name:      actorID,
		Email:     actorID + "@local",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := r.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("ensure actor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
