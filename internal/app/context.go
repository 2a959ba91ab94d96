package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

const (
	defaultActorName  = "Local User"
	defaultActorEmail = "local@taskboard.dev"
)

// ResolveActor returns the acting user for CLI commands. A positive id must
// refer to an existing user; with id 0 a local default user is looked up by
// email and created on first use.
func ResolveActor(ctx context.Context, r repo.Repo, actorID int64) (domain.User, error) {
	if actorID > 0 {
		u, err := r.GetUser(ctx, actorID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.User{}, fmt.Errorf("actor %d does not exist; create a user first", actorID)
			}
			return domain.User{}, err
		}
		return u, nil
	}
	u, err := r.GetUserByEmail(ctx, defaultActorEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u = domain.User{
		Name:      defaultActorName,
		Email:     defaultActorEmail,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	id, err := r.InsertUser(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("create local user: %w", err)
	}
	u.ID = id
	return u, nil
}

// ResolveProjectAndConfig picks the active project and loads the workspace
// config, seeding a default project if the workspace has none. It prefers the
// override, then a single-project DB.
func ResolveProjectAndConfig(ctx context.Context, workspace string, projectOverride int64, actor domain.User, r repo.Repo) (domain.Project, *config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return domain.Project{}, nil, err
	}

	if projectOverride > 0 {
		p, err := r.GetProject(ctx, projectOverride)
		if err != nil {
			return domain.Project{}, nil, err
		}
		return p, cfg, nil
	}

	projects, err := r.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, nil, err
	}
	switch len(projects) {
	case 0:
		p, err := seedProject(ctx, r, cfg, actor)
		if err != nil {
			return domain.Project{}, nil, err
		}
		return p, cfg, nil
	case 1:
		return projects[0], cfg, nil
	default:
		return domain.Project{}, nil, fmt.Errorf("workspace has %d projects; use --project", len(projects))
	}
}

func seedProject(ctx context.Context, r repo.Repo, cfg *config.Config, actor domain.User) (domain.Project, error) {
	p := domain.Project{
		Name:        "Taskboard",
		Methodology: cfg.Methodology(),
		CreatorID:   actor.ID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	id, err := r.InsertProject(ctx, p)
	if err != nil {
		return domain.Project{}, fmt.Errorf("seed project: %w", err)
	}
	p.ID = id
	return p, nil
}
