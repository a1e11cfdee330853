package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planline/internal/config"
	"planline/internal/domain"
	"planline/internal/repo"
)

// ResolveProjectAndConfig picks the active project and ensures a project
// and its config exist in the database, seeding defaults when missing.
// Resolution order: explicit override, then the workspace planline.yml,
// then a single-project database.
func ResolveProjectAndConfig(ctx context.Context, workspace, projectOverride string, r repo.Repo) (string, *config.Config, error) {
	projectID := projectOverride
	var fileCfg *config.Config
	if cfg, err := config.LoadOptional(workspace); err == nil && cfg != nil {
		fileCfg = cfg
		if projectID == "" {
			projectID = cfg.Project.ID
		}
	}
	if projectID == "" {
		p, err := r.SingleProject(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("project not specified; use --project")
		}
		projectID = p.ID
	}

	if _, err := r.GetProject(ctx, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := seedProject(ctx, r, projectID); err != nil {
			return "", nil, err
		}
	}

	if fileCfg != nil {
		fileCfg.Project.ID = projectID
		return projectID, fileCfg, nil
	}

	raw, err := r.GetProjectConfig(ctx, projectID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		raw = config.GenerateDefault(projectID)
		if err := r.UpsertProjectConfig(ctx, projectID, raw, time.Now()); err != nil {
			return "", nil, fmt.Errorf("seed project config: %w", err)
		}
	}
	cfg, err := config.FromYAML([]byte(raw))
	if err != nil {
		return "", nil, fmt.Errorf("stored config: %w", err)
	}
	cfg.Project.ID = projectID
	return projectID, cfg, nil
}

// seedProject inserts a minimal project with the default config.
func seedProject(ctx context.Context, r repo.Repo, projectID string) error {
	now := time.Now()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	p := domain.Project{
		ID:        projectID,
		Name:      projectID,
		Status:    "to-start",
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	if err := r.InsertProjectTx(ctx, tx, p); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	if err := r.UpsertProjectConfigTx(ctx, tx, projectID, config.GenerateDefault(projectID), now); err != nil {
		return fmt.Errorf("insert project config: %w", err)
	}
	return tx.Commit()
}
