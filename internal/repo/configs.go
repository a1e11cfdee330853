package repo

import (
	"context"
	"database/sql"
	"time"
)

// UpsertProjectConfig stores the project's config document (YAML).
func (r Repo) UpsertProjectConfig(ctx context.Context, projectID, configYAML string, now time.Time) error {
	ts := now.UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO project_configs(project_id,config_yaml,created_at,updated_at)
VALUES (?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`,
		projectID, configYAML, ts, ts)
	return err
}

func (r Repo) UpsertProjectConfigTx(ctx context.Context, tx *sql.Tx, projectID, configYAML string, now time.Time) error {
	ts := now.UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO project_configs(project_id,config_yaml,created_at,updated_at)
VALUES (?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`,
		projectID, configYAML, ts, ts)
	return err
}

func (r Repo) GetProjectConfig(ctx context.Context, projectID string) (string, error) {
	var configYAML string
	err := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM project_configs WHERE project_id=?`, projectID).Scan(&configYAML)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return configYAML, err
}
