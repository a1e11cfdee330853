package repo

import (
	"context"
	"database/sql"

	"planline/internal/domain"
)

const taskColumns = `id,stage_id,macrostage_id,name,start_date,end_date,position,created_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var stageID, start, end sql.NullString
	err := row.Scan(&t.ID, &stageID, &t.MacroStageID, &t.Name, &start, &end, &t.Position, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.StageID = optional(stageID)
	t.StartDate = optional(start)
	t.EndDate = optional(end)
	return t, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, nullablePtr(t.StageID), t.MacroStageID, t.Name,
		nullablePtr(t.StartDate), nullablePtr(t.EndDate), t.Position, t.CreatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) ListStageTasks(ctx context.Context, stageID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, r.DB.QueryContext,
		`SELECT `+taskColumns+` FROM tasks WHERE stage_id=? ORDER BY position ASC, id ASC`, stageID)
}

func (r Repo) ListStageTasksTx(ctx context.Context, tx *sql.Tx, stageID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, tx.QueryContext,
		`SELECT `+taskColumns+` FROM tasks WHERE stage_id=? ORDER BY position ASC, id ASC`, stageID)
}

func (r Repo) ListMacroStageDirectTasks(ctx context.Context, macroStageID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, r.DB.QueryContext,
		`SELECT `+taskColumns+` FROM tasks WHERE macrostage_id=? AND stage_id IS NULL ORDER BY position ASC, id ASC`, macroStageID)
}

func (r Repo) ListMacroStageDirectTasksTx(ctx context.Context, tx *sql.Tx, macroStageID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, tx.QueryContext,
		`SELECT `+taskColumns+` FROM tasks WHERE macrostage_id=? AND stage_id IS NULL ORDER BY position ASC, id ASC`, macroStageID)
}

func (r Repo) ListProjectTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, r.DB.QueryContext,
		`SELECT t.id,t.stage_id,t.macrostage_id,t.name,t.start_date,t.end_date,t.position,t.created_at
FROM tasks t JOIN macrostages m ON m.id=t.macrostage_id
WHERE m.project_id=? ORDER BY t.start_date ASC, t.position ASC, t.id ASC`, projectID)
}

const subsequentTasksQuery = `SELECT t.id,t.stage_id,t.macrostage_id,t.name,t.start_date,t.end_date,t.position,t.created_at
FROM tasks t JOIN macrostages m ON m.id=t.macrostage_id
WHERE m.project_id=? AND t.start_date IS NOT NULL AND t.start_date>? AND t.id<>?
ORDER BY t.start_date ASC, t.position ASC, t.id ASC`

// SubsequentTasks returns the project's tasks whose start date falls
// strictly after reference, excluding excludeID. Ordered by start date so
// shifts apply in schedule order.
func (r Repo) SubsequentTasks(ctx context.Context, projectID, reference, excludeID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, r.DB.QueryContext, subsequentTasksQuery, projectID, reference, excludeID)
}

func (r Repo) SubsequentTasksTx(ctx context.Context, tx *sql.Tx, projectID, reference, excludeID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, tx.QueryContext, subsequentTasksQuery, projectID, reference, excludeID)
}

func (r Repo) queryTasks(ctx context.Context, query queryFunc, q string, args ...any) ([]domain.Task, error) {
	rows, err := query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET name=?, start_date=?, end_date=? WHERE id=?`,
		t.Name, nullablePtr(t.StartDate), nullablePtr(t.EndDate), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateTaskStartTx(ctx context.Context, tx *sql.Tx, id string, start *string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET start_date=? WHERE id=?`, nullablePtr(start), id)
	return err
}

func (r Repo) UpdateTaskEndTx(ctx context.Context, tx *sql.Tx, id string, end *string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET end_date=? WHERE id=?`, nullablePtr(end), id)
	return err
}

func (r Repo) SetTaskPositionTx(ctx context.Context, tx *sql.Tx, id string, position int) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET position=? WHERE id=?`, position, id)
	return err
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) NextStageTaskPositionTx(ctx context.Context, tx *sql.Tx, stageID string) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM tasks WHERE stage_id=?`, stageID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r Repo) NextDirectTaskPositionTx(ctx context.Context, tx *sql.Tx, macroStageID string) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM tasks WHERE macrostage_id=? AND stage_id IS NULL`, macroStageID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
