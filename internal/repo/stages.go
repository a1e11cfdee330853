package repo

import (
	"context"
	"database/sql"

	"planline/internal/domain"
)

const stageColumns = `id,macrostage_id,name,position,stage_type,scope,tools,other_tools,start_date,end_date,created_at`

func scanStage(row rowScanner) (domain.Stage, error) {
	var s domain.Stage
	var scope, tools, otherTools, start, end sql.NullString
	err := row.Scan(&s.ID, &s.MacroStageID, &s.Name, &s.Position, &s.StageType,
		&scope, &tools, &otherTools, &start, &end, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Scope = optional(scope)
	s.Tools = optional(tools)
	s.OtherTools = optional(otherTools)
	s.StartDate = optional(start)
	s.EndDate = optional(end)
	return s, nil
}

func (r Repo) InsertStageTx(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stages(`+stageColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.MacroStageID, s.Name, s.Position, s.StageType,
		nullablePtr(s.Scope), nullablePtr(s.Tools), nullablePtr(s.OtherTools),
		nullablePtr(s.StartDate), nullablePtr(s.EndDate), s.CreatedAt)
	return err
}

func (r Repo) GetStage(ctx context.Context, id string) (domain.Stage, error) {
	return scanStage(r.DB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id=?`, id))
}

func (r Repo) GetStageTx(ctx context.Context, tx *sql.Tx, id string) (domain.Stage, error) {
	return scanStage(tx.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id=?`, id))
}

func (r Repo) ListStages(ctx context.Context, macroStageID string) ([]domain.Stage, error) {
	return r.listStages(ctx, r.DB.QueryContext, macroStageID)
}

func (r Repo) ListStagesTx(ctx context.Context, tx *sql.Tx, macroStageID string) ([]domain.Stage, error) {
	return r.listStages(ctx, tx.QueryContext, macroStageID)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (r Repo) listStages(ctx context.Context, query queryFunc, macroStageID string) ([]domain.Stage, error) {
	rows, err := query(ctx, `SELECT `+stageColumns+` FROM stages WHERE macrostage_id=? ORDER BY position ASC, id ASC`, macroStageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateStageTx(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	res, err := tx.ExecContext(ctx, `UPDATE stages SET name=?, stage_type=?, scope=?, tools=?, other_tools=? WHERE id=?`,
		s.Name, s.StageType, nullablePtr(s.Scope), nullablePtr(s.Tools), nullablePtr(s.OtherTools), s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetStagePositionTx(ctx context.Context, tx *sql.Tx, id string, position int) error {
	_, err := tx.ExecContext(ctx, `UPDATE stages SET position=? WHERE id=?`, position, id)
	return err
}

func (r Repo) DeleteStageTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM stages WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) NextStagePositionTx(ctx context.Context, tx *sql.Tx, macroStageID string) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM stages WHERE macrostage_id=?`, macroStageID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// RefreshStageDatesTx re-derives a stage's date range from its tasks and
// stores it. Empty task sets clear both bounds.
func (r Repo) RefreshStageDatesTx(ctx context.Context, tx *sql.Tx, stageID string) (*string, *string, error) {
	var start, end sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT MIN(start_date), MAX(end_date) FROM tasks WHERE stage_id=?`, stageID).
		Scan(&start, &end)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE stages SET start_date=?, end_date=? WHERE id=?`,
		nullString(start), nullString(end), stageID); err != nil {
		return nil, nil, err
	}
	return optional(start), optional(end), nil
}
