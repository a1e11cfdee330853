package repo

import (
	"context"
	"database/sql"

	"planline/internal/domain"
)

const macroStageColumns = `id,project_id,name,position,structure_type,start_date,end_date,created_at`

func scanMacroStage(row rowScanner) (domain.MacroStage, error) {
	var m domain.MacroStage
	var structure, start, end sql.NullString
	err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Position, &structure, &start, &end, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.StructureType = optional(structure)
	m.StartDate = optional(start)
	m.EndDate = optional(end)
	return m, nil
}

func (r Repo) InsertMacroStageTx(ctx context.Context, tx *sql.Tx, m domain.MacroStage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO macrostages(`+macroStageColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.ProjectID, m.Name, m.Position, nullablePtr(m.StructureType),
		nullablePtr(m.StartDate), nullablePtr(m.EndDate), m.CreatedAt)
	return err
}

func (r Repo) GetMacroStage(ctx context.Context, id string) (domain.MacroStage, error) {
	return scanMacroStage(r.DB.QueryRowContext(ctx, `SELECT `+macroStageColumns+` FROM macrostages WHERE id=?`, id))
}

func (r Repo) GetMacroStageTx(ctx context.Context, tx *sql.Tx, id string) (domain.MacroStage, error) {
	return scanMacroStage(tx.QueryRowContext(ctx, `SELECT `+macroStageColumns+` FROM macrostages WHERE id=?`, id))
}

func (r Repo) ListMacroStages(ctx context.Context, projectID string) ([]domain.MacroStage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+macroStageColumns+` FROM macrostages WHERE project_id=? ORDER BY position ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MacroStage
	for rows.Next() {
		m, err := scanMacroStage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) ListMacroStagesTx(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.MacroStage, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+macroStageColumns+` FROM macrostages WHERE project_id=? ORDER BY position ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MacroStage
	for rows.Next() {
		m, err := scanMacroStage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) RenameMacroStageTx(ctx context.Context, tx *sql.Tx, id, name string) error {
	res, err := tx.ExecContext(ctx, `UPDATE macrostages SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetMacroStageStructureTx(ctx context.Context, tx *sql.Tx, id string, structure *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE macrostages SET structure_type=? WHERE id=?`, nullablePtr(structure), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetMacroStagePositionTx(ctx context.Context, tx *sql.Tx, id string, position int) error {
	_, err := tx.ExecContext(ctx, `UPDATE macrostages SET position=? WHERE id=?`, position, id)
	return err
}

func (r Repo) DeleteMacroStageTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM macrostages WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) NextMacroStagePositionTx(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM macrostages WHERE project_id=?`, projectID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r Repo) CountStagesTx(ctx context.Context, tx *sql.Tx, macroStageID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stages WHERE macrostage_id=?`, macroStageID).Scan(&n)
	return n, err
}

func (r Repo) CountDirectTasksTx(ctx context.Context, tx *sql.Tx, macroStageID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE macrostage_id=? AND stage_id IS NULL`, macroStageID).Scan(&n)
	return n, err
}

// RefreshMacroStageDatesTx pools the date ranges of child stages and tasks
// attached directly to the macrostage, then stores the derived bounds.
func (r Repo) RefreshMacroStageDatesTx(ctx context.Context, tx *sql.Tx, macroStageID string) (*string, *string, error) {
	var start, end sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT MIN(d.s), MAX(d.e) FROM (
SELECT start_date AS s, end_date AS e FROM stages WHERE macrostage_id=?
UNION ALL
SELECT start_date, end_date FROM tasks WHERE macrostage_id=? AND stage_id IS NULL
) d`, macroStageID, macroStageID).Scan(&start, &end)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE macrostages SET start_date=?, end_date=? WHERE id=?`,
		nullString(start), nullString(end), macroStageID); err != nil {
		return nil, nil, err
	}
	return optional(start), optional(end), nil
}
