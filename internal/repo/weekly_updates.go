package repo

import (
	"context"
	"database/sql"

	"planline/internal/domain"
)

const weeklyUpdateColumns = `id,task_id,content,update_date,created_at`

func scanWeeklyUpdate(row rowScanner) (domain.WeeklyUpdate, error) {
	var w domain.WeeklyUpdate
	var updateDate sql.NullString
	err := row.Scan(&w.ID, &w.TaskID, &w.Content, &updateDate, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.UpdateDate = optional(updateDate)
	return w, nil
}

func (r Repo) InsertWeeklyUpdateTx(ctx context.Context, tx *sql.Tx, w domain.WeeklyUpdate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO weekly_updates(`+weeklyUpdateColumns+`) VALUES (?,?,?,?,?)`,
		w.ID, w.TaskID, w.Content, nullablePtr(w.UpdateDate), w.CreatedAt)
	return err
}

func (r Repo) GetWeeklyUpdate(ctx context.Context, id string) (domain.WeeklyUpdate, error) {
	return scanWeeklyUpdate(r.DB.QueryRowContext(ctx, `SELECT `+weeklyUpdateColumns+` FROM weekly_updates WHERE id=?`, id))
}

func (r Repo) GetWeeklyUpdateTx(ctx context.Context, tx *sql.Tx, id string) (domain.WeeklyUpdate, error) {
	return scanWeeklyUpdate(tx.QueryRowContext(ctx, `SELECT `+weeklyUpdateColumns+` FROM weekly_updates WHERE id=?`, id))
}

// ListWeeklyUpdates returns a task's notes, most recent first. Undated
// notes sort last.
func (r Repo) ListWeeklyUpdates(ctx context.Context, taskID string) ([]domain.WeeklyUpdate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+weeklyUpdateColumns+` FROM weekly_updates WHERE task_id=?
ORDER BY update_date IS NULL ASC, update_date DESC, created_at DESC, id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WeeklyUpdate
	for rows.Next() {
		w, err := scanWeeklyUpdate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) UpdateWeeklyUpdateTx(ctx context.Context, tx *sql.Tx, w domain.WeeklyUpdate) error {
	res, err := tx.ExecContext(ctx, `UPDATE weekly_updates SET content=?, update_date=? WHERE id=?`,
		w.Content, nullablePtr(w.UpdateDate), w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteWeeklyUpdateTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM weekly_updates WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
