package repo

import (
	"context"
	"database/sql"

	"planline/internal/domain"
)

// LatestEvents returns the newest events, optionally filtered by project.
func (r Repo) LatestEvents(ctx context.Context, projectID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events`
	var args []any
	if projectID != "" {
		q += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var pid, eid sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &pid, &e.EntityKind, &eid, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.ProjectID = pid.String
		e.EntityID = eid.String
		res = append(res, e)
	}
	return res, rows.Err()
}
