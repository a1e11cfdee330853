package engine

import (
	"context"
	"database/sql"

	"planline/internal/events"
)

// Reordering rewrites positions densely from 1 in the order given.
// Unknown ids are skipped; children omitted from the list keep their
// relative order and are appended after the listed ones.

func (e Engine) ReorderMacroStages(ctx context.Context, projectID string, ids []string, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, projectID); err != nil {
		return err
	}
	children, err := e.Repo.ListMacroStagesTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	current := make([]string, len(children))
	for i, m := range children {
		current[i] = m.ID
	}
	for id, pos := range resolveOrder(current, ids) {
		if err := e.Repo.SetMacroStagePositionTx(ctx, tx, id, pos); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "macrostages.reordered", projectID, "project", projectID, actorID,
		events.EventPayload{"count": len(current)}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ReorderStages(ctx context.Context, macroStageID string, ids []string, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, macroStageID)
	if err != nil {
		return err
	}
	children, err := e.Repo.ListStagesTx(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	current := make([]string, len(children))
	for i, s := range children {
		current[i] = s.ID
	}
	for id, pos := range resolveOrder(current, ids) {
		if err := e.Repo.SetStagePositionTx(ctx, tx, id, pos); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "stages.reordered", m.ProjectID, "macrostage", m.ID, actorID,
		events.EventPayload{"count": len(current)}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ReorderStageTasks(ctx context.Context, stageID string, ids []string, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetStageTx(ctx, tx, stageID)
	if err != nil {
		return err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, s.MacroStageID)
	if err != nil {
		return err
	}
	children, err := e.Repo.ListStageTasksTx(ctx, tx, s.ID)
	if err != nil {
		return err
	}
	current := make([]string, len(children))
	for i, t := range children {
		current[i] = t.ID
	}
	if err := e.applyTaskOrder(ctx, tx, current, ids); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "tasks.reordered", m.ProjectID, "stage", s.ID, actorID,
		events.EventPayload{"count": len(current)}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ReorderMacroStageTasks(ctx context.Context, macroStageID string, ids []string, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, macroStageID)
	if err != nil {
		return err
	}
	children, err := e.Repo.ListMacroStageDirectTasksTx(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	current := make([]string, len(children))
	for i, t := range children {
		current[i] = t.ID
	}
	if err := e.applyTaskOrder(ctx, tx, current, ids); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "tasks.reordered", m.ProjectID, "macrostage", m.ID, actorID,
		events.EventPayload{"count": len(current)}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) applyTaskOrder(ctx context.Context, tx *sql.Tx, current, requested []string) error {
	for id, pos := range resolveOrder(current, requested) {
		if err := e.Repo.SetTaskPositionTx(ctx, tx, id, pos); err != nil {
			return err
		}
	}
	return nil
}

// resolveOrder maps each child id to its new position: requested ids
// first (ignoring ones that are not children), then the remainder in
// their current order.
func resolveOrder(current, requested []string) map[string]int {
	known := make(map[string]bool, len(current))
	for _, id := range current {
		known[id] = true
	}
	placed := make(map[string]int, len(current))
	pos := 1
	for _, id := range requested {
		if !known[id] {
			continue
		}
		if _, ok := placed[id]; ok {
			continue
		}
		placed[id] = pos
		pos++
	}
	for _, id := range current {
		if _, ok := placed[id]; ok {
			continue
		}
		placed[id] = pos
		pos++
	}
	return placed
}
