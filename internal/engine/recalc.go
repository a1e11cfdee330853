package engine

import (
	"context"
	"database/sql"

	"planline/internal/domain"
)

// Date derivation runs bottom-up: a stage's range is the min start and
// max end of its tasks, a macrostage pools its stages and direct tasks,
// a project pools its macrostages. Absent dates are ignored; an empty
// child set clears the parent range. Each helper is idempotent.

func (e Engine) recalcStageTx(ctx context.Context, tx *sql.Tx, stageID string) error {
	_, _, err := e.Repo.RefreshStageDatesTx(ctx, tx, stageID)
	return err
}

func (e Engine) recalcMacroStageTx(ctx context.Context, tx *sql.Tx, macroStageID string) error {
	_, _, err := e.Repo.RefreshMacroStageDatesTx(ctx, tx, macroStageID)
	return err
}

// recalcProjectTx refreshes the project range and, unless the status is
// pinned, re-infers the stored status from the new bounds.
func (e Engine) recalcProjectTx(ctx context.Context, tx *sql.Tx, projectID string) error {
	start, end, err := e.Repo.RefreshProjectDatesTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if p.StatusManual {
		return nil
	}
	status := ProjectAutoStatus(start, end, e.today())
	if status == p.Status {
		return nil
	}
	return e.Repo.SetProjectStatusTx(ctx, tx, projectID, status, false, nil)
}

// recalcFromTaskTx propagates a task change up the chain: owning stage
// if any, then macrostage, then project.
func (e Engine) recalcFromTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task, m domain.MacroStage) error {
	if t.StageID != nil {
		if err := e.recalcStageTx(ctx, tx, *t.StageID); err != nil {
			return err
		}
	}
	return e.recalcFromMacroStageTx(ctx, tx, m)
}

func (e Engine) recalcFromMacroStageTx(ctx context.Context, tx *sql.Tx, m domain.MacroStage) error {
	if err := e.recalcMacroStageTx(ctx, tx, m.ID); err != nil {
		return err
	}
	return e.recalcProjectTx(ctx, tx, m.ProjectID)
}

// RecalculateFromTask rebuilds the derived dates along a task's parent
// chain. Safe to call at any time.
func (e Engine) RecalculateFromTask(ctx context.Context, taskID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, t.MacroStageID)
	if err != nil {
		return err
	}
	if err := e.recalcFromTaskTx(ctx, tx, t, m); err != nil {
		return err
	}
	return tx.Commit()
}

// RecalculateFromStage rebuilds the derived dates from a stage upward.
func (e Engine) RecalculateFromStage(ctx context.Context, stageID string) error {
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
	if err := e.recalcStageTx(ctx, tx, s.ID); err != nil {
		return err
	}
	if err := e.recalcFromMacroStageTx(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

// RecalculateFromMacroStage rebuilds the derived dates from a macrostage
// upward, refreshing its stages first.
func (e Engine) RecalculateFromMacroStage(ctx context.Context, macroStageID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, macroStageID)
	if err != nil {
		return err
	}
	stages, err := e.Repo.ListStagesTx(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	for _, s := range stages {
		if err := e.recalcStageTx(ctx, tx, s.ID); err != nil {
			return err
		}
	}
	if err := e.recalcFromMacroStageTx(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit()
}
