package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planline/internal/dates"
	"planline/internal/domain"
	"planline/internal/events"
)

// ShiftPlan previews a cascade: every project task starting after the
// reference date moves by DeltaDays. Apply re-resolves the affected set
// against live data, so a plan is advisory, not a reservation.
type ShiftPlan struct {
	TaskID    string         `json:"task_id"`
	DeltaDays int            `json:"delta_days"`
	Reference string         `json:"reference" format:"date"`
	Affected  []ShiftPreview `json:"affected"`
}

type ShiftPreview struct {
	Task     domain.Task `json:"task"`
	NewStart *string     `json:"new_start,omitempty" format:"date"`
	NewEnd   *string     `json:"new_end,omitempty" format:"date"`
}

// PlanShift derives the cascade from a task's date edit. The end-date
// movement wins when both bounds changed; the reference is always the
// task's start before the edit. Returns nil when nothing would move.
func (e Engine) PlanShift(ctx context.Context, taskID string, oldStart, oldEnd, newStart, newEnd *string) (*ShiftPlan, error) {
	delta := 0
	switch {
	case oldEnd != nil && newEnd != nil && *oldEnd != *newEnd:
		d, err := dates.DiffDays(*oldEnd, *newEnd)
		if err != nil {
			return nil, err
		}
		delta = d
	case oldStart != nil && newStart != nil && *oldStart != *newStart:
		d, err := dates.DiffDays(*oldStart, *newStart)
		if err != nil {
			return nil, err
		}
		delta = d
	}
	if delta == 0 || oldStart == nil {
		return nil, nil
	}

	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	m, err := e.Repo.GetMacroStage(ctx, t.MacroStageID)
	if err != nil {
		return nil, err
	}

	subsequent, err := e.Repo.SubsequentTasks(ctx, m.ProjectID, *oldStart, taskID)
	if err != nil {
		return nil, err
	}
	if len(subsequent) == 0 {
		return nil, nil
	}
	plan := &ShiftPlan{TaskID: taskID, DeltaDays: delta, Reference: *oldStart}
	for _, st := range subsequent {
		ns, err := dates.ShiftPtr(st.StartDate, delta)
		if err != nil {
			return nil, err
		}
		ne, err := dates.ShiftPtr(st.EndDate, delta)
		if err != nil {
			return nil, err
		}
		plan.Affected = append(plan.Affected, ShiftPreview{Task: st, NewStart: ns, NewEnd: ne})
	}
	return plan, nil
}

// ApplyShift moves every task starting after reference by deltaDays, in
// one transaction. Any task whose shifted dates would invert aborts the
// whole batch.
func (e Engine) ApplyShift(ctx context.Context, taskID string, deltaDays int, reference, actorID string) ([]domain.Task, error) {
	if deltaDays == 0 {
		return nil, nil
	}
	if !dates.Valid(reference) {
		return nil, fmt.Errorf("invalid reference date %q", reference)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, t.MacroStageID)
	if err != nil {
		return nil, err
	}
	subsequent, err := e.Repo.SubsequentTasksTx(ctx, tx, m.ProjectID, reference, taskID)
	if err != nil {
		return nil, err
	}
	if len(subsequent) == 0 {
		return nil, nil
	}

	type move struct {
		task     domain.Task
		newStart *string
		newEnd   *string
	}
	moves := make([]move, 0, len(subsequent))
	for _, st := range subsequent {
		ns, err := dates.ShiftPtr(st.StartDate, deltaDays)
		if err != nil {
			return nil, err
		}
		ne, err := dates.ShiftPtr(st.EndDate, deltaDays)
		if err != nil {
			return nil, err
		}
		if !dates.Ordered(ns, ne) {
			return nil, errors.New("shift would invert task dates")
		}
		moves = append(moves, move{task: st, newStart: ns, newEnd: ne})
	}

	// Write order avoids transient inversions within a task: pushing
	// forward moves the end first, pulling back moves the start first.
	shifted := make([]domain.Task, 0, len(moves))
	for _, mv := range moves {
		if deltaDays > 0 {
			if err := e.Repo.UpdateTaskEndTx(ctx, tx, mv.task.ID, mv.newEnd); err != nil {
				return nil, err
			}
			if err := e.Repo.UpdateTaskStartTx(ctx, tx, mv.task.ID, mv.newStart); err != nil {
				return nil, err
			}
		} else {
			if err := e.Repo.UpdateTaskStartTx(ctx, tx, mv.task.ID, mv.newStart); err != nil {
				return nil, err
			}
			if err := e.Repo.UpdateTaskEndTx(ctx, tx, mv.task.ID, mv.newEnd); err != nil {
				return nil, err
			}
		}
		mv.task.StartDate = mv.newStart
		mv.task.EndDate = mv.newEnd
		shifted = append(shifted, mv.task)
	}

	if err := e.recalcShiftedTx(ctx, tx, shifted, m.ProjectID); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "tasks.shifted", m.ProjectID, "task", taskID, actorID,
		events.EventPayload{"delta_days": deltaDays, "reference": reference, "count": len(shifted)}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return shifted, nil
}

// recalcShiftedTx refreshes each distinct stage and macrostage touched
// by a batch, then the project once.
func (e Engine) recalcShiftedTx(ctx context.Context, tx *sql.Tx, shifted []domain.Task, projectID string) error {
	stageSeen := map[string]bool{}
	macroSeen := map[string]bool{}
	for _, t := range shifted {
		if t.StageID != nil && !stageSeen[*t.StageID] {
			stageSeen[*t.StageID] = true
			if err := e.recalcStageTx(ctx, tx, *t.StageID); err != nil {
				return err
			}
		}
		if !macroSeen[t.MacroStageID] {
			macroSeen[t.MacroStageID] = true
		}
	}
	for id := range macroSeen {
		if err := e.recalcMacroStageTx(ctx, tx, id); err != nil {
			return err
		}
	}
	return e.recalcProjectTx(ctx, tx, projectID)
}
