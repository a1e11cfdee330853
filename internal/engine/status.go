package engine

import (
	"planline/internal/dates"
	"planline/internal/domain"
)

const (
	StatusToStart    = "to-start"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
	StatusSuspended  = "suspended"
	StatusDiscarded  = "discarded"
)

var statusDisplay = map[string]string{
	StatusToStart:    "To start",
	StatusInProgress: "In progress",
	StatusDone:       "Done",
	StatusSuspended:  "Suspended",
	StatusDiscarded:  "Discarded",
}

// ProjectAutoStatus infers a project status from its derived date range.
func ProjectAutoStatus(start, end *string, today string) string {
	if start == nil {
		return StatusToStart
	}
	if *start > today {
		return StatusToStart
	}
	if end != nil && *end < today {
		return StatusDone
	}
	return StatusInProgress
}

// StageAutoStatus infers a stage status from its tasks: to-start until
// some task has begun, done once every task has ended, in-progress
// otherwise. Tasks without a start date never count as begun, and a
// task missing an end date keeps the stage open.
func StageAutoStatus(tasks []domain.Task, today string) string {
	var dated []domain.Task
	for _, t := range tasks {
		if t.StartDate != nil {
			dated = append(dated, t)
		}
	}
	if len(dated) == 0 {
		return StatusToStart
	}

	allFuture := true
	for _, t := range dated {
		if *t.StartDate <= today {
			allFuture = false
			break
		}
	}
	if allFuture {
		return StatusToStart
	}

	if allEnded(tasks, today) {
		return StatusDone
	}
	return StatusInProgress
}

func allEnded(tasks []domain.Task, today string) bool {
	for _, t := range tasks {
		if t.EndDate == nil || *t.EndDate > today {
			return false
		}
	}
	return len(tasks) > 0
}

// Progress returns percent elapsed between start and end, clamped to
// [0,100]. Nil when either bound is missing.
func Progress(start, end *string, today string) *int {
	if start == nil || end == nil {
		return nil
	}
	var pct int
	switch {
	case today < *start:
		pct = 0
	case today > *end || *start == *end:
		pct = 100
	default:
		total, err := dates.DiffDays(*start, *end)
		if err != nil || total <= 0 {
			pct = 100
		} else {
			elapsed, err := dates.DiffDays(*start, today)
			if err != nil {
				return nil
			}
			pct = 100 * elapsed / total
			if pct < 0 {
				pct = 0
			}
			if pct > 100 {
				pct = 100
			}
		}
	}
	return &pct
}

// EffectiveStatus is the status a reader should see: the pinned manual
// value when set, otherwise the live auto-inferred one.
type EffectiveStatus struct {
	Value    string `json:"value"`
	IsManual bool   `json:"is_manual"`
	Display  string `json:"display"`
	Progress *int   `json:"progress,omitempty"`
}

func EffectiveProjectStatus(p domain.Project, today string) EffectiveStatus {
	es := EffectiveStatus{IsManual: p.StatusManual}
	if p.StatusManual && p.StatusManualValue != nil {
		es.Value = *p.StatusManualValue
	} else {
		es.Value = ProjectAutoStatus(p.StartDate, p.EndDate, today)
		es.Progress = Progress(p.StartDate, p.EndDate, today)
	}
	es.Display = statusDisplay[es.Value]
	if es.Display == "" {
		es.Display = es.Value
	}
	return es
}
