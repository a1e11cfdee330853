package engine_test

import (
	"testing"

	"planline/internal/domain"
	"planline/internal/engine"
)

func strPtr(s string) *string { return &s }

func TestProjectAutoStatus(t *testing.T) {
	cases := []struct {
		name  string
		start *string
		end   *string
		today string
		want  string
	}{
		{"no start", nil, nil, "2024-01-15", "to-start"},
		{"starts later", strPtr("2024-01-10"), strPtr("2024-01-20"), "2024-01-05", "to-start"},
		{"in window", strPtr("2024-01-10"), strPtr("2024-01-20"), "2024-01-15", "in-progress"},
		{"starts today", strPtr("2024-01-15"), strPtr("2024-01-20"), "2024-01-15", "in-progress"},
		{"ends today", strPtr("2024-01-10"), strPtr("2024-01-15"), "2024-01-15", "in-progress"},
		{"past end", strPtr("2024-01-10"), strPtr("2024-01-20"), "2024-01-25", "done"},
		{"started no end", strPtr("2024-01-10"), nil, "2024-01-25", "in-progress"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.ProjectAutoStatus(tc.start, tc.end, tc.today); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func task(start, end string) domain.Task {
	var t domain.Task
	if start != "" {
		t.StartDate = strPtr(start)
	}
	if end != "" {
		t.EndDate = strPtr(end)
	}
	return t
}

func TestStageAutoStatus(t *testing.T) {
	today := "2024-01-15"
	cases := []struct {
		name  string
		tasks []domain.Task
		want  string
	}{
		{"no tasks", nil, "to-start"},
		{"only undated tasks", []domain.Task{task("", ""), task("", "")}, "to-start"},
		{"all future", []domain.Task{task("2024-01-20", "2024-01-25"), task("2024-02-01", "")}, "to-start"},
		{"all ended", []domain.Task{task("2024-01-01", "2024-01-05"), task("2024-01-06", "2024-01-10")}, "done"},
		{"ends today counts as ended", []domain.Task{task("2024-01-01", "2024-01-15")}, "done"},
		{"started with future task", []domain.Task{task("2024-01-01", "2024-01-05"), task("2024-01-20", "2024-01-25")}, "in-progress"},
		{"started no end date", []domain.Task{task("2024-01-01", "")}, "in-progress"},
		{"mix ended and open", []domain.Task{task("2024-01-01", "2024-01-05"), task("2024-01-10", "2024-01-20")}, "in-progress"},
		{"ended plus undated sibling", []domain.Task{task("2024-01-01", "2024-01-05"), task("", "")}, "in-progress"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.StageAutoStatus(tc.tasks, today); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	intv := func(p *int) int {
		t.Helper()
		if p == nil {
			t.Fatal("expected progress")
		}
		return *p
	}
	start, end := strPtr("2024-01-01"), strPtr("2024-01-11")
	if got := intv(engine.Progress(start, end, "2024-01-06")); got != 50 {
		t.Fatalf("midpoint: %d", got)
	}
	if got := intv(engine.Progress(start, end, "2023-12-20")); got != 0 {
		t.Fatalf("before start: %d", got)
	}
	if got := intv(engine.Progress(start, end, "2024-02-01")); got != 100 {
		t.Fatalf("after end: %d", got)
	}
	if got := intv(engine.Progress(start, start, "2024-01-01")); got != 100 {
		t.Fatalf("zero-length window: %d", got)
	}
	if engine.Progress(nil, end, "2024-01-06") != nil || engine.Progress(start, nil, "2024-01-06") != nil {
		t.Fatal("missing bounds should yield nil")
	}
}

func TestEffectiveProjectStatus(t *testing.T) {
	p := domain.Project{
		StartDate: strPtr("2024-01-01"),
		EndDate:   strPtr("2024-01-11"),
	}
	es := engine.EffectiveProjectStatus(p, "2024-01-06")
	if es.Value != "in-progress" || es.IsManual || es.Display != "In progress" {
		t.Fatalf("auto status: %+v", es)
	}
	if es.Progress == nil || *es.Progress != 50 {
		t.Fatalf("auto progress: %v", es.Progress)
	}

	p.StatusManual = true
	p.StatusManualValue = strPtr("suspended")
	es = engine.EffectiveProjectStatus(p, "2024-01-06")
	if es.Value != "suspended" || !es.IsManual || es.Display != "Suspended" {
		t.Fatalf("pinned status: %+v", es)
	}
	if es.Progress != nil {
		t.Fatal("pinned status should not report progress")
	}
}
