package engine_test

import (
	"testing"

	"planline/internal/engine"
)

func TestPlanShiftEndChangeWins(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "2024-01-01", "2024-01-10")
	b := env.stageTask(t, s.ID, "b", "2024-02-01", "2024-02-05")
	c := env.stageTask(t, s.ID, "c", "2024-03-01", "")

	// both bounds moved: the end movement (+5) decides the delta, not
	// the start movement (+2)
	plan, err := env.Engine.PlanShift(env.Ctx, a.ID,
		strPtr("2024-01-01"), strPtr("2024-01-10"),
		strPtr("2024-01-03"), strPtr("2024-01-15"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan == nil {
		t.Fatal("expected a plan")
	}
	if plan.DeltaDays != 5 {
		t.Fatalf("delta: %d", plan.DeltaDays)
	}
	if plan.Reference != "2024-01-01" {
		t.Fatalf("reference: %s", plan.Reference)
	}
	if len(plan.Affected) != 2 {
		t.Fatalf("affected count: %d", len(plan.Affected))
	}
	if plan.Affected[0].Task.ID != b.ID || *plan.Affected[0].NewStart != "2024-02-06" || *plan.Affected[0].NewEnd != "2024-02-10" {
		t.Fatalf("first preview: %+v", plan.Affected[0])
	}
	if plan.Affected[1].Task.ID != c.ID || *plan.Affected[1].NewStart != "2024-03-06" || plan.Affected[1].NewEnd != nil {
		t.Fatalf("second preview: %+v", plan.Affected[1])
	}
}

func TestPlanShiftNoops(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "2024-01-01", "2024-01-10")

	// nothing changed
	plan, err := env.Engine.PlanShift(env.Ctx, a.ID,
		strPtr("2024-01-01"), strPtr("2024-01-10"),
		strPtr("2024-01-01"), strPtr("2024-01-10"))
	if err != nil || plan != nil {
		t.Fatalf("unchanged dates: %v %v", plan, err)
	}

	// no prior start to anchor the cascade
	plan, err = env.Engine.PlanShift(env.Ctx, a.ID,
		nil, strPtr("2024-01-10"),
		nil, strPtr("2024-01-15"))
	if err != nil || plan != nil {
		t.Fatalf("nil old start: %v %v", plan, err)
	}

	// no subsequent tasks
	plan, err = env.Engine.PlanShift(env.Ctx, a.ID,
		strPtr("2024-01-01"), strPtr("2024-01-10"),
		strPtr("2024-01-01"), strPtr("2024-01-15"))
	if err != nil || plan != nil {
		t.Fatalf("empty subsequent set: %v %v", plan, err)
	}
}

func TestUpdateTaskPreviewsCascade(t *testing.T) {
	env := newTestEnv(t)
	on := true
	if _, err := env.Engine.UpdateProject(env.Ctx, "proj-1", engine.ProjectUpdateOptions{AutoShiftTasks: &on, ActorID: "tester"}); err != nil {
		t.Fatalf("enable auto shift: %v", err)
	}
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "2024-01-01", "2024-01-10")
	b := env.stageTask(t, s.ID, "b", "2024-02-01", "2024-02-05")

	res, err := env.Engine.UpdateTask(env.Ctx, a.ID, engine.TaskUpdateOptions{
		EndDate: strPtr("2024-01-15"), ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if res.Plan == nil || res.Plan.DeltaDays != 5 {
		t.Fatalf("expected cascade preview: %+v", res.Plan)
	}

	// the preview does not move anything by itself
	got, err := env.Engine.Repo.GetTask(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *got.StartDate != "2024-02-01" {
		t.Fatalf("preview moved a task: %s", *got.StartDate)
	}
}

func TestApplyShift(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "2024-01-01", "2024-01-15")
	b := env.stageTask(t, s.ID, "b", "2024-02-01", "2024-02-05")

	shifted, err := env.Engine.ApplyShift(env.Ctx, a.ID, 5, "2024-01-01", "tester")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(shifted) != 1 || shifted[0].ID != b.ID {
		t.Fatalf("shifted set: %+v", shifted)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, b.ID)
	if *got.StartDate != "2024-02-06" || *got.EndDate != "2024-02-10" {
		t.Fatalf("task b after shift: %s %s", *got.StartDate, *got.EndDate)
	}
	// the triggering task itself stays put
	got, _ = env.Engine.Repo.GetTask(env.Ctx, a.ID)
	if *got.StartDate != "2024-01-01" {
		t.Fatalf("task a moved: %s", *got.StartDate)
	}
	// parents follow
	p, _ := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if p.EndDate == nil || *p.EndDate != "2024-02-10" {
		t.Fatalf("project end after shift: %v", p.EndDate)
	}
}

func TestApplyShiftPullsBack(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "2024-01-01", "2024-01-15")
	b := env.stageTask(t, s.ID, "b", "2024-02-01", "2024-02-05")

	if _, err := env.Engine.ApplyShift(env.Ctx, a.ID, -10, "2024-01-01", "tester"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, b.ID)
	if *got.StartDate != "2024-01-22" || *got.EndDate != "2024-01-26" {
		t.Fatalf("task b after pull back: %s %s", *got.StartDate, *got.EndDate)
	}
}

func TestApplyShiftGuards(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "2024-01-01", "2024-01-15")

	shifted, err := env.Engine.ApplyShift(env.Ctx, a.ID, 0, "2024-01-01", "tester")
	if err != nil || shifted != nil {
		t.Fatalf("zero delta: %v %v", shifted, err)
	}
	if _, err := env.Engine.ApplyShift(env.Ctx, a.ID, 5, "01/01/2024", "tester"); err == nil {
		t.Fatal("expected invalid reference rejection")
	}
	// nothing after the reference
	shifted, err = env.Engine.ApplyShift(env.Ctx, a.ID, 5, "2024-06-01", "tester")
	if err != nil || shifted != nil {
		t.Fatalf("empty subsequent set: %v %v", shifted, err)
	}
}
