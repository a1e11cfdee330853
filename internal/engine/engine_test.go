package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
	"planline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

// newTestEnv opens a fresh database with one project. The clock is
// pinned to 2024-06-15.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{ID: "proj-1", Name: "Test Project", ActorID: "tester"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) macrostage(t *testing.T, name string) domain.MacroStage {
	t.Helper()
	m, err := env.Engine.CreateMacroStage(env.Ctx, "proj-1", name, "tester")
	if err != nil {
		t.Fatalf("create macrostage: %v", err)
	}
	return m
}

func (env testEnv) stage(t *testing.T, macroStageID, name string) domain.Stage {
	t.Helper()
	s, err := env.Engine.CreateStage(env.Ctx, engine.StageCreateOptions{
		MacroStageID: macroStageID, Name: name, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create stage: %v", err)
	}
	return s
}

func (env testEnv) stageTask(t *testing.T, stageID, name, start, end string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		StageID: stageID, Name: name, StartDate: start, EndDate: end, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestDateAggregation(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")

	env.stageTask(t, s.ID, "a", "2024-07-01", "2024-07-10")
	env.stageTask(t, s.ID, "b", "2024-07-05", "2024-07-20")
	env.stageTask(t, s.ID, "c", "", "")

	got, err := env.Engine.Repo.GetStage(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartDate == nil || *got.StartDate != "2024-07-01" {
		t.Fatalf("stage start: %v", got.StartDate)
	}
	if got.EndDate == nil || *got.EndDate != "2024-07-20" {
		t.Fatalf("stage end: %v", got.EndDate)
	}

	gm, err := env.Engine.Repo.GetMacroStage(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gm.StartDate == nil || *gm.StartDate != "2024-07-01" || gm.EndDate == nil || *gm.EndDate != "2024-07-20" {
		t.Fatalf("macrostage range: %v %v", gm.StartDate, gm.EndDate)
	}

	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.StartDate == nil || *p.StartDate != "2024-07-01" || p.EndDate == nil || *p.EndDate != "2024-07-20" {
		t.Fatalf("project range: %v %v", p.StartDate, p.EndDate)
	}
	// schedule entirely ahead of the pinned clock
	if p.Status != "to-start" {
		t.Fatalf("project status: %s", p.Status)
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	task := env.stageTask(t, s.ID, "a", "2024-07-01", "2024-07-10")

	for i := 0; i < 3; i++ {
		if err := env.Engine.RecalculateFromTask(env.Ctx, task.ID); err != nil {
			t.Fatalf("recalc %d: %v", i, err)
		}
	}
	got, err := env.Engine.Repo.GetStage(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartDate == nil || *got.StartDate != "2024-07-01" || got.EndDate == nil || *got.EndDate != "2024-07-10" {
		t.Fatalf("stage range after repeated recalc: %v %v", got.StartDate, got.EndDate)
	}
}

func TestEmptyChildSetClearsDates(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	task := env.stageTask(t, s.ID, "only", "2024-07-01", "2024-07-10")

	if err := env.Engine.DeleteTask(env.Ctx, task.ID, "tester"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	got, err := env.Engine.Repo.GetStage(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartDate != nil || got.EndDate != nil {
		t.Fatalf("stage dates should clear: %v %v", got.StartDate, got.EndDate)
	}
	p, _ := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if p.StartDate != nil || p.EndDate != nil {
		t.Fatalf("project dates should clear: %v %v", p.StartDate, p.EndDate)
	}
	if p.Status != "to-start" {
		t.Fatalf("dateless project status: %s", p.Status)
	}
}

func TestDirectTasksPoolWithStages(t *testing.T) {
	env := newTestEnv(t)
	withStages := env.macrostage(t, "Phase 1")
	s := env.stage(t, withStages.ID, "Build")
	env.stageTask(t, s.ID, "a", "2024-07-05", "2024-07-10")

	direct := env.macrostage(t, "Phase 2")
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MacroStageID: direct.ID, Name: "direct", StartDate: "2024-06-01", EndDate: "2024-08-01", ActorID: "tester",
	}); err != nil {
		t.Fatalf("create direct task: %v", err)
	}

	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if p.StartDate == nil || *p.StartDate != "2024-06-01" || p.EndDate == nil || *p.EndDate != "2024-08-01" {
		t.Fatalf("project pools both macrostage kinds: %v %v", p.StartDate, p.EndDate)
	}
	// clock sits inside the derived window now
	if p.Status != "in-progress" {
		t.Fatalf("project status: %s", p.Status)
	}
}

func TestTaskDateValidation(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		StageID: s.ID, Name: "bad", StartDate: "2024-07-10", EndDate: "2024-07-01", ActorID: "tester",
	})
	if err == nil {
		t.Fatal("expected start-after-end rejection")
	}

	// malformed dates are treated as absent, not errors
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		StageID: s.ID, Name: "fuzzy", StartDate: "not-a-date", EndDate: "2024-07-01", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create with malformed start: %v", err)
	}
	if task.StartDate != nil {
		t.Fatalf("malformed start should clear: %v", *task.StartDate)
	}
	if task.EndDate == nil || *task.EndDate != "2024-07-01" {
		t.Fatalf("end kept: %v", task.EndDate)
	}
}

func TestStructureLocking(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	env.stage(t, m.ID, "Build")

	// conflicting switch is answered with current state, no error
	got, err := env.Engine.SetMacroStageStructure(env.Ctx, m.ID, "tasks", "tester")
	if err != nil {
		t.Fatalf("structure switch: %v", err)
	}
	if got.StructureType == nil || *got.StructureType != "stages" {
		t.Fatalf("structure should stay stages: %v", got.StructureType)
	}

	// direct task creation is refused while structure is stages
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MacroStageID: m.ID, Name: "direct", ActorID: "tester",
	}); err == nil {
		t.Fatal("expected direct task rejection")
	}

	// the other direction: first task locks to tasks, stage refused
	m2 := env.macrostage(t, "Phase 2")
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		MacroStageID: m2.ID, Name: "direct", ActorID: "tester",
	}); err != nil {
		t.Fatalf("create direct task: %v", err)
	}
	if _, err := env.Engine.CreateStage(env.Ctx, engine.StageCreateOptions{
		MacroStageID: m2.ID, Name: "Build", ActorID: "tester",
	}); err == nil {
		t.Fatal("expected stage rejection on tasks macrostage")
	}
}

func TestStageTypedFields(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")

	tools := "python"
	scope := "invoice bot"
	s, err := env.Engine.CreateStage(env.Ctx, engine.StageCreateOptions{
		MacroStageID: m.ID, Name: "Automation", StageType: "robot",
		Scope: &scope, Tools: &tools, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create robot stage: %v", err)
	}
	if s.Scope == nil || s.Tools == nil {
		t.Fatal("robot stage keeps tooling fields")
	}

	// switching away clears the typed fields
	na := "not-applicable"
	s, err = env.Engine.UpdateStage(env.Ctx, s.ID, engine.StageUpdateOptions{StageType: &na, ActorID: "tester"})
	if err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if s.Scope != nil || s.Tools != nil || s.OtherTools != nil {
		t.Fatalf("typed fields should clear: %+v", s)
	}

	// unknown tool tag is rejected
	bad := "cobol-magic"
	_, err = env.Engine.CreateStage(env.Ctx, engine.StageCreateOptions{
		MacroStageID: m.ID, Name: "Bad", StageType: "robot", Tools: &bad, ActorID: "tester",
	})
	if err == nil {
		t.Fatal("expected tool catalog rejection")
	}
}

func TestManualStatusOverride(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	env.stageTask(t, s.ID, "a", "2024-06-01", "2024-06-10")

	p, err := env.Engine.SetProjectStatus(env.Ctx, "proj-1", true, "suspended", "tester")
	if err != nil {
		t.Fatalf("pin status: %v", err)
	}
	if p.Status != "suspended" || !p.StatusManual {
		t.Fatalf("pinned: %+v", p)
	}

	// date changes must not disturb a pinned status
	env.stageTask(t, s.ID, "b", "2024-06-20", "2024-06-25")
	p, _ = env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if p.Status != "suspended" {
		t.Fatalf("pin survived recalc: %s", p.Status)
	}

	if _, err := env.Engine.SetProjectStatus(env.Ctx, "proj-1", true, "half-done", "tester"); err == nil {
		t.Fatal("expected invalid manual status rejection")
	}

	// unpin re-infers immediately: window spans the clock
	p, err = env.Engine.SetProjectStatus(env.Ctx, "proj-1", false, "", "tester")
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if p.Status != "in-progress" || p.StatusManual || p.StatusManualValue != nil {
		t.Fatalf("unpinned: %+v", p)
	}
}

func TestDeleteMacroStageRecalculatesProject(t *testing.T) {
	env := newTestEnv(t)
	m1 := env.macrostage(t, "Phase 1")
	s1 := env.stage(t, m1.ID, "Build")
	env.stageTask(t, s1.ID, "a", "2024-07-01", "2024-07-10")

	m2 := env.macrostage(t, "Phase 2")
	s2 := env.stage(t, m2.ID, "Ship")
	env.stageTask(t, s2.ID, "b", "2024-08-01", "2024-08-10")

	if err := env.Engine.DeleteMacroStage(env.Ctx, m2.ID, "tester"); err != nil {
		t.Fatalf("delete macrostage: %v", err)
	}
	p, _ := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if p.EndDate == nil || *p.EndDate != "2024-07-10" {
		t.Fatalf("project end after delete: %v", p.EndDate)
	}
}

func TestWeeklyUpdates(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	task := env.stageTask(t, s.ID, "a", "2024-07-01", "2024-07-10")

	w, err := env.Engine.CreateWeeklyUpdate(env.Ctx, engine.WeeklyUpdateOptions{
		TaskID: task.ID, Content: "kickoff done", UpdateDate: "2024-07-02", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create update: %v", err)
	}
	newContent := "kickoff done, demo scheduled"
	w, err = env.Engine.EditWeeklyUpdate(env.Ctx, w.ID, &newContent, nil, "tester")
	if err != nil || w.Content != newContent {
		t.Fatalf("edit update: %v", err)
	}
	items, err := env.Engine.Repo.ListWeeklyUpdates(env.Ctx, task.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("list updates: %d %v", len(items), err)
	}
	if err := env.Engine.DeleteWeeklyUpdate(env.Ctx, w.ID, "tester"); err != nil {
		t.Fatalf("delete update: %v", err)
	}
	if _, err := env.Engine.Repo.GetWeeklyUpdate(env.Ctx, w.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProjectDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	task := env.stageTask(t, s.ID, "a", "2024-07-01", "2024-07-10")

	if err := env.Engine.DeleteProject(env.Ctx, "proj-1", "tester"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := env.Engine.Repo.GetTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("task should cascade: %v", err)
	}
	if _, err := env.Engine.Repo.GetStage(env.Ctx, s.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stage should cascade: %v", err)
	}
}
