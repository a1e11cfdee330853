package engine_test

import (
	"testing"

	"planline/internal/domain"
	"planline/internal/engine"
)

func TestReorderMacroStages(t *testing.T) {
	env := newTestEnv(t)
	a := env.macrostage(t, "A")
	b := env.macrostage(t, "B")
	c := env.macrostage(t, "C")

	// partial order: listed ids first, the rest keep relative order
	if err := env.Engine.ReorderMacroStages(env.Ctx, "proj-1", []string{c.ID, a.ID}, "tester"); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got, err := env.Engine.Repo.ListMacroStages(env.Ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	assertOrder(t, []string{c.ID, a.ID, b.ID}, macroStageIDs(got))
	for i, m := range got {
		if m.Position != i+1 {
			t.Fatalf("position %d: got %d", i+1, m.Position)
		}
	}
}

func TestReorderIgnoresUnknownIDs(t *testing.T) {
	env := newTestEnv(t)
	a := env.macrostage(t, "A")
	b := env.macrostage(t, "B")

	if err := env.Engine.ReorderMacroStages(env.Ctx, "proj-1", []string{"ghost", b.ID, b.ID, a.ID}, "tester"); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got, _ := env.Engine.Repo.ListMacroStages(env.Ctx, "proj-1")
	assertOrder(t, []string{b.ID, a.ID}, macroStageIDs(got))
}

func TestReorderStageTasks(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	s := env.stage(t, m.ID, "Build")
	a := env.stageTask(t, s.ID, "a", "", "")
	b := env.stageTask(t, s.ID, "b", "", "")
	c := env.stageTask(t, s.ID, "c", "", "")

	if err := env.Engine.ReorderStageTasks(env.Ctx, s.ID, []string{b.ID, c.ID, a.ID}, "tester"); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got, err := env.Engine.Repo.ListStageTasks(env.Ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	assertOrder(t, []string{b.ID, c.ID, a.ID}, taskIDs(got))
}

func TestReorderDirectTasks(t *testing.T) {
	env := newTestEnv(t)
	m := env.macrostage(t, "Phase 1")
	mk := func(name string) domain.Task {
		task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
			MacroStageID: m.ID, Name: name, ActorID: "tester",
		})
		if err != nil {
			t.Fatalf("create direct task: %v", err)
		}
		return task
	}
	a, b := mk("a"), mk("b")

	if err := env.Engine.ReorderMacroStageTasks(env.Ctx, m.ID, []string{b.ID}, "tester"); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got, err := env.Engine.Repo.ListMacroStageDirectTasks(env.Ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	assertOrder(t, []string{b.ID, a.ID}, taskIDs(got))
}

func assertOrder(t *testing.T, want, got []string) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("length: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("position %d: want %s, got %s", i+1, want[i], got[i])
		}
	}
}

func macroStageIDs(items []domain.MacroStage) []string {
	ids := make([]string, len(items))
	for i, m := range items {
		ids[i] = m.ID
	}
	return ids
}

func taskIDs(items []domain.Task) []string {
	ids := make([]string, len(items))
	for i, task := range items {
		ids[i] = task.ID
	}
	return ids
}
