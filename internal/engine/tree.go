package engine

import (
	"context"

	"planline/internal/domain"
)

// ProjectTree is the full schedule snapshot: every level with its
// derived dates, plus live status and progress readings.
type ProjectTree struct {
	Project     domain.Project   `json:"project"`
	Status      EffectiveStatus  `json:"status"`
	MacroStages []MacroStageNode `json:"macrostages"`
}

type MacroStageNode struct {
	MacroStage domain.MacroStage `json:"macrostage"`
	Stages     []StageNode       `json:"stages,omitempty"`
	Tasks      []domain.Task     `json:"tasks,omitempty"`
}

type StageNode struct {
	Stage    domain.Stage  `json:"stage"`
	Status   string        `json:"status"`
	Progress *int          `json:"progress,omitempty"`
	Tasks    []domain.Task `json:"tasks"`
}

func (e Engine) GetProjectTree(ctx context.Context, projectID string) (ProjectTree, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return ProjectTree{}, err
	}
	today := e.today()
	tree := ProjectTree{Project: p, Status: EffectiveProjectStatus(p, today)}

	macros, err := e.Repo.ListMacroStages(ctx, projectID)
	if err != nil {
		return ProjectTree{}, err
	}
	for _, m := range macros {
		node := MacroStageNode{MacroStage: m}
		stages, err := e.Repo.ListStages(ctx, m.ID)
		if err != nil {
			return ProjectTree{}, err
		}
		for _, s := range stages {
			tasks, err := e.Repo.ListStageTasks(ctx, s.ID)
			if err != nil {
				return ProjectTree{}, err
			}
			node.Stages = append(node.Stages, StageNode{
				Stage:    s,
				Status:   StageAutoStatus(tasks, today),
				Progress: Progress(s.StartDate, s.EndDate, today),
				Tasks:    tasks,
			})
		}
		direct, err := e.Repo.ListMacroStageDirectTasks(ctx, m.ID)
		if err != nil {
			return ProjectTree{}, err
		}
		node.Tasks = direct
		tree.MacroStages = append(tree.MacroStages, node)
	}
	return tree, nil
}

// ProjectStatus returns the effective status of a project.
func (e Engine) ProjectStatus(ctx context.Context, projectID string) (EffectiveStatus, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return EffectiveStatus{}, err
	}
	return EffectiveProjectStatus(p, e.today()), nil
}

// StageStatus returns the live auto-inferred status of a stage.
func (e Engine) StageStatus(ctx context.Context, stageID string) (string, error) {
	if _, err := e.Repo.GetStage(ctx, stageID); err != nil {
		return "", err
	}
	tasks, err := e.Repo.ListStageTasks(ctx, stageID)
	if err != nil {
		return "", err
	}
	return StageAutoStatus(tasks, e.today()), nil
}
