package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planline/internal/domain"
	"planline/internal/engine"
)

type MacroStagePath struct {
	MacroStageID string `path:"macrostage_id"`
}

type StagePath struct {
	StageID string `path:"stage_id"`
}

type TaskPath struct {
	TaskID string `path:"task_id"`
}

// requireOrder rejects payloads where the order list is absent or JSON
// null; the schema already rejects non-array values.
func requireOrder(ctx context.Context) huma.StatusError {
	m, err := rawBodyMap(ctx)
	if err != nil || m == nil {
		return newAPIError(http.StatusBadRequest, "bad_request", "order list required", nil)
	}
	raw, ok := m["order"]
	if !ok || isNullRaw(raw) {
		return newAPIError(http.StatusBadRequest, "bad_request", "order list required", nil)
	}
	return nil
}

func isNullRaw(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func registerMacroStages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-macrostage",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/macrostages",
		Summary:       "Create macrostage",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"project_id"`
		Body      CreateMacroStageRequest `json:"body"`
	}) (*struct {
		Body domain.MacroStage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMacroStage(ctx, input.ProjectID, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MacroStage `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-macrostages",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/macrostages",
		Summary:     "List macrostages",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.MacroStage `json:"body"`
	}, error) {
		items, err := e.Repo.ListMacroStages(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MacroStage `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-macrostage",
		Method:      http.MethodPatch,
		Path:        "/macrostages/{macrostage_id}",
		Summary:     "Rename macrostage",
	}, func(ctx context.Context, input *struct {
		MacroStagePath
		Body RenameMacroStageRequest `json:"body"`
	}) (*struct {
		Body domain.MacroStage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.RenameMacroStage(ctx, input.MacroStageID, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MacroStage `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-macrostage",
		Method:        http.MethodDelete,
		Path:          "/macrostages/{macrostage_id}",
		Summary:       "Delete macrostage",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *MacroStagePath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteMacroStage(ctx, input.MacroStageID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-macrostage-structure",
		Method:      http.MethodPost,
		Path:        "/macrostages/{macrostage_id}/structure",
		Summary:     "Select macrostage structure",
		Description: "Chooses stages or direct tasks. Locked once children exist; a conflicting request returns the current state unchanged.",
	}, func(ctx context.Context, input *struct {
		MacroStagePath
		Body SetStructureRequest `json:"body"`
	}) (*struct {
		Body domain.MacroStage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SetMacroStageStructure(ctx, input.MacroStageID, input.Body.StructureType, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MacroStage `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-macrostages",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/macrostages/order",
		Summary:     "Reorder macrostages",
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		Body      ReorderRequest `json:"body"`
	}) (*struct {
		Body []domain.MacroStage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireOrder(ctx); err != nil {
			return nil, err
		}
		if err := e.ReorderMacroStages(ctx, input.ProjectID, input.Body.Order, actorID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMacroStages(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MacroStage `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recalculate-macrostage",
		Method:      http.MethodPost,
		Path:        "/macrostages/{macrostage_id}/recalculate",
		Summary:     "Recalculate derived dates from macrostage",
	}, func(ctx context.Context, input *MacroStagePath) (*struct {
		Body domain.MacroStage `json:"body"`
	}, error) {
		if err := e.RecalculateFromMacroStage(ctx, input.MacroStageID); err != nil {
			return nil, handleError(err)
		}
		m, err := e.Repo.GetMacroStage(ctx, input.MacroStageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MacroStage `json:"body"`
		}{Body: m}, nil
	})
}

func registerStages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-stage",
		Method:        http.MethodPost,
		Path:          "/macrostages/{macrostage_id}/stages",
		Summary:       "Create stage",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		MacroStagePath
		Body CreateStageRequest `json:"body"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateStage(ctx, engine.StageCreateOptions{
			MacroStageID: input.MacroStageID,
			Name:         input.Body.Name,
			StageType:    input.Body.StageType,
			Scope:        input.Body.Scope,
			Tools:        input.Body.Tools,
			OtherTools:   input.Body.OtherTools,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/macrostages/{macrostage_id}/stages",
		Summary:     "List stages",
	}, func(ctx context.Context, input *MacroStagePath) (*struct {
		Body []domain.Stage `json:"body"`
	}, error) {
		items, err := e.Repo.ListStages(ctx, input.MacroStageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Stage `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stage",
		Method:      http.MethodPatch,
		Path:        "/stages/{stage_id}",
		Summary:     "Update stage",
	}, func(ctx context.Context, input *struct {
		StagePath
		Body UpdateStageRequest `json:"body"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateStage(ctx, input.StageID, engine.StageUpdateOptions{
			Name:       input.Body.Name,
			StageType:  input.Body.StageType,
			Scope:      input.Body.Scope,
			Tools:      input.Body.Tools,
			OtherTools: input.Body.OtherTools,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-stage",
		Method:        http.MethodDelete,
		Path:          "/stages/{stage_id}",
		Summary:       "Delete stage",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *StagePath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteStage(ctx, input.StageID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stage-status",
		Method:      http.MethodGet,
		Path:        "/stages/{stage_id}/status",
		Summary:     "Stage status",
	}, func(ctx context.Context, input *StagePath) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		status, err := e.StageStatus(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": status}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-stages",
		Method:      http.MethodPut,
		Path:        "/macrostages/{macrostage_id}/stages/order",
		Summary:     "Reorder stages",
	}, func(ctx context.Context, input *struct {
		MacroStagePath
		Body ReorderRequest `json:"body"`
	}) (*struct {
		Body []domain.Stage `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireOrder(ctx); err != nil {
			return nil, err
		}
		if err := e.ReorderStages(ctx, input.MacroStageID, input.Body.Order, actorID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListStages(ctx, input.MacroStageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Stage `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recalculate-stage",
		Method:      http.MethodPost,
		Path:        "/stages/{stage_id}/recalculate",
		Summary:     "Recalculate derived dates from stage",
	}, func(ctx context.Context, input *StagePath) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		if err := e.RecalculateFromStage(ctx, input.StageID); err != nil {
			return nil, handleError(err)
		}
		s, err := e.Repo.GetStage(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: s}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-stage-task",
		Method:        http.MethodPost,
		Path:          "/stages/{stage_id}/tasks",
		Summary:       "Create task in stage",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		StagePath
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			StageID:   input.StageID,
			Name:      input.Body.Name,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-macrostage-task",
		Method:        http.MethodPost,
		Path:          "/macrostages/{macrostage_id}/tasks",
		Summary:       "Create task directly in macrostage",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		MacroStagePath
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			MacroStageID: input.MacroStageID,
			Name:         input.Body.Name,
			StartDate:    input.Body.StartDate,
			EndDate:      input.Body.EndDate,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stage-tasks",
		Method:      http.MethodGet,
		Path:        "/stages/{stage_id}/tasks",
		Summary:     "List stage tasks",
	}, func(ctx context.Context, input *StagePath) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		items, err := e.Repo.ListStageTasks(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-macrostage-tasks",
		Method:      http.MethodGet,
		Path:        "/macrostages/{macrostage_id}/tasks",
		Summary:     "List direct macrostage tasks",
	}, func(ctx context.Context, input *MacroStagePath) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		items, err := e.Repo.ListMacroStageDirectTasks(ctx, input.MacroStageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Description: "Moving a task's dates on a project with auto-shift enabled returns a shift plan preview alongside the stored task.",
	}, func(ctx context.Context, input *struct {
		TaskPath
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body UpdateTaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.UpdateTask(ctx, input.TaskID, engine.TaskUpdateOptions{
			Name:      input.Body.Name,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UpdateTaskResponse `json:"body"`
		}{Body: UpdateTaskResponse{Task: res.Task, ShiftPlan: res.Plan}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *TaskPath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.TaskID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-stage-tasks",
		Method:      http.MethodPut,
		Path:        "/stages/{stage_id}/tasks/order",
		Summary:     "Reorder stage tasks",
	}, func(ctx context.Context, input *struct {
		StagePath
		Body ReorderRequest `json:"body"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireOrder(ctx); err != nil {
			return nil, err
		}
		if err := e.ReorderStageTasks(ctx, input.StageID, input.Body.Order, actorID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListStageTasks(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-macrostage-tasks",
		Method:      http.MethodPut,
		Path:        "/macrostages/{macrostage_id}/tasks/order",
		Summary:     "Reorder direct macrostage tasks",
	}, func(ctx context.Context, input *struct {
		MacroStagePath
		Body ReorderRequest `json:"body"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireOrder(ctx); err != nil {
			return nil, err
		}
		if err := e.ReorderMacroStageTasks(ctx, input.MacroStageID, input.Body.Order, actorID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMacroStageDirectTasks(ctx, input.MacroStageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recalculate-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/recalculate",
		Summary:     "Recalculate derived dates from task",
	}, func(ctx context.Context, input *TaskPath) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if err := e.RecalculateFromTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerShift(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "plan-shift",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/shift/plan",
		Summary:     "Preview a cascading shift",
	}, func(ctx context.Context, input *struct {
		TaskPath
		Body PlanShiftRequest `json:"body"`
	}) (*struct {
		Body *engine.ShiftPlan `json:"body"`
	}, error) {
		plan, err := e.PlanShift(ctx, input.TaskID, input.Body.OldStart, input.Body.OldEnd, input.Body.NewStart, input.Body.NewEnd)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *engine.ShiftPlan `json:"body"`
		}{Body: plan}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-shift",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/shift/apply",
		Summary:     "Apply a cascading shift",
	}, func(ctx context.Context, input *struct {
		TaskPath
		Body ApplyShiftRequest `json:"body"`
	}) (*struct {
		Body ApplyShiftResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		shifted, err := e.ApplyShift(ctx, input.TaskID, input.Body.DeltaDays, input.Body.Reference, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplyShiftResponse `json:"body"`
		}{Body: ApplyShiftResponse{Shifted: shifted}}, nil
	})
}

func registerWeeklyUpdates(api huma.API, e engine.Engine) {
	type UpdatePath struct {
		UpdateID string `path:"update_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-weekly-update",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/updates",
		Summary:       "Record weekly update",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TaskPath
		Body CreateWeeklyUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.WeeklyUpdate `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.CreateWeeklyUpdate(ctx, engine.WeeklyUpdateOptions{
			TaskID:     input.TaskID,
			Content:    input.Body.Content,
			UpdateDate: input.Body.UpdateDate,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WeeklyUpdate `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-weekly-updates",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/updates",
		Summary:     "List weekly updates",
	}, func(ctx context.Context, input *TaskPath) (*struct {
		Body []domain.WeeklyUpdate `json:"body"`
	}, error) {
		items, err := e.Repo.ListWeeklyUpdates(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WeeklyUpdate `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-weekly-update",
		Method:      http.MethodPatch,
		Path:        "/updates/{update_id}",
		Summary:     "Edit weekly update",
	}, func(ctx context.Context, input *struct {
		UpdatePath
		Body EditWeeklyUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.WeeklyUpdate `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		w, err := e.EditWeeklyUpdate(ctx, input.UpdateID, input.Body.Content, input.Body.UpdateDate, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WeeklyUpdate `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-weekly-update",
		Method:        http.MethodDelete,
		Path:          "/updates/{update_id}",
		Summary:       "Delete weekly update",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *UpdatePath) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteWeeklyUpdate(ctx, input.UpdateID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
