package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"planline/internal/config"
	"planline/internal/dates"
	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) today() string {
	return dates.Today(e.now().UTC())
}

var errStartAfterEnd = errors.New("start date must not be after end date")

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID      string
	Name    string
	Fields  ProjectFields
	ActorID string
}

// ProjectFields carries the optional descriptive metadata of a project.
type ProjectFields struct {
	Scope                    *string
	GithubLink               *string
	Coordinator              *string
	AutomationSupport        *string
	RequestingAgency         *string
	InternalDepartment       *string
	SponsoringManager        *string
	SponsoringManagerContact *string
	TechnicalManager         *string
	TechnicalManagerContact  *string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	autoShift := false
	if e.Config != nil {
		autoShift = e.Config.Defaults.AutoShiftTasks
	}
	p := domain.Project{
		ID:             id,
		Name:           opts.Name,
		Status:         StatusToStart,
		AutoShiftTasks: autoShift,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	applyProjectFields(&p, opts.Fields)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, p.ID, config.GenerateDefault(p.ID), e.now()); err != nil {
		return domain.Project{}, fmt.Errorf("insert project config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func applyProjectFields(p *domain.Project, f ProjectFields) {
	if f.Scope != nil {
		p.Scope = f.Scope
	}
	if f.GithubLink != nil {
		p.GithubLink = f.GithubLink
	}
	if f.Coordinator != nil {
		p.Coordinator = f.Coordinator
	}
	if f.AutomationSupport != nil {
		p.AutomationSupport = f.AutomationSupport
	}
	if f.RequestingAgency != nil {
		p.RequestingAgency = f.RequestingAgency
	}
	if f.InternalDepartment != nil {
		p.InternalDepartment = f.InternalDepartment
	}
	if f.SponsoringManager != nil {
		p.SponsoringManager = f.SponsoringManager
	}
	if f.SponsoringManagerContact != nil {
		p.SponsoringManagerContact = f.SponsoringManagerContact
	}
	if f.TechnicalManager != nil {
		p.TechnicalManager = f.TechnicalManager
	}
	if f.TechnicalManagerContact != nil {
		p.TechnicalManagerContact = f.TechnicalManagerContact
	}
}

// ProjectUpdateOptions patches a project's name, metadata and shift flag.
type ProjectUpdateOptions struct {
	Name           *string
	Fields         ProjectFields
	AutoShiftTasks *bool
	ActorID        string
}

func (e Engine) UpdateProject(ctx context.Context, projectID string, opts ProjectUpdateOptions) (domain.Project, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return domain.Project{}, errors.New("name is required")
		}
		p.Name = *opts.Name
	}
	applyProjectFields(&p, opts.Fields)
	if opts.AutoShiftTasks != nil {
		p.AutoShiftTasks = *opts.AutoShiftTasks
	}
	if err := e.Repo.UpdateProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.updated", p.ID, "project", p.ID, opts.ActorID, nil); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// SetProjectStatus pins or unpins the project status. Pinning requires a
// value from the configured manual vocabulary; unpinning re-infers the
// status from the derived dates immediately.
func (e Engine) SetProjectStatus(ctx context.Context, projectID string, manual bool, value, actorID string) (domain.Project, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if manual {
		if value == "" {
			return domain.Project{}, errors.New("status value is required when pinning")
		}
		if e.Config != nil && !e.Config.ManualStatusAllowed(value) {
			return domain.Project{}, fmt.Errorf("invalid manual status %q", value)
		}
		p.Status = value
		p.StatusManual = true
		p.StatusManualValue = &value
	} else {
		p.Status = ProjectAutoStatus(p.StartDate, p.EndDate, e.today())
		p.StatusManual = false
		p.StatusManualValue = nil
	}
	if err := e.Repo.SetProjectStatusTx(ctx, tx, p.ID, p.Status, p.StatusManual, p.StatusManualValue); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.status", p.ID, "project", p.ID, actorID,
		events.EventPayload{"status": p.Status, "manual": p.StatusManual}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) DeleteProject(ctx context.Context, projectID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteProjectTx(ctx, tx, projectID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "project.deleted", projectID, "project", projectID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) CreateMacroStage(ctx context.Context, projectID, name, actorID string) (domain.MacroStage, error) {
	if name == "" {
		return domain.MacroStage{}, errors.New("name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MacroStage{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, projectID); err != nil {
		return domain.MacroStage{}, err
	}
	pos, err := e.Repo.NextMacroStagePositionTx(ctx, tx, projectID)
	if err != nil {
		return domain.MacroStage{}, err
	}
	m := domain.MacroStage{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Position:  pos,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertMacroStageTx(ctx, tx, m); err != nil {
		return domain.MacroStage{}, fmt.Errorf("insert macrostage: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "macrostage.created", projectID, "macrostage", m.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.MacroStage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MacroStage{}, err
	}
	return m, nil
}

func (e Engine) RenameMacroStage(ctx context.Context, macroStageID, name, actorID string) (domain.MacroStage, error) {
	if name == "" {
		return domain.MacroStage{}, errors.New("name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MacroStage{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, macroStageID)
	if err != nil {
		return domain.MacroStage{}, err
	}
	m.Name = name
	if err := e.Repo.RenameMacroStageTx(ctx, tx, m.ID, name); err != nil {
		return domain.MacroStage{}, err
	}
	if err := e.Events.Append(ctx, tx, "macrostage.renamed", m.ProjectID, "macrostage", m.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.MacroStage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MacroStage{}, err
	}
	return m, nil
}

// SetMacroStageStructure selects whether the macrostage holds stages or
// direct tasks. Once children of either kind exist the structure is
// locked: a conflicting request is answered with the current state, not
// an error.
func (e Engine) SetMacroStageStructure(ctx context.Context, macroStageID, structure, actorID string) (domain.MacroStage, error) {
	if structure != "stages" && structure != "tasks" {
		return domain.MacroStage{}, fmt.Errorf("invalid structure type %q", structure)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.MacroStage{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, macroStageID)
	if err != nil {
		return domain.MacroStage{}, err
	}
	locked, err := e.structureLockedTx(ctx, tx, m, structure)
	if err != nil {
		return domain.MacroStage{}, err
	}
	if locked {
		return m, nil
	}
	m.StructureType = &structure
	if err := e.Repo.SetMacroStageStructureTx(ctx, tx, m.ID, m.StructureType); err != nil {
		return domain.MacroStage{}, err
	}
	if err := e.Events.Append(ctx, tx, "macrostage.structure", m.ProjectID, "macrostage", m.ID, actorID, events.EventPayload{"structure_type": structure}); err != nil {
		return domain.MacroStage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.MacroStage{}, err
	}
	return m, nil
}

// structureLockedTx reports whether switching m to the requested
// structure would orphan existing children.
func (e Engine) structureLockedTx(ctx context.Context, tx *sql.Tx, m domain.MacroStage, requested string) (bool, error) {
	if requested == "tasks" {
		n, err := e.Repo.CountStagesTx(ctx, tx, m.ID)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	n, err := e.Repo.CountDirectTasksTx(ctx, tx, m.ID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e Engine) DeleteMacroStage(ctx context.Context, macroStageID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, macroStageID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteMacroStageTx(ctx, tx, m.ID); err != nil {
		return err
	}
	if err := e.recalcProjectTx(ctx, tx, m.ProjectID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "macrostage.deleted", m.ProjectID, "macrostage", m.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// StageCreateOptions are parameters for creating a stage.
type StageCreateOptions struct {
	MacroStageID string
	Name         string
	StageType    string
	Scope        *string
	Tools        *string
	OtherTools   *string
	ActorID      string
}

func (e Engine) CreateStage(ctx context.Context, opts StageCreateOptions) (domain.Stage, error) {
	if opts.Name == "" {
		return domain.Stage{}, errors.New("name is required")
	}
	if opts.StageType == "" {
		opts.StageType = "not-applicable"
	}
	if err := validateStageType(opts.StageType); err != nil {
		return domain.Stage{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stage{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMacroStageTx(ctx, tx, opts.MacroStageID)
	if err != nil {
		return domain.Stage{}, err
	}
	if m.StructureType != nil && *m.StructureType == "tasks" {
		return domain.Stage{}, fmt.Errorf("macrostage %s holds tasks, not stages", m.ID)
	}
	if m.StructureType == nil {
		st := "stages"
		if err := e.Repo.SetMacroStageStructureTx(ctx, tx, m.ID, &st); err != nil {
			return domain.Stage{}, err
		}
	}
	pos, err := e.Repo.NextStagePositionTx(ctx, tx, m.ID)
	if err != nil {
		return domain.Stage{}, err
	}
	s := domain.Stage{
		ID:           uuid.NewString(),
		MacroStageID: m.ID,
		Name:         opts.Name,
		Position:     pos,
		StageType:    opts.StageType,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	applyStageTypedFields(&s, opts.Scope, opts.Tools, opts.OtherTools)
	if err := e.validateStageTools(s); err != nil {
		return domain.Stage{}, err
	}
	if err := e.Repo.InsertStageTx(ctx, tx, s); err != nil {
		return domain.Stage{}, fmt.Errorf("insert stage: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "stage.created", m.ProjectID, "stage", s.ID, opts.ActorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Stage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stage{}, err
	}
	return s, nil
}

func validateStageType(st string) error {
	switch st {
	case "robot", "system", "not-applicable":
		return nil
	}
	return fmt.Errorf("invalid stage type %q", st)
}

// applyStageTypedFields keeps scope/tools empty unless the stage type
// carries tooling detail.
func applyStageTypedFields(s *domain.Stage, scope, tools, otherTools *string) {
	if s.StageType != "robot" && s.StageType != "system" {
		s.Scope = nil
		s.Tools = nil
		s.OtherTools = nil
		return
	}
	s.Scope = scope
	s.Tools = tools
	s.OtherTools = otherTools
}

func (e Engine) validateStageTools(s domain.Stage) error {
	if e.Config == nil || s.Tools == nil {
		return nil
	}
	if !e.Config.ToolAllowed(*s.Tools) {
		return fmt.Errorf("invalid tool %q", *s.Tools)
	}
	return nil
}

// StageUpdateOptions patches a stage. Nil fields are left unchanged;
// switching away from robot/system clears the tooling fields.
type StageUpdateOptions struct {
	Name       *string
	StageType  *string
	Scope      *string
	Tools      *string
	OtherTools *string
	ActorID    string
}

func (e Engine) UpdateStage(ctx context.Context, stageID string, opts StageUpdateOptions) (domain.Stage, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stage{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetStageTx(ctx, tx, stageID)
	if err != nil {
		return domain.Stage{}, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return domain.Stage{}, errors.New("name is required")
		}
		s.Name = *opts.Name
	}
	if opts.StageType != nil {
		if err := validateStageType(*opts.StageType); err != nil {
			return domain.Stage{}, err
		}
		s.StageType = *opts.StageType
	}
	scope, tools, otherTools := s.Scope, s.Tools, s.OtherTools
	if opts.Scope != nil {
		scope = opts.Scope
	}
	if opts.Tools != nil {
		tools = opts.Tools
	}
	if opts.OtherTools != nil {
		otherTools = opts.OtherTools
	}
	applyStageTypedFields(&s, scope, tools, otherTools)
	if err := e.validateStageTools(s); err != nil {
		return domain.Stage{}, err
	}
	if err := e.Repo.UpdateStageTx(ctx, tx, s); err != nil {
		return domain.Stage{}, err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, s.MacroStageID)
	if err != nil {
		return domain.Stage{}, err
	}
	if err := e.Events.Append(ctx, tx, "stage.updated", m.ProjectID, "stage", s.ID, opts.ActorID, nil); err != nil {
		return domain.Stage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stage{}, err
	}
	return s, nil
}

func (e Engine) DeleteStage(ctx context.Context, stageID, actorID string) error {
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
	if err := e.Repo.DeleteStageTx(ctx, tx, s.ID); err != nil {
		return err
	}
	if err := e.recalcFromMacroStageTx(ctx, tx, m); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "stage.deleted", m.ProjectID, "stage", s.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// TaskCreateOptions are parameters for creating a task. Exactly one of
// StageID or MacroStageID selects the owner.
type TaskCreateOptions struct {
	StageID      string
	MacroStageID string
	Name         string
	StartDate    string
	EndDate      string
	ActorID      string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Name == "" {
		return domain.Task{}, errors.New("name is required")
	}
	if (opts.StageID == "") == (opts.MacroStageID == "") {
		return domain.Task{}, errors.New("exactly one of stage or macrostage is required")
	}
	start := dates.Clean(opts.StartDate)
	end := dates.Clean(opts.EndDate)
	if !dates.Ordered(start, end) {
		return domain.Task{}, errStartAfterEnd
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t := domain.Task{
		ID:        uuid.NewString(),
		Name:      opts.Name,
		StartDate: start,
		EndDate:   end,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	var m domain.MacroStage
	if opts.StageID != "" {
		s, err := e.Repo.GetStageTx(ctx, tx, opts.StageID)
		if err != nil {
			return domain.Task{}, err
		}
		m, err = e.Repo.GetMacroStageTx(ctx, tx, s.MacroStageID)
		if err != nil {
			return domain.Task{}, err
		}
		t.StageID = &s.ID
		t.MacroStageID = m.ID
		t.Position, err = e.Repo.NextStageTaskPositionTx(ctx, tx, s.ID)
		if err != nil {
			return domain.Task{}, err
		}
	} else {
		m, err = e.Repo.GetMacroStageTx(ctx, tx, opts.MacroStageID)
		if err != nil {
			return domain.Task{}, err
		}
		if m.StructureType != nil && *m.StructureType == "stages" {
			return domain.Task{}, fmt.Errorf("macrostage %s holds stages, not tasks", m.ID)
		}
		if m.StructureType == nil {
			st := "tasks"
			if err := e.Repo.SetMacroStageStructureTx(ctx, tx, m.ID, &st); err != nil {
				return domain.Task{}, err
			}
		}
		t.MacroStageID = m.ID
		t.Position, err = e.Repo.NextDirectTaskPositionTx(ctx, tx, m.ID)
		if err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.recalcFromTaskTx(ctx, tx, t, m); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", m.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions patches a task. Date fields distinguish "absent"
// (nil, keep current) from "present but empty" (clear).
type TaskUpdateOptions struct {
	Name      *string
	StartDate *string
	EndDate   *string
	ActorID   string
}

// TaskUpdateResult carries the stored task plus, when the project has
// automatic shifting enabled and the dates moved, a preview of the
// cascade across subsequent tasks. The caller decides whether to apply.
type TaskUpdateResult struct {
	Task domain.Task
	Plan *ShiftPlan
}

func (e Engine) UpdateTask(ctx context.Context, taskID string, opts TaskUpdateOptions) (TaskUpdateResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	oldStart, oldEnd := t.StartDate, t.EndDate

	if opts.Name != nil {
		if *opts.Name == "" {
			return TaskUpdateResult{}, errors.New("name is required")
		}
		t.Name = *opts.Name
	}
	if opts.StartDate != nil {
		t.StartDate = dates.Clean(*opts.StartDate)
	}
	if opts.EndDate != nil {
		t.EndDate = dates.Clean(*opts.EndDate)
	}
	if !dates.Ordered(t.StartDate, t.EndDate) {
		return TaskUpdateResult{}, errStartAfterEnd
	}

	m, err := e.Repo.GetMacroStageTx(ctx, tx, t.MacroStageID)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return TaskUpdateResult{}, err
	}
	if err := e.recalcFromTaskTx(ctx, tx, t, m); err != nil {
		return TaskUpdateResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", m.ProjectID, "task", t.ID, opts.ActorID, nil); err != nil {
		return TaskUpdateResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return TaskUpdateResult{}, err
	}

	res := TaskUpdateResult{Task: t}
	p, err := e.Repo.GetProject(ctx, m.ProjectID)
	if err != nil {
		return res, err
	}
	if p.AutoShiftTasks {
		plan, err := e.PlanShift(ctx, t.ID, oldStart, oldEnd, t.StartDate, t.EndDate)
		if err != nil {
			return res, err
		}
		res.Plan = plan
	}
	return res, nil
}

func (e Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
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
	if err := e.Repo.DeleteTaskTx(ctx, tx, t.ID); err != nil {
		return err
	}
	if err := e.recalcFromTaskTx(ctx, tx, t, m); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", m.ProjectID, "task", t.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// WeeklyUpdateOptions are parameters for recording a task note.
type WeeklyUpdateOptions struct {
	TaskID     string
	Content    string
	UpdateDate string
	ActorID    string
}

func (e Engine) CreateWeeklyUpdate(ctx context.Context, opts WeeklyUpdateOptions) (domain.WeeklyUpdate, error) {
	if opts.Content == "" {
		return domain.WeeklyUpdate{}, errors.New("content is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.TaskID)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, t.MacroStageID)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	w := domain.WeeklyUpdate{
		ID:         uuid.NewString(),
		TaskID:     t.ID,
		Content:    opts.Content,
		UpdateDate: dates.Clean(opts.UpdateDate),
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertWeeklyUpdateTx(ctx, tx, w); err != nil {
		return domain.WeeklyUpdate{}, fmt.Errorf("insert weekly update: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "update.created", m.ProjectID, "weekly_update", w.ID, opts.ActorID, nil); err != nil {
		return domain.WeeklyUpdate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WeeklyUpdate{}, err
	}
	return w, nil
}

func (e Engine) EditWeeklyUpdate(ctx context.Context, id string, content *string, updateDate *string, actorID string) (domain.WeeklyUpdate, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWeeklyUpdateTx(ctx, tx, id)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	if content != nil {
		if *content == "" {
			return domain.WeeklyUpdate{}, errors.New("content is required")
		}
		w.Content = *content
	}
	if updateDate != nil {
		w.UpdateDate = dates.Clean(*updateDate)
	}
	if err := e.Repo.UpdateWeeklyUpdateTx(ctx, tx, w); err != nil {
		return domain.WeeklyUpdate{}, err
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, w.TaskID)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, t.MacroStageID)
	if err != nil {
		return domain.WeeklyUpdate{}, err
	}
	if err := e.Events.Append(ctx, tx, "update.edited", m.ProjectID, "weekly_update", w.ID, actorID, nil); err != nil {
		return domain.WeeklyUpdate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WeeklyUpdate{}, err
	}
	return w, nil
}

func (e Engine) DeleteWeeklyUpdate(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWeeklyUpdateTx(ctx, tx, id)
	if err != nil {
		return err
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, w.TaskID)
	if err != nil {
		return err
	}
	m, err := e.Repo.GetMacroStageTx(ctx, tx, t.MacroStageID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteWeeklyUpdateTx(ctx, tx, w.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "update.deleted", m.ProjectID, "weekly_update", w.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
