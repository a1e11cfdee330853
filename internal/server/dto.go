package server

import (
	"planline/internal/domain"
	"planline/internal/engine"
)

type CreateProjectRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	ProjectFieldsRequest
}

// ProjectFieldsRequest carries the optional descriptive metadata.
// Absent fields are left untouched on update.
type ProjectFieldsRequest struct {
	Scope                    *string `json:"scope,omitempty"`
	GithubLink               *string `json:"github_link,omitempty"`
	Coordinator              *string `json:"coordinator,omitempty"`
	AutomationSupport        *string `json:"automation_support,omitempty"`
	RequestingAgency         *string `json:"requesting_agency,omitempty"`
	InternalDepartment       *string `json:"internal_department,omitempty"`
	SponsoringManager        *string `json:"sponsoring_manager,omitempty"`
	SponsoringManagerContact *string `json:"sponsoring_manager_contact,omitempty"`
	TechnicalManager         *string `json:"technical_manager,omitempty"`
	TechnicalManagerContact  *string `json:"technical_manager_contact,omitempty"`
}

func (r ProjectFieldsRequest) fields() engine.ProjectFields {
	return engine.ProjectFields{
		Scope:                    r.Scope,
		GithubLink:               r.GithubLink,
		Coordinator:              r.Coordinator,
		AutomationSupport:        r.AutomationSupport,
		RequestingAgency:         r.RequestingAgency,
		InternalDepartment:       r.InternalDepartment,
		SponsoringManager:        r.SponsoringManager,
		SponsoringManagerContact: r.SponsoringManagerContact,
		TechnicalManager:         r.TechnicalManager,
		TechnicalManagerContact:  r.TechnicalManagerContact,
	}
}

type UpdateProjectRequest struct {
	Name           *string `json:"name,omitempty"`
	AutoShiftTasks *bool   `json:"auto_shift_tasks,omitempty"`
	ProjectFieldsRequest
}

type SetProjectStatusRequest struct {
	Manual bool   `json:"manual"`
	Value  string `json:"value,omitempty"`
}

type CreateMacroStageRequest struct {
	Name string `json:"name"`
}

type RenameMacroStageRequest struct {
	Name string `json:"name"`
}

type SetStructureRequest struct {
	StructureType string `json:"structure_type" enum:"stages,tasks"`
}

type CreateStageRequest struct {
	Name       string  `json:"name"`
	StageType  string  `json:"stage_type,omitempty" enum:"robot,system,not-applicable"`
	Scope      *string `json:"scope,omitempty"`
	Tools      *string `json:"tools,omitempty"`
	OtherTools *string `json:"other_tools,omitempty"`
}

type UpdateStageRequest struct {
	Name       *string `json:"name,omitempty"`
	StageType  *string `json:"stage_type,omitempty" enum:"robot,system,not-applicable"`
	Scope      *string `json:"scope,omitempty"`
	Tools      *string `json:"tools,omitempty"`
	OtherTools *string `json:"other_tools,omitempty"`
}

type CreateTaskRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date,omitempty" format:"date"`
	EndDate   string `json:"end_date,omitempty" format:"date"`
}

type UpdateTaskRequest struct {
	Name      *string `json:"name,omitempty"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

type UpdateTaskResponse struct {
	Task      domain.Task       `json:"task"`
	ShiftPlan *engine.ShiftPlan `json:"shift_plan,omitempty"`
}

type ReorderRequest struct {
	Order []string `json:"order"`
}

type PlanShiftRequest struct {
	OldStart *string `json:"old_start,omitempty" format:"date"`
	OldEnd   *string `json:"old_end,omitempty" format:"date"`
	NewStart *string `json:"new_start,omitempty" format:"date"`
	NewEnd   *string `json:"new_end,omitempty" format:"date"`
}

type ApplyShiftRequest struct {
	DeltaDays int    `json:"delta_days"`
	Reference string `json:"reference" format:"date"`
}

type ApplyShiftResponse struct {
	Shifted []domain.Task `json:"shifted"`
}

type CreateWeeklyUpdateRequest struct {
	Content    string `json:"content"`
	UpdateDate string `json:"update_date,omitempty" format:"date"`
}

type EditWeeklyUpdateRequest struct {
	Content    *string `json:"content,omitempty"`
	UpdateDate *string `json:"update_date,omitempty"`
}
