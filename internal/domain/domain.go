package domain

// Schedule hierarchy: Project -> MacroStage -> (Stage -> Task | Task).
// Start/end dates on Project, MacroStage and Stage are derived from
// descendant tasks and never written directly by callers.

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	StartDate *string `json:"start_date,omitempty" format:"date"`
	EndDate   *string `json:"end_date,omitempty" format:"date"`

	Status            string  `json:"status" enum:"to-start,in-progress,done,suspended,discarded"`
	StatusManual      bool    `json:"status_manual"`
	StatusManualValue *string `json:"status_manual_value,omitempty"`
	AutoShiftTasks    bool    `json:"auto_shift_tasks"`

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

	CreatedAt string `json:"created_at" format:"date-time"`
}

// MacroStage holds either Stages or direct Tasks, never both.
// StructureType is the discriminant and is locked once either child
// kind has entries.
type MacroStage struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	Name          string  `json:"name"`
	Position      int     `json:"position"`
	StructureType *string `json:"structure_type,omitempty" enum:"stages,tasks"`
	StartDate     *string `json:"start_date,omitempty" format:"date"`
	EndDate       *string `json:"end_date,omitempty" format:"date"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type Stage struct {
	ID           string  `json:"id"`
	MacroStageID string  `json:"macrostage_id"`
	Name         string  `json:"name"`
	Position     int     `json:"position"`
	StageType    string  `json:"stage_type" enum:"robot,system,not-applicable"`
	Scope        *string `json:"scope,omitempty"`
	Tools        *string `json:"tools,omitempty"`
	OtherTools   *string `json:"other_tools,omitempty"`
	StartDate    *string `json:"start_date,omitempty" format:"date"`
	EndDate      *string `json:"end_date,omitempty" format:"date"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// Task is the leaf unit carrying user-entered dates. StageID is nil for
// tasks owned directly by a MacroStage; MacroStageID is always set.
type Task struct {
	ID           string  `json:"id"`
	StageID      *string `json:"stage_id,omitempty"`
	MacroStageID string  `json:"macrostage_id"`
	Name         string  `json:"name"`
	StartDate    *string `json:"start_date,omitempty" format:"date"`
	EndDate      *string `json:"end_date,omitempty" format:"date"`
	Position     int     `json:"position"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type WeeklyUpdate struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	Content    string  `json:"content"`
	UpdateDate *string `json:"update_date,omitempty" format:"date"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
