package model

type ChecklistItem struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title"`
	Ordinal   int    `json:"ordinal"`
	Mandatory bool   `json:"mandatory"`
	Active    *bool  `json:"active"`
}

type CreateStage struct {
	PipelineID       string                 `json:"pipeline_id"`
	Name             string                 `json:"name"`
	Ordinal          int                    `json:"ordinal"`
	SLADurationDays  *int                   `json:"sla_duration_days"`
	WIPLimit         *int                   `json:"wip_limit"`
	SuccessorStageID string                 `json:"successor_stage_id"`
	SLAAnchor        string                 `json:"sla_anchor"`
	AutoAppointment  bool                   `json:"auto_appointment"`
	ApptDurationMins int                    `json:"appointment_duration_minutes"`
	NextStepLabel    string                 `json:"next_step_label"`
	Checklist        []ChecklistItem        `json:"checklist"`
	MetaData         map[string]interface{} `json:"meta_data"`
}

type UpdateStage struct {
	Name             string          `json:"name"`
	SLADurationDays  *int            `json:"sla_duration_days"`
	WIPLimit         *int            `json:"wip_limit"`
	SuccessorStageID string          `json:"successor_stage_id"`
	SLAAnchor        string          `json:"sla_anchor"`
	AutoAppointment  bool            `json:"auto_appointment"`
	ApptDurationMins int             `json:"appointment_duration_minutes"`
	NextStepLabel    string          `json:"next_step_label"`
	Checklist        []ChecklistItem `json:"checklist"`
}

type ReorderStages struct {
	OrderedStageIDs []string `json:"ordered_stage_ids"`
}
