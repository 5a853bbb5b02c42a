package model

type SubscribeLead struct {
	LeadID     string                 `json:"lead_id"`
	PipelineID string                 `json:"pipeline_id"`
	StageID    string                 `json:"stage_id"`
	MetaData   map[string]interface{} `json:"meta_data"`
}

type SetChecklistItem struct {
	Done  *bool  `json:"done"`
	Actor string `json:"actor"`
}

type SetStageNote struct {
	Note  string `json:"note"`
	Actor string `json:"actor"`
}

type LinkAppointment struct {
	AppointmentID string `json:"appointment_id"`
	ScheduledFor  string `json:"scheduled_for"`
	Actor         string `json:"actor"`
}

type ArchiveEntry struct {
	Actor string `json:"actor"`
}

type TransferEntry struct {
	ToPipelineID string `json:"to_pipeline_id"`
	Actor        string `json:"actor"`
}
