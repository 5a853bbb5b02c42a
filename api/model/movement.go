package model

type MoveEntry struct {
	FromStageID string `json:"from_stage_id"`
	ToStageID   string `json:"to_stage_id"`
	Actor       string `json:"actor"`
	GateMode    string `json:"gate_mode"`
}

type AdvanceEntry struct {
	Actor    string `json:"actor"`
	GateMode string `json:"gate_mode"`
}

type JumpEntry struct {
	ToStageID string `json:"to_stage_id"`
	Actor     string `json:"actor"`
	GateMode  string `json:"gate_mode"`
}

type RevertEntry struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}
