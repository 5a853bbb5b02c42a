/*
Copyright 2024 Pipeflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import "time"

const (
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

// Health is the three-valued urgency classification derived from time-in-stage
// versus the stage SLA. An empty Health means no urgency badge (stage has no
// SLA or is terminal).
type Health string

const (
	HealthGreen  Health = "GREEN"
	HealthYellow Health = "YELLOW"
	HealthRed    Health = "RED"
)

// Entry is a lead's live subscription to one pipeline, pinned to exactly one
// current stage. DaysInStage, DaysOverdue and CurrentHealth are cached
// projections recomputed on every write; StageEnteredAt is authoritative.
type Entry struct {
	EntryID             string                 `json:"entry_id"`
	LeadID              string                 `json:"lead_id"`
	PipelineID          string                 `json:"pipeline_id"`
	StageID             string                 `json:"stage_id"`
	Status              string                 `json:"status"`
	StageEnteredAt      time.Time              `json:"stage_entered_at"`
	LinkedAppointmentID string                 `json:"linked_appointment_id,omitempty"`
	LinkedAppointmentAt *time.Time             `json:"linked_appointment_at,omitempty"`
	DaysInStage         int                    `json:"days_in_stage"`
	DaysOverdue         int                    `json:"days_overdue"`
	CurrentHealth       Health                 `json:"health,omitempty"`
	StageNote           string                 `json:"stage_note,omitempty"`
	Checklist           map[string]bool        `json:"checklist,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	ArchivedAt          *time.Time             `json:"archived_at,omitempty"`
	MetaData            map[string]interface{} `json:"meta_data,omitempty"`
}

// DenyReason identifies why a movement was denied. Denials are expected
// business outcomes returned as results, never as errors.
type DenyReason string

const (
	NoOpMove            DenyReason = "NO_OP_MOVE"
	CrossPipelineMove   DenyReason = "CROSS_PIPELINE_MOVE"
	NoNextStage         DenyReason = "NO_NEXT_STAGE"
	ChecklistIncomplete DenyReason = "CHECKLIST_INCOMPLETE"
	WipLimitExceeded    DenyReason = "WIP_LIMIT_EXCEEDED"
)

// Movement outcomes. Unknown means the persistence call timed out and the
// caller must re-query state rather than assume the move did not happen.
const (
	OutcomeApplied = "APPLIED"
	OutcomeDenied  = "DENIED"
	OutcomeUnknown = "UNKNOWN"
)

// MovementRequest is an ephemeral, caller-supplied request to move an entry
// between two stages of its pipeline.
type MovementRequest struct {
	EntryID     string    `json:"entry_id"`
	FromStageID string    `json:"from_stage_id"`
	ToStageID   string    `json:"to_stage_id"`
	Actor       string    `json:"actor"`
	GateMode    GateMode  `json:"gate_mode"`
	RequestedAt time.Time `json:"requested_at"`
}

// MovementWarning is a rule violation surfaced alongside a successful move.
type MovementWarning struct {
	Reason  DenyReason `json:"reason"`
	Message string     `json:"message"`
}

// MovementResult reports the outcome of a movement request. Warnings (WIP
// overshoot, soft checklist misses) accompany success; Reason is only set on
// denial.
type MovementResult struct {
	Outcome      string                    `json:"outcome"`
	Reason       DenyReason                `json:"reason,omitempty"`
	Message      string                    `json:"message,omitempty"`
	Warnings     []MovementWarning         `json:"warnings,omitempty"`
	MissingItems []ChecklistItemDefinition `json:"missing_items,omitempty"`
	Automations  []AutomationRequest       `json:"automations,omitempty"`
	Entry        *Entry                    `json:"entry,omitempty"`
}

// Applied reports whether the movement was persisted.
func (r *MovementResult) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// HealthSnapshot is the derived urgency state of an entry at a point in time.
type HealthSnapshot struct {
	EntryID         string    `json:"entry_id"`
	DaysSinceAnchor int       `json:"days_since_anchor"`
	DaysRemaining   *int      `json:"days_remaining,omitempty"`
	Health          Health    `json:"health,omitempty"`
	Label           string    `json:"label,omitempty"`
	ComputedAt      time.Time `json:"computed_at"`
}

// AutomationRequestType enumerates the deferred actions the engine may request
// after a completed movement. Requests are fulfilled by external collaborators.
type AutomationRequestType string

const (
	CreateAppointment   AutomationRequestType = "CREATE_APPOINTMENT"
	SuggestNextStep     AutomationRequestType = "SUGGEST_NEXT_STEP"
	ScheduleSlaReminder AutomationRequestType = "SCHEDULE_SLA_REMINDER"
)

// AutomationRequest describes one deferred side effect of a movement.
type AutomationRequest struct {
	RequestID       string                `json:"request_id"`
	Type            AutomationRequestType `json:"type"`
	EntryID         string                `json:"entry_id"`
	LeadID          string                `json:"lead_id"`
	StageID         string                `json:"stage_id"`
	DurationMinutes int                   `json:"duration_minutes,omitempty"`
	ScheduledFor    time.Time             `json:"scheduled_for,omitempty"`
	Label           string                `json:"label,omitempty"`
	Deadline        time.Time             `json:"deadline,omitempty"`
}

// FieldDiff is a single field-level change recorded in the audit trail.
type FieldDiff struct {
	Field string      `json:"field"`
	From  interface{} `json:"from"`
	To    interface{} `json:"to"`
}

// AuditLog is one recorded mutation of an entity.
type AuditLog struct {
	AuditID    string      `json:"audit_id"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id"`
	Action     string      `json:"action"`
	Diffs      []FieldDiff `json:"diffs,omitempty"`
	Actor      string      `json:"actor"`
	CreatedAt  time.Time   `json:"created_at"`
}
