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

// SLAAnchorMode selects the reference timestamp a stage's allotted duration
// is measured from.
type SLAAnchorMode string

const (
	AnchorStageEntry        SLAAnchorMode = "STAGE_ENTRY"
	AnchorLinkedAppointment SLAAnchorMode = "LINKED_APPOINTMENT"
)

// Pipeline is an ordered sales process a lead can be subscribed into.
// Pipelines are never hard-deleted while entries reference them; they are
// soft-deactivated instead.
type Pipeline struct {
	PipelineID string                 `json:"pipeline_id"`
	Name       string                 `json:"name"`
	Active     bool                   `json:"active"`
	IsPrimary  bool                   `json:"is_primary"`
	CreatedAt  time.Time              `json:"created_at"`
	MetaData   map[string]interface{} `json:"meta_data,omitempty"`
}

// Stage is one ordered step of a pipeline. Ordinal values are unique per
// pipeline at rest; reorders go through a two-phase rewrite so readers never
// observe duplicates. A stage may declare an explicit successor which
// overrides ordinal order for advancement (supports cyclic follow-up flows).
type Stage struct {
	StageID          string                    `json:"stage_id"`
	PipelineID       string                    `json:"pipeline_id"`
	Name             string                    `json:"name"`
	Ordinal          int                       `json:"ordinal"`
	SLADurationDays  *int                      `json:"sla_duration_days,omitempty"`
	WIPLimit         *int                      `json:"wip_limit,omitempty"`
	SuccessorStageID string                    `json:"successor_stage_id,omitempty"`
	SLAAnchor        SLAAnchorMode             `json:"sla_anchor"`
	AutoAppointment  bool                      `json:"auto_appointment"`
	ApptDurationMins int                       `json:"appointment_duration_minutes,omitempty"`
	NextStepLabel    string                    `json:"next_step_label,omitempty"`
	Checklist        []ChecklistItemDefinition `json:"checklist,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	MetaData         map[string]interface{}    `json:"meta_data,omitempty"`
}

// ChecklistItemDefinition is a criteria item attached to a stage. Mandatory
// items gate advancement out of the stage; optional items never block.
type ChecklistItemDefinition struct {
	ItemID    string `json:"item_id"`
	StageID   string `json:"stage_id"`
	Title     string `json:"title"`
	Ordinal   int    `json:"ordinal"`
	Mandatory bool   `json:"mandatory"`
	Active    bool   `json:"active"`
}

// MandatoryItems returns the active mandatory checklist definitions of a stage.
func (s *Stage) MandatoryItems() []ChecklistItemDefinition {
	var items []ChecklistItemDefinition
	for _, item := range s.Checklist {
		if item.Mandatory && item.Active {
			items = append(items, item)
		}
	}
	return items
}
