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

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipeflowhq/pipeflow/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func validateDateFormat(format, value string) error {
	_, err := time.Parse(format, value)
	if err != nil {
		return errors.New("please format the date as 'YYYY-MM-DDTHH:MM:SS+00:00' (e.g., 2024-04-22T15:28:03+00:00)")
	}
	return nil
}

func gateModeValidation() []validation.Rule {
	return []validation.Rule{
		validation.In(string(model.GateSoft), string(model.GateHard)),
	}
}

func (p *CreatePipeline) ValidateCreatePipeline() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
	)
}

func (p *UpdatePipeline) ValidateUpdatePipeline() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required),
	)
}

func (s *CreateStage) ValidateCreateStage() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.PipelineID, validation.Required),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.SLAAnchor, validation.In(string(model.AnchorStageEntry), string(model.AnchorLinkedAppointment))),
	)
}

func (s *UpdateStage) ValidateUpdateStage() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.SLAAnchor, validation.In(string(model.AnchorStageEntry), string(model.AnchorLinkedAppointment))),
	)
}

func (r *ReorderStages) ValidateReorderStages() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.OrderedStageIDs, validation.Required, validation.Length(1, 0)),
	)
}

func (s *SubscribeLead) ValidateSubscribeLead() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.LeadID, validation.Required),
		validation.Field(&s.PipelineID, validation.Required),
	)
}

func (c *SetChecklistItem) ValidateSetChecklistItem() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Done, validation.NotNil),
	)
}

func (a *LinkAppointment) ValidateLinkAppointment() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.AppointmentID, validation.Required),
		validation.Field(&a.ScheduledFor, validation.Required, validation.By(func(value interface{}) error {
			dateStr, ok := value.(string)
			if !ok {
				return errors.New("invalid type for scheduled date")
			}
			return validateDateFormat("2006-01-02T15:04:05Z07:00", dateStr)
		})),
	)
}

func (t *TransferEntry) ValidateTransferEntry() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.ToPipelineID, validation.Required),
	)
}

func (m *MoveEntry) ValidateMoveEntry() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.ToStageID, validation.Required),
		validation.Field(&m.GateMode, gateModeValidation()...),
	)
}

func (a *AdvanceEntry) ValidateAdvanceEntry() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.GateMode, gateModeValidation()...),
	)
}

func (j *JumpEntry) ValidateJumpEntry() error {
	return validation.ValidateStruct(j,
		validation.Field(&j.ToStageID, validation.Required),
		validation.Field(&j.GateMode, gateModeValidation()...),
	)
}

func (p *CreatePipeline) ToPipeline() model.Pipeline {
	return model.Pipeline{Name: p.Name, IsPrimary: p.IsPrimary, MetaData: p.MetaData}
}

func (s *CreateStage) ToStage() model.Stage {
	anchor := model.SLAAnchorMode(s.SLAAnchor)
	if anchor == "" {
		anchor = model.AnchorStageEntry
	}
	return model.Stage{
		PipelineID:       s.PipelineID,
		Name:             s.Name,
		Ordinal:          s.Ordinal,
		SLADurationDays:  s.SLADurationDays,
		WIPLimit:         s.WIPLimit,
		SuccessorStageID: s.SuccessorStageID,
		SLAAnchor:        anchor,
		AutoAppointment:  s.AutoAppointment,
		ApptDurationMins: s.ApptDurationMins,
		NextStepLabel:    s.NextStepLabel,
		Checklist:        toChecklistDefinitions(s.Checklist),
		MetaData:         s.MetaData,
	}
}

func toChecklistDefinitions(items []ChecklistItem) []model.ChecklistItemDefinition {
	var definitions []model.ChecklistItemDefinition
	for _, item := range items {
		active := true
		if item.Active != nil {
			active = *item.Active
		}
		definitions = append(definitions, model.ChecklistItemDefinition{
			ItemID:    item.ItemID,
			Title:     item.Title,
			Ordinal:   item.Ordinal,
			Mandatory: item.Mandatory,
			Active:    active,
		})
	}
	return definitions
}

func (s *SubscribeLead) ToEntry() model.Entry {
	return model.Entry{LeadID: s.LeadID, PipelineID: s.PipelineID, StageID: s.StageID, MetaData: s.MetaData}
}

func (m *MoveEntry) ToMovementRequest(entryID string) *model.MovementRequest {
	return &model.MovementRequest{
		EntryID:     entryID,
		FromStageID: m.FromStageID,
		ToStageID:   m.ToStageID,
		Actor:       m.Actor,
		GateMode:    model.GateMode(m.GateMode),
	}
}

func (a *LinkAppointment) ScheduledForTime() time.Time {
	scheduled, err := time.Parse("2006-01-02T15:04:05Z07:00", a.ScheduledFor)
	if err != nil {
		logrus.Error(err)
	}
	return scheduled
}
