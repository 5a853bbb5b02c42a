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

package pipeflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/internal/notification"
	"github.com/pipeflowhq/pipeflow/model"
)

// SubscribeLead creates an entry: the lead's live subscription to a pipeline.
// An empty StageID lands the lead in the pipeline's first stage. Entering a
// stage configured for auto-appointments emits the same automation request a
// movement would.
func (l *Pipeflow) SubscribeLead(ctx context.Context, entry model.Entry) (model.Entry, error) {
	ctx, span := tracer.Start(ctx, "Subscribing lead to pipeline")
	defer span.End()

	if entry.LeadID == "" {
		return model.Entry{}, errors.New("lead reference is required")
	}

	pipeline, err := l.datasource.GetPipelineByID(entry.PipelineID)
	if err != nil {
		return model.Entry{}, err
	}
	if !pipeline.Active {
		return model.Entry{}, apierror.NewAPIError(apierror.ErrBadRequest, "Pipeline is deactivated", nil)
	}

	graph, err := l.loadStageGraph(ctx, entry.PipelineID)
	if err != nil {
		return model.Entry{}, err
	}

	var stage *model.Stage
	if entry.StageID == "" {
		stage = graph.Stages()[0]
		entry.StageID = stage.StageID
	} else {
		stage = graph.Stage(entry.StageID)
		if stage == nil {
			return model.Entry{}, apierror.NewAPIError(apierror.ErrBadRequest,
				fmt.Sprintf("Stage %s does not belong to pipeline %s", entry.StageID, entry.PipelineID), nil)
		}
	}

	entry.StageEnteredAt = time.Now()
	entry.CurrentHealth = l.entryHealth(&entry, stage, graph.IsTerminal(stage.StageID))

	created, err := l.datasource.CreateEntry(ctx, entry)
	if err != nil {
		return model.Entry{}, logAndRecordError(span, "create entry error: ", err)
	}

	l.recordAudit(ctx, "entry", created.EntryID, "entry.subscribed", "", nil)
	l.dispatchAutomations(ctx, l.OnMoved(&created, stage))
	go func() {
		if err := SendWebhook(NewWebhook{Event: EventEntrySubscribed, Payload: created}); err != nil {
			notification.NotifyError(err)
		}
	}()

	return created, nil
}

// GetEntry retrieves an entry by ID.
func (l *Pipeflow) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	return l.datasource.GetEntryByID(ctx, id)
}

// GetEntriesForPipeline lists a pipeline's active entries.
func (l *Pipeflow) GetEntriesForPipeline(ctx context.Context, pipelineID string, limit, offset int) ([]*model.Entry, error) {
	return l.datasource.GetEntriesForPipeline(ctx, pipelineID, limit, offset)
}

// SetChecklistItem records a checklist item as done or not done on an entry.
// Checklist edits never change the current stage. The whole checklist document
// is merged and rewritten; concurrent togglers last-write-win per item map.
func (l *Pipeflow) SetChecklistItem(ctx context.Context, entryID, itemID string, done bool, actor string) (*model.Entry, error) {
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	stage, err := l.datasource.GetStageByID(ctx, entry.StageID)
	if err != nil {
		return nil, err
	}
	var known bool
	for _, item := range stage.Checklist {
		if item.ItemID == itemID {
			known = true
			break
		}
	}
	if !known {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Checklist item %s is not defined on stage %s", itemID, stage.StageID), nil)
	}

	if entry.Checklist == nil {
		entry.Checklist = make(map[string]bool)
	}
	previous := entry.Checklist[itemID]
	entry.Checklist[itemID] = done

	if err := l.datasource.UpdateEntryChecklist(ctx, entryID, entry.Checklist); err != nil {
		return nil, err
	}

	l.recordAudit(ctx, "entry", entryID, "entry.checklist_updated", actor, []model.FieldDiff{
		{Field: "checklist." + itemID, From: previous, To: done},
	})
	return entry, nil
}

// SetStageNote replaces the free-text note on an entry.
func (l *Pipeflow) SetStageNote(ctx context.Context, entryID, note, actor string) error {
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if err := l.datasource.UpdateEntryNote(ctx, entryID, note); err != nil {
		return err
	}
	l.recordAudit(ctx, "entry", entryID, "entry.note_updated", actor, []model.FieldDiff{
		{Field: "stage_note", From: entry.StageNote, To: note},
	})
	return nil
}

// LinkAppointment attaches an external appointment to an entry. In
// linked-appointment anchor mode the appointment's scheduled start becomes the
// SLA anchor.
func (l *Pipeflow) LinkAppointment(ctx context.Context, entryID, appointmentID string, scheduledFor time.Time, actor string) error {
	if appointmentID == "" {
		return errors.New("appointment reference is required")
	}
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if err := l.datasource.LinkAppointment(ctx, entryID, appointmentID, scheduledFor); err != nil {
		return err
	}
	l.recordAudit(ctx, "entry", entryID, "entry.appointment_linked", actor, []model.FieldDiff{
		{Field: "linked_appointment_id", From: entry.LinkedAppointmentID, To: appointmentID},
	})
	return nil
}

// ArchiveEntry unsubscribes a lead from its pipeline. Archival is terminal for
// the row.
func (l *Pipeflow) ArchiveEntry(ctx context.Context, entryID, actor string) error {
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status == model.StatusArchived {
		return apierror.NewAPIError(apierror.ErrConflict, "Entry is already archived", nil)
	}

	if err := l.datasource.ArchiveEntry(ctx, entryID); err != nil {
		return err
	}

	l.recordAudit(ctx, "entry", entryID, "entry.archived", actor, []model.FieldDiff{
		{Field: "status", From: model.StatusActive, To: model.StatusArchived},
	})
	go func() {
		if err := SendWebhook(NewWebhook{Event: EventEntryArchived, Payload: entry}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}

// TransferEntry moves a lead to another pipeline. Cross-pipeline movement is
// never a stage move: the source entry is archived and a fresh entry is
// created at the destination pipeline's first stage, with an empty checklist
// and a re-anchored SLA. The destination stage's mandatory checklist gate
// applies in hard mode.
func (l *Pipeflow) TransferEntry(ctx context.Context, entryID, toPipelineID, actor string) (*model.Entry, error) {
	ctx, span := tracer.Start(ctx, "Transferring entry to another pipeline")
	defer span.End()

	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status == model.StatusArchived {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Entry is already archived", nil)
	}
	if entry.PipelineID == toPipelineID {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Entry is already subscribed to this pipeline", nil)
	}

	// Leaving the current stage is gated hard on transfer: compliance
	// items must be complete before the lead leaves the pipeline.
	fromStage, err := l.datasource.GetStageByID(ctx, entry.StageID)
	if err != nil {
		return nil, logAndRecordError(span, "transfer source stage error: ", err)
	}
	if evaluation := model.EvaluateChecklist(entry, fromStage); !evaluation.Allowed {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("%d mandatory checklist items are incomplete", len(evaluation.MissingMandatory)), nil)
	}

	pipeline, err := l.datasource.GetPipelineByID(toPipelineID)
	if err != nil {
		return nil, err
	}
	if !pipeline.Active {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Destination pipeline is deactivated", nil)
	}

	if err := l.datasource.ArchiveEntry(ctx, entryID); err != nil {
		return nil, err
	}

	created, err := l.SubscribeLead(ctx, model.Entry{
		LeadID:     entry.LeadID,
		PipelineID: toPipelineID,
		MetaData:   entry.MetaData,
	})
	if err != nil {
		// The source entry is already archived; surface loudly so an
		// operator can resubscribe the lead.
		logrus.Errorf("transfer of %s archived the source but failed to create the destination entry: %v", entryID, err)
		return nil, logAndRecordError(span, "transfer create error: ", err)
	}

	l.recordAudit(ctx, "entry", entryID, "entry.transferred", actor, []model.FieldDiff{
		{Field: "pipeline_id", From: entry.PipelineID, To: toPipelineID},
		{Field: "entry_id", From: entryID, To: created.EntryID},
	})
	go func() {
		if err := SendWebhook(NewWebhook{Event: EventEntryTransferred, Payload: created}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return &created, nil
}
