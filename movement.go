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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/internal/notification"
	"github.com/pipeflowhq/pipeflow/model"
)

var (
	tracer = otel.Tracer("Movement engine")
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// movementDecision is the validator's verdict on one movement request.
// Denials are business outcomes; warnings accompany an allowed move.
type movementDecision struct {
	allowed      bool
	reason       model.DenyReason
	message      string
	warnings     []model.MovementWarning
	missingItems []model.ChecklistItemDefinition
}

func denied(reason model.DenyReason, message string) movementDecision {
	return movementDecision{reason: reason, message: message}
}

// validateMovement runs the ordered movement checks. First failure wins:
//  1. from != to, else NoOpMove.
//  2. both stages belong to the entry's pipeline, else CrossPipelineMove.
//  3. destination WIP limit: advisory, surfaces WipLimitExceeded as a warning
//     and never blocks.
//  4. checklist gate of the source stage, in the caller's mode: hard denies,
//     soft warns.
func (l *Pipeflow) validateMovement(ctx context.Context, entry *model.Entry, graph *model.StageGraph, request *model.MovementRequest) movementDecision {
	if request.FromStageID == request.ToStageID {
		return denied(model.NoOpMove, "Entry is already in the requested stage")
	}

	fromStage := graph.Stage(request.FromStageID)
	toStage := graph.Stage(request.ToStageID)
	if fromStage == nil || toStage == nil {
		return denied(model.CrossPipelineMove, "Both stages must belong to the entry's pipeline; use a transfer to change pipelines")
	}

	decision := movementDecision{allowed: true}

	if toStage.WIPLimit != nil {
		occupancy, err := l.StageOccupancy(ctx, toStage.StageID)
		if err != nil {
			// Advisory check: an unavailable count must not block a move.
			logrus.Warnf("wip occupancy check failed for %s: %v", toStage.StageID, err)
		} else if occupancy+1 > *toStage.WIPLimit {
			decision.warnings = append(decision.warnings, model.MovementWarning{
				Reason:  model.WipLimitExceeded,
				Message: fmt.Sprintf("Stage %s holds %d of %d entries", toStage.Name, occupancy, *toStage.WIPLimit),
			})
		}
	}

	evaluation := model.EvaluateChecklist(entry, fromStage)
	if !evaluation.Allowed {
		if request.GateMode == model.GateHard {
			return movementDecision{
				reason:       model.ChecklistIncomplete,
				message:      fmt.Sprintf("%d mandatory checklist items are incomplete", len(evaluation.MissingMandatory)),
				missingItems: evaluation.MissingMandatory,
			}
		}
		decision.warnings = append(decision.warnings, model.MovementWarning{
			Reason:  model.ChecklistIncomplete,
			Message: fmt.Sprintf("%d mandatory checklist items are incomplete", len(evaluation.MissingMandatory)),
		})
		decision.missingItems = evaluation.MissingMandatory
	}

	return decision
}

// executeMovement persists an allowed movement and emits its side effects.
// The write is a single-row atomic update; last write wins on the stage
// pointer. A persistence timeout yields outcome UNKNOWN so the caller
// re-queries state instead of assuming the move did not happen. Automation
// and audit are best-effort: they never roll back an applied move.
func (l *Pipeflow) executeMovement(ctx context.Context, entry *model.Entry, graph *model.StageGraph, request *model.MovementRequest, decision movementDecision) (*model.MovementResult, error) {
	ctx, span := tracer.Start(ctx, "Executing stage movement")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	toStage := graph.Stage(request.ToStageID)
	enteredAt := time.Now()
	newHealth := model.HealthGreen
	if toStage.SLADurationDays == nil || graph.IsTerminal(toStage.StageID) {
		newHealth = ""
	}

	persistCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Movement.TimeoutSeconds)*time.Second)
	defer cancel()

	err = l.datasource.UpdateEntryStage(persistCtx, entry.EntryID, toStage.StageID, enteredAt, newHealth)
	if err != nil {
		if isTimeout(err) {
			span.RecordError(err)
			return &model.MovementResult{
				Outcome:      model.OutcomeUnknown,
				Message:      "Persistence timed out; re-query the entry before retrying",
				Warnings:     decision.warnings,
				MissingItems: decision.missingItems,
			}, nil
		}
		return nil, logAndRecordError(span, "movement persist error: ", err)
	}

	moved := *entry
	moved.StageID = toStage.StageID
	moved.StageEnteredAt = enteredAt
	moved.DaysInStage = 0
	moved.DaysOverdue = 0
	moved.CurrentHealth = newHealth

	l.recordAudit(ctx, "entry", entry.EntryID, "entry.moved", request.Actor, []model.FieldDiff{
		{Field: "stage_id", From: request.FromStageID, To: toStage.StageID},
	})

	automations := l.OnMoved(&moved, toStage)
	l.dispatchAutomations(ctx, automations)

	go func() {
		if err := SendWebhook(NewWebhook{Event: EventEntryMoved, Payload: moved}); err != nil {
			notification.NotifyError(err)
		}
	}()

	return &model.MovementResult{
		Outcome:      model.OutcomeApplied,
		Warnings:     decision.warnings,
		MissingItems: decision.missingItems,
		Automations:  automations,
		Entry:        &moved,
	}, nil
}

// RequestMove validates and executes a movement between two stages of the
// entry's pipeline. Denials are returned as results, never as errors; errors
// are reserved for store failures and integrity violations. Retrying an
// already-applied request denies with NoOpMove, which makes retries safe.
func (l *Pipeflow) RequestMove(ctx context.Context, request *model.MovementRequest) (*model.MovementResult, error) {
	ctx, span := tracer.Start(ctx, "Requesting stage movement")
	defer span.End()

	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now()
	}
	if request.GateMode == "" {
		request.GateMode = model.GateSoft
	}

	// Fresh read guards against stale client state: the entry's current
	// stage, not the caller's belief, is what moves.
	entry, err := l.datasource.GetEntryByID(ctx, request.EntryID)
	if err != nil {
		return nil, logAndRecordError(span, "movement entry read error: ", err)
	}
	if entry.Status == model.StatusArchived {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Entry is archived", nil)
	}
	if request.FromStageID == "" {
		request.FromStageID = entry.StageID
	}
	if entry.StageID != request.FromStageID {
		// The client lost a race; its from-stage is stale. The no-op
		// precheck against the actual stage keeps retries idempotent.
		request.FromStageID = entry.StageID
	}

	graph, err := l.loadStageGraph(ctx, entry.PipelineID)
	if err != nil {
		return nil, logAndRecordError(span, "movement stage graph error: ", err)
	}
	if graph.Stage(entry.StageID) == nil {
		// Integrity violation: the entry points at a stage outside its
		// pipeline. Operator attention, not a retry.
		err := apierror.NewAPIError(apierror.ErrInternalServer,
			fmt.Sprintf("Entry %s references stage %s which is not part of pipeline %s", entry.EntryID, entry.StageID, entry.PipelineID), nil)
		return nil, logAndRecordError(span, "movement integrity error: ", err)
	}

	decision := l.validateMovement(ctx, entry, graph, request)
	if !decision.allowed {
		go func() {
			if err := SendWebhook(NewWebhook{Event: EventMovementDenied, Payload: map[string]interface{}{
				"entry_id": entry.EntryID,
				"reason":   decision.reason,
				"message":  decision.message,
			}}); err != nil {
				notification.NotifyError(err)
			}
		}()
		return &model.MovementResult{
			Outcome:      model.OutcomeDenied,
			Reason:       decision.reason,
			Message:      decision.message,
			MissingItems: decision.missingItems,
			Entry:        entry,
		}, nil
	}

	return l.executeMovement(ctx, entry, graph, request, decision)
}

// RequestAdvance moves an entry to its stage's advancement target: the
// explicit successor when declared (supporting cyclic flows), otherwise the
// next ordinal stage. A terminal stage denies with NoNextStage.
func (l *Pipeflow) RequestAdvance(ctx context.Context, entryID, actor string, mode model.GateMode) (*model.MovementResult, error) {
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	graph, err := l.loadStageGraph(ctx, entry.PipelineID)
	if err != nil {
		return nil, err
	}

	next := graph.NextStage(entry.StageID)
	if next == nil {
		return &model.MovementResult{
			Outcome: model.OutcomeDenied,
			Reason:  model.NoNextStage,
			Message: "Stage has no advancement target",
			Entry:   entry,
		}, nil
	}

	return l.RequestMove(ctx, &model.MovementRequest{
		EntryID:     entryID,
		FromStageID: entry.StageID,
		ToStageID:   next.StageID,
		Actor:       actor,
		GateMode:    mode,
	})
}

// RequestJump moves an entry to an arbitrary stage of its pipeline, adjacent
// or not. Same validator and executor as RequestMove.
func (l *Pipeflow) RequestJump(ctx context.Context, entryID, targetStageID, actor string, mode model.GateMode) (*model.MovementResult, error) {
	return l.RequestMove(ctx, &model.MovementRequest{
		EntryID:   entryID,
		ToStageID: targetStageID,
		Actor:     actor,
		GateMode:  mode,
	})
}

// RequestRevert moves an entry back to the ordinal-previous stage, ignoring
// explicit successors (there is no cyclic "previous"). Reverts gate softly:
// going backwards is never blocked by an incomplete checklist. The reason is
// kept in the audit trail.
func (l *Pipeflow) RequestRevert(ctx context.Context, entryID, reason, actor string) (*model.MovementResult, error) {
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	graph, err := l.loadStageGraph(ctx, entry.PipelineID)
	if err != nil {
		return nil, err
	}

	previous := graph.PreviousStage(entry.StageID)
	if previous == nil {
		return &model.MovementResult{
			Outcome: model.OutcomeDenied,
			Reason:  model.NoNextStage,
			Message: "Entry is already in the first stage",
			Entry:   entry,
		}, nil
	}

	result, err := l.RequestMove(ctx, &model.MovementRequest{
		EntryID:     entryID,
		FromStageID: entry.StageID,
		ToStageID:   previous.StageID,
		Actor:       actor,
		GateMode:    model.GateSoft,
	})
	if err != nil {
		return nil, err
	}
	if result.Applied() && reason != "" {
		l.recordAudit(ctx, "entry", entryID, "entry.reverted", actor, []model.FieldDiff{
			{Field: "revert_reason", From: nil, To: reason},
		})
	}
	return result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	apiErr, ok := err.(apierror.APIError)
	return ok && apiErr.Code == apierror.ErrTimeout
}
