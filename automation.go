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
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/internal/notification"
	"github.com/pipeflowhq/pipeflow/internal/request"
	"github.com/pipeflowhq/pipeflow/model"
)

// OnMoved interprets a completed movement and decides which deferred actions
// to request from the stage the entry just entered. These are requests, not
// executed actions: fulfillment belongs to external collaborators so the core
// stays side-effect free.
func (l *Pipeflow) OnMoved(entry *model.Entry, toStage *model.Stage) []model.AutomationRequest {
	var requests []model.AutomationRequest

	if toStage.AutoAppointment {
		requests = append(requests, model.AutomationRequest{
			RequestID:       model.GenerateUUIDWithSuffix("aut"),
			Type:            model.CreateAppointment,
			EntryID:         entry.EntryID,
			LeadID:          entry.LeadID,
			StageID:         toStage.StageID,
			DurationMinutes: toStage.ApptDurationMins,
			ScheduledFor:    model.NextBusinessSlot(entry.StageEnteredAt),
		})
	}

	if toStage.NextStepLabel != "" {
		requests = append(requests, model.AutomationRequest{
			RequestID: model.GenerateUUIDWithSuffix("aut"),
			Type:      model.SuggestNextStep,
			EntryID:   entry.EntryID,
			LeadID:    entry.LeadID,
			StageID:   toStage.StageID,
			Label:     toStage.NextStepLabel,
		})
	}

	if toStage.SLADurationDays != nil {
		requests = append(requests, model.AutomationRequest{
			RequestID: model.GenerateUUIDWithSuffix("aut"),
			Type:      model.ScheduleSlaReminder,
			EntryID:   entry.EntryID,
			LeadID:    entry.LeadID,
			StageID:   toStage.StageID,
			Deadline:  entry.StageEnteredAt.AddDate(0, 0, *toStage.SLADurationDays),
		})
	}

	return requests
}

// dispatchAutomations enqueues automation requests. Failures are reported and
// dropped: automation is best-effort and never rolls back an applied move.
func (l *Pipeflow) dispatchAutomations(ctx context.Context, requests []model.AutomationRequest) {
	for _, req := range requests {
		if err := l.queue.EnqueueAutomation(ctx, req); err != nil {
			logrus.Errorf("failed to enqueue automation %s (%s): %v", req.RequestID, req.Type, err)
			notification.NotifyError(err)
		}
	}
}

// GetQueuedAutomation looks up an automation request that is still waiting in
// the queue, by request ID. A request already delivered (or never enqueued)
// yields nil; the audit trail remains the durable record.
func (l *Pipeflow) GetQueuedAutomation(requestID string) (*model.AutomationRequest, error) {
	return l.queue.GetAutomationFromQueue(requestID)
}

// ProcessAutomation delivers a queued automation request to the configured
// automation endpoint. With no endpoint configured, requests are consumed
// silently; they remain observable through the movement result and audit
// trail.
func ProcessAutomation(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	var automationRequest model.AutomationRequest
	if err := json.Unmarshal(task.Payload(), &automationRequest); err != nil {
		log.Printf("Error unmarshaling automation payload: %v", err)
		return err
	}

	if conf.Automation.Url == "" {
		return nil
	}

	payload, err := request.ToJsonReq(automationRequest)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", conf.Automation.Url, payload)
	if err != nil {
		return err
	}
	for key, value := range conf.Automation.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Automation delivery for %s failed with status code: %d", automationRequest.RequestID, resp.StatusCode)
	}
	return nil
}

// ProcessSlaReminder fires when a queued SLA reminder reaches its deadline.
// The entry's health is recomputed first; a reminder for an entry that
// already left the stage is dropped.
func (l *Pipeflow) ProcessSlaReminder(ctx context.Context, task *asynq.Task) error {
	var automationRequest model.AutomationRequest
	if err := json.Unmarshal(task.Payload(), &automationRequest); err != nil {
		log.Printf("Error unmarshaling SLA reminder payload: %v", err)
		return err
	}

	entry, err := l.datasource.GetEntryByID(ctx, automationRequest.EntryID)
	if err != nil {
		return err
	}
	if entry.Status != model.StatusActive || entry.StageID != automationRequest.StageID {
		log.Printf("Dropping stale SLA reminder %s: entry %s left stage %s",
			automationRequest.RequestID, automationRequest.EntryID, automationRequest.StageID)
		return nil
	}

	snapshot, err := l.RecomputeHealth(ctx, entry.EntryID)
	if err != nil {
		return err
	}

	go func() {
		if err := SendWebhook(NewWebhook{Event: "entry.sla_due", Payload: map[string]interface{}{
			"entry_id": entry.EntryID,
			"lead_id":  entry.LeadID,
			"stage_id": entry.StageID,
			"health":   snapshot.Health,
			"deadline": automationRequest.Deadline.Format(time.RFC3339),
		}}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}
