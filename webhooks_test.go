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
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/model"
)

func webhookTask(t *testing.T, event string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(NewWebhook{
		Event: event,
		Payload: model.Entry{
			EntryID: "ent_wh1",
			LeadID:  gofakeit.UUID(),
			StageID: "stg_1",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask("new:webhook", payload)
}

func TestProcessWebhook_Delivers(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
		Notification: config.Notification{
			Webhook: struct {
				Url     string            `json:"url"`
				Headers map[string]string `json:"headers"`
			}{Url: "http://example.com/webhook"},
		},
	})

	httpmock.RegisterResponder("POST", "http://example.com/webhook",
		httpmock.NewStringResponder(200, `{"received": true}`))

	err := ProcessWebhook(context.Background(), webhookTask(t, EventEntryMoved))
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessWebhook_RetriesServerErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
		Notification: config.Notification{
			Webhook: struct {
				Url     string            `json:"url"`
				Headers map[string]string `json:"headers"`
			}{Url: "http://example.com/webhook"},
		},
	})

	httpmock.RegisterResponder("POST", "http://example.com/webhook",
		httpmock.NewStringResponder(500, `{"error": "unavailable"}`))

	err := ProcessWebhook(context.Background(), webhookTask(t, EventMovementDenied))
	assert.Error(t, err)
	// initial attempt plus three retries
	assert.Equal(t, 4, httpmock.GetTotalCallCount())
}

func TestProcessWebhook_ClientErrorsAreDropped(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
		Notification: config.Notification{
			Webhook: struct {
				Url     string            `json:"url"`
				Headers map[string]string `json:"headers"`
			}{Url: "http://example.com/webhook"},
		},
	})

	httpmock.RegisterResponder("POST", "http://example.com/webhook",
		httpmock.NewStringResponder(400, `{"error": "bad payload"}`))

	// 4XX is not transient: logged, dropped, no retry.
	err := ProcessWebhook(context.Background(), webhookTask(t, EventEntryArchived))
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSendWebhook_DisabledWithoutURL(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
	})

	err := SendWebhook(NewWebhook{Event: EventEntrySubscribed, Payload: map[string]interface{}{"entry_id": "ent_1"}})
	assert.NoError(t, err)
}
