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
	"time"

	"github.com/pipeflowhq/pipeflow/config"
	redis_db "github.com/pipeflowhq/pipeflow/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/pipeflowhq/pipeflow/model"
)

// Queue carries the deferred work of the engine: automation requests and SLA
// reminders emitted after movements.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueAutomation enqueues one automation request for its external
// collaborator. SLA reminders are scheduled to fire at the deadline via
// ProcessIn; everything else is delivered immediately.
func (q *Queue) EnqueueAutomation(ctx context.Context, request model.AutomationRequest) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	queueName := cfg.Queue.AutomationQueue
	taskOptions := []asynq.Option{
		asynq.TaskID(request.RequestID),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	if request.Type == model.ScheduleSlaReminder && !request.Deadline.IsZero() {
		queueName = cfg.Queue.SlaReminderQueue
		taskOptions = append(taskOptions, asynq.ProcessIn(time.Until(request.Deadline)))
	}
	taskOptions = append(taskOptions, asynq.Queue(queueName))

	task := asynq.NewTask(queueName, payload, taskOptions...)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued automation request: %s %s", request.Type, request.RequestID)
	return nil
}

// GetAutomationFromQueue retrieves a pending automation request by its ID.
func (q *Queue) GetAutomationFromQueue(requestID string) (*model.AutomationRequest, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	for _, queueName := range []string{cfg.Queue.AutomationQueue, cfg.Queue.SlaReminderQueue} {
		task, err := q.Inspector.GetTaskInfo(queueName, requestID)
		if err == nil && task != nil {
			var request model.AutomationRequest
			if err := json.Unmarshal(task.Payload, &request); err != nil {
				return nil, err
			}
			return &request, nil
		}
	}
	return nil, nil
}
