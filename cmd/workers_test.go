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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipeflowhq/pipeflow/config"
)

func TestInitializeWorkerServer(t *testing.T) {
	conf := &config.Configuration{
		Redis: config.RedisConfig{
			Dns:           "localhost:6379",
			SkipTLSVerify: true,
		},
	}

	srv, err := initializeWorkerServer(conf, map[string]int{"new:webhook": 3})
	assert.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestInitializeWorkerServer_BadRedisURL(t *testing.T) {
	conf := &config.Configuration{
		Redis: config.RedisConfig{Dns: "redis://[::1]:namedport"},
	}

	_, err := initializeWorkerServer(conf, nil)
	assert.Error(t, err)
}

func TestInitializeQueues_PrioritiesFavorWebhooks(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
		Queue: config.QueueConfig{
			WebhookQueue:     "new:webhook",
			AutomationQueue:  "new:automation",
			SlaReminderQueue: "new:sla-reminder",
		},
	})

	queues := initializeQueues()
	assert.Equal(t, 3, queues["new:webhook"])
	assert.Equal(t, 2, queues["new:automation"])
	assert.Equal(t, 1, queues["new:sla-reminder"])
}
