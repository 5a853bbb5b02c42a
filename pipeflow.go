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
	"embed"
	"fmt"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/database"
	"github.com/pipeflowhq/pipeflow/internal/cache"
	redis_db "github.com/pipeflowhq/pipeflow/internal/redis-db"
	"github.com/pipeflowhq/pipeflow/model"
	"github.com/redis/go-redis/v9"
)

// Pipeflow is the stage-movement engine. It composes the stage graph,
// checklist gate, health calculator and the movement validator/executor over
// one datasource.
type Pipeflow struct {
	queue      *Queue
	redis      redis.UniversalClient
	occupancy  cache.Cache
	datasource database.IDataSource
	health     *model.HealthCalculator
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewPipeflow initializes the engine with the provided datasource. It fetches
// the configuration and wires the Redis client, task queue and health
// calculator.
func NewPipeflow(db database.IDataSource) (*Pipeflow, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	occupancyCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	calculator := model.NewHealthCalculator(configuration.Health.YellowThresholdRatio)

	newPipeflow := &Pipeflow{datasource: db, queue: newQueue, redis: redisClient.Client(), occupancy: occupancyCache, health: calculator}
	return newPipeflow, nil
}
