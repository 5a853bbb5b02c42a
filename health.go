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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/internal/apierror"
	redlock "github.com/pipeflowhq/pipeflow/internal/lock"
	"github.com/pipeflowhq/pipeflow/model"
)

func (l *Pipeflow) entryHealth(entry *model.Entry, stage *model.Stage, terminal bool) model.Health {
	return l.health.Compute(entry, stage, terminal, time.Now()).Health
}

// RecomputeHealth recalculates an entry's urgency classification from its
// authoritative anchor timestamp and refreshes the cached projections
// (days-in-stage, days-overdue, health). Read-only callers get the snapshot;
// the projection write is what board reads sort and color by.
func (l *Pipeflow) RecomputeHealth(ctx context.Context, entryID string) (*model.HealthSnapshot, error) {
	entry, err := l.datasource.GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	graph, err := l.loadStageGraph(ctx, entry.PipelineID)
	if err != nil {
		return nil, err
	}
	stage := graph.Stage(entry.StageID)
	if stage == nil {
		return nil, fmt.Errorf("entry %s references stage %s outside pipeline %s", entryID, entry.StageID, entry.PipelineID)
	}

	snapshot := l.health.Compute(entry, stage, graph.IsTerminal(stage.StageID), time.Now())

	if entry.Status == model.StatusActive {
		err = l.datasource.UpdateEntryHealth(ctx, entryID, snapshot.DaysSinceAnchor, snapshot.DaysOverdue(), snapshot.Health)
		if err != nil {
			return nil, err
		}
	}
	return &snapshot, nil
}

// RefreshPipelineHealth walks a pipeline's active entries in batches and
// refreshes their cached health projections. Meant to run on a schedule; a
// single entry failing does not stop the sweep. A Redis lock keeps two sweeps
// of the same pipeline from running at once.
func (l *Pipeflow) RefreshPipelineHealth(ctx context.Context, pipelineID string) (int, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return 0, err
	}

	locker := redlock.NewLocker(l.redis, "pipeflow:health-refresh:"+pipelineID, model.GenerateUUIDWithSuffix("lock"))
	if err := locker.Lock(ctx, time.Minute); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Health refresh already running for pipeline %s", pipelineID), err)
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Warnf("health refresh unlock failed for %s: %v", pipelineID, err)
		}
	}()

	graph, err := l.loadStageGraph(ctx, pipelineID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	refreshed := 0
	batchSize := cfg.Health.RefreshBatchSize
	for offset := 0; ; offset += batchSize {
		entries, err := l.datasource.GetEntriesForPipeline(ctx, pipelineID, batchSize, offset)
		if err != nil {
			return refreshed, err
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			stage := graph.Stage(entry.StageID)
			if stage == nil {
				logrus.Errorf("entry %s references stage %s outside pipeline %s; skipping", entry.EntryID, entry.StageID, pipelineID)
				continue
			}
			snapshot := l.health.Compute(entry, stage, graph.IsTerminal(stage.StageID), now)
			if err := l.datasource.UpdateEntryHealth(ctx, entry.EntryID, snapshot.DaysSinceAnchor, snapshot.DaysOverdue(), snapshot.Health); err != nil {
				logrus.Errorf("health refresh failed for entry %s: %v", entry.EntryID, err)
				continue
			}
			refreshed++
		}

		if len(entries) < batchSize {
			break
		}
	}
	return refreshed, nil
}

// StageOccupancy returns the number of active entries in a stage, served from
// a short-lived cache. The count is advisory: WIP checks read it without any
// transactional tie to concurrent moves, so a small bounded overshoot under
// load is expected.
func (l *Pipeflow) StageOccupancy(ctx context.Context, stageID string) (int, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return 0, err
	}

	key := "pipeflow:occupancy:" + stageID
	cached := -1
	if err := l.occupancy.Get(ctx, key, &cached); err != nil {
		logrus.Warnf("occupancy cache read failed for %s: %v", stageID, err)
	}
	if cached >= 0 {
		return cached, nil
	}

	count, err := l.datasource.CountEntriesInStage(ctx, stageID)
	if err != nil {
		return 0, err
	}

	ttl := time.Duration(cfg.Health.OccupancyCacheTTLSec) * time.Second
	if err := l.occupancy.Set(ctx, key, count, ttl); err != nil {
		logrus.Warnf("occupancy cache write failed for %s: %v", stageID, err)
	}
	return count, nil
}
