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
	"errors"
	"fmt"
	"time"

	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/model"
)

// CreateStage appends or inserts a stage into a pipeline. When Ordinal is
// zero the stage is appended after the current last ordinal; an explicit
// ordinal that collides with an existing stage triggers an insert: every stage
// at or after that position is shifted down by one through a full reorder.
func (l *Pipeflow) CreateStage(ctx context.Context, stage model.Stage) (model.Stage, error) {
	if stage.Name == "" {
		return model.Stage{}, errors.New("stage name is required")
	}
	if stage.PipelineID == "" {
		return model.Stage{}, errors.New("pipeline reference is required")
	}
	if stage.SLADurationDays != nil && *stage.SLADurationDays <= 0 {
		return model.Stage{}, errors.New("sla duration must be positive when set")
	}
	if stage.WIPLimit != nil && *stage.WIPLimit <= 0 {
		return model.Stage{}, errors.New("wip limit must be positive when set")
	}

	pipeline, err := l.datasource.GetPipelineByID(stage.PipelineID)
	if err != nil {
		return model.Stage{}, err
	}
	if !pipeline.Active {
		return model.Stage{}, apierror.NewAPIError(apierror.ErrBadRequest, "Cannot add stages to a deactivated pipeline", nil)
	}

	existing, err := l.datasource.GetStagesForPipeline(ctx, stage.PipelineID)
	if err != nil {
		return model.Stage{}, err
	}

	insertAt := -1
	if stage.Ordinal <= 0 {
		stage.Ordinal = len(existing) + 1
	} else {
		for i, s := range existing {
			if s.Ordinal >= stage.Ordinal {
				insertAt = i
				break
			}
		}
		if insertAt >= 0 {
			// Park the new stage past the end, then reorder into place.
			stage.Ordinal = len(existing) + 1
		}
	}

	created, err := l.datasource.CreateStage(ctx, stage)
	if err != nil {
		return model.Stage{}, err
	}

	if insertAt >= 0 {
		orderedIDs := make([]string, 0, len(existing)+1)
		for i, s := range existing {
			if i == insertAt {
				orderedIDs = append(orderedIDs, created.StageID)
			}
			orderedIDs = append(orderedIDs, s.StageID)
		}
		if err := l.datasource.ReorderStages(ctx, stage.PipelineID, orderedIDs); err != nil {
			return model.Stage{}, err
		}
	}

	l.invalidateStageGraph(ctx, stage.PipelineID)
	l.recordAudit(ctx, "stage", created.StageID, "stage.created", "", nil)

	return l.refreshStage(ctx, created)
}

func (l *Pipeflow) refreshStage(ctx context.Context, stage model.Stage) (model.Stage, error) {
	fresh, err := l.datasource.GetStageByID(ctx, stage.StageID)
	if err != nil {
		return stage, nil
	}
	return *fresh, nil
}

// GetStageByID retrieves a stage with its checklist definitions.
func (l *Pipeflow) GetStageByID(ctx context.Context, id string) (*model.Stage, error) {
	return l.datasource.GetStageByID(ctx, id)
}

// GetStagesForPipeline returns a pipeline's stages in ordinal order.
func (l *Pipeflow) GetStagesForPipeline(ctx context.Context, pipelineID string) ([]*model.Stage, error) {
	return l.datasource.GetStagesForPipeline(ctx, pipelineID)
}

// UpdateStage updates a stage's configuration. The ordinal is not editable
// here; use ReorderStages so ordinals stay a contiguous permutation.
func (l *Pipeflow) UpdateStage(ctx context.Context, stage *model.Stage) error {
	if stage.Name == "" {
		return errors.New("stage name is required")
	}
	if stage.SuccessorStageID != "" {
		successor, err := l.datasource.GetStageByID(ctx, stage.SuccessorStageID)
		if err != nil {
			return err
		}
		if successor.PipelineID != stage.PipelineID {
			return apierror.NewAPIError(apierror.ErrBadRequest, "Successor stage belongs to another pipeline", nil)
		}
	}

	if err := l.datasource.UpdateStage(ctx, stage); err != nil {
		return err
	}
	l.invalidateStageGraph(ctx, stage.PipelineID)
	l.recordAudit(ctx, "stage", stage.StageID, "stage.updated", "", nil)
	return nil
}

// ReorderStages rewrites a pipeline's stage order. The given IDs must be an
// exact permutation of the pipeline's stages.
func (l *Pipeflow) ReorderStages(ctx context.Context, pipelineID string, orderedStageIDs []string) error {
	existing, err := l.datasource.GetStagesForPipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	if len(orderedStageIDs) != len(existing) {
		return apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Reorder must list all %d stages of the pipeline", len(existing)), nil)
	}
	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[s.StageID] = true
	}
	seen := make(map[string]bool, len(orderedStageIDs))
	for _, id := range orderedStageIDs {
		if !known[id] {
			return apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Stage %s does not belong to pipeline %s", id, pipelineID), nil)
		}
		if seen[id] {
			return apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Stage %s listed twice", id), nil)
		}
		seen[id] = true
	}

	if err := l.datasource.ReorderStages(ctx, pipelineID, orderedStageIDs); err != nil {
		return err
	}
	l.invalidateStageGraph(ctx, pipelineID)
	l.recordAudit(ctx, "pipeline", pipelineID, "pipeline.stages_reordered", "", nil)
	return nil
}

// loadStageGraph builds the immutable stage view of a pipeline, served from a
// short-lived Redis cache. Stage mutations invalidate it via
// invalidateStageGraph; the TTL bounds staleness for mutations made by other
// nodes.
func (l *Pipeflow) loadStageGraph(ctx context.Context, pipelineID string) (*model.StageGraph, error) {
	if l.redis != nil {
		cached, err := l.redis.Get(ctx, stageGraphCacheKey(pipelineID)).Bytes()
		if err == nil {
			var stages []*model.Stage
			if err := json.Unmarshal(cached, &stages); err == nil && len(stages) > 0 {
				return model.NewStageGraph(pipelineID, stages), nil
			}
		}
	}

	stages, err := l.datasource.GetStagesForPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Pipeline %s has no stages", pipelineID), nil)
	}

	if l.redis != nil {
		if payload, err := json.Marshal(stages); err == nil {
			l.redis.Set(ctx, stageGraphCacheKey(pipelineID), payload, time.Minute)
		}
	}
	return model.NewStageGraph(pipelineID, stages), nil
}

func (l *Pipeflow) invalidateStageGraph(ctx context.Context, pipelineID string) {
	if l.redis == nil {
		return
	}
	l.redis.Del(ctx, stageGraphCacheKey(pipelineID))
}

func stageGraphCacheKey(pipelineID string) string {
	return "pipeflow:stage-graph:" + pipelineID
}
