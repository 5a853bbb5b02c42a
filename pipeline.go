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

	"github.com/pipeflowhq/pipeflow/model"
)

// CreatePipeline creates a new pipeline. A pipeline flagged primary demotes
// any existing primary.
func (l *Pipeflow) CreatePipeline(ctx context.Context, pipeline model.Pipeline) (model.Pipeline, error) {
	if pipeline.Name == "" {
		return model.Pipeline{}, errors.New("pipeline name is required")
	}
	pipeline.Active = true

	created, err := l.datasource.CreatePipeline(pipeline)
	if err != nil {
		return model.Pipeline{}, err
	}

	l.recordAudit(ctx, "pipeline", created.PipelineID, "pipeline.created", "", nil)
	return created, nil
}

// GetPipelineByID retrieves a pipeline by its ID.
func (l *Pipeflow) GetPipelineByID(id string) (*model.Pipeline, error) {
	return l.datasource.GetPipelineByID(id)
}

// GetAllPipelines retrieves pipelines with pagination.
func (l *Pipeflow) GetAllPipelines(limit, offset int) ([]model.Pipeline, error) {
	return l.datasource.GetAllPipelines(limit, offset)
}

// UpdatePipeline updates a pipeline's name and flags.
func (l *Pipeflow) UpdatePipeline(ctx context.Context, pipeline *model.Pipeline) error {
	if pipeline.Name == "" {
		return errors.New("pipeline name is required")
	}
	if err := l.datasource.UpdatePipeline(pipeline); err != nil {
		return err
	}
	l.recordAudit(ctx, "pipeline", pipeline.PipelineID, "pipeline.updated", "", nil)
	return nil
}

// DeactivatePipeline soft-deactivates a pipeline. Entries referencing it stay
// readable; no new subscriptions are accepted.
func (l *Pipeflow) DeactivatePipeline(ctx context.Context, id string) error {
	if err := l.datasource.DeactivatePipeline(id); err != nil {
		return err
	}
	l.invalidateStageGraph(ctx, id)
	l.recordAudit(ctx, "pipeline", id, "pipeline.deactivated", "", nil)
	return nil
}
