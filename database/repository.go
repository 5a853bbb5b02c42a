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

package database

import (
	"context"
	"time"

	"github.com/pipeflowhq/pipeflow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	pipeline
	stage
	entry
	audit
}

// pipeline defines methods for handling pipelines.
type pipeline interface {
	CreatePipeline(pipeline model.Pipeline) (model.Pipeline, error)
	GetPipelineByID(id string) (*model.Pipeline, error)
	GetAllPipelines(limit, offset int) ([]model.Pipeline, error)
	UpdatePipeline(pipeline *model.Pipeline) error
	DeactivatePipeline(id string) error // soft deactivate, never a hard delete
}

// stage defines methods for handling stages and their checklist definitions.
type stage interface {
	CreateStage(ctx context.Context, stage model.Stage) (model.Stage, error)
	GetStageByID(ctx context.Context, id string) (*model.Stage, error)
	GetStagesForPipeline(ctx context.Context, pipelineID string) ([]*model.Stage, error) // ordered by ordinal
	UpdateStage(ctx context.Context, stage *model.Stage) error
	ReorderStages(ctx context.Context, pipelineID string, orderedStageIDs []string) error // two-phase ordinal rewrite
}

// entry defines methods for handling pipeline entries. UpdateEntryStage is the
// single-row atomic write the movement engine relies on; there is no
// cross-entry transaction.
type entry interface {
	CreateEntry(ctx context.Context, entry model.Entry) (model.Entry, error)
	GetEntryByID(ctx context.Context, id string) (*model.Entry, error)
	UpdateEntryStage(ctx context.Context, entryID, stageID string, enteredAt time.Time, health model.Health) error
	UpdateEntryChecklist(ctx context.Context, entryID string, checklist map[string]bool) error
	UpdateEntryNote(ctx context.Context, entryID, note string) error
	UpdateEntryHealth(ctx context.Context, entryID string, daysInStage, daysOverdue int, health model.Health) error
	LinkAppointment(ctx context.Context, entryID, appointmentID string, scheduledFor time.Time) error
	ArchiveEntry(ctx context.Context, entryID string) error
	CountEntriesInStage(ctx context.Context, stageID string) (int, error)
	GetEntriesForPipeline(ctx context.Context, pipelineID string, limit, offset int) ([]*model.Entry, error)
}

// audit defines methods for the audit trail.
type audit interface {
	RecordAuditLog(ctx context.Context, log *model.AuditLog) error
	GetAuditLogsForEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*model.AuditLog, error)
}
