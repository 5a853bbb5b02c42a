package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/model"
)

// reorderOffset is added to every ordinal in phase one of a reorder so the
// final per-pipeline ordinals never collide with the old ones mid-rewrite.
const reorderOffset = 100000

func (d Datasource) CreateStage(ctx context.Context, stage model.Stage) (model.Stage, error) {
	metaDataJSON, err := json.Marshal(stage.MetaData)
	if err != nil {
		return model.Stage{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	stage.StageID = model.GenerateUUIDWithSuffix("stg")
	stage.CreatedAt = time.Now()
	if stage.SLAAnchor == "" {
		stage.SLAAnchor = model.AnchorStageEntry
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Stage{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stages (stage_id, pipeline_id, name, ordinal, sla_duration_days, wip_limit,
			successor_stage_id, sla_anchor, auto_appointment, appointment_duration_minutes, next_step_label, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, stage.StageID, stage.PipelineID, stage.Name, stage.Ordinal, stage.SLADurationDays, stage.WIPLimit,
		nullable(stage.SuccessorStageID), string(stage.SLAAnchor), stage.AutoAppointment, stage.ApptDurationMins,
		nullable(stage.NextStepLabel), metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Stage{}, apierror.NewAPIError(apierror.ErrConflict, "Stage ordinal already taken in this pipeline", err)
		}
		return model.Stage{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create stage", err)
	}

	for i := range stage.Checklist {
		stage.Checklist[i].ItemID = model.GenerateUUIDWithSuffix("chk")
		stage.Checklist[i].StageID = stage.StageID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO checklist_items (item_id, stage_id, title, ordinal, mandatory, active)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, stage.Checklist[i].ItemID, stage.StageID, stage.Checklist[i].Title, stage.Checklist[i].Ordinal,
			stage.Checklist[i].Mandatory, stage.Checklist[i].Active)
		if err != nil {
			return model.Stage{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create checklist item", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return model.Stage{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit stage", err)
	}

	return stage, nil
}

func (d Datasource) GetStageByID(ctx context.Context, id string) (*model.Stage, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT stage_id, pipeline_id, name, ordinal, sla_duration_days, wip_limit,
			successor_stage_id, sla_anchor, auto_appointment, appointment_duration_minutes, next_step_label, created_at, meta_data
		FROM stages
		WHERE stage_id = $1
	`, id)

	stage, err := scanStage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Stage not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stage", err)
	}

	if err := d.loadChecklists(ctx, []*model.Stage{stage}); err != nil {
		return nil, err
	}
	return stage, nil
}

// GetStagesForPipeline returns the pipeline's stages ordered by ordinal with
// their checklist definitions attached.
func (d Datasource) GetStagesForPipeline(ctx context.Context, pipelineID string) ([]*model.Stage, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT stage_id, pipeline_id, name, ordinal, sla_duration_days, wip_limit,
			successor_stage_id, sla_anchor, auto_appointment, appointment_duration_minutes, next_step_label, created_at, meta_data
		FROM stages
		WHERE pipeline_id = $1
		ORDER BY ordinal ASC
	`, pipelineID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stages", err)
	}
	defer rows.Close()

	stages := []*model.Stage{}
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan stage data", err)
		}
		stages = append(stages, stage)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over stages", err)
	}

	if err := d.loadChecklists(ctx, stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func (d Datasource) UpdateStage(ctx context.Context, stage *model.Stage) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE stages SET name = $2, sla_duration_days = $3, wip_limit = $4, successor_stage_id = $5,
			sla_anchor = $6, auto_appointment = $7, appointment_duration_minutes = $8, next_step_label = $9
		WHERE stage_id = $1
	`, stage.StageID, stage.Name, stage.SLADurationDays, stage.WIPLimit, nullable(stage.SuccessorStageID),
		string(stage.SLAAnchor), stage.AutoAppointment, stage.ApptDurationMins, nullable(stage.NextStepLabel))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update stage", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update stage", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Stage not found", nil)
	}
	return nil
}

// ReorderStages rewrites the pipeline's ordinals to match orderedStageIDs.
// The rewrite is two-phase inside one transaction: ordinals are first shifted
// out of range, then set to their final 1..n values, so the per-pipeline
// uniqueness constraint holds at every statement and readers never observe
// duplicates.
func (d Datasource) ReorderStages(ctx context.Context, pipelineID string, orderedStageIDs []string) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE stages SET ordinal = ordinal + $2 WHERE pipeline_id = $1
	`, pipelineID, reorderOffset)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to shift stage ordinals", err)
	}

	for i, stageID := range orderedStageIDs {
		result, err := tx.ExecContext(ctx, `
			UPDATE stages SET ordinal = $3 WHERE pipeline_id = $1 AND stage_id = $2
		`, pipelineID, stageID, i+1)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reorder stages", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reorder stages", err)
		}
		if affected == 0 {
			return apierror.NewAPIError(apierror.ErrNotFound, "Stage not found in pipeline", nil)
		}
	}

	if err = tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit reorder", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStage(row rowScanner) (*model.Stage, error) {
	stage := model.Stage{}
	var successor, nextStep sql.NullString
	var anchor string
	var metaDataJSON []byte

	err := row.Scan(&stage.StageID, &stage.PipelineID, &stage.Name, &stage.Ordinal, &stage.SLADurationDays,
		&stage.WIPLimit, &successor, &anchor, &stage.AutoAppointment, &stage.ApptDurationMins, &nextStep,
		&stage.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	stage.SuccessorStageID = successor.String
	stage.NextStepLabel = nextStep.String
	stage.SLAAnchor = model.SLAAnchorMode(anchor)
	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &stage.MetaData); err != nil {
			return nil, err
		}
	}
	return &stage, nil
}

func (d Datasource) loadChecklists(ctx context.Context, stages []*model.Stage) error {
	if len(stages) == 0 {
		return nil
	}

	ids := make([]string, len(stages))
	byID := make(map[string]*model.Stage, len(stages))
	for i, s := range stages {
		ids[i] = s.StageID
		byID[s.StageID] = s
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT item_id, stage_id, title, ordinal, mandatory, active
		FROM checklist_items
		WHERE stage_id = ANY($1)
		ORDER BY ordinal ASC
	`, pq.Array(ids))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve checklist items", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := model.ChecklistItemDefinition{}
		err = rows.Scan(&item.ItemID, &item.StageID, &item.Title, &item.Ordinal, &item.Mandatory, &item.Active)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan checklist item", err)
		}
		if s := byID[item.StageID]; s != nil {
			s.Checklist = append(s.Checklist, item)
		}
	}
	if err = rows.Err(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over checklist items", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
