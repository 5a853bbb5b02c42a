package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/model"
)

func (d Datasource) CreatePipeline(pipeline model.Pipeline) (model.Pipeline, error) {
	metaDataJSON, err := json.Marshal(pipeline.MetaData)
	if err != nil {
		return model.Pipeline{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	pipeline.PipelineID = model.GenerateUUIDWithSuffix("pip")
	pipeline.CreatedAt = time.Now()

	_, err = d.Conn.Exec(`
		INSERT INTO pipelines (pipeline_id, name, active, is_primary, meta_data)
		VALUES ($1, $2, $3, $4, $5)
	`, pipeline.PipelineID, pipeline.Name, pipeline.Active, pipeline.IsPrimary, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return model.Pipeline{}, apierror.NewAPIError(apierror.ErrConflict, "Pipeline with this ID already exists", err)
			default:
				return model.Pipeline{}, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return model.Pipeline{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create pipeline", err)
	}

	// At most one primary pipeline is treated as default. This is a best
	// effort sweep, not an atomic constraint.
	if pipeline.IsPrimary {
		if err := d.demoteOtherPrimaries(pipeline.PipelineID); err != nil {
			return model.Pipeline{}, err
		}
	}

	return pipeline, nil
}

func (d Datasource) demoteOtherPrimaries(keepPipelineID string) error {
	_, err := d.Conn.Exec(`
		UPDATE pipelines SET is_primary = FALSE WHERE pipeline_id != $1 AND is_primary = TRUE
	`, keepPipelineID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to demote primary pipelines", err)
	}
	return nil
}

func (d Datasource) GetPipelineByID(id string) (*model.Pipeline, error) {
	pipeline := model.Pipeline{}

	row := d.Conn.QueryRow(`
		SELECT pipeline_id, name, active, is_primary, created_at, meta_data
		FROM pipelines
		WHERE pipeline_id = $1
	`, id)

	var metaDataJSON []byte
	err := row.Scan(&pipeline.PipelineID, &pipeline.Name, &pipeline.Active, &pipeline.IsPrimary, &pipeline.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Pipeline not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pipeline", err)
	}

	if metaDataJSON != nil {
		err = json.Unmarshal(metaDataJSON, &pipeline.MetaData)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	return &pipeline, nil
}

func (d Datasource) GetAllPipelines(limit, offset int) ([]model.Pipeline, error) {
	rows, err := d.Conn.Query(`
		SELECT pipeline_id, name, active, is_primary, created_at, meta_data
		FROM pipelines
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pipelines", err)
	}
	defer rows.Close()

	pipelines := []model.Pipeline{}

	for rows.Next() {
		pipeline := model.Pipeline{}
		var metaDataJSON []byte
		err = rows.Scan(&pipeline.PipelineID, &pipeline.Name, &pipeline.Active, &pipeline.IsPrimary, &pipeline.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan pipeline data", err)
		}

		if metaDataJSON != nil {
			err = json.Unmarshal(metaDataJSON, &pipeline.MetaData)
			if err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}

		pipelines = append(pipelines, pipeline)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over pipelines", err)
	}

	return pipelines, nil
}

func (d Datasource) UpdatePipeline(pipeline *model.Pipeline) error {
	result, err := d.Conn.Exec(`
		UPDATE pipelines SET name = $2, active = $3, is_primary = $4 WHERE pipeline_id = $1
	`, pipeline.PipelineID, pipeline.Name, pipeline.Active, pipeline.IsPrimary)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update pipeline", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update pipeline", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Pipeline not found", nil)
	}

	if pipeline.IsPrimary {
		return d.demoteOtherPrimaries(pipeline.PipelineID)
	}
	return nil
}

// DeactivatePipeline flips the active flag off. Pipelines are never hard
// deleted while entries reference them.
func (d Datasource) DeactivatePipeline(id string) error {
	result, err := d.Conn.Exec(`
		UPDATE pipelines SET active = FALSE, is_primary = FALSE WHERE pipeline_id = $1
	`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to deactivate pipeline", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to deactivate pipeline", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Pipeline not found", nil)
	}
	return nil
}
