package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/model"
)

// RecordAuditLog appends an immutable trail record. Audit writes are never
// part of the movement transaction; a failed append must not undo a move.
func (d Datasource) RecordAuditLog(ctx context.Context, auditLog *model.AuditLog) error {
	diffsJSON, err := json.Marshal(auditLog.Diffs)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal audit diffs", err)
	}

	auditLog.AuditID = model.GenerateUUIDWithSuffix("aud")
	auditLog.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO audit_logs (audit_id, entity_type, entity_id, action, diffs, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, auditLog.AuditID, auditLog.EntityType, auditLog.EntityID, auditLog.Action, diffsJSON,
		nullable(auditLog.Actor), auditLog.CreatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record audit log", err)
	}
	return nil
}

func (d Datasource) GetAuditLogsForEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*model.AuditLog, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT audit_id, entity_type, entity_id, action, diffs, actor, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, entityType, entityID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve audit logs", err)
	}
	defer rows.Close()

	logs := []*model.AuditLog{}
	for rows.Next() {
		auditLog := model.AuditLog{}
		var diffsJSON []byte
		var actor sql.NullString
		err = rows.Scan(&auditLog.AuditID, &auditLog.EntityType, &auditLog.EntityID, &auditLog.Action,
			&diffsJSON, &actor, &auditLog.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan audit log data", err)
		}
		auditLog.Actor = actor.String
		if diffsJSON != nil {
			if err := json.Unmarshal(diffsJSON, &auditLog.Diffs); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal audit diffs", err)
			}
		}
		logs = append(logs, &auditLog)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over audit logs", err)
	}
	return logs, nil
}
