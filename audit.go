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

	"github.com/sirupsen/logrus"

	"github.com/pipeflowhq/pipeflow/model"
)

// recordAudit appends a trail record. Audit is best-effort: a failed append
// is reported but never undoes the mutation it describes.
func (l *Pipeflow) recordAudit(ctx context.Context, entityType, entityID, action, actor string, diffs []model.FieldDiff) {
	auditLog := &model.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Diffs:      diffs,
	}
	if err := l.datasource.RecordAuditLog(ctx, auditLog); err != nil {
		logrus.Errorf("audit record failed for %s %s (%s): %v", entityType, entityID, action, err)
	}
}

// GetAuditTrail returns the recorded mutations of an entity, newest first.
func (l *Pipeflow) GetAuditTrail(ctx context.Context, entityType, entityID string, limit, offset int) ([]*model.AuditLog, error) {
	return l.datasource.GetAuditLogsForEntity(ctx, entityType, entityID, limit, offset)
}
