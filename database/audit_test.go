package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pipeflowhq/pipeflow/model"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuditLog_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	auditLog := &model.AuditLog{
		EntityType: "entry",
		EntityID:   "ent_1",
		Action:     "entry.moved",
		Actor:      "usr_maria",
		Diffs: []model.FieldDiff{
			{Field: "stage_id", From: "stg_1", To: "stg_2"},
		},
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordAuditLog(context.Background(), auditLog)
	assert.NoError(t, err)
	assert.Contains(t, auditLog.AuditID, "aud_")
	assert.WithinDuration(t, time.Now(), auditLog.CreatedAt, time.Second)
}

func TestGetAuditLogsForEntity_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	diffsJSON, err := json.Marshal([]model.FieldDiff{{Field: "stage_id", From: "stg_1", To: "stg_2"}})
	assert.NoError(t, err)

	rows := sqlmock.NewRows([]string{"audit_id", "entity_type", "entity_id", "action", "diffs", "actor", "created_at"}).
		AddRow("aud_1", "entry", "ent_1", "entry.moved", diffsJSON, "usr_maria", time.Now())

	mock.ExpectQuery("SELECT audit_id, entity_type, entity_id, action, diffs, actor, created_at FROM audit_logs").
		WithArgs("entry", "ent_1", 20, 0).
		WillReturnRows(rows)

	logs, err := ds.GetAuditLogsForEntity(context.Background(), "entry", "ent_1", 20, 0)
	assert.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, "entry.moved", logs[0].Action)
	assert.Len(t, logs[0].Diffs, 1)
	assert.Equal(t, "stage_id", logs[0].Diffs[0].Field)
}
