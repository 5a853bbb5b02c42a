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
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/database"
	"github.com/pipeflowhq/pipeflow/model"
)

func newTestPipeflow(t *testing.T) (*Pipeflow, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			AutomationQueue:  "new:automation",
			WebhookQueue:     "new:webhook",
			SlaReminderQueue: "new:sla-reminder",
			MaxRetryAttempts: 3,
		},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	datasource := &database.Datasource{Conn: db}

	engine, err := NewPipeflow(datasource)
	if err != nil {
		t.Fatalf("Error creating Pipeflow instance: %s", err)
	}
	return engine, mock
}

func entryColumns() []string {
	return []string{"entry_id", "lead_id", "pipeline_id", "stage_id", "status", "stage_entered_at",
		"linked_appointment_id", "linked_appointment_at", "days_in_stage", "days_overdue", "health",
		"stage_note", "checklist", "created_at", "archived_at", "meta_data"}
}

func stageColumns() []string {
	return []string{"stage_id", "pipeline_id", "name", "ordinal", "sla_duration_days", "wip_limit",
		"successor_stage_id", "sla_anchor", "auto_appointment", "appointment_duration_minutes",
		"next_step_label", "created_at", "meta_data"}
}

func checklistColumns() []string {
	return []string{"item_id", "stage_id", "title", "ordinal", "mandatory", "active"}
}

func expectEntryRead(mock sqlmock.Sqlmock, rows *sqlmock.Rows, entryID string) {
	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs(entryID).
		WillReturnRows(rows)
}

func expectStageGraphLoad(mock sqlmock.Sqlmock, pipelineID string, stageRows, itemRows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT stage_id, pipeline_id, name, ordinal").
		WithArgs(pipelineID).
		WillReturnRows(stageRows)
	mock.ExpectQuery("SELECT item_id, stage_id, title, ordinal, mandatory, active FROM checklist_items").
		WillReturnRows(itemRows)
}

func TestSubscribeLead_LandsInFirstStage(t *testing.T) {
	engine, mock := newTestPipeflow(t)

	mock.ExpectQuery("SELECT pipeline_id, name, active, is_primary, created_at, meta_data FROM pipelines WHERE pipeline_id = ?").
		WithArgs("pip_sub").
		WillReturnRows(sqlmock.NewRows([]string{"pipeline_id", "name", "active", "is_primary", "created_at", "meta_data"}).
			AddRow("pip_sub", "Vendas", true, true, time.Now(), nil))

	stageRows := sqlmock.NewRows(stageColumns()).
		AddRow("stg_sub1", "pip_sub", "Entrada", 1, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
		AddRow("stg_sub2", "pip_sub", "Qualificado", 2, 10, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil)
	expectStageGraphLoad(mock, "pip_sub", stageRows, sqlmock.NewRows(checklistColumns()))

	mock.ExpectExec("INSERT INTO entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := engine.SubscribeLead(context.Background(), model.Entry{
		LeadID:     "lead_42",
		PipelineID: "pip_sub",
	})
	assert.NoError(t, err)
	assert.Contains(t, created.EntryID, "ent_")
	assert.Equal(t, "stg_sub1", created.StageID)
	assert.Equal(t, model.StatusActive, created.Status)
	assert.WithinDuration(t, time.Now(), created.StageEnteredAt, time.Second)
}

func TestSubscribeLead_RejectsForeignStage(t *testing.T) {
	engine, mock := newTestPipeflow(t)

	mock.ExpectQuery("SELECT pipeline_id, name, active, is_primary, created_at, meta_data FROM pipelines WHERE pipeline_id = ?").
		WithArgs("pip_sub2").
		WillReturnRows(sqlmock.NewRows([]string{"pipeline_id", "name", "active", "is_primary", "created_at", "meta_data"}).
			AddRow("pip_sub2", "Vendas", true, false, time.Now(), nil))

	stageRows := sqlmock.NewRows(stageColumns()).
		AddRow("stg_own", "pip_sub2", "Entrada", 1, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil)
	expectStageGraphLoad(mock, "pip_sub2", stageRows, sqlmock.NewRows(checklistColumns()))

	_, err := engine.SubscribeLead(context.Background(), model.Entry{
		LeadID:     "lead_42",
		PipelineID: "pip_sub2",
		StageID:    "stg_foreign",
	})
	assert.Error(t, err)
}

func TestCreateStage_InsertShiftsLaterOrdinals(t *testing.T) {
	engine, mock := newTestPipeflow(t)

	mock.ExpectQuery("SELECT pipeline_id, name, active, is_primary, created_at, meta_data FROM pipelines WHERE pipeline_id = ?").
		WithArgs("pip_ins").
		WillReturnRows(sqlmock.NewRows([]string{"pipeline_id", "name", "active", "is_primary", "created_at", "meta_data"}).
			AddRow("pip_ins", "Vendas", true, false, time.Now(), nil))

	stageRows := sqlmock.NewRows(stageColumns()).
		AddRow("stg_a", "pip_ins", "A", 1, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
		AddRow("stg_b", "pip_ins", "B", 2, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
		AddRow("stg_c", "pip_ins", "C", 3, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil)
	expectStageGraphLoad(mock, "pip_ins", stageRows, sqlmock.NewRows(checklistColumns()))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stages").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Inserting at position 2 rewrites the whole order: A:1, New:2, B:3, C:4.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stages SET ordinal = ordinal \\+ \\$2").
		WithArgs("pip_ins", 100000).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("UPDATE stages SET ordinal = \\$3").
		WithArgs("pip_ins", "stg_a", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE stages SET ordinal = \\$3").
		WithArgs("pip_ins", sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE stages SET ordinal = \\$3").
		WithArgs("pip_ins", "stg_b", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE stages SET ordinal = \\$3").
		WithArgs("pip_ins", "stg_c", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT stage_id, pipeline_id, name, ordinal").
		WillReturnRows(sqlmock.NewRows(stageColumns()).
			AddRow("stg_new", "pip_ins", "New", 2, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil))
	mock.ExpectQuery("SELECT item_id, stage_id, title, ordinal, mandatory, active FROM checklist_items").
		WillReturnRows(sqlmock.NewRows(checklistColumns()))

	created, err := engine.CreateStage(context.Background(), model.Stage{
		PipelineID: "pip_ins",
		Name:       "New",
		Ordinal:    2,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, created.Ordinal)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestReorderStages_RejectsPartialPermutation(t *testing.T) {
	engine, mock := newTestPipeflow(t)

	stageRows := sqlmock.NewRows(stageColumns()).
		AddRow("stg_1", "pip_perm", "A", 1, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
		AddRow("stg_2", "pip_perm", "B", 2, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil)
	expectStageGraphLoad(mock, "pip_perm", stageRows, sqlmock.NewRows(checklistColumns()))

	err := engine.ReorderStages(context.Background(), "pip_perm", []string{"stg_1"})
	assert.Error(t, err)
}
