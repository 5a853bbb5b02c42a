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
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pipeflowhq/pipeflow/internal/apierror"
	"github.com/pipeflowhq/pipeflow/model"
	"github.com/stretchr/testify/assert"
)

func TestCreateEntry_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	entry := model.Entry{
		LeadID:     "lead_42",
		PipelineID: "pip_1",
		StageID:    "stg_1",
	}

	mock.ExpectExec("INSERT INTO entries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateEntry(context.Background(), entry)
	assert.NoError(t, err)
	assert.Contains(t, created.EntryID, "ent_")
	assert.Equal(t, model.StatusActive, created.Status)
	assert.WithinDuration(t, time.Now(), created.StageEnteredAt, time.Second)
}

func TestGetEntryByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	checklistJSON, err := json.Marshal(map[string]bool{"chk_1": true, "chk_2": false})
	assert.NoError(t, err)

	rows := sqlmock.NewRows([]string{"entry_id", "lead_id", "pipeline_id", "stage_id", "status", "stage_entered_at",
		"linked_appointment_id", "linked_appointment_at", "days_in_stage", "days_overdue", "health",
		"stage_note", "checklist", "created_at", "archived_at", "meta_data"}).
		AddRow("ent_1", "lead_42", "pip_1", "stg_2", "ACTIVE", time.Now().Add(-48*time.Hour),
			"appt_9", time.Now().Add(24*time.Hour), 2, 0, "GREEN",
			"segunda tentativa", checklistJSON, time.Now().Add(-72*time.Hour), nil, nil)

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("ent_1").
		WillReturnRows(rows)

	entry, err := ds.GetEntryByID(context.Background(), "ent_1")
	assert.NoError(t, err)
	assert.Equal(t, "lead_42", entry.LeadID)
	assert.Equal(t, model.Health("GREEN"), entry.CurrentHealth)
	assert.Equal(t, "appt_9", entry.LinkedAppointmentID)
	assert.NotNil(t, entry.LinkedAppointmentAt)
	assert.True(t, entry.Checklist["chk_1"])
	assert.False(t, entry.Checklist["chk_2"])
}

func TestGetEntryByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("ent_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetEntryByID(context.Background(), "ent_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateEntryStage_ResetsDerivedFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	enteredAt := time.Now()
	mock.ExpectExec("UPDATE entries SET stage_id = \\$2, stage_entered_at = \\$3, days_in_stage = 0, days_overdue = 0").
		WithArgs("ent_1", "stg_2", enteredAt, "GREEN").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateEntryStage(context.Background(), "ent_1", "stg_2", enteredAt, model.Health("GREEN"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEntryStage_ArchivedEntryNotTouched(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE entries SET stage_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.UpdateEntryStage(context.Background(), "ent_archived", "stg_2", time.Now(), model.Health("GREEN"))
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestUpdateEntryStage_Timeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE entries SET stage_id").
		WillReturnError(context.DeadlineExceeded)

	err = ds.UpdateEntryStage(context.Background(), "ent_1", "stg_2", time.Now(), model.Health("GREEN"))
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrTimeout, apiErr.Code)
}

func TestUpdateEntryChecklist_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	checklist := map[string]bool{"chk_1": true}
	checklistJSON, err := json.Marshal(checklist)
	assert.NoError(t, err)

	mock.ExpectExec("UPDATE entries SET checklist").
		WithArgs("ent_1", checklistJSON).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ds.UpdateEntryChecklist(context.Background(), "ent_1", checklist)
	assert.NoError(t, err)
}

func TestArchiveEntry_AlreadyArchived(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE entries SET status = 'ARCHIVED'").
		WithArgs("ent_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ds.ArchiveEntry(context.Background(), "ent_1")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestCountEntriesInStage_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM entries").
		WithArgs("stg_2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := ds.CountEntriesInStage(context.Background(), "stg_2")
	assert.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestGetEntriesForPipeline_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("pip_1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "lead_id", "pipeline_id", "stage_id", "status", "stage_entered_at",
			"linked_appointment_id", "linked_appointment_at", "days_in_stage", "days_overdue", "health",
			"stage_note", "checklist", "created_at", "archived_at", "meta_data"}))

	entries, err := ds.GetEntriesForPipeline(context.Background(), "pip_1", 20, 0)
	assert.NoError(t, err)
	assert.Len(t, entries, 0)
}
