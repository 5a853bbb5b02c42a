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

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pipeflowhq/pipeflow/internal/request"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	model2 "github.com/pipeflowhq/pipeflow/api/model"

	"github.com/pipeflowhq/pipeflow/config"
	"github.com/pipeflowhq/pipeflow/model"

	"github.com/pipeflowhq/pipeflow"
	"github.com/pipeflowhq/pipeflow/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func setupRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	datasource := &database.Datasource{Conn: db}

	engine, err := pipeflow.NewPipeflow(datasource)
	if err != nil {
		t.Fatalf("Failed to create Pipeflow instance: %v", err)
	}
	return NewAPI(engine).Router(), mock
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

func TestMoveEntryAPI_Applied(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("ent_api1").
		WillReturnRows(sqlmock.NewRows(entryColumns()).
			AddRow("ent_api1", "lead_1", "pip_api1", "stg_1", "ACTIVE", time.Now(),
				nil, nil, 0, 0, "GREEN", nil, nil, time.Now(), nil, nil))
	mock.ExpectQuery("SELECT stage_id, pipeline_id, name, ordinal").
		WithArgs("pip_api1").
		WillReturnRows(sqlmock.NewRows(stageColumns()).
			AddRow("stg_1", "pip_api1", "Entrada", 1, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
			AddRow("stg_2", "pip_api1", "Proposta", 2, 10, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
			AddRow("stg_3", "pip_api1", "Fechado", 3, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil))
	mock.ExpectQuery("SELECT item_id, stage_id, title, ordinal, mandatory, active FROM checklist_items").
		WillReturnRows(sqlmock.NewRows(checklistColumns()))
	mock.ExpectExec("UPDATE entries SET stage_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload, _ := request.ToJsonReq(&model2.MoveEntry{
		FromStageID: "stg_1",
		ToStageID:   "stg_2",
		Actor:       "usr_maria",
	})
	var response model.MovementResult
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/entries/ent_api1/move",
		Router:   router,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.OutcomeApplied, response.Outcome)
	assert.Equal(t, "stg_2", response.Entry.StageID)
}

func TestMoveEntryAPI_DeniedReturnsReason(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("ent_api2").
		WillReturnRows(sqlmock.NewRows(entryColumns()).
			AddRow("ent_api2", "lead_1", "pip_api2", "stg_1", "ACTIVE", time.Now(),
				nil, nil, 0, 0, "GREEN", nil, []byte(`{}`), time.Now(), nil, nil))
	mock.ExpectQuery("SELECT stage_id, pipeline_id, name, ordinal").
		WithArgs("pip_api2").
		WillReturnRows(sqlmock.NewRows(stageColumns()).
			AddRow("stg_1", "pip_api2", "Entrada", 1, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil).
			AddRow("stg_2", "pip_api2", "Proposta", 2, nil, nil, nil, "STAGE_ENTRY", false, 0, nil, time.Now(), nil))
	mock.ExpectQuery("SELECT item_id, stage_id, title, ordinal, mandatory, active FROM checklist_items").
		WillReturnRows(sqlmock.NewRows(checklistColumns()).
			AddRow("chk_doc", "stg_1", "Documentos recebidos", 1, true, true))

	payload, _ := request.ToJsonReq(&model2.MoveEntry{
		ToStageID: "stg_2",
		Actor:     "usr_maria",
		GateMode:  "HARD",
	})
	var response model.MovementResult
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/entries/ent_api2/move",
		Router:   router,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Denials are business outcomes, not HTTP errors.
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.OutcomeDenied, response.Outcome)
	assert.Equal(t, model.ChecklistIncomplete, response.Reason)
	assert.Len(t, response.MissingItems, 1)
}

func TestMoveEntryAPI_RejectsMissingTarget(t *testing.T) {
	router, _ := setupRouter(t)

	payload, _ := request.ToJsonReq(&model2.MoveEntry{Actor: "usr_maria"})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/entries/ent_api3/move",
		Router:   router,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubscribeLeadAPI_RejectsMissingPipeline(t *testing.T) {
	router, _ := setupRouter(t)

	payload, _ := request.ToJsonReq(&model2.SubscribeLead{LeadID: "lead_1"})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payload,
		Response: &response,
		Method:   "POST",
		Route:    "/entries",
		Router:   router,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetEntryAPI(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("ent_api4").
		WillReturnRows(sqlmock.NewRows(entryColumns()).
			AddRow("ent_api4", "lead_1", "pip_api4", "stg_1", "ACTIVE", time.Now(),
				nil, nil, 2, 0, "YELLOW", nil, nil, time.Now(), nil, nil))

	var response model.Entry
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  nil,
		Response: &response,
		Method:   "GET",
		Route:    "/entries/ent_api4",
		Router:   router,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ent_api4", response.EntryID)
	assert.Equal(t, model.HealthYellow, response.CurrentHealth)
}

func TestGetEntryAPI_NotFound(t *testing.T) {
	router, mock := setupRouter(t)

	mock.ExpectQuery("SELECT entry_id, lead_id, pipeline_id, stage_id, status").
		WithArgs("ent_missing").
		WillReturnError(sqlmock.ErrCancelled)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  nil,
		Response: &response,
		Method:   "GET",
		Route:    "/entries/ent_missing",
		Router:   router,
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
