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
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	model2 "github.com/pipeflowhq/pipeflow/api/model"

	"github.com/gin-gonic/gin"
)

// SubscribeLead enrolls a lead into a pipeline. The entry lands in the
// pipeline's first stage unless an explicit stage of the same pipeline is
// given.
//
// Responses:
// - 400 Bad Request: invalid payload or a stage outside the pipeline.
// - 201 Created: the new entry.
func (a Api) SubscribeLead(c *gin.Context) {
	var subscription model2.SubscribeLead
	if err := c.ShouldBindJSON(&subscription); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	err := subscription.ValidateSubscribeLead()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.pipeflow.SubscribeLead(c.Request.Context(), subscription.ToEntry())
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.pipeflow.GetEntry(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetEntriesForPipeline(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := a.pipeflow.GetEntriesForPipeline(c.Request.Context(), id, limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SetChecklistItem toggles one checklist item on an entry. The item must be
// defined on the entry's current stage; edits never change the stage.
func (a Api) SetChecklistItem(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}
	itemID, passed := c.Params.Get("item_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required. pass item_id in the route /:item_id"})
		return
	}

	var update model2.SetChecklistItem
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := update.ValidateSetChecklistItem(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.pipeflow.SetChecklistItem(c.Request.Context(), id, itemID, *update.Done, update.Actor)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) SetStageNote(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var update model2.SetStageNote
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.pipeflow.SetStageNote(c.Request.Context(), id, update.Note, update.Actor); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "note updated"})
}

func (a Api) LinkAppointment(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var link model2.LinkAppointment
	if err := c.ShouldBindJSON(&link); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := link.ValidateLinkAppointment(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.pipeflow.LinkAppointment(c.Request.Context(), id, link.AppointmentID, link.ScheduledForTime(), link.Actor); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "appointment linked"})
}

func (a Api) ArchiveEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var archive model2.ArchiveEntry
	if err := c.ShouldBindJSON(&archive); err != nil {
		logrus.Error(err)
	}

	if err := a.pipeflow.ArchiveEntry(c.Request.Context(), id, archive.Actor); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entry archived"})
}

// TransferEntry moves a lead to another pipeline: the source entry is archived
// and a fresh entry is created at the destination's first stage.
func (a Api) TransferEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var transfer model2.TransferEntry
	if err := c.ShouldBindJSON(&transfer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := transfer.ValidateTransferEntry(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.pipeflow.TransferEntry(c.Request.Context(), id, transfer.ToPipelineID, transfer.Actor)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetAuditTrail(c *gin.Context) {
	entityType, passed := c.Params.Get("entity_type")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type is required. pass it in the route /:entity_type/:entity_id"})
		return
	}
	entityID, passed := c.Params.Get("entity_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_id is required. pass it in the route /:entity_type/:entity_id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := a.pipeflow.GetAuditTrail(c.Request.Context(), entityType, entityID, limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
