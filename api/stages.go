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

	model2 "github.com/pipeflowhq/pipeflow/api/model"
	"github.com/pipeflowhq/pipeflow/model"

	"github.com/gin-gonic/gin"
)

func (a Api) CreateStage(c *gin.Context) {
	var newStage model2.CreateStage
	if err := c.ShouldBindJSON(&newStage); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newStage.ValidateCreateStage()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.pipeflow.CreateStage(c.Request.Context(), newStage.ToStage())
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetStage(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.pipeflow.GetStageByID(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) GetStagesForPipeline(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.pipeflow.GetStagesForPipeline(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateStage(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var update model2.UpdateStage
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := update.ValidateUpdateStage(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	stage, err := a.pipeflow.GetStageByID(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	stage.Name = update.Name
	stage.SLADurationDays = update.SLADurationDays
	stage.WIPLimit = update.WIPLimit
	stage.SuccessorStageID = update.SuccessorStageID
	stage.AutoAppointment = update.AutoAppointment
	stage.ApptDurationMins = update.ApptDurationMins
	stage.NextStepLabel = update.NextStepLabel
	if update.SLAAnchor != "" {
		stage.SLAAnchor = model.SLAAnchorMode(update.SLAAnchor)
	}

	if err := a.pipeflow.UpdateStage(c.Request.Context(), stage); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stage)
}

func (a Api) ReorderStages(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var reorder model2.ReorderStages
	if err := c.ShouldBindJSON(&reorder); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := reorder.ValidateReorderStages(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.pipeflow.ReorderStages(c.Request.Context(), id, reorder.OrderedStageIDs); err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "stages reordered"})
}

func (a Api) GetStageOccupancy(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	occupancy, err := a.pipeflow.StageOccupancy(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stage_id": id, "occupancy": occupancy})
}
