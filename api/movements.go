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

// movementStatus picks the HTTP status for a movement result. Denials are
// business outcomes, not client errors: they return 200 with the deny reason
// in the body. UNKNOWN maps to 504 so clients know to re-query.
func movementStatus(result *model.MovementResult) int {
	if result.Outcome == model.OutcomeUnknown {
		return http.StatusGatewayTimeout
	}
	return http.StatusOK
}

// MoveEntry requests a movement of an entry to an adjacent or arbitrary stage
// of its pipeline. The response carries the outcome: APPLIED, DENIED with a
// reason, or UNKNOWN when persistence timed out.
func (a Api) MoveEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var move model2.MoveEntry
	if err := c.ShouldBindJSON(&move); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := move.ValidateMoveEntry(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	result, err := a.pipeflow.RequestMove(c.Request.Context(), move.ToMovementRequest(id))
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(movementStatus(result), result)
}

func (a Api) AdvanceEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var advance model2.AdvanceEntry
	if err := c.ShouldBindJSON(&advance); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := advance.ValidateAdvanceEntry(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	result, err := a.pipeflow.RequestAdvance(c.Request.Context(), id, advance.Actor, model.GateMode(advance.GateMode))
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(movementStatus(result), result)
}

func (a Api) JumpEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var jump model2.JumpEntry
	if err := c.ShouldBindJSON(&jump); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := jump.ValidateJumpEntry(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	result, err := a.pipeflow.RequestJump(c.Request.Context(), id, jump.ToStageID, jump.Actor, model.GateMode(jump.GateMode))
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(movementStatus(result), result)
}

func (a Api) RevertEntry(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var revert model2.RevertEntry
	if err := c.ShouldBindJSON(&revert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	result, err := a.pipeflow.RequestRevert(c.Request.Context(), id, revert.Reason, revert.Actor)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(movementStatus(result), result)
}

// GetAutomationRequest returns an automation request still pending in the
// queue. Delivered requests are gone from the queue and return 404.
func (a Api) GetAutomationRequest(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	request, err := a.pipeflow.GetQueuedAutomation(id)
	if err != nil {
		serviceError(c, err)
		return
	}
	if request == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "automation request not found in queue"})
		return
	}

	c.JSON(http.StatusOK, request)
}
