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

	"github.com/gin-gonic/gin"
)

// GetEntryHealth recomputes and returns the entry's urgency snapshot against
// the current clock. The stored projections are refreshed as a side effect.
func (a Api) GetEntryHealth(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	snapshot, err := a.pipeflow.RecomputeHealth(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// RefreshPipelineHealth recomputes health for every active entry of a
// pipeline. Meant for the periodic roll-over of day-based projections.
func (a Api) RefreshPipelineHealth(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	refreshed, err := a.pipeflow.RefreshPipelineHealth(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pipeline_id": id, "refreshed": refreshed})
}
