package api

import (
	"net/http"

	"github.com/pipeflowhq/pipeflow/config"

	"github.com/pipeflowhq/pipeflow/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/pipeflowhq/pipeflow"
	"github.com/pipeflowhq/pipeflow/internal/apierror"
)

type Api struct {
	pipeflow *pipeflow.Pipeflow
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/pipelines", a.CreatePipeline)
	router.GET("/pipelines/:id", a.GetPipeline)
	router.GET("/pipelines", a.GetAllPipelines)
	router.PUT("/pipelines/:id", a.UpdatePipeline)
	router.DELETE("/pipelines/:id", a.DeactivatePipeline)
	router.GET("/pipelines/:id/stages", a.GetStagesForPipeline)
	router.POST("/pipelines/:id/reorder-stages", a.ReorderStages)
	router.GET("/pipelines/:id/entries", a.GetEntriesForPipeline)
	router.POST("/pipelines/:id/refresh-health", a.RefreshPipelineHealth)

	router.POST("/stages", a.CreateStage)
	router.GET("/stages/:id", a.GetStage)
	router.PUT("/stages/:id", a.UpdateStage)
	router.GET("/stages/:id/occupancy", a.GetStageOccupancy)

	router.POST("/entries", a.SubscribeLead)
	router.GET("/entries/:id", a.GetEntry)
	router.PUT("/entries/:id/checklist/:item_id", a.SetChecklistItem)
	router.PUT("/entries/:id/note", a.SetStageNote)
	router.POST("/entries/:id/appointment", a.LinkAppointment)
	router.POST("/entries/:id/archive", a.ArchiveEntry)
	router.POST("/entries/:id/transfer", a.TransferEntry)
	router.GET("/entries/:id/health", a.GetEntryHealth)

	router.POST("/entries/:id/move", a.MoveEntry)
	router.POST("/entries/:id/advance", a.AdvanceEntry)
	router.POST("/entries/:id/jump", a.JumpEntry)
	router.POST("/entries/:id/revert", a.RevertEntry)

	router.GET("/automations/:id", a.GetAutomationRequest)

	router.GET("/audit/:entity_type/:entity_id", a.GetAuditTrail)
	return a.router
}

func NewAPI(p *pipeflow.Pipeflow) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{pipeflow: p, router: r}
}

// serviceError maps service errors onto HTTP statuses. Validation failures and
// store errors both surface here; denials never do (they are results).
func serviceError(c *gin.Context, err error) {
	if _, ok := err.(apierror.APIError); ok {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
