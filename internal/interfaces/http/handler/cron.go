package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	connectapp "github.com/syncbridge/backend/internal/application/connector"
	"github.com/syncbridge/backend/internal/domain/connector"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
)

// CronHandler exposes the batched sync cycle to external schedulers. Callers
// authenticate with the shared cron key, not a session.
type CronHandler struct {
	BaseHandler
	batches *connectapp.BatchServiceImpl
	cronKey string
	logger  *zap.Logger
}

// NewCronHandler creates a new CronHandler
func NewCronHandler(batches *connectapp.BatchServiceImpl, cronKey string, logger *zap.Logger) *CronHandler {
	return &CronHandler{
		batches: batches,
		cronKey: cronKey,
		logger:  logger,
	}
}

// RegisterRoutes registers all cron routes
func (h *CronHandler) RegisterRoutes(rg *gin.RouterGroup) {
	cron := rg.Group("/cron", middleware.CronAuth(h.cronKey))
	{
		cron.POST("/sync-cycle", h.RunSyncCycle)
	}
}

// RunSyncCycle runs one batched sync cycle and returns its report
func (h *CronHandler) RunSyncCycle(c *gin.Context) {
	var req dto.CycleRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.HandleValidationError(c, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IntegrationIDs))
	for _, raw := range req.IntegrationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid integration ID: "+raw)
			return
		}
		ids = append(ids, id)
	}

	opts := connectapp.CycleOptions{
		IntegrationIDs:  ids,
		Kind:            connector.SyncKind(req.Kind),
		BatchSize:       req.BatchSize,
		InterBatchDelay: time.Duration(req.InterBatchDelay) * time.Millisecond,
		DryRun:          req.DryRun,
	}

	report, err := h.batches.RunCycle(c.Request.Context(), opts)
	if report == nil {
		h.HandleError(c, err)
		return
	}
	if err != nil {
		// Partial cycle, typically a cancelled request context. The report
		// still accounts for every selected integration.
		h.logger.Warn("sync cycle ended early", zap.Error(err))
	}

	errs := make([]dto.CycleErrorResponse, 0, len(report.Errors))
	for _, e := range report.Errors {
		errs = append(errs, dto.CycleErrorResponse{
			IntegrationID: e.IntegrationID.String(),
			Error:         e.Error,
		})
	}

	h.Success(c, dto.CycleReportResponse{
		Total:           report.Total,
		Successful:      report.Successful,
		Failed:          report.Failed,
		Skipped:         report.Skipped,
		Errors:          errs,
		ExecutionTimeMs: report.ExecutionTimeMs,
	})
}
