package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/groupavia/allotment-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// AdminHandler exposes operator-only maintenance endpoints.
type AdminHandler struct {
	scheduler *services.SchedulerService
	logger    *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(scheduler *services.SchedulerService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{scheduler: scheduler, logger: logger}
}

// TriggerExpirySweep handles POST /api/v1/admin/expiry-sweep, running the
// sweep immediately instead of waiting for its schedule.
func (h *AdminHandler) TriggerExpirySweep(c *gin.Context) {
	result := h.scheduler.RunExpirySweepNow()
	h.logger.WithFields(logrus.Fields{
		"expired": result.Total(),
		"failed":  result.Failed,
	}).Info("Manual expiry sweep completed")
	c.JSON(http.StatusOK, result)
}
