package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyline/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	service *service.LicenseService
	logger  *zap.Logger
}

func NewDashboardHandler(svc *service.LicenseService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.GetDashboardSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build dashboard summary", zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
