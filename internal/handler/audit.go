package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type AuditHandler struct {
	service *service.AuditService
	logger  *zap.Logger
}

func NewAuditHandler(svc *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		service: svc,
		logger:  logger.Named("AuditHandler"),
	}
}

func (h *AuditHandler) List(c *gin.Context) {
	var req dto.ListAuditRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	entries, total, err := h.service.List(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.PaginatedAuditResponse{
		Entries:    make([]*dto.AuditEntryResponse, len(entries)),
		TotalCount: total,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	for i, e := range entries {
		resp.Entries[i] = dto.NewAuditEntryResponse(e)
	}
	c.JSON(http.StatusOK, resp)
}
