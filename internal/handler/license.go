package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/handler/middleware"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	service *service.LicenseService
	export  *service.ExportService
	logger  *zap.Logger
}

func NewLicenseHandler(svc *service.LicenseService, export *service.ExportService, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: svc,
		export:  export,
		logger:  logger.Named("LicenseHandler"),
	}
}

func (h *LicenseHandler) Generate(c *gin.Context) {
	var req dto.GenerateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind generate license request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	lic, err := h.service.GenerateLicense(c.Request.Context(), &req, middleware.ActorFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) List(c *gin.Context) {
	var req dto.ListLicensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	licenses, total, err := h.service.ListLicenses(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.PaginatedLicenseResponse{
		Licenses:   make([]*dto.LicenseResponse, len(licenses)),
		TotalCount: total,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	for i, lic := range licenses {
		resp.Licenses[i] = dto.NewLicenseResponse(lic)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LicenseHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	lic, err := h.service.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

// GetByKeyOrCode resolves /licenses/lookup/:keyOrCode for support tooling.
func (h *LicenseHandler) GetByKeyOrCode(c *gin.Context) {
	keyOrCode := c.Param("keyOrCode")
	lic, err := h.service.GetLicenseByKeyOrCode(c.Request.Context(), keyOrCode)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req dto.UpdateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	lic, err := h.service.UpdateLicense(c.Request.Context(), id, &req, middleware.ActorFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.service.DeleteLicense(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LicenseHandler) Activate(c *gin.Context) {
	h.statusAction(c, h.service.ActivateLicense)
}

func (h *LicenseHandler) Suspend(c *gin.Context) {
	h.statusAction(c, h.service.SuspendLicense)
}

func (h *LicenseHandler) Revoke(c *gin.Context) {
	h.statusAction(c, h.service.RevokeLicense)
}

func (h *LicenseHandler) statusAction(c *gin.Context, action func(ctx context.Context, id uuid.UUID, actor, reason string) error) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req dto.StatusActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	if err := action(c.Request.Context(), id, middleware.ActorFromContext(c), req.Reason); err != nil {
		_ = c.Error(err)
		return
	}

	lic, err := h.service.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) Renew(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req dto.RenewLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	if err := h.service.RenewLicense(c.Request.Context(), id, req.NewValidTo, middleware.ActorFromContext(c), req.Reason); err != nil {
		_ = c.Error(err)
		return
	}

	lic, err := h.service.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) RegenerateKey(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req dto.StatusActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	lic, err := h.service.RegenerateLicenseKey(c.Request.Context(), id, middleware.ActorFromContext(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(lic))
}

func (h *LicenseHandler) Export(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	body, contentType, filename, err := h.export.Export(c.Request.Context(), id, format)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, body)
}

func (h *LicenseHandler) Validate(c *gin.Context) {
	var req dto.ValidateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	result, err := h.service.ValidateLicense(c.Request.Context(), req.LicenseKey, req.ProductID, req.CheckActivation)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.ValidateLicenseResponse{
		IsValid:   result.Valid,
		Code:      result.Code,
		Reason:    result.Message,
		ExpiresAt: result.ExpiresAt,
	}
	if result.License != nil {
		status := result.License.Status
		resp.Status = &status
	}
	c.JSON(http.StatusOK, resp)
}

func (h *LicenseHandler) ValidateEnhanced(c *gin.Context) {
	var req struct {
		LicenseKey string `json:"license_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	result, err := h.service.ValidateLicenseEnhanced(c.Request.Context(), req.LicenseKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.EnhancedValidationResponse{
		IsValid:         result.Valid,
		Violations:      result.Violations,
		Warnings:        result.Warnings,
		DaysUntilExpiry: result.DaysUntilExpiry,
		RequiresRenewal: result.RequiresRenewal,
	}
	if result.License != nil {
		resp.License = dto.NewLicenseResponse(result.License)
	}
	c.JSON(http.StatusOK, resp)
}

func parseIDParam(c *gin.Context) (uuid.UUID, error) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id format", ierr.ErrValidation)
	}
	return id, nil
}
