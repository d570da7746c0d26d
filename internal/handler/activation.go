package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyline/license-backoffice/internal/handler/dto"
	"github.com/keyline/license-backoffice/internal/handler/middleware"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/service"
	"go.uber.org/zap"
)

type ActivationHandler struct {
	service *service.ActivationService
	logger  *zap.Logger
}

func NewActivationHandler(svc *service.ActivationService, logger *zap.Logger) *ActivationHandler {
	return &ActivationHandler{
		service: svc,
		logger:  logger.Named("ActivationHandler"),
	}
}

func (h *ActivationHandler) CreateProductKey(c *gin.Context) {
	var req dto.CreateProductKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind create product key request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	lic, err := h.service.CreateProductKey(c.Request.Context(), &req, middleware.ActorFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.ProductKeyResponse{
		LicenseID:      lic.ID,
		Code:           lic.Code,
		ProductKey:     lic.LicenseKey,
		MaxActivations: lic.MaxActivations,
		ValidTo:        lic.ValidTo,
	})
}

func (h *ActivationHandler) Activate(c *gin.Context) {
	var req dto.ActivateProductKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	act, err := h.service.ActivateProductKey(c.Request.Context(), &req, middleware.ActorFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewActivationResponse(act))
}

func (h *ActivationHandler) Deactivate(c *gin.Context) {
	var req dto.DeactivateProductKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	act, err := h.service.DeactivateProductKey(c.Request.Context(), req.Signature, middleware.ActorFromContext(c), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewActivationResponse(act))
}

func (h *ActivationHandler) Validate(c *gin.Context) {
	var req dto.ValidateProductKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	resp, err := h.service.ValidateProductKey(c.Request.Context(), req.ProductKey)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ActivationHandler) Get(c *gin.Context) {
	signature := c.Param("signature")
	if signature == "" {
		_ = c.Error(fmt.Errorf("%w: activation signature is required", ierr.ErrValidation))
		return
	}

	act, err := h.service.GetActivationBySignature(c.Request.Context(), signature)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewActivationResponse(act))
}

func (h *ActivationHandler) List(c *gin.Context) {
	productKey := c.Query("product_key")
	if productKey == "" {
		_ = c.Error(fmt.Errorf("%w: product_key query parameter is required", ierr.ErrValidation))
		return
	}

	activations, err := h.service.ListActivations(c.Request.Context(), productKey)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := make([]*dto.ActivationResponse, len(activations))
	for i, act := range activations {
		resp[i] = dto.NewActivationResponse(act)
	}
	c.JSON(http.StatusOK, resp)
}
