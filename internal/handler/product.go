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

type ProductHandler struct {
	catalog *service.CatalogService
	keys    *service.KeyManagementService
	logger  *zap.Logger
}

func NewProductHandler(catalog *service.CatalogService, keys *service.KeyManagementService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		keys:    keys,
		logger:  logger.Named("ProductHandler"),
	}
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	p, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewProductResponse(p))
}

func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := make([]*dto.ProductResponse, len(products))
	for i, p := range products {
		resp[i] = dto.NewProductResponse(p)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewProductResponse(p))
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req dto.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	p, err := h.catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewProductResponse(p))
}

// GenerateKeys mints the first signing key pair for a product.
func (h *ProductHandler) GenerateKeys(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	key, err := h.keys.GenerateKeysForProduct(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.PublicKeyResponse{
		ProductID: key.ProductID,
		Version:   key.Version,
		PublicKey: key.PublicKeyPEM,
	})
}

func (h *ProductHandler) RotateKeys(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	key, err := h.keys.RotateKeys(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PublicKeyResponse{
		ProductID: key.ProductID,
		Version:   key.Version,
		PublicKey: key.PublicKeyPEM,
	})
}

// PublicKey serves the active verification key. This endpoint is public so
// deployed license checkers can fetch it.
func (h *ProductHandler) PublicKey(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	key, err := h.keys.ActiveKey(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.PublicKeyResponse{
		ProductID: key.ProductID,
		Version:   key.Version,
		PublicKey: key.PublicKeyPEM,
	})
}
