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

type ConsumerHandler struct {
	catalog *service.CatalogService
	logger  *zap.Logger
}

func NewConsumerHandler(catalog *service.CatalogService, logger *zap.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		catalog: catalog,
		logger:  logger.Named("ConsumerHandler"),
	}
}

func (h *ConsumerHandler) Create(c *gin.Context) {
	var req dto.CreateConsumerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	cons, err := h.catalog.CreateConsumer(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewConsumerResponse(cons))
}

func (h *ConsumerHandler) List(c *gin.Context) {
	consumers, err := h.catalog.ListConsumers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := make([]*dto.ConsumerResponse, len(consumers))
	for i, cons := range consumers {
		resp[i] = dto.NewConsumerResponse(cons)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConsumerHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	cons, err := h.catalog.GetConsumer(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConsumerResponse(cons))
}

func (h *ConsumerHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req dto.UpdateConsumerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	cons, err := h.catalog.UpdateConsumer(c.Request.Context(), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConsumerResponse(cons))
}
