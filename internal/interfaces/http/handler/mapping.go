package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appcosting "github.com/ecomfin/backend/internal/application/costing"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/interfaces/http/dto"
)

// MappingHandler exposes the SKU mapping queue: listing pending and
// confirmed links and confirming a channel SKU against a product.
type MappingHandler struct {
	BaseHandler
	service *appcosting.CostingService
	logger  *zap.Logger
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(service *appcosting.CostingService, logger *zap.Logger) *MappingHandler {
	return &MappingHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the SKU mapping endpoints
func (h *MappingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	mappings := rg.Group("/mappings")
	mappings.GET("", h.List)
	mappings.POST("/confirm", h.Confirm)
	mappings.POST("/reprocess", h.Reprocess)
}

type listMappingsRequest struct {
	dto.ListRequest
	Channel string `form:"channel" binding:"omitempty,channelcode"`
	Status  string `form:"status"`
	Search  string `form:"search"`
}

type confirmMappingRequest struct {
	Channel    string     `json:"channel" binding:"required,channelcode"`
	ChannelSKU string     `json:"channel_sku" binding:"required"`
	ProductID  uuid.UUID  `json:"product_id" binding:"required"`
	SkuID      *uuid.UUID `json:"sku_id"`
}

// List returns the company's SKU mappings, pending queue included
// GET /api/v1/mappings
func (h *MappingHandler) List(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var req listMappingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	filter := integration.MappingFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Channel != "" {
		ch := channel.Code(req.Channel)
		filter.Channel = &ch
	}
	if req.Status != "" {
		status := integration.MappingStatus(req.Status)
		filter.Status = &status
	}

	mappings, err := h.service.ListMappings(c.Request.Context(), company, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}

// Confirm links a channel SKU to a product and retroactively costs the
// historical backlog that was waiting on it
// POST /api/v1/mappings/confirm
func (h *MappingHandler) Confirm(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var req confirmMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "channel, channel_sku and product_id are required")
		return
	}

	result, err := h.service.ConfirmMapping(c.Request.Context(), company,
		channel.Code(req.Channel), req.ChannelSKU, req.ProductID, req.SkuID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reprocess re-runs every confirmed mapping against the historical backlog
// POST /api/v1/mappings/reprocess
func (h *MappingHandler) Reprocess(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	outcome, err := h.service.ReprocessMappings(c.Request.Context(), company)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}
