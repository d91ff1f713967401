package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appmarketplace "github.com/ecomfin/backend/internal/application/marketplace"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/integration"
	"github.com/ecomfin/backend/internal/domain/shared"
)

// MarketplaceHandler exposes the marketplace integrations: the OAuth
// connect flow, the pull-based order sync and the push-based webhook.
type MarketplaceHandler struct {
	BaseHandler
	service *appmarketplace.MarketplaceService
	logger  *zap.Logger
}

// NewMarketplaceHandler creates a new MarketplaceHandler
func NewMarketplaceHandler(service *appmarketplace.MarketplaceService, logger *zap.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the marketplace integration endpoints
func (h *MarketplaceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	mp := rg.Group("/marketplace")
	mp.GET("/logs", h.Logs)
	mp.POST("/:channel/connect", h.Connect)
	mp.DELETE("/:channel", h.Disconnect)
	mp.GET("/:channel/status", h.Status)
	mp.POST("/:channel/sync", h.Sync)
}

// RegisterPublicRoutes mounts the endpoints the marketplaces call directly.
// They stay outside the authenticated group: the caller is the marketplace
// platform, not one of our users.
func (h *MarketplaceHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/marketplace/:channel/webhook", h.Webhook)
}

type connectRequest struct {
	Code string `json:"code" binding:"required"`
}

type syncRequest struct {
	Since string `json:"since"` // 2006-01-02, defaults to 30 days ago
}

type webhookOrderItem struct {
	ChannelSKU string          `json:"channel_sku"`
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

type webhookOrderRequest struct {
	AccountID    string             `json:"account_id"`
	ExternalID   string             `json:"external_id"`
	OrderID      string             `json:"order_id"`
	Date         time.Time          `json:"date"`
	GrossAmount  decimal.Decimal    `json:"gross_amount"`
	NetAmount    decimal.Decimal    `json:"net_amount"`
	Commission   *decimal.Decimal   `json:"commission"`
	ShippingCost *decimal.Decimal   `json:"shipping_cost"`
	StoreName    string             `json:"store_name"`
	Items        []webhookOrderItem `json:"items"`
}

// credentialView hides token material from API responses
type credentialView struct {
	Channel   string    `json:"channel"`
	AccountID string    `json:"account_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

func toCredentialView(cred *integration.Credential) credentialView {
	return credentialView{
		Channel:   cred.Channel.String(),
		AccountID: cred.AccountID,
		ExpiresAt: cred.ExpiresAt,
		Expired:   cred.IsExpired(),
	}
}

func pathChannel(c *gin.Context) channel.Code {
	return channel.Code(c.Param("channel"))
}

// Connect exchanges an OAuth authorization code and stores the credential
// POST /api/v1/marketplace/:channel/connect
func (h *MarketplaceHandler) Connect(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "code is required")
		return
	}

	cred, err := h.service.Connect(c.Request.Context(), company, pathChannel(c), req.Code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCredentialView(cred))
}

// Disconnect removes the stored credential
// DELETE /api/v1/marketplace/:channel
func (h *MarketplaceHandler) Disconnect(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), company, pathChannel(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"disconnected": true})
}

// Status reports whether the channel is connected and the token health
// GET /api/v1/marketplace/:channel/status
func (h *MarketplaceHandler) Status(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	cred, err := h.service.Credential(c.Request.Context(), company, pathChannel(c))
	if errors.Is(err, shared.ErrNotFound) {
		h.Success(c, gin.H{"connected": false})
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"connected": true, "credential": toCredentialView(cred)})
}

// Sync pulls recent orders from the marketplace into the import pipeline
// POST /api/v1/marketplace/:channel/sync
func (h *MarketplaceHandler) Sync(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Since != "" {
		parsed, err := time.Parse("2006-01-02", req.Since)
		if err != nil {
			h.BadRequest(c, errInvalidDate("since").Error())
			return
		}
		since = parsed
	}

	result, err := h.service.Sync(c.Request.Context(), company, pathChannel(c), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Webhook ingests one pushed order. Every outcome answers 200: rejecting a
// push only triggers retries from the marketplace side, so payload and
// processing failures are logged instead of surfaced. The owning company is
// resolved from the seller account carried by the push.
// POST /api/v1/marketplace/:channel/webhook
func (h *MarketplaceHandler) Webhook(c *gin.Context) {
	ack := gin.H{"received": true}

	var req webhookOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("undecodable webhook payload",
			zap.String("channel", c.Param("channel")),
			zap.Error(err))
		h.Success(c, ack)
		return
	}

	order := &integration.MarketplaceOrder{
		ExternalID:   req.ExternalID,
		OrderID:      req.OrderID,
		Date:         req.Date,
		GrossAmount:  req.GrossAmount,
		NetAmount:    req.NetAmount,
		Commission:   req.Commission,
		ShippingCost: req.ShippingCost,
		StoreName:    req.StoreName,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, integration.MarketplaceOrderItem(item))
	}

	if err := h.service.HandleWebhookPush(c.Request.Context(), pathChannel(c), req.AccountID, order); err != nil {
		h.logger.Warn("webhook processing failed",
			zap.String("channel", c.Param("channel")),
			zap.String("external_id", req.ExternalID),
			zap.Error(err))
	}
	h.Success(c, ack)
}

// Logs returns the company's recent integration events
// GET /api/v1/marketplace/logs
func (h *MarketplaceHandler) Logs(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.service.RecentLogs(c.Request.Context(), company, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, logs)
}
