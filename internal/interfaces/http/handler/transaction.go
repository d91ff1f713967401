package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appreconciliation "github.com/ecomfin/backend/internal/application/reconciliation"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/reconciliation"
	"github.com/ecomfin/backend/internal/interfaces/http/dto"
)

// TransactionHandler exposes the reconciliation workbench: listing imported
// transactions and driving their status transitions.
type TransactionHandler struct {
	BaseHandler
	service *appreconciliation.ReconciliationService
	logger  *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(service *appreconciliation.ReconciliationService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the transaction endpoints
func (h *TransactionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	txs := rg.Group("/transactions")
	txs.GET("", h.List)
	txs.GET("/:id", h.Get)
	txs.POST("/:id/reconcile", h.Reconcile)
	txs.POST("/:id/reopen", h.Reopen)
	txs.POST("/:id/ignore", h.Ignore)
}

type listTransactionsRequest struct {
	dto.ListRequest
	Channel  string `form:"channel" binding:"omitempty,channelcode"`
	Type     string `form:"type"`
	Status   string `form:"status"`
	OrderID  string `form:"order_id"`
	DateFrom string `form:"date_from"` // 2006-01-02
	DateTo   string `form:"date_to"`
}

type reconcileRequest struct {
	CategoryID   uuid.UUID  `json:"category_id" binding:"required"`
	CategoryName string     `json:"category_name" binding:"required"`
	CostCenterID *uuid.UUID `json:"cost_center_id"`
}

// List returns the company's transactions, filtered and paginated
// GET /api/v1/transactions
func (h *TransactionHandler) List(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var req listTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	filter, err := req.toFilter()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	txs, err := h.service.List(c.Request.Context(), company, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(txs, filter.Page, filter.PageSize, len(txs)))
}

func errInvalidDate(field string) error {
	return fmt.Errorf("%s must use the 2006-01-02 format", field)
}

func (r listTransactionsRequest) toFilter() (reconciliation.TransactionFilter, error) {
	filter := reconciliation.TransactionFilter{Page: r.Page, PageSize: r.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	if r.Channel != "" {
		ch := channel.Code(r.Channel)
		filter.Channel = &ch
	}
	if r.Type != "" {
		t := reconciliation.TransactionType(r.Type)
		filter.Type = &t
	}
	if r.Status != "" {
		s := reconciliation.Status(r.Status)
		filter.Status = &s
	}
	if r.OrderID != "" {
		filter.OrderID = &r.OrderID
	}
	if r.DateFrom != "" {
		from, err := time.Parse("2006-01-02", r.DateFrom)
		if err != nil {
			return filter, errInvalidDate("date_from")
		}
		filter.DateFrom = &from
	}
	if r.DateTo != "" {
		to, err := time.Parse("2006-01-02", r.DateTo)
		if err != nil {
			return filter, errInvalidDate("date_to")
		}
		filter.DateTo = &to
	}
	return filter, nil
}

// Get returns one transaction with its items
// GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	tx, err := h.service.Get(c.Request.Context(), company, txID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tx)
}

// Reconcile confirms a transaction, consuming stock and writing its ledger
// movement. A stock shortfall answers 200 with valido=false and the
// per-product issues; nothing is persisted in that case.
// POST /api/v1/transactions/:id/reconcile
func (h *TransactionHandler) Reconcile(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "category_id and category_name are required")
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), company, txID,
		req.CategoryID, req.CategoryName, req.CostCenterID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reopen puts a reconciled or ignored transaction back on the queue,
// reversing stock, ledger and CMV side effects where they exist
// POST /api/v1/transactions/:id/reopen
func (h *TransactionHandler) Reopen(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	tx, err := h.service.Reopen(c.Request.Context(), company, txID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tx)
}

// Ignore drops a transaction from the queue
// POST /api/v1/transactions/:id/ignore
func (h *TransactionHandler) Ignore(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	txID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	tx, err := h.service.Ignore(c.Request.Context(), company, txID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tx)
}
