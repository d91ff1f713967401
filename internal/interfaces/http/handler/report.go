package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appreport "github.com/ecomfin/backend/internal/application/report"
	"github.com/ecomfin/backend/internal/domain/report"
)

// ReportHandler exposes the financial reports and the receivable and
// payable title lifecycle behind them.
type ReportHandler struct {
	BaseHandler
	service *appreport.ReportService
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *appreport.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the report and title endpoints
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	reports.GET("/statement", h.Statement)
	reports.GET("/cashflow", h.CashFlow)
	reports.GET("/aging", h.Aging)
	reports.GET("/projection", h.Projection)
	reports.GET("/receivables/export", h.ReceivablesExport)

	titles := rg.Group("/titles")
	titles.POST("", h.CreateTitle)
	titles.GET("", h.ListTitles)
	titles.POST("/:id/settle", h.SettleTitle)
	titles.POST("/:id/reopen", h.ReopenTitle)
	titles.POST("/:id/cancel", h.CancelTitle)
}

type createTitleRequest struct {
	Kind        string          `json:"kind" binding:"required"`
	ClientName  string          `json:"client_name" binding:"required"`
	Description string          `json:"description"`
	DueDate     string          `json:"due_date" binding:"required"` // 2006-01-02
	Amount      decimal.Decimal `json:"amount" binding:"required"`
}

type settleTitleRequest struct {
	SettledAt string `json:"settled_at"` // 2006-01-02, defaults to today
}

// periodRange reads start/end query parameters, defaulting to the current
// calendar month
func periodRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)

	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return start, end, errInvalidDate("start")
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return start, end, errInvalidDate("end")
		}
		// Inclusive end of day
		end = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end must not precede start")
	}
	return start, end, nil
}

// Statement builds the accrual-regime income statement for a period
// GET /api/v1/reports/statement
func (h *ReportHandler) Statement(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	start, end, err := periodRange(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	statement, err := h.service.Statement(c.Request.Context(), company, start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}

// CashFlow builds the month-by-month cash view for a period
// GET /api/v1/reports/cashflow
func (h *ReportHandler) CashFlow(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	start, end, err := periodRange(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	flow, err := h.service.CashFlow(c.Request.Context(), company, start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flow)
}

// Aging buckets open receivables by days overdue
// GET /api/v1/reports/aging
func (h *ReportHandler) Aging(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	aging, err := h.service.Aging(c.Request.Context(), company, time.Now().UTC())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, aging)
}

// Projection builds the three-scenario revenue and cost projection
// GET /api/v1/reports/projection
func (h *ReportHandler) Projection(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	months := 0
	if raw := c.Query("months"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &months); err != nil {
			h.BadRequest(c, "months must be a number")
			return
		}
	}

	projection, err := h.service.Projection(c.Request.Context(), company, time.Now().UTC(), months)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, projection)
}

// ReceivablesExport streams the receivables workbook as an XLSX download
// GET /api/v1/reports/receivables/export
func (h *ReportHandler) ReceivablesExport(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	companyName := c.Query("company_name")
	if companyName == "" {
		companyName = "Minha Empresa"
	}

	now := time.Now().UTC()
	workbook, err := h.service.ReceivablesWorkbook(c.Request.Context(), company, companyName, now)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer workbook.Close()

	fileName := fmt.Sprintf("recebiveis_%s.xlsx", now.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, fileName))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := workbook.Write(c.Writer); err != nil {
		h.logger.Error("receivables workbook write failed", zap.Error(err))
	}
}

// CreateTitle registers a receivable or payable title
// POST /api/v1/titles
func (h *ReportHandler) CreateTitle(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}

	var req createTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "kind, client_name, due_date and amount are required")
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		h.BadRequest(c, errInvalidDate("due_date").Error())
		return
	}

	title, err := h.service.CreateTitle(c.Request.Context(), company,
		report.TitleKind(req.Kind), req.ClientName, req.Description, dueDate, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, title)
}

// ListTitles lists the company's titles of one kind, oldest due first
// GET /api/v1/titles
func (h *ReportHandler) ListTitles(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	kind := report.TitleKind(c.DefaultQuery("kind", string(report.TitleReceivable)))

	titles, err := h.service.ListTitles(c.Request.Context(), company, kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, titles)
}

// SettleTitle marks a title paid and books the cash movement
// POST /api/v1/titles/:id/settle
func (h *ReportHandler) SettleTitle(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	titleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	at := time.Now().UTC()
	var req settleTitleRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.SettledAt != "" {
		parsed, err := time.Parse("2006-01-02", req.SettledAt)
		if err != nil {
			h.BadRequest(c, errInvalidDate("settled_at").Error())
			return
		}
		at = parsed
	}

	title, err := h.service.SettleTitle(c.Request.Context(), company, titleID, at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, title)
}

// ReopenTitle reverts a settled title and removes its cash movement
// POST /api/v1/titles/:id/reopen
func (h *ReportHandler) ReopenTitle(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	titleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	title, err := h.service.ReopenTitle(c.Request.Context(), company, titleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, title)
}

// CancelTitle voids an open title without touching the ledger
// POST /api/v1/titles/:id/cancel
func (h *ReportHandler) CancelTitle(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	titleID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	title, err := h.service.CancelTitle(c.Request.Context(), company, titleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, title)
}
