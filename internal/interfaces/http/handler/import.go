package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appimporting "github.com/ecomfin/backend/internal/application/importing"
	"github.com/ecomfin/backend/internal/domain/channel"
	"github.com/ecomfin/backend/internal/domain/importing"
	"github.com/ecomfin/backend/internal/interfaces/http/dto"
)

// ImportHandler exposes the file import pipeline: pre-flight checks, the
// asynchronous import run with job polling, and bank statement ingestion.
type ImportHandler struct {
	BaseHandler
	service *appimporting.ImportService
	logger  *zap.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(service *appimporting.ImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the import endpoints
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	imports := rg.Group("/imports")
	imports.POST("", h.Start)
	imports.GET("", h.ListJobs)
	imports.POST("/check-period", h.CheckPeriod)
	imports.POST("/check-overlap", h.CheckOverlap)
	imports.POST("/ofx", h.ImportOFX)
	imports.GET("/:id", h.GetJob)
	imports.POST("/:id/cancel", h.CancelJob)
}

// jobView shapes a job for API responses
type jobView struct {
	ID       string             `json:"id"`
	Channel  string             `json:"channel"`
	FileName string             `json:"file_name"`
	Status   string             `json:"status"`
	Counters importing.Counters `json:"counters"`
	Error    string             `json:"error,omitempty"`
}

func toJobView(job *importing.Job) jobView {
	return jobView{
		ID:       job.ID.String(),
		Channel:  job.Channel.String(),
		FileName: job.FileName,
		Status:   string(job.Status),
		Counters: job.Counters,
		Error:    job.ErrorMessage,
	}
}

func formFile(c *gin.Context) (*multipart.FileHeader, multipart.File, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponse(dto.ErrCodeBadRequest, "A file upload is required"))
		return nil, nil, false
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponse(dto.ErrCodeBadRequest, "Could not read the uploaded file"))
		return nil, nil, false
	}
	return header, f, true
}

func formChannel(c *gin.Context) channel.Code {
	return channel.Code(c.PostForm("channel"))
}

// CheckPeriod reports whether the upload's dominant month matches the
// period the user is closing
// POST /api/v1/imports/check-period
func (h *ImportHandler) CheckPeriod(c *gin.Context) {
	if _, ok := companyID(c); !ok {
		return
	}
	header, f, ok := formFile(c)
	if !ok {
		return
	}
	defer f.Close()

	month, _ := strconv.Atoi(c.PostForm("month"))
	year, _ := strconv.Atoi(c.PostForm("year"))
	if month < 1 || month > 12 || year == 0 {
		h.BadRequest(c, "month and year are required")
		return
	}

	check, err := h.service.CheckPeriod(header.Filename, f, formChannel(c), month, year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// CheckOverlap grades how much of the upload already exists
// POST /api/v1/imports/check-overlap
func (h *ImportHandler) CheckOverlap(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	header, f, ok := formFile(c)
	if !ok {
		return
	}
	defer f.Close()

	check, err := h.service.CheckOverlap(c.Request.Context(), company, formChannel(c), header.Filename, f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}

// Start parses the upload, creates the job and runs the import in the
// background. The client polls the returned job id for progress.
// POST /api/v1/imports
func (h *ImportHandler) Start(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	header, f, ok := formFile(c)
	if !ok {
		return
	}
	defer f.Close()

	job, parsed, err := h.service.StartImport(c.Request.Context(), company, formChannel(c), header.Filename, f)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// The request context dies with the response; the import keeps going.
	go func() {
		if _, err := h.service.Process(context.Background(), job, parsed); err != nil {
			h.logger.Error("background import failed",
				zap.String("job_id", job.ID.String()), zap.Error(err))
		}
	}()

	h.Accepted(c, toJobView(job))
}

// GetJob returns one job's progress
// GET /api/v1/imports/:id
func (h *ImportHandler) GetJob(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	jobID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), company, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJobView(job))
}

// ListJobs returns the company's recent jobs
// GET /api/v1/imports
func (h *ImportHandler) ListJobs(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	jobs, err := h.service.ListJobs(c.Request.Context(), company, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, toJobView(job))
	}
	h.Success(c, views)
}

// CancelJob asks a running import to stop at the next batch boundary
// POST /api/v1/imports/:id/cancel
func (h *ImportHandler) CancelJob(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	jobID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	job, err := h.service.Cancel(c.Request.Context(), company, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJobView(job))
}

// ImportOFX ingests a bank statement straight into the ledger
// POST /api/v1/imports/ofx
func (h *ImportHandler) ImportOFX(c *gin.Context) {
	company, ok := companyID(c)
	if !ok {
		return
	}
	_, f, ok := formFile(c)
	if !ok {
		return
	}
	defer f.Close()

	result, err := h.service.ImportOFX(c.Request.Context(), company, f)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
