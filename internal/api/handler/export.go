package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/internal/export"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
)

// RequesterHeader carries the caller identity recorded on export jobs
const RequesterHeader = "X-User-ID"

// anonymousRequester is recorded when the caller is not identified
const anonymousRequester = "anonymous"

// ExportService is the export orchestrator as seen by the HTTP layer
type ExportService interface {
	CreateExport(ctx context.Context, reportID uint, exportType model.ExportType, requesterID string, cfg *model.ExportConfig) (*model.ExportJob, error)
	GetExportStatus(ctx context.Context, jobID uint) (*export.Status, error)
	ListExports(ctx context.Context, reportID uint) ([]export.Status, error)
	DownloadExport(ctx context.Context, jobID uint) (*export.Download, error)
}

// ExportHandler handles export-related HTTP requests
type ExportHandler struct {
	svc       ExportService
	outputDir string
}

// NewExportHandler creates a new export handler. Local downloads are only
// served from inside outputDir.
func NewExportHandler(svc ExportService, outputDir string) *ExportHandler {
	return &ExportHandler{svc: svc, outputDir: outputDir}
}

// CreateExportRequest is the optional body of an export request
type CreateExportRequest struct {
	IncludeCharts *bool  `json:"include_charts"`
	IncludeImages *bool  `json:"include_images"`
	TemplateName  string `json:"template_name"`
	RequestedBy   string `json:"requested_by"`
}

// CreatePDFExport handles POST /api/v1/reports/:id/exports/pdf
func (h *ExportHandler) CreatePDFExport(c *gin.Context) {
	h.createExport(c, model.ExportTypePDF)
}

// CreateHTMLExport handles POST /api/v1/reports/:id/exports/html
func (h *ExportHandler) CreateHTMLExport(c *gin.Context) {
	h.createExport(c, model.ExportTypeHTML)
}

func (h *ExportHandler) createExport(c *gin.Context, exportType model.ExportType) {
	reportID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req CreateExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    errors.ErrCodeValidation,
				"message": "Invalid request body: " + err.Error(),
			})
			return
		}
	}

	cfg := model.DefaultExportConfig()
	if req.IncludeCharts != nil {
		cfg.IncludeCharts = *req.IncludeCharts
	}
	if req.IncludeImages != nil {
		cfg.IncludeImages = *req.IncludeImages
	}
	if req.TemplateName != "" {
		cfg.TemplateName = req.TemplateName
	}

	requester := req.RequestedBy
	if requester == "" {
		requester = c.GetHeader(RequesterHeader)
	}
	if requester == "" {
		requester = anonymousRequester
	}

	job, err := h.svc.CreateExport(c.Request.Context(), reportID, exportType, requester, &cfg)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, export.StatusOf(job))
}

// GetExport handles GET /api/v1/exports/:id
func (h *ExportHandler) GetExport(c *gin.Context) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := h.svc.GetExportStatus(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListExports handles GET /api/v1/reports/:id/exports
func (h *ExportHandler) ListExports(c *gin.Context) {
	reportID, ok := parseID(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.ListExports(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"total": len(items),
	})
}

// DownloadExport handles GET /api/v1/exports/:id/download and the local
// download route. Local artifacts are streamed; uploaded ones redirect to
// object storage.
func (h *ExportHandler) DownloadExport(c *gin.Context) {
	jobID, ok := parseID(c, "id")
	if !ok {
		return
	}

	d, err := h.svc.DownloadExport(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	if d.RemoteURL != "" {
		c.Redirect(http.StatusFound, d.RemoteURL)
		return
	}

	if !withinDir(h.outputDir, d.FilePath) || !validateFilename(d.FileName) {
		logger.Warn("Refusing to serve export outside the output directory",
			zap.Uint(logger.FieldExportJobID, jobID),
			zap.String("path", d.FilePath),
		)
		respondError(c, errors.New(errors.ErrCodeFileNotFound, "export file no longer exists"))
		return
	}

	c.Header("Content-Type", d.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.FileName))
	c.File(d.FilePath)
}
