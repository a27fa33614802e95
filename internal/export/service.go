// Package export drives report export jobs from request to downloadable artifact.
package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/internal/export/chart"
	"github.com/reportgate/reportgate/internal/export/document"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/internal/storage"
	"github.com/reportgate/reportgate/internal/store"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
	"github.com/reportgate/reportgate/pkg/telemetry"
)

// ChartBatchRenderer renders all charts of one export
type ChartBatchRenderer interface {
	RenderBatch(ctx context.Context, jobs []chart.Request, size chart.Size) (map[uint]*chart.RenderResult, error)
}

// PDFRenderer prints assembled markup
type PDFRenderer interface {
	Render(ctx context.Context, markup, header string) ([]byte, error)
}

// Status is the client-facing view of an export job
type Status struct {
	ID           uint               `json:"id"`
	ReportID     uint               `json:"report_id"`
	ExportType   model.ExportType   `json:"export_type"`
	Status       model.ExportStatus `json:"status"`
	FilePath     *string            `json:"file_path,omitempty"`
	DownloadURL  *string            `json:"download_url,omitempty"`
	FileSize     *int64             `json:"file_size,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	RequestedBy  string             `json:"requested_by,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
}

// Download locates a completed artifact. Exactly one of FilePath and
// RemoteURL is set.
type Download struct {
	FilePath    string
	RemoteURL   string
	FileName    string
	ContentType string
}

// Service is the export orchestrator
type Service struct {
	store        store.Store
	materializer *Materializer
	charts       ChartBatchRenderer
	pdf          PDFRenderer
	storage      storage.Gateway
	cfg          config.ExportConfig
	metrics      *telemetry.Metrics
	now          func() time.Time
}

// NewService creates the export orchestrator. gateway may be nil when
// object storage is not used.
func NewService(s store.Store, charts ChartBatchRenderer, pdf PDFRenderer, gateway storage.Gateway, cfg config.ExportConfig) *Service {
	if gateway == nil {
		gateway = storage.NotConfigured{}
	}
	return &Service{
		store:        s,
		materializer: NewMaterializer(s.Report(), cfg.MaxConcurrentRenders),
		charts:       charts,
		pdf:          pdf,
		storage:      gateway,
		cfg:          cfg,
		metrics:      telemetry.GetMetrics(),
		now:          time.Now,
	}
}

// CreateExport records a pending job and processes it immediately. A
// processing failure is recorded on the job, which is still returned with a
// nil error.
func (s *Service) CreateExport(ctx context.Context, reportID uint, exportType model.ExportType, requesterID string, cfg *model.ExportConfig) (*model.ExportJob, error) {
	ctx = context.WithoutCancel(ctx)

	if !exportType.Valid() {
		return nil, errors.ErrValidation(fmt.Sprintf("unsupported export type: %q", exportType))
	}

	if _, err := s.store.Report().GetReportTree(reportID); err != nil {
		if store.IsNotFound(err) {
			return nil, errors.ErrNotFound("report")
		}
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to load report", err)
	}

	jobCfg := model.DefaultExportConfig()
	if cfg != nil {
		jobCfg = *cfg
	}

	job := &model.ExportJob{
		ReportID:    reportID,
		ExportType:  exportType,
		Status:      model.ExportStatusPending,
		Config:      jobCfg,
		RequestedBy: requesterID,
		Metadata: model.JSONMap{
			model.MetaRequestedAt: s.now().UTC().Format(time.RFC3339),
			model.MetaRequestedBy: requesterID,
		},
	}
	if err := s.store.ExportJob().Create(job); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to create export job", err)
	}

	logger.WithExportJob(job.ID, reportID).Info("Export job created",
		zap.String("export_type", string(exportType)),
		zap.String("requested_by", requesterID),
	)

	if err := s.ProcessExport(ctx, job.ID); err != nil {
		logger.WithExportJob(job.ID, reportID).Warn("Export job failed", zap.Error(err))
	}

	updated, err := s.store.ExportJob().GetByID(job.ID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to reload export job", err)
	}
	return updated, nil
}

// artifact is the outcome of a successful run
type artifact struct {
	filePath    string
	downloadURL string
	size        int64
	metadata    model.JSONMap
}

// panicError carries a recovered panic and the stack where it happened
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic during export: %v", e.value)
}

// ProcessExport drives a job from pending to completed or failed. Any error,
// including a panic, is written to the job, which never stays in processing.
// The run ignores cancellation of ctx; there is no way to abort an export.
func (s *Service) ProcessExport(ctx context.Context, jobID uint) (err error) {
	ctx = context.WithoutCancel(ctx)

	job, err := s.store.ExportJob().GetByID(jobID)
	if err != nil {
		if store.IsNotFound(err) {
			return errors.ErrNotFound("export job")
		}
		return errors.Wrap(errors.ErrCodeDBQuery, "failed to load export job", err)
	}

	log := logger.WithExportJob(job.ID, job.ReportID)
	ctx, span := telemetry.StartSpan(ctx, "export.ProcessExport",
		telemetry.WithExportAttributes(job.ID, job.ReportID, string(job.ExportType)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	startTime := time.Now()
	s.metrics.RecordExportStarted(ctx, string(job.ExportType))

	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}

		status := model.ExportStatusCompleted
		if err != nil {
			status = model.ExportStatusFailed
			s.markFailed(job, err)
			telemetry.SetSpanError(span, err)
			log.Error("Export failed", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
		} else {
			telemetry.SetSpanOK(span)
		}
		telemetry.SetSpanAttributes(span, telemetry.AttrExportStatus.String(string(status)))
		s.metrics.RecordExportFinished(ctx, string(job.ExportType), string(status), time.Since(startTime).Seconds())
	}()

	if err := s.store.ExportJob().Update(job.ID, map[string]interface{}{
		"status": model.ExportStatusProcessing,
	}); err != nil {
		return errors.Wrap(errors.ErrCodeDBQuery, "failed to mark export as processing", err)
	}
	log.Info("Export processing started", zap.String("export_type", string(job.ExportType)))

	art, err := s.run(ctx, job)
	if err != nil {
		return err
	}

	completedAt := s.now().UTC()
	expiresAt := completedAt.Add(s.cfg.Retention())
	if err := s.store.ExportJob().Update(job.ID, map[string]interface{}{
		"status":       model.ExportStatusCompleted,
		"file_path":    art.filePath,
		"download_url": art.downloadURL,
		"file_size":    art.size,
		"completed_at": completedAt,
		"expires_at":   expiresAt,
		"metadata":     art.metadata,
	}); err != nil {
		return errors.Wrap(errors.ErrCodeDBQuery, "failed to mark export as completed", err)
	}

	telemetry.SetSpanAttributes(span, telemetry.AttrArtifactSize.Int64(art.size))
	log.Info("Export completed",
		zap.String("file_path", art.filePath),
		zap.String("download_url", art.downloadURL),
		zap.Int64("file_size", art.size),
		zap.Duration("duration", time.Since(startTime)),
	)
	return nil
}

// run executes the pipeline stages and returns the stored artifact. Chart
// images are removed again when a later stage fails.
func (s *Service) run(ctx context.Context, job *model.ExportJob) (art *artifact, err error) {
	log := logger.WithExportJob(job.ID, job.ReportID)
	metadata := job.Metadata.Clone()

	report, err := s.loadReport(job.ReportID)
	if err != nil {
		return nil, err
	}

	charts := map[uint]*chart.RenderResult{}
	if job.Config.IncludeCharts {
		if err := s.materializer.Materialize(ctx, report); err != nil {
			return nil, err
		}
		// Reload so assembly sees exactly what was persisted
		if report, err = s.loadReport(job.ReportID); err != nil {
			return nil, err
		}

		requests := chartRequests(report)
		metadata[model.MetaChartsTotal] = len(requests)
		if len(requests) > 0 {
			charts, err = s.charts.RenderBatch(ctx, requests, chart.Size{Width: s.cfg.ChartWidth, Height: s.cfg.ChartHeight})
			if err != nil {
				return nil, err
			}
		}
		metadata[model.MetaChartsOK] = len(charts)

		files, keys := chartImages(charts)
		metadata[model.MetaChartFiles] = files
		metadata[model.MetaChartKeys] = keys
		defer func() {
			if err != nil {
				s.removeChartImages(ctx, job, files, keys)
			}
		}()
		log.Debug("Charts rendered", zap.Int("requested", len(requests)), zap.Int("rendered", len(charts)))
	}

	opts := document.Options{
		Charts:      charts,
		SkipCharts:  !job.Config.IncludeCharts,
		SkipImages:  !job.Config.IncludeImages,
		Disclaimer:  s.cfg.Disclaimer,
		GeneratedAt: s.now(),
	}

	var data []byte
	switch job.ExportType {
	case model.ExportTypePDF:
		markup, err := document.AssemblePrint(report, opts)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeAssembleFailed, "failed to assemble print document", err)
		}
		data, err = s.pdf.Render(ctx, markup, reportTitle(report))
		if err != nil {
			return nil, err
		}
	case model.ExportTypeHTML:
		markup, err := document.AssembleHTML(report, opts)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeAssembleFailed, "failed to assemble HTML document", err)
		}
		data = []byte(markup)
	default:
		return nil, errors.ErrValidation(fmt.Sprintf("unsupported export type: %q", job.ExportType))
	}

	fileName := ArtifactFileName(job, s.now())
	localPath, err := writeArtifact(artifactDir(s.cfg.OutputDir, job.ExportType), fileName, data)
	if err != nil {
		return nil, errors.ErrInternal("failed to store artifact", err)
	}

	art = &artifact{
		filePath:    localPath,
		downloadURL: LocalDownloadURL(s.cfg.PublicBaseURL, job.ID),
		size:        int64(len(data)),
		metadata:    metadata,
	}
	s.upload(ctx, job, fileName, art)
	return art, nil
}

// upload pushes the artifact to object storage. Any failure keeps the local
// file and the in-process download URL.
func (s *Service) upload(ctx context.Context, job *model.ExportJob, fileName string, art *artifact) {
	log := logger.WithExportJob(job.ID, job.ReportID)
	if !s.storage.Configured() {
		log.Debug("Object storage not configured, serving artifact locally")
		return
	}

	key := StorageKey(job, fileName)
	res, err := s.storage.Upload(ctx, art.filePath, key, job.ExportType.ContentType())
	s.metrics.RecordUpload(ctx, string(job.ExportType), err == nil)
	if err != nil {
		log.Warn("Artifact upload failed, falling back to local download",
			zap.String("storage_key", key),
			zap.Error(err),
		)
		return
	}

	art.metadata[model.MetaStorageKey] = res.Key
	art.metadata[model.MetaStorageURL] = res.URL
	art.downloadURL = res.URL

	if s.cfg.CleanupLocalAfterUpload {
		if err := os.Remove(art.filePath); err != nil {
			log.Warn("Failed to remove local artifact after upload", zap.String("path", art.filePath), zap.Error(err))
			return
		}
		art.filePath = res.Key
	}
}

// chartImages lists the local files and storage keys of rendered charts in
// chart id order
func chartImages(charts map[uint]*chart.RenderResult) (files, keys []string) {
	ids := make([]uint, 0, len(charts))
	for id := range charts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	files, keys = []string{}, []string{}
	for _, id := range ids {
		res := charts[id]
		if res.FilePath != "" {
			files = append(files, res.FilePath)
		}
		if res.StorageKey != "" {
			keys = append(keys, res.StorageKey)
		}
	}
	return files, keys
}

// removeChartImages deletes chart images best effort
func (s *Service) removeChartImages(ctx context.Context, job *model.ExportJob, files, keys []string) {
	log := logger.WithExportJob(job.ID, job.ReportID)
	for _, path := range files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove chart image", zap.String("path", path), zap.Error(err))
		}
	}
	if !s.storage.Configured() {
		return
	}
	for _, key := range keys {
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Warn("Failed to delete remote chart image", zap.String("storage_key", key), zap.Error(err))
		}
	}
}

// markFailed records the error on the job and clears artifact fields
func (s *Service) markFailed(job *model.ExportJob, cause error) {
	metadata := job.Metadata.Clone()
	metadata[model.MetaError] = failureMessage(cause)
	metadata[model.MetaErrorStack] = errorStack(cause)
	metadata[model.MetaFailedAt] = s.now().UTC().Format(time.RFC3339)

	err := s.store.ExportJob().Update(job.ID, map[string]interface{}{
		"status":       model.ExportStatusFailed,
		"file_path":    nil,
		"download_url": nil,
		"file_size":    nil,
		"completed_at": nil,
		"expires_at":   nil,
		"metadata":     metadata,
	})
	if err != nil {
		logger.WithExportJob(job.ID, job.ReportID).Error("Failed to record export failure", zap.Error(err))
	}
}

// failureMessage is the message shown to clients for a failed job
func failureMessage(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		if appErr.Err != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
		}
		return appErr.Message
	}
	return err.Error()
}

// errorStack renders the wrap chain of err, or the goroutine stack of a panic
func errorStack(err error) string {
	var p *panicError
	if stderrors.As(err, &p) {
		return p.stack
	}
	var parts []string
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

func (s *Service) loadReport(reportID uint) (*model.Report, error) {
	report, err := s.store.Report().GetReportTree(reportID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.ErrNotFound("report")
		}
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to load report", err)
	}
	return report, nil
}

// chartRequests collects render requests for chart blocks that have data
func chartRequests(report *model.Report) []chart.Request {
	var requests []chart.Request
	for _, section := range report.Sections {
		for i := range section.Blocks {
			block := &section.Blocks[i]
			if block.Type != model.BlockTypeChart {
				continue
			}
			content, err := block.Decode()
			if err != nil {
				continue
			}
			c := content.(*model.ChartContent)
			if !c.HasData() {
				continue
			}
			requests = append(requests, chart.RequestFromContent(block.ID, c))
		}
	}
	return requests
}

func reportTitle(report *model.Report) string {
	if report.Title != "" {
		return report.Title
	}
	return report.ReportTypeName
}

// GetExportStatus returns the current view of a job
func (s *Service) GetExportStatus(ctx context.Context, jobID uint) (*Status, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return nil, err
	}
	status := StatusOf(job)
	return &status, nil
}

// ListExports returns a report's jobs, newest first
func (s *Service) ListExports(ctx context.Context, reportID uint) ([]Status, error) {
	jobs, err := s.store.ExportJob().ListByReport(reportID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to list export jobs", err)
	}
	out := make([]Status, 0, len(jobs))
	for i := range jobs {
		out = append(out, StatusOf(&jobs[i]))
	}
	return out, nil
}

// DownloadExport locates the artifact of a completed job
func (s *Service) DownloadExport(ctx context.Context, jobID uint) (*Download, error) {
	job, err := s.getJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.ExportStatusCompleted || job.FilePath == nil || *job.FilePath == "" {
		return nil, errors.ErrInvalidState(fmt.Sprintf("export %d is not ready for download (status: %s)", job.ID, job.Status))
	}

	d := &Download{
		FileName:    DownloadFileName(job, s.now()),
		ContentType: job.ExportType.ContentType(),
	}
	if path := *job.FilePath; path != job.StorageKey() && fileExists(path) {
		d.FilePath = path
		return d, nil
	}
	if url := job.StorageURL(); url != "" {
		d.RemoteURL = url
		return d, nil
	}
	return nil, errors.New(errors.ErrCodeFileNotFound, "export file no longer exists")
}

// CleanupExpiredExports removes completed jobs past their expiry: the local
// file, remote object and chart images first, then the row. A failure on one job is logged
// and the sweep moves on.
func (s *Service) CleanupExpiredExports(ctx context.Context) (int, error) {
	jobs, err := s.store.ExportJob().ListExpiredCompleted(s.now())
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeDBQuery, "failed to list expired exports", err)
	}

	removed := 0
	for i := range jobs {
		job := &jobs[i]
		log := logger.WithExportJob(job.ID, job.ReportID)
		key := job.StorageKey()

		if job.FilePath != nil && *job.FilePath != "" && *job.FilePath != key {
			if err := os.Remove(*job.FilePath); err != nil && !os.IsNotExist(err) {
				log.Warn("Failed to remove expired artifact", zap.String("path", *job.FilePath), zap.Error(err))
			}
		}
		if key != "" && s.storage.Configured() {
			if err := s.storage.Delete(ctx, key); err != nil {
				log.Warn("Failed to delete expired remote artifact", zap.String("storage_key", key), zap.Error(err))
			}
		}
		s.removeChartImages(ctx, job, job.ChartFiles(), job.ChartKeys())
		if err := s.store.ExportJob().Delete(job.ID); err != nil {
			log.Warn("Failed to delete expired export job", zap.Error(err))
			continue
		}
		removed++
	}

	s.metrics.RecordExportsExpired(ctx, int64(removed))
	if removed > 0 {
		logger.Info("Expired exports removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *Service) getJob(jobID uint) (*model.ExportJob, error) {
	job, err := s.store.ExportJob().GetByID(jobID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, errors.ErrNotFound("export job")
		}
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to load export job", err)
	}
	return job, nil
}

// StatusOf returns the client-facing view of job
func StatusOf(job *model.ExportJob) Status {
	return Status{
		ID:           job.ID,
		ReportID:     job.ReportID,
		ExportType:   job.ExportType,
		Status:       job.Status,
		FilePath:     job.FilePath,
		DownloadURL:  job.DownloadURL,
		FileSize:     job.FileSize,
		ErrorMessage: job.ErrorMessage(),
		RequestedBy:  job.RequestedBy,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
		ExpiresAt:    job.ExpiresAt,
	}
}
