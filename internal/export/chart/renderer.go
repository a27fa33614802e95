// Package chart renders chart blocks to PNG images with headless Chrome and Chart.js.
package chart

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reportgate/reportgate/consts"
	"github.com/reportgate/reportgate/internal/browser"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/internal/storage"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/idgen"
	"github.com/reportgate/reportgate/pkg/logger"
	"github.com/reportgate/reportgate/pkg/telemetry"
)

// Size is a canvas size in CSS pixels
type Size struct {
	Width  int
	Height int
}

// Request is one chart to render
type Request struct {
	// ChartID is the id of the block the chart belongs to
	ChartID   uint
	Title     string
	ChartType string
	Style     model.ChartStyle
	Data      *model.ChartData
	Size
}

// RenderResult is a rendered chart image
type RenderResult struct {
	FilePath string
	FileName string
	FileSize int64
	// Set when the image was uploaded to object storage
	StorageURL string
	StorageKey string
}

// Options configures a Renderer
type Options struct {
	OutputDir               string
	DefaultSize             Size
	RenderTimeout           time.Duration
	ChartJSURL              string
	CleanupLocalAfterUpload bool
	// MaxConcurrent bounds in-flight renders within a batch
	MaxConcurrent int
}

// OptionsFromConfig derives renderer options from export configuration
func OptionsFromConfig(cfg *config.ExportConfig) Options {
	return Options{
		OutputDir:               cfg.OutputDir,
		DefaultSize:             Size{Width: cfg.ChartWidth, Height: cfg.ChartHeight},
		RenderTimeout:           cfg.RenderTimeout(),
		ChartJSURL:              cfg.ChartJSURL,
		CleanupLocalAfterUpload: cfg.CleanupLocalAfterUpload,
		MaxConcurrent:           cfg.MaxConcurrentRenders,
	}
}

// Renderer renders charts to images
type Renderer struct {
	launcher browser.Launcher
	storage  storage.Gateway
	opts     Options
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewRenderer creates a chart renderer. gateway may be nil.
func NewRenderer(launcher browser.Launcher, gateway storage.Gateway, opts Options) *Renderer {
	if opts.DefaultSize.Width <= 0 {
		opts.DefaultSize.Width = 800
	}
	if opts.DefaultSize.Height <= 0 {
		opts.DefaultSize.Height = 400
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 30 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if gateway == nil {
		gateway = storage.NotConfigured{}
	}
	return &Renderer{
		launcher: launcher,
		storage:  gateway,
		opts:     opts,
		metrics:  telemetry.GetMetrics(),
		now:      time.Now,
	}
}

// RenderChart renders one chart. When shared is nil a dedicated browser is
// launched for this call and closed before it returns; a shared browser is
// only borrowed and left open.
func (r *Renderer) RenderChart(ctx context.Context, req Request, shared browser.Browser) (*RenderResult, error) {
	start := time.Now()
	result, err := r.renderChart(ctx, req, shared)
	r.metrics.RecordChartRender(ctx, shared != nil, err == nil, time.Since(start).Seconds())
	if err != nil {
		logger.Warn("Chart render failed",
			zap.Uint(logger.FieldChartID, req.ChartID),
			zap.Bool("shared_browser", shared != nil),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (r *Renderer) renderChart(ctx context.Context, req Request, shared browser.Browser) (*RenderResult, error) {
	if req.Width <= 0 || req.Height <= 0 {
		req.Size = r.opts.DefaultSize
	}

	doc, err := buildPage(req, r.opts.ChartJSURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, "failed to build chart page", err)
	}

	b := shared
	if b == nil {
		b, err = r.launcher.Launch(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBrowserLaunch, "failed to launch browser", err)
		}
		defer closeBrowser(b)
	}

	png, err := b.CaptureElement(ctx, browser.CaptureRequest{
		Document:        doc,
		Width:           req.Width,
		Height:          req.Height,
		Selector:        canvasSelector,
		ReadyExpression: readyExpression,
		Timeout:         r.opts.RenderTimeout,
	})
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.ErrCodeRenderTimeout, "chart canvas was not ready in time", err)
		}
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, "failed to capture chart", err)
	}

	result, err := r.writeImage(req.ChartID, png)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, "failed to write chart image", err)
	}

	r.upload(ctx, req.ChartID, result)
	return result, nil
}

// RenderBatch renders every request on one shared browser. A launch failure
// is returned; individual render failures are logged and left out of the map.
// The browser is closed once, after all renders have settled.
func (r *Renderer) RenderBatch(ctx context.Context, jobs []Request, size Size) (map[uint]*RenderResult, error) {
	results := make(map[uint]*RenderResult, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "chart.RenderBatch", telemetry.WithChartBatchAttributes(len(jobs)))
	defer span.End()

	b, err := r.launcher.Launch(ctx)
	if err != nil {
		appErr := errors.Wrap(errors.ErrCodeBrowserLaunch, "failed to launch shared browser", err)
		telemetry.SetSpanError(span, appErr)
		return nil, appErr
	}
	defer closeBrowser(b)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.opts.MaxConcurrent)

	for _, job := range jobs {
		if size.Width > 0 && size.Height > 0 {
			job.Size = size
		}
		g.Go(func() error {
			res, err := r.RenderChart(ctx, job, b)
			if err != nil {
				return nil
			}
			mu.Lock()
			results[job.ChartID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	telemetry.SetSpanAttributes(span, telemetry.AttrChartRendered.Int(len(results)))
	telemetry.SetSpanOK(span)

	logger.Info("Chart batch rendered",
		zap.Int("requested", len(jobs)),
		zap.Int("rendered", len(results)),
	)
	return results, nil
}

// FileName returns the image name for a chart rendered at t
func FileName(chartID uint, t time.Time) string {
	return fmt.Sprintf("chart_%d_%s_%s.png", chartID, t.UTC().Format("20060102_1504"), idgen.NewFileSuffix())
}

func (r *Renderer) writeImage(chartID uint, png []byte) (*RenderResult, error) {
	dir := filepath.Join(r.opts.OutputDir, consts.ArtifactDirCharts)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	name := FileName(chartID, r.now())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, png, 0644); err != nil {
		return nil, err
	}

	return &RenderResult{
		FilePath: path,
		FileName: name,
		FileSize: int64(len(png)),
	}, nil
}

// upload copies the image to object storage. Failures keep the local file.
func (r *Renderer) upload(ctx context.Context, chartID uint, result *RenderResult) {
	if !r.storage.Configured() {
		return
	}

	key := fmt.Sprintf("%s/%d/%s", consts.ArtifactDirCharts, chartID, result.FileName)
	up, err := r.storage.Upload(ctx, result.FilePath, key, "image/png")
	r.metrics.RecordUpload(ctx, "chart", err == nil)
	if err != nil {
		logger.Warn("Chart upload failed, keeping local image",
			zap.Uint(logger.FieldChartID, chartID),
			zap.String("path", result.FilePath),
			zap.Error(err),
		)
		return
	}

	result.StorageURL = up.URL
	result.StorageKey = up.Key

	if r.opts.CleanupLocalAfterUpload {
		if err := os.Remove(result.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove local chart image", zap.String("path", result.FilePath), zap.Error(err))
		}
	}
}

func closeBrowser(b browser.Browser) {
	if err := b.Close(); err != nil {
		logger.Debug("Browser close returned error", zap.Error(err))
	}
}
