// Package telemetry provides OpenTelemetry integration for the application.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/pkg/logger"
)

const (
	// MeterName is the default meter name for the application
	MeterName = "github.com/reportgate/reportgate"
)

// Metrics holds all application metrics
type Metrics struct {
	// Export metrics
	ExportsTotal    metric.Int64Counter
	ExportsByStatus metric.Int64Counter
	ExportDuration  metric.Float64Histogram
	ActiveExports   metric.Int64UpDownCounter
	ExportsExpired  metric.Int64Counter

	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Chart metrics
	ChartRendersTotal   metric.Int64Counter
	ChartRenderErrors   metric.Int64Counter
	ChartRenderDuration metric.Float64Histogram

	// Storage metrics
	UploadsTotal metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		var err error
		globalMetrics, err = initMetrics()
		if err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			// Return empty metrics to avoid nil pointer
			globalMetrics = &Metrics{}
		}
	})
	return globalMetrics
}

// initMetrics initializes all application metrics
func initMetrics() (*Metrics, error) {
	meter := otel.Meter(MeterName)
	m := &Metrics{}

	var err error

	m.ExportsTotal, err = meter.Int64Counter(
		"reportgate_exports_total",
		metric.WithDescription("Total number of export jobs started"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	m.ExportsByStatus, err = meter.Int64Counter(
		"reportgate_exports_by_status_total",
		metric.WithDescription("Total number of export jobs by terminal status"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	m.ExportDuration, err = meter.Float64Histogram(
		"reportgate_export_duration_seconds",
		metric.WithDescription("Duration of export processing in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveExports, err = meter.Int64UpDownCounter(
		"reportgate_active_exports",
		metric.WithDescription("Number of export jobs currently processing"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	m.ExportsExpired, err = meter.Int64Counter(
		"reportgate_exports_expired_total",
		metric.WithDescription("Total number of expired export jobs removed by cleanup"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	// HTTP metrics
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"reportgate_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"reportgate_http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	// Chart metrics
	m.ChartRendersTotal, err = meter.Int64Counter(
		"reportgate_chart_renders_total",
		metric.WithDescription("Total number of chart render attempts"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		return nil, err
	}

	m.ChartRenderErrors, err = meter.Int64Counter(
		"reportgate_chart_render_errors_total",
		metric.WithDescription("Total number of failed chart renders"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.ChartRenderDuration, err = meter.Float64Histogram(
		"reportgate_chart_render_duration_seconds",
		metric.WithDescription("Duration of a single chart render in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	// Storage metrics
	m.UploadsTotal, err = meter.Int64Counter(
		"reportgate_storage_uploads_total",
		metric.WithDescription("Total number of object storage uploads"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Metrics initialized successfully")
	return m, nil
}

// RecordExportStarted records that an export job has started processing
func (m *Metrics) RecordExportStarted(ctx context.Context, exportType string) {
	if m.ExportsTotal == nil {
		return
	}
	m.ExportsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("export_type", exportType)),
	)
	if m.ActiveExports != nil {
		m.ActiveExports.Add(ctx, 1)
	}
}

// RecordExportFinished records that an export job has reached a terminal status
func (m *Metrics) RecordExportFinished(ctx context.Context, exportType, status string, durationSeconds float64) {
	if m.ActiveExports != nil {
		m.ActiveExports.Add(ctx, -1)
	}
	attrs := metric.WithAttributes(
		attribute.String("export_type", exportType),
		attribute.String("status", status),
	)
	if m.ExportsByStatus != nil {
		m.ExportsByStatus.Add(ctx, 1, attrs)
	}
	if m.ExportDuration != nil {
		m.ExportDuration.Record(ctx, durationSeconds, attrs)
	}
}

// RecordExportsExpired records export jobs removed by the expiry sweep
func (m *Metrics) RecordExportsExpired(ctx context.Context, count int64) {
	if m.ExportsExpired == nil || count == 0 {
		return
	}
	m.ExportsExpired.Add(ctx, count)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m.HTTPRequestsTotal != nil {
		m.HTTPRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
				attribute.Int("status_code", statusCode),
			),
		)
	}
	if m.HTTPRequestDuration != nil {
		m.HTTPRequestDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("path", path),
			),
		)
	}
}

// RecordChartRender records a chart render attempt
func (m *Metrics) RecordChartRender(ctx context.Context, shared bool, success bool, durationSeconds float64) {
	if m.ChartRendersTotal != nil {
		m.ChartRendersTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.Bool("shared_browser", shared),
				attribute.Bool("success", success),
			),
		)
	}
	if !success && m.ChartRenderErrors != nil {
		m.ChartRenderErrors.Add(ctx, 1)
	}
	if m.ChartRenderDuration != nil {
		m.ChartRenderDuration.Record(ctx, durationSeconds,
			metric.WithAttributes(attribute.Bool("success", success)),
		)
	}
}

// RecordUpload records an object storage upload
func (m *Metrics) RecordUpload(ctx context.Context, kind string, success bool) {
	if m.UploadsTotal == nil {
		return
	}
	m.UploadsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Bool("success", success),
		),
	)
}
