// Package pdf prints assembled report markup to PDF with headless Chrome.
package pdf

import (
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/reportgate/reportgate/internal/browser"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
	"github.com/reportgate/reportgate/pkg/telemetry"
)

// Options contains configuration for PDF generation
type Options struct {
	// Paper dimensions in inches (A4: 8.27 x 11.69)
	PaperWidth  float64
	PaperHeight float64

	// Margins in inches
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	// SettleDelay lets images and canvases finish painting before print
	SettleDelay time.Duration

	// Timeout for PDF generation
	Timeout time.Duration

	// Disclaimer is printed in the footer of every page
	Disclaimer string
}

// DefaultOptions returns default options for A4 paper
func DefaultOptions() Options {
	return Options{
		PaperWidth:  browser.A4Width,
		PaperHeight: browser.A4Height,

		MarginTop:    0.71, // ~18mm, leaves room for the header
		MarginBottom: 0.79, // ~20mm, two-line footer
		MarginLeft:   0.79,
		MarginRight:  0.79,

		SettleDelay: time.Second,
		Timeout:     120 * time.Second,
	}
}

// OptionsFromConfig applies export configuration to the defaults
func OptionsFromConfig(cfg *config.ExportConfig) Options {
	opts := DefaultOptions()
	if d := cfg.PDFSettleDelay(); d > 0 {
		opts.SettleDelay = d
	}
	opts.Disclaimer = cfg.Disclaimer
	return opts
}

// Renderer turns markup into PDF bytes. Every call launches its own browser
// and closes it before returning.
type Renderer struct {
	launcher browser.Launcher
	opts     Options
}

// NewRenderer creates a PDF renderer
func NewRenderer(launcher browser.Launcher, opts Options) *Renderer {
	return &Renderer{launcher: launcher, opts: opts}
}

// Render prints markup to PDF. header is the report name shown at the top of each page.
func (r *Renderer) Render(ctx context.Context, markup, header string) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "pdf.Render")
	defer span.End()

	startTime := time.Now()
	logger.Debug("Starting PDF render",
		zap.Int("html_size", len(markup)),
		zap.Duration("settle_delay", r.opts.SettleDelay),
	)

	b, err := r.launcher.Launch(ctx)
	if err != nil {
		appErr := errors.Wrap(errors.ErrCodeBrowserLaunch, "failed to launch browser for PDF", err)
		telemetry.SetSpanError(span, appErr)
		return nil, appErr
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Debug("Browser close returned error", zap.Error(err))
		}
	}()

	data, err := b.PrintToPDF(ctx, browser.PrintRequest{
		Document:            markup,
		SettleDelay:         r.opts.SettleDelay,
		Timeout:             r.opts.Timeout,
		PaperWidth:          r.opts.PaperWidth,
		PaperHeight:         r.opts.PaperHeight,
		MarginTop:           r.opts.MarginTop,
		MarginBottom:        r.opts.MarginBottom,
		MarginLeft:          r.opts.MarginLeft,
		MarginRight:         r.opts.MarginRight,
		DisplayHeaderFooter: true,
		HeaderTemplate:      HeaderTemplate(header),
		FooterTemplate:      FooterTemplate(r.opts.Disclaimer),
		PrintBackground:     true,
	})
	if err != nil {
		code := errors.ErrCodeRenderFailure
		if stderrors.Is(err, context.DeadlineExceeded) {
			code = errors.ErrCodeRenderTimeout
		}
		appErr := errors.Wrap(code, "failed to print PDF", err)
		telemetry.SetSpanError(span, appErr)
		return nil, appErr
	}

	telemetry.SetSpanAttributes(span, telemetry.AttrArtifactSize.Int(len(data)))
	telemetry.SetSpanOK(span)

	logger.Info("PDF rendered",
		zap.String("pdf_size", formatBytes(len(data))),
		zap.Duration("duration", time.Since(startTime)),
	)
	return data, nil
}

// HeaderTemplate returns the page header. Chrome fills elements with the
// classes pageNumber, totalPages, title, url and date.
func HeaderTemplate(title string) string {
	return fmt.Sprintf(`<div style="width:100%%; padding:6px 40px 0 40px; font-size:9px; font-family:system-ui,-apple-system,sans-serif; color:#6b7280; display:flex; justify-content:space-between; align-items:center;">
	<span style="font-weight:600; color:#1e3a8a;">%s</span>
	<span class="date"></span>
</div>`, html.EscapeString(title))
}

// FooterTemplate returns the page footer with the disclaimer and page numbers
func FooterTemplate(disclaimer string) string {
	return fmt.Sprintf(`<div style="width:100%%; padding:0 40px; font-size:8px; font-family:system-ui,-apple-system,sans-serif; color:#6b7280; display:flex; justify-content:space-between; align-items:flex-end; gap:16px;">
	<span style="flex:1; line-height:1.3;">%s</span>
	<span style="white-space:nowrap;">Page <span class="pageNumber"></span> of <span class="totalPages"></span></span>
</div>`, html.EscapeString(disclaimer))
}

// formatBytes formats a byte count for logs
func formatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
