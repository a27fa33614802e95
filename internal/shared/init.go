// Package shared provides the component wiring shared by the serve and cleanup commands.
package shared

import (
	"context"

	"go.uber.org/zap"

	"github.com/reportgate/reportgate/internal/browser"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/internal/export"
	"github.com/reportgate/reportgate/internal/export/chart"
	"github.com/reportgate/reportgate/internal/export/pdf"
	"github.com/reportgate/reportgate/internal/storage"
	"github.com/reportgate/reportgate/internal/store"
	"github.com/reportgate/reportgate/pkg/logger"
)

// InitStorage builds the object storage gateway. A gateway that cannot be
// built is logged and replaced by one that keeps artifacts local.
func InitStorage(ctx context.Context, cfg *config.Config) storage.Gateway {
	gw, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("Failed to initialize object storage, artifacts stay on local disk",
			zap.String("bucket", cfg.Storage.Bucket),
			zap.Error(err),
		)
		return storage.NotConfigured{}
	}

	if gw.Configured() {
		logger.Info("Initialized object storage",
			zap.String("bucket", cfg.Storage.Bucket),
			zap.String("endpoint", cfg.Storage.Endpoint),
		)
	} else {
		logger.Info("Object storage not configured, artifacts stay on local disk")
	}
	return gw
}

// InitLauncher builds the headless Chrome launcher.
func InitLauncher(cfg *config.Config) browser.Launcher {
	return browser.NewChromeLauncher(browser.ChromeOptions{ExecPath: cfg.Export.ChromePath})
}

// InitExportService wires the export pipeline with a Chrome launcher.
func InitExportService(ctx context.Context, cfg *config.Config, s store.Store) *export.Service {
	return InitExportServiceWithLauncher(cfg, s, InitLauncher(cfg), InitStorage(ctx, cfg))
}

// InitExportServiceWithLauncher wires the export pipeline around the given
// launcher and gateway.
func InitExportServiceWithLauncher(cfg *config.Config, s store.Store, launcher browser.Launcher, gw storage.Gateway) *export.Service {
	charts := chart.NewRenderer(launcher, gw, chart.OptionsFromConfig(&cfg.Export))
	printer := pdf.NewRenderer(launcher, pdf.OptionsFromConfig(&cfg.Export))

	logger.Info("Initialized export pipeline",
		zap.String("output_dir", cfg.Export.OutputDir),
		zap.Int("max_concurrent_renders", cfg.Export.MaxConcurrentRenders),
		zap.Int("retention_hours", cfg.Export.RetentionHours),
	)
	return export.NewService(s, charts, printer, gw, cfg.Export)
}
