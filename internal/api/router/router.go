// Package router sets up the API routes for the application.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/reportgate/reportgate/consts"
	"github.com/reportgate/reportgate/internal/api/handler"
	"github.com/reportgate/reportgate/internal/api/middleware"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/pkg/telemetry"
)

// Setup configures all API routes. tel may be nil when telemetry is not initialized.
func Setup(r *gin.Engine, cfg *config.Config, svc handler.ExportService, tel *telemetry.Telemetry) {
	// Apply global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))
	r.Use(middleware.Metrics())

	// Apply OpenTelemetry tracing middleware
	r.Use(otelgin.Middleware(consts.ServiceName))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": consts.Version,
		})
	})

	if tel != nil && tel.MetricsHandler() != nil {
		r.GET(tel.MetricsPath(), gin.WrapH(tel.MetricsHandler()))
	}

	exportHandler := handler.NewExportHandler(svc, cfg.Export.OutputDir)

	v1 := r.Group("/api/v1")

	reports := v1.Group("/reports")
	{
		reports.POST("/:id/exports/pdf", exportHandler.CreatePDFExport)
		reports.POST("/:id/exports/html", exportHandler.CreateHTMLExport)
		reports.GET("/:id/exports", exportHandler.ListExports)
	}

	exports := v1.Group("/exports")
	{
		exports.GET("/:id", exportHandler.GetExport)
		exports.GET("/:id/download", exportHandler.DownloadExport)
	}

	// Local artifact route used as the download URL when nothing was uploaded
	r.GET(consts.DownloadRoutePrefix+":id", exportHandler.DownloadExport)
}
