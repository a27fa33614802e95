package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/reportgate/reportgate/pkg/errors"
)

// Validate checks the configuration for values the export pipeline cannot run with
func (c *Config) Validate() *errors.AppError {
	var failures []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		failures = append(failures, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		failures = append(failures, "database.path cannot be empty")
	}
	if strings.TrimSpace(c.Export.OutputDir) == "" {
		failures = append(failures, "export.output_dir cannot be empty")
	}
	if c.Export.RetentionHours <= 0 {
		failures = append(failures, "export.retention_hours must be positive")
	}
	if c.Export.ChartWidth <= 0 || c.Export.ChartHeight <= 0 {
		failures = append(failures, "export.chart_width and export.chart_height must be positive")
	}
	if c.Export.RenderTimeoutSeconds <= 0 {
		failures = append(failures, "export.render_timeout_seconds must be positive")
	}
	if c.Export.PDFSettleDelayMs < 0 {
		failures = append(failures, "export.pdf_settle_delay_ms cannot be negative")
	}
	if c.Export.MaxConcurrentRenders <= 0 {
		failures = append(failures, "export.max_concurrent_renders must be positive")
	}
	if c.Export.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.Export.CleanupSchedule); err != nil {
			failures = append(failures, fmt.Sprintf("export.cleanup_schedule is invalid: %v", err))
		}
	}

	// Partial storage settings are almost always a typo
	s := c.Storage
	if !s.Configured() && (s.Bucket != "" || s.AccessKeyID != "" || s.SecretAccessKey != "") {
		failures = append(failures, "storage requires bucket, access_key_id and secret_access_key together")
	}

	if len(failures) > 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "invalid configuration").
			WithDetails(failures)
	}
	return nil
}
