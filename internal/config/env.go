package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides applies RG_* environment variable overrides:
//   - RG_SERVER_HOST, RG_SERVER_PORT, RG_SERVER_DEBUG
//   - RG_DATABASE_PATH
//   - RG_EXPORT_OUTPUT_DIR, RG_EXPORT_RETENTION_HOURS, RG_CHROME_PATH
//   - RG_STORAGE_ENDPOINT, RG_STORAGE_REGION, RG_STORAGE_BUCKET,
//     RG_STORAGE_ACCESS_KEY_ID, RG_STORAGE_SECRET_ACCESS_KEY, RG_STORAGE_PUBLIC_BASE_URL
//   - RG_LOG_LEVEL, RG_LOG_FORMAT, RG_LOG_FILE
//   - RG_TELEMETRY_ENABLED, RG_OTLP_ENABLED, RG_OTLP_ENDPOINT, RG_PROMETHEUS_ENABLED, RG_PROMETHEUS_PORT
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString(&cfg.Server.Host, "RG_SERVER_HOST")
	setInt(&cfg.Server.Port, "RG_SERVER_PORT")
	setBool(&cfg.Server.Debug, "RG_SERVER_DEBUG")

	// Database overrides
	setString(&cfg.Database.Path, "RG_DATABASE_PATH")

	// Export overrides
	setString(&cfg.Export.OutputDir, "RG_EXPORT_OUTPUT_DIR")
	setInt(&cfg.Export.RetentionHours, "RG_EXPORT_RETENTION_HOURS")
	setString(&cfg.Export.ChromePath, "RG_CHROME_PATH")
	setString(&cfg.Export.PublicBaseURL, "RG_EXPORT_PUBLIC_BASE_URL")

	// Storage overrides
	setString(&cfg.Storage.Endpoint, "RG_STORAGE_ENDPOINT")
	setString(&cfg.Storage.Region, "RG_STORAGE_REGION")
	setString(&cfg.Storage.Bucket, "RG_STORAGE_BUCKET")
	setString(&cfg.Storage.AccessKeyID, "RG_STORAGE_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "RG_STORAGE_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.PublicBaseURL, "RG_STORAGE_PUBLIC_BASE_URL")

	// Logging overrides
	setString(&cfg.Logging.Level, "RG_LOG_LEVEL")
	setString(&cfg.Logging.Format, "RG_LOG_FORMAT")
	setString(&cfg.Logging.File, "RG_LOG_FILE")

	// Telemetry overrides
	setBool(&cfg.Telemetry.Enabled, "RG_TELEMETRY_ENABLED")
	setBool(&cfg.Telemetry.OTLP.Enabled, "RG_OTLP_ENABLED")
	setString(&cfg.Telemetry.OTLP.Endpoint, "RG_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Prometheus.Enabled, "RG_PROMETHEUS_ENABLED")
	setInt(&cfg.Telemetry.Prometheus.Port, "RG_PROMETHEUS_PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = parseBool(v)
	}
}

// parseBool parses a boolean string value
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}
