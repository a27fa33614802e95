// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/reportgate/reportgate/consts"
	"github.com/reportgate/reportgate/pkg/logger"
	"github.com/reportgate/reportgate/pkg/telemetry"
)

// Default configuration values
const (
	defaultOutputDir            = "./exports"
	defaultDatabasePath         = "./data/reportgate.db"
	defaultRetentionHours       = 72
	defaultCleanupSchedule      = "0 * * * *" // Every hour
	defaultChartWidth           = 800
	defaultChartHeight          = 400
	defaultRenderTimeoutSeconds = 30
	defaultPDFSettleDelayMs     = 1000
	defaultMaxConcurrentRenders = 4
	defaultChartJSURL           = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"
	defaultDisclaimer           = "This document is provided for information purposes only and does not constitute investment advice."
	defaultStorageRegion        = "us-east-1"
	defaultOTLPEndpoint         = "localhost:4317"
	defaultPrometheusPort       = 9090
)

// DefaultConfigPath is the default location of the configuration file
const DefaultConfigPath = "config/reportgate.yaml"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Export    ExportConfig     `yaml:"export"`
	Storage   StorageConfig    `yaml:"storage"`
	Logging   logger.Config    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Debug       bool     `yaml:"debug"`
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins whitelist
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Path is the SQLite database file path
	Path string `yaml:"path"`
}

// ExportConfig holds document export pipeline configuration
type ExportConfig struct {
	// OutputDir is the root directory for generated artifacts (pdf/, html/, charts/)
	OutputDir string `yaml:"output_dir"`
	// RetentionHours is how long completed exports are kept before the expiry sweep removes them
	RetentionHours int `yaml:"retention_hours"`
	// CleanupSchedule is the cron expression for the expiry sweep (empty disables it)
	CleanupSchedule string `yaml:"cleanup_schedule"`
	// CleanupLocalAfterUpload removes the local artifact once it is stored remotely
	CleanupLocalAfterUpload bool `yaml:"cleanup_local_after_upload"`

	ChartWidth  int `yaml:"chart_width"`
	ChartHeight int `yaml:"chart_height"`

	// RenderTimeoutSeconds bounds navigation and canvas readiness for one chart
	RenderTimeoutSeconds int `yaml:"render_timeout_seconds"`
	// PDFSettleDelayMs is the pause before print-to-PDF so images finish painting
	PDFSettleDelayMs int `yaml:"pdf_settle_delay_ms"`
	// MaxConcurrentRenders caps parallel chart renders and indicator fetches
	MaxConcurrentRenders int `yaml:"max_concurrent_renders"`

	// ChromePath overrides the browser executable (CHROME_PATH env is also honored)
	ChromePath string `yaml:"chrome_path"`
	// ChartJSURL is the Chart.js bundle embedded in chart documents
	ChartJSURL string `yaml:"chartjs_url"`
	// Disclaimer is printed in every PDF footer
	Disclaimer string `yaml:"disclaimer"`
	// PublicBaseURL prefixes the local download route (empty keeps it relative)
	PublicBaseURL string `yaml:"public_base_url"`
}

// StorageConfig holds S3-compatible object storage configuration.
// Storage is optional: when bucket or credentials are missing the pipeline
// keeps artifacts on local disk.
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// PublicBaseURL is used to build object URLs (defaults to endpoint/bucket)
	PublicBaseURL string `yaml:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style"`
}

// Configured reports whether enough settings are present to talk to the bucket
func (c *StorageConfig) Configured() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// RenderTimeout returns the per-chart render timeout
func (c *ExportConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSeconds) * time.Second
}

// PDFSettleDelay returns the pause before printing
func (c *ExportConfig) PDFSettleDelay() time.Duration {
	return time.Duration(c.PDFSettleDelayMs) * time.Millisecond
}

// Retention returns how long completed exports are kept
func (c *ExportConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  "0.0.0.0",
			Port:  8080,
			Debug: false,
			CORSOrigins: []string{
				"http://localhost:3000",
			},
		},
		Database: DatabaseConfig{
			Path: defaultDatabasePath,
		},
		Export: ExportConfig{
			OutputDir:               defaultOutputDir,
			RetentionHours:          defaultRetentionHours,
			CleanupSchedule:         defaultCleanupSchedule,
			CleanupLocalAfterUpload: false,
			ChartWidth:              defaultChartWidth,
			ChartHeight:             defaultChartHeight,
			RenderTimeoutSeconds:    defaultRenderTimeoutSeconds,
			PDFSettleDelayMs:        defaultPDFSettleDelayMs,
			MaxConcurrentRenders:    defaultMaxConcurrentRenders,
			ChartJSURL:              defaultChartJSURL,
			Disclaimer:              defaultDisclaimer,
		},
		Storage: StorageConfig{
			Region: defaultStorageRegion,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text", // Default to human-readable text format instead of JSON
			File:       "",
			MaxSize:    100, // Max 100MB per log file
			MaxAge:     7,   // Retain logs for 7 days
			MaxBackups: 5,   // Keep 5 backup files
			Compress:   false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPrometheusPort,
				Path:    "/metrics",
			},
		},
	}
}

// Load loads configuration from a YAML file with environment variable expansion.
// RG_* environment variables are applied last and win over file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables in the configuration
	expanded := expandEnvVars(string(data))

	// Parse YAML
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault loads the file when it exists and falls back to defaults plus
// environment overrides otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values
// Only matches ${VAR_NAME} format (not $VAR_NAME) so literal dollar signs survive
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]

		// Support default values: ${VAR_NAME:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}

		if len(parts) > 1 {
			return parts[1]
		}

		return ""
	})
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
