// Package main is the entry point for the ReportGate application.
// ReportGate turns financial reports into downloadable PDF and HTML exports.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/consts"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/internal/database"
	"github.com/reportgate/reportgate/internal/export"
	"github.com/reportgate/reportgate/internal/server"
	"github.com/reportgate/reportgate/internal/shared"
	"github.com/reportgate/reportgate/internal/store"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
	"github.com/reportgate/reportgate/pkg/telemetry"
)

// Build information - set via ldflags during build
// These variables are linked to consts package for global access
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// init synchronizes build info to consts package for global access
func init() {
	consts.Version = Version
	consts.BuildTime = BuildTime
	consts.GitCommit = GitCommit
}

// configPath holds the path to the configuration file
var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reportgate",
	Short: "ReportGate - report export service",
	Long: `ReportGate renders financial reports, including their indicator charts,
into paginated PDF documents and mail-safe HTML pages.`,
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ReportGate server",
	Long: `Start the HTTP server that accepts export requests and serves artifacts.

Expired exports are swept on the configured cleanup schedule while the
server runs.`,
	Run: runServe,
}

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired exports once and exit",
	Run:   runCleanup,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", consts.ProjectName, Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
	},
}

func init() {
	// Disable auto-generated completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "config file path")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)

	// Serve command flags
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("debug", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe starts the ReportGate server
func runServe(cmd *cobra.Command, args []string) {
	consts.SetStartedAt(time.Now())

	cfg := mustLoadConfig()

	// Override config with command line flags
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
	}

	mustInitLogger(cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ReportGate", zap.String("version", Version))

	// Initialize telemetry (OpenTelemetry traces and metrics)
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}()

	if err := database.InitWithPath(cfg.Database.Path); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	dataStore := store.NewStore(database.Get())
	exportService := shared.InitExportService(context.Background(), cfg, dataStore)

	opts := []server.Option{server.WithTelemetry(tel)}
	if cfg.Export.CleanupSchedule != "" {
		opts = append(opts, server.WithCleanup(export.NewCleanupService(exportService, cfg.Export.CleanupSchedule)))
	} else {
		logger.Info("Cleanup schedule is empty, expired exports will not be swept")
	}

	srv := server.New(cfg, exportService, opts...)
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("ReportGate server is running",
		zap.String("address", cfg.Server.Address()),
	)

	// Log access URLs for user convenience
	port := cfg.Server.Port
	logger.Info(fmt.Sprintf("  Local:   http://localhost:%d/health", port))
	if lanIP := getLocalIP(); lanIP != "" {
		logger.Info(fmt.Sprintf("  Network: http://%s:%d/health", lanIP, port))
	}

	srv.WaitForShutdown()

	logger.Info("ReportGate stopped")
}

// runCleanup performs a single expiry sweep and reports how many exports it removed
func runCleanup(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	mustInitLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := database.InitWithPath(cfg.Database.Path); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dataStore := store.NewStore(database.Get())
	svc := shared.InitExportService(ctx, cfg, dataStore)

	removed, err := export.NewCleanupService(svc, cfg.Export.CleanupSchedule).RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d expired export(s)\n", removed)
}

// mustLoadConfig loads and validates the configuration, exiting on failure
func mustLoadConfig() *config.Config {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		fmt.Fprintf(os.Stderr, "\n[ERROR] Configuration validation failed\n")
		fmt.Fprintf(os.Stderr, "Error Code: %s\n", validationErr.Code)
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", validationErr.Message)
		os.Exit(errors.ExitCodeConfigValidation)
	}
	return cfg
}

func mustInitLogger(cfg *config.Config) {
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}

// getLocalIP returns the first non-loopback IPv4 address
func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
