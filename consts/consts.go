// Package consts defines cross-module constants used throughout the application.
package consts

import (
	"sync"
	"time"
)

// ServiceName is the application service name
const ServiceName = "reportgate"

// Project information constants
const (
	// ProjectName is the display name of the project
	ProjectName = "ReportGate"

	// ProjectURL is the repository URL
	ProjectURL = "https://github.com/reportgate/reportgate"
)

// Artifact layout. The same names are used for local sub-directories
// under the export output dir and as object storage key prefixes.
const (
	ArtifactDirPDF    = "pdf"
	ArtifactDirHTML   = "html"
	ArtifactDirCharts = "charts"
)

// DownloadRoutePrefix is the in-process download route used when an artifact
// is only available on local disk.
const DownloadRoutePrefix = "/exports/download/"

// Build information - set via ldflags during build or programmatically
var (
	// Version is the application version
	Version = "dev"

	// BuildTime is the build timestamp
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Server runtime information
var (
	startedAt   time.Time
	startedOnce sync.Once
)

// SetStartedAt records the server start time (can only be called once)
func SetStartedAt(t time.Time) {
	startedOnce.Do(func() {
		startedAt = t
	})
}

// GetStartedAt returns the server start time
func GetStartedAt() time.Time {
	return startedAt
}

// GetUptime returns the duration since server started
func GetUptime() time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	return time.Since(startedAt)
}
