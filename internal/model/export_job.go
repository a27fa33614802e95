package model

import (
	"time"
)

// ExportType is the artifact kind produced by an export job
type ExportType string

const (
	ExportTypePDF  ExportType = "pdf"
	ExportTypeHTML ExportType = "html"
)

// Valid reports whether t is a supported export type
func (t ExportType) Valid() bool {
	return t == ExportTypePDF || t == ExportTypeHTML
}

// Extension returns the artifact file extension
func (t ExportType) Extension() string {
	return string(t)
}

// ContentType returns the MIME type of the artifact
func (t ExportType) ContentType() string {
	if t == ExportTypePDF {
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

// ExportStatus represents the lifecycle state of an export job
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// IsTerminal reports whether no further transitions happen from s
func (s ExportStatus) IsTerminal() bool {
	return s == ExportStatusCompleted || s == ExportStatusFailed
}

// Metadata keys written by the export pipeline
const (
	MetaRequestedAt = "requestedAt"
	MetaRequestedBy = "requestedBy"
	MetaError       = "error"
	MetaErrorStack  = "errorStack"
	MetaFailedAt    = "failedAt"
	MetaStorageKey  = "storageKey"
	MetaStorageURL  = "storageUrl"
	MetaChartsTotal = "chartsTotal"
	MetaChartsOK    = "chartsRendered"
	MetaChartFiles  = "chartFiles"
	MetaChartKeys   = "chartKeys"
)

// ExportConfig holds per-job render options
type ExportConfig struct {
	IncludeCharts bool   `json:"includeCharts"`
	IncludeImages bool   `json:"includeImages"`
	TemplateName  string `json:"templateName,omitempty"`
}

// DefaultExportConfig returns the options used when a request omits them
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		IncludeCharts: true,
		IncludeImages: true,
		TemplateName:  "default",
	}
}

// ExportJob tracks one report being turned into one downloadable artifact.
// FilePath and DownloadURL are set only while Status is completed.
type ExportJob struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReportID   uint         `gorm:"not null;index" json:"report_id"`
	ExportType ExportType   `gorm:"size:10;not null" json:"export_type"`
	Status     ExportStatus `gorm:"size:20;not null;default:pending;index" json:"status"`

	// FilePath is the local artifact path, or the storage key once the local copy is cleaned up
	FilePath    *string `gorm:"size:1024" json:"file_path,omitempty"`
	DownloadURL *string `gorm:"size:1024" json:"download_url,omitempty"`
	FileSize    *int64  `json:"file_size,omitempty"`

	Config   ExportConfig `gorm:"serializer:json" json:"config"`
	Metadata JSONMap      `gorm:"type:json" json:"metadata,omitempty"`

	RequestedBy string `gorm:"size:255" json:"requested_by,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

// ErrorMessage returns the terminal error recorded for a failed job
func (j *ExportJob) ErrorMessage() string {
	return j.Metadata.String(MetaError)
}

// StorageKey returns the object storage key when the artifact was uploaded
func (j *ExportJob) StorageKey() string {
	return j.Metadata.String(MetaStorageKey)
}

// ChartFiles returns the local chart images rendered for the job
func (j *ExportJob) ChartFiles() []string {
	return j.Metadata.Strings(MetaChartFiles)
}

// ChartKeys returns the storage keys of uploaded chart images
func (j *ExportJob) ChartKeys() []string {
	return j.Metadata.Strings(MetaChartKeys)
}

// StorageURL returns the public object URL when the artifact was uploaded
func (j *ExportJob) StorageURL() string {
	return j.Metadata.String(MetaStorageURL)
}
