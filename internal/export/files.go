package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/reportgate/reportgate/consts"
	"github.com/reportgate/reportgate/internal/model"
)

// artifactDir returns the local sub-tree for an export type
func artifactDir(outputDir string, t model.ExportType) string {
	sub := consts.ArtifactDirHTML
	if t == model.ExportTypePDF {
		sub = consts.ArtifactDirPDF
	}
	return filepath.Join(outputDir, sub)
}

// ArtifactFileName names the artifact of a job finished at t
func ArtifactFileName(job *model.ExportJob, t time.Time) string {
	return fmt.Sprintf("report_%d_%d_%s.%s",
		job.ReportID, job.ID, t.UTC().Format("20060102_1504"), job.ExportType.Extension())
}

// StorageKey returns the object key of an artifact: {type}/{reportId}/{file}
func StorageKey(job *model.ExportJob, fileName string) string {
	return fmt.Sprintf("%s/%d/%s", job.ExportType, job.ReportID, fileName)
}

// DownloadFileName is the attachment name offered to clients:
// {type}_{reportId}_{YYYY-MM-DD}.{ext}
func DownloadFileName(job *model.ExportJob, t time.Time) string {
	return fmt.Sprintf("%s_%d_%s.%s", job.ExportType, job.ReportID, t.Format("2006-01-02"), job.ExportType.Extension())
}

// LocalDownloadURL is the in-process route that serves a local artifact
func LocalDownloadURL(publicBaseURL string, jobID uint) string {
	return fmt.Sprintf("%s%s%d", strings.TrimRight(publicBaseURL, "/"), consts.DownloadRoutePrefix, jobID)
}

// writeArtifact writes data under dir and returns the full path
func writeArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
