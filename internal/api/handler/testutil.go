// Package handler provides test utilities for HTTP handler testing.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/reportgate/reportgate/internal/export"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/pkg/errors"
)

// SetupTestRouter creates a Gin router for testing.
// It sets Gin to test mode and applies basic middleware.
func SetupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// CreateTestContext creates a test Gin context with a recorder.
// Returns the context and recorder for assertions.
func CreateTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

// CreateTestRequest creates an HTTP request for testing.
func CreateTestRequest(method, url string, body interface{}) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, url, nil)
	}
	return req
}

// AssertJSONResponse asserts that the response has the expected JSON structure.
func AssertJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	t.Helper()

	// Check status code
	if recorder.Code != expectedStatus {
		t.Errorf("Status code mismatch: got %d, want %d", recorder.Code, expectedStatus)
	}

	// Check content type
	contentType := recorder.Header().Get("Content-Type")
	if contentType != "" && contentType != "application/json" && contentType != "application/json; charset=utf-8" {
		t.Errorf("Content-Type should be application/json, got %s", contentType)
	}

	// If expectedBody is provided, check response body
	if expectedBody != nil {
		var actual map[string]interface{}
		if err := json.Unmarshal(recorder.Body.Bytes(), &actual); err != nil {
			t.Fatalf("Response should be valid JSON: %v", err)
		}

		expectedJSON, err := json.Marshal(expectedBody)
		if err != nil {
			t.Fatalf("Failed to marshal expected body: %v", err)
		}

		var expected map[string]interface{}
		if err := json.Unmarshal(expectedJSON, &expected); err != nil {
			t.Fatalf("Failed to unmarshal expected JSON: %v", err)
		}

		// Compare JSON structures (allowing for additional fields in actual)
		for key, expectedValue := range expected {
			actualValue, exists := actual[key]
			if !exists {
				t.Errorf("Response should contain key: %s", key)
				continue
			}
			if actualValue != expectedValue {
				t.Errorf("Value mismatch for key %s: got %v, want %v", key, actualValue, expectedValue)
			}
		}
	}
}

// AssertErrorResponse asserts that the response is an error response.
// The API uses a standard error format with 'code' and 'message' fields.
func AssertErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder, expectedStatus int) {
	t.Helper()
	if recorder.Code != expectedStatus {
		t.Errorf("Status code mismatch: got %d, want %d", recorder.Code, expectedStatus)
	}

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "" && contentType != "application/json" && contentType != "application/json; charset=utf-8" {
		t.Errorf("Content-Type should be application/json, got %s", contentType)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Response should be valid JSON: %v", err)
	}

	// Check for standard error response format (code + message)
	// or legacy format (error field)
	_, hasCode := response["code"]
	_, hasMessage := response["message"]
	_, hasError := response["error"]

	if !hasError && !(hasCode && hasMessage) {
		t.Error("Error response should contain either 'error' field or 'code' and 'message' fields")
	}
}

// MockExportService is an in-memory ExportService for handler tests.
// The *Err fields force the matching call to fail.
type MockExportService struct {
	mu   sync.Mutex
	jobs map[uint]*model.ExportJob

	CreateErr   error
	StatusErr   error
	ListErr     error
	DownloadErr error

	// Downloads maps job ids to the download returned for them
	Downloads map[uint]*export.Download

	// LastRequester and LastConfig record the most recent CreateExport call
	LastRequester string
	LastConfig    *model.ExportConfig
}

// NewMockExportService creates an empty mock service.
func NewMockExportService() *MockExportService {
	return &MockExportService{
		jobs:      make(map[uint]*model.ExportJob),
		Downloads: make(map[uint]*export.Download),
	}
}

// AddJob stores a job for later lookups.
func (m *MockExportService) AddJob(job *model.ExportJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

// CreateExport records the call and returns a completed job.
func (m *MockExportService) CreateExport(_ context.Context, reportID uint, exportType model.ExportType, requesterID string, cfg *model.ExportConfig) (*model.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRequester = requesterID
	m.LastConfig = cfg
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	job := &model.ExportJob{
		ID:          uint(len(m.jobs) + 1),
		ReportID:    reportID,
		ExportType:  exportType,
		Status:      model.ExportStatusCompleted,
		RequestedBy: requesterID,
	}
	if cfg != nil {
		job.Config = *cfg
	}
	m.jobs[job.ID] = job
	return job, nil
}

// GetExportStatus returns the stored job's view.
func (m *MockExportService) GetExportStatus(_ context.Context, jobID uint) (*export.Status, error) {
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, errors.ErrNotFound("export job")
	}
	status := export.StatusOf(job)
	return &status, nil
}

// ListExports returns the stored jobs of a report.
func (m *MockExportService) ListExports(_ context.Context, reportID uint) ([]export.Status, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []export.Status{}
	for _, job := range m.jobs {
		if job.ReportID == reportID {
			out = append(out, export.StatusOf(job))
		}
	}
	return out, nil
}

// DownloadExport returns the registered download.
func (m *MockExportService) DownloadExport(_ context.Context, jobID uint) (*export.Download, error) {
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.Downloads[jobID]
	if !ok {
		return nil, errors.ErrNotFound("export job")
	}
	return d, nil
}
