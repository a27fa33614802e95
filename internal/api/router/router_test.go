package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportgate/reportgate/internal/api/handler"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/pkg/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *handler.MockExportService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Debug:       false,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Export: config.ExportConfig{OutputDir: t.TempDir()},
		Logging: logger.Config{
			AccessLog: false,
		},
	}

	svc := handler.NewMockExportService()
	Setup(r, cfg, svc, nil)
	return r, svc
}

func TestSetup_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSetup_ExportRoutes(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.AddJob(&model.ExportJob{ID: 9, ReportID: 1, ExportType: model.ExportTypePDF, Status: model.ExportStatusProcessing})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/v1/reports/1/exports/pdf", http.StatusCreated},
		{http.MethodPost, "/api/v1/reports/1/exports/html", http.StatusCreated},
		{http.MethodGet, "/api/v1/reports/1/exports", http.StatusOK},
		{http.MethodGet, "/api/v1/exports/9", http.StatusOK},
		{http.MethodGet, "/api/v1/exports/404", http.StatusNotFound},
		{http.MethodGet, "/api/v1/exports/9/download", http.StatusNotFound},
		{http.MethodGet, "/exports/download/9", http.StatusNotFound},
		{http.MethodPost, "/api/v1/reports/1/exports/docx", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, err := http.NewRequest(tt.method, tt.path, nil)
			require.NoError(t, err)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSetup_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/api/v1/exports/1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
