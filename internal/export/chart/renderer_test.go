package chart

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportgate/reportgate/internal/browser"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/internal/storage"
	"github.com/reportgate/reportgate/pkg/errors"
)

func floatPtr(v float64) *float64 { return &v }

func sampleData() *model.ChartData {
	return &model.ChartData{
		Labels: []string{"2024-01-01", "2024-02-01"},
		Datasets: []model.Dataset{
			{Label: "CPI", Data: []*float64{floatPtr(1.5), nil}, BorderColor: "hsl(0, 70%, 50%)"},
		},
	}
}

func newTestRenderer(t *testing.T, launcher browser.Launcher, gw storage.Gateway) *Renderer {
	t.Helper()
	return NewRenderer(launcher, gw, Options{
		OutputDir:     t.TempDir(),
		RenderTimeout: time.Second,
		ChartJSURL:    "https://cdn.example.com/chart.js",
		MaxConcurrent: 2,
	})
}

func batchJobs(n int) []Request {
	jobs := make([]Request, 0, n)
	for i := 1; i <= n; i++ {
		jobs = append(jobs, Request{ChartID: uint(i), Title: fmt.Sprintf("Chart %d", i), Data: sampleData()})
	}
	return jobs
}

func TestRenderBatch_SharesOneBrowser(t *testing.T) {
	launcher := &browser.FakeLauncher{}
	r := newTestRenderer(t, launcher, nil)

	results, err := r.RenderBatch(context.Background(), batchJobs(5), Size{Width: 640, Height: 320})
	require.NoError(t, err)
	assert.Len(t, results, 5)

	require.Equal(t, 1, launcher.Launches())
	b := launcher.Browsers()[0]
	assert.Equal(t, 1, b.Closes())
	assert.Equal(t, 5, b.Captures())
	assert.Zero(t, b.PagesAfterClose())

	for id, res := range results {
		assert.FileExists(t, res.FilePath)
		assert.Contains(t, res.FileName, fmt.Sprintf("chart_%d_", id))
		assert.Positive(t, res.FileSize)
	}
}

func TestRenderBatch_AppliesSize(t *testing.T) {
	var mu sync.Mutex
	var sizes []Size
	launcher := &browser.FakeLauncher{
		CaptureFunc: func(_ context.Context, req browser.CaptureRequest) ([]byte, error) {
			mu.Lock()
			sizes = append(sizes, Size{req.Width, req.Height})
			mu.Unlock()
			assert.Equal(t, canvasSelector, req.Selector)
			assert.Equal(t, readyExpression, req.ReadyExpression)
			return []byte("png"), nil
		},
	}
	r := newTestRenderer(t, launcher, nil)

	_, err := r.RenderBatch(context.Background(), batchJobs(3), Size{Width: 640, Height: 320})
	require.NoError(t, err)
	for _, s := range sizes {
		assert.Equal(t, Size{640, 320}, s)
	}
}

func TestRenderBatch_PartialFailure(t *testing.T) {
	launcher := &browser.FakeLauncher{
		CaptureFunc: func(_ context.Context, req browser.CaptureRequest) ([]byte, error) {
			if strings.Contains(req.Document, "Chart 2") {
				return nil, stderrors.New("screenshot failed")
			}
			return []byte("png"), nil
		},
	}
	r := newTestRenderer(t, launcher, nil)

	results, err := r.RenderBatch(context.Background(), batchJobs(3), Size{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.NotContains(t, results, uint(2))
	assert.Equal(t, 1, launcher.Browsers()[0].Closes())
}

func TestRenderBatch_LaunchFailure(t *testing.T) {
	launcher := &browser.FakeLauncher{LaunchErr: stderrors.New("chrome not found")}
	r := newTestRenderer(t, launcher, nil)

	results, err := r.RenderBatch(context.Background(), batchJobs(2), Size{})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBrowserLaunch))
}

func TestRenderBatch_Empty(t *testing.T) {
	launcher := &browser.FakeLauncher{}
	r := newTestRenderer(t, launcher, nil)

	results, err := r.RenderBatch(context.Background(), nil, Size{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, launcher.Launches())
}

func TestRenderChart_DedicatedBrowserClosedOnFailure(t *testing.T) {
	launcher := &browser.FakeLauncher{
		CaptureFunc: func(context.Context, browser.CaptureRequest) ([]byte, error) {
			return nil, stderrors.New("navigation failed")
		},
	}
	r := newTestRenderer(t, launcher, nil)

	_, err := r.RenderChart(context.Background(), Request{ChartID: 1, Data: sampleData()}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRenderFailure))

	require.Equal(t, 1, launcher.Launches())
	assert.Equal(t, 1, launcher.Browsers()[0].Closes())
}

func TestRenderChart_Timeout(t *testing.T) {
	launcher := &browser.FakeLauncher{
		CaptureFunc: func(context.Context, browser.CaptureRequest) ([]byte, error) {
			return nil, fmt.Errorf("capture #chart: %w", context.DeadlineExceeded)
		},
	}
	r := newTestRenderer(t, launcher, nil)

	_, err := r.RenderChart(context.Background(), Request{ChartID: 1, Data: sampleData()}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRenderTimeout))
}

func TestRenderChart_SharedBrowserLeftOpen(t *testing.T) {
	shared := &browser.FakeBrowser{}
	launcher := &browser.FakeLauncher{}
	r := newTestRenderer(t, launcher, nil)

	res, err := r.RenderChart(context.Background(), Request{ChartID: 9, Data: sampleData()}, shared)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Zero(t, launcher.Launches())
	assert.Zero(t, shared.Closes())
	assert.Equal(t, 1, shared.Captures())
}

func TestRenderChart_UploadsToStorage(t *testing.T) {
	gw := storage.NewMemoryGateway("https://cdn.test")
	r := newTestRenderer(t, &browser.FakeLauncher{}, gw)
	r.opts.CleanupLocalAfterUpload = true

	res, err := r.RenderChart(context.Background(), Request{ChartID: 7, Data: sampleData()}, nil)
	require.NoError(t, err)

	assert.Equal(t, "charts/7/"+res.FileName, res.StorageKey)
	assert.Equal(t, "https://cdn.test/charts/7/"+res.FileName, res.StorageURL)
	_, ok := gw.Object(res.StorageKey)
	assert.True(t, ok)
	assert.NoFileExists(t, res.FilePath)
}

func TestRenderChart_UploadFailureKeepsLocal(t *testing.T) {
	gw := storage.NewMemoryGateway("https://cdn.test")
	gw.UploadErr = errors.New(errors.ErrCodeUploadFailure, "bucket unreachable")
	r := newTestRenderer(t, &browser.FakeLauncher{}, gw)
	r.opts.CleanupLocalAfterUpload = true

	res, err := r.RenderChart(context.Background(), Request{ChartID: 7, Data: sampleData()}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.StorageURL)
	assert.FileExists(t, res.FilePath)
	assert.Equal(t, filepath.Join(r.opts.OutputDir, "charts", res.FileName), res.FilePath)
}

func TestFileName(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 2*3600))
	name := FileName(7, at)
	assert.Regexp(t, regexp.MustCompile(`^chart_7_20250102_0104_[0-9a-v]{8}\.png$`), name)
	assert.NotEqual(t, name, FileName(7, at))
}

func TestNewRenderer_Defaults(t *testing.T) {
	r := NewRenderer(&browser.FakeLauncher{}, nil, Options{OutputDir: os.TempDir()})
	assert.Equal(t, Size{800, 400}, r.opts.DefaultSize)
	assert.Equal(t, 30*time.Second, r.opts.RenderTimeout)
	assert.Equal(t, 4, r.opts.MaxConcurrent)
	assert.False(t, r.storage.Configured())
}
