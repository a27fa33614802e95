package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportgate/reportgate/internal/browser"
	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/internal/export/chart"
	"github.com/reportgate/reportgate/internal/export/document"
	"github.com/reportgate/reportgate/internal/export/pdf"
	"github.com/reportgate/reportgate/internal/model"
	"github.com/reportgate/reportgate/internal/storage"
	"github.com/reportgate/reportgate/internal/store"
	"github.com/reportgate/reportgate/pkg/errors"
)

type testEnv struct {
	store    store.Store
	launcher *browser.FakeLauncher
	cfg      config.ExportConfig
	svc      *Service
}

func newTestEnv(t *testing.T, gateway storage.Gateway, tweak func(*config.ExportConfig)) *testEnv {
	t.Helper()

	s, cleanup := store.SetupTestDB(t)
	t.Cleanup(cleanup)

	cfg := config.Default().Export
	cfg.OutputDir = t.TempDir()
	cfg.PDFSettleDelayMs = 0
	if tweak != nil {
		tweak(&cfg)
	}

	launcher := &browser.FakeLauncher{}
	charts := chart.NewRenderer(launcher, gateway, chart.OptionsFromConfig(&cfg))
	printer := pdf.NewRenderer(launcher, pdf.OptionsFromConfig(&cfg))

	return &testEnv{
		store:    s,
		launcher: launcher,
		cfg:      cfg,
		svc:      NewService(s, charts, printer, gateway, cfg),
	}
}

func chartBlock(title string, points ...float64) store.TestBlock {
	var dps []model.DataPoint
	for i, p := range points {
		dps = append(dps, model.DataPoint{Date: fmt.Sprintf("2024-%02d-01", i+1), Value: floatPtr(p)})
	}
	return store.TestBlock{Type: model.BlockTypeChart, Content: model.ChartContent{
		ChartTitle:       title,
		ChartType:        "line",
		IndicatorConfigs: []model.IndicatorConfig{{IndicatorID: 1, Name: title, Points: dps}},
	}}
}

func textBlock(s string) store.TestBlock {
	return store.TestBlock{Type: model.BlockTypeText, Content: model.TextContent{PlainText: s}}
}

func readArtifact(t *testing.T, job *model.ExportJob) string {
	t.Helper()
	require.NotNil(t, job.FilePath)
	data, err := os.ReadFile(*job.FilePath)
	require.NoError(t, err)
	return string(data)
}

func TestCreateExport_HTMLCompletes(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	report := store.CreateTestReport(t, env.store, "Weekly Market Review", store.TestSection{
		Title:  "Summary",
		Blocks: []store.TestBlock{textBlock("Markets rallied"), chartBlock("Equities", 1, 2, 3)},
	})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "analyst@example.com", nil)
	require.NoError(t, err)

	assert.Equal(t, model.ExportStatusCompleted, job.Status)
	require.NotNil(t, job.DownloadURL)
	assert.Equal(t, fmt.Sprintf("/exports/download/%d", job.ID), *job.DownloadURL)
	require.NotNil(t, job.FileSize)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.ExpiresAt)
	assert.WithinDuration(t, job.CompletedAt.Add(env.cfg.Retention()), *job.ExpiresAt, time.Second)

	assert.Equal(t, filepath.Join(env.cfg.OutputDir, "html"), filepath.Dir(*job.FilePath))
	assert.Regexp(t, fmt.Sprintf(`^report_%d_%d_\d{8}_\d{4}\.html$`, report.ID, job.ID), filepath.Base(*job.FilePath))

	body := readArtifact(t, job)
	assert.Contains(t, body, "Markets rallied")
	assert.Contains(t, body, "<img")
	assert.EqualValues(t, *job.FileSize, len(body))

	assert.EqualValues(t, 1, job.Metadata[model.MetaChartsTotal])
	assert.EqualValues(t, 1, job.Metadata[model.MetaChartsOK])
	assert.Equal(t, "analyst@example.com", job.Metadata.String(model.MetaRequestedBy))
	assert.Equal(t, "analyst@example.com", job.RequestedBy)
	assert.True(t, job.Config.IncludeCharts)

	// one browser for the chart batch, none for an HTML artifact
	assert.Equal(t, 1, env.launcher.Launches())
	for _, b := range env.launcher.Browsers() {
		assert.Equal(t, 1, b.Closes())
	}
}

func TestCreateExport_CancelledRequestStillUsesStoredSeries(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	// pages honour their context like a real browser tab
	env.launcher.CaptureFunc = func(ctx context.Context, req browser.CaptureRequest) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("\x89PNG fake"), nil
	}
	env.launcher.PrintFunc = func(ctx context.Context, req browser.PrintRequest) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("%PDF-1.4 fake"), nil
	}

	cpi := store.CreateTestIndicator(t, env.store, "CPI", map[string]float64{
		"2024-01-01": 1,
		"2024-02-01": 2,
	})
	report := store.CreateTestReport(t, env.store, "Inflation Monitor", store.TestSection{
		Title: "Prices",
		Blocks: []store.TestBlock{{Type: model.BlockTypeChart, Content: model.ChartContent{
			ChartTitle:       "CPI",
			ChartType:        "line",
			IndicatorConfigs: []model.IndicatorConfig{{IndicatorID: cpi.ID, Name: "CPI"}},
		}}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := env.svc.CreateExport(ctx, report.ID, model.ExportTypePDF, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusCompleted, job.Status, job.ErrorMessage())
	assert.EqualValues(t, 1, job.Metadata[model.MetaChartsOK])

	tree, err := env.store.Report().GetReportTree(report.ID)
	require.NoError(t, err)
	decoded, err := tree.Sections[0].Blocks[0].Decode()
	require.NoError(t, err)
	data := decoded.(*model.ChartContent).ChartData
	require.NotNil(t, data)
	assert.Equal(t, []string{"2024-01-01", "2024-02-01"}, data.Labels)
	require.Len(t, data.Datasets, 1)
	assert.Equal(t, "CPI", data.Datasets[0].Label)
	assert.False(t, data.Datasets[0].Synthetic)
}

func TestCreateExport_PDFUsesPrintLayout(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.ExportConfig) { c.Disclaimer = "For clients only" })
	report := store.CreateTestReport(t, env.store, "Quarterly Outlook", store.TestSection{
		Title:  "Outlook",
		Blocks: []store.TestBlock{textBlock("Steady growth")},
	})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypePDF, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, model.ExportStatusCompleted, job.Status)
	assert.Equal(t, filepath.Join(env.cfg.OutputDir, "pdf"), filepath.Dir(*job.FilePath))
	assert.Equal(t, "%PDF-1.4 fake", readArtifact(t, job))

	browsers := env.launcher.Browsers()
	require.Len(t, browsers, 1)
	req := browsers[0].LastPrint()
	require.NotNil(t, req)
	assert.Contains(t, req.Document, "@page")
	assert.Contains(t, req.Document, "Steady growth")
	assert.Contains(t, req.HeaderTemplate, "Quarterly Outlook")
	assert.Contains(t, req.FooterTemplate, "For clients only")
	assert.Equal(t, 1, browsers[0].Closes())
}

func TestCreateExport_OneChartFailureKeepsExport(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.launcher.CaptureFunc = func(ctx context.Context, req browser.CaptureRequest) ([]byte, error) {
		if strings.Contains(req.Document, "Broken") {
			return nil, stderrors.New("canvas never became ready")
		}
		return []byte("\x89PNG fake"), nil
	}

	report := store.CreateTestReport(t, env.store, "Daily Brief", store.TestSection{
		Title:  "Charts",
		Blocks: []store.TestBlock{chartBlock("Healthy", 1, 2), chartBlock("Broken", 3, 4), chartBlock("Another", 5)},
	})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, model.ExportStatusCompleted, job.Status)

	body := readArtifact(t, job)
	assert.Equal(t, 1, strings.Count(body, document.ChartRenderFailed))
	assert.Equal(t, 2, strings.Count(body, "<img"))
	assert.EqualValues(t, 3, job.Metadata[model.MetaChartsTotal])
	assert.EqualValues(t, 2, job.Metadata[model.MetaChartsOK])

	require.Len(t, env.launcher.Browsers(), 1)
	b := env.launcher.Browsers()[0]
	assert.Equal(t, 3, b.Captures())
	assert.Equal(t, 1, b.Closes())
	assert.Zero(t, b.PagesAfterClose())
}

func TestCreateExport_ChartsDisabled(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	report := store.CreateTestReport(t, env.store, "Notes only", store.TestSection{
		Title:  "Mixed",
		Blocks: []store.TestBlock{textBlock("kept"), chartBlock("Dropped", 1)},
	})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1",
		&model.ExportConfig{IncludeCharts: false, IncludeImages: true})
	require.NoError(t, err)
	require.Equal(t, model.ExportStatusCompleted, job.Status)

	body := readArtifact(t, job)
	assert.Contains(t, body, "kept")
	assert.NotContains(t, body, "block-CHART")
	assert.Zero(t, env.launcher.Launches())
	assert.False(t, job.Config.IncludeCharts)
}

func TestCreateExport_Validation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	_, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportType("docx"), "u1", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))

	_, err = env.svc.CreateExport(context.Background(), 9999, model.ExportTypePDF, "u1", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	jobs, err := env.store.ExportJob().ListByReport(report.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestProcessExport_PanicMarksFailed(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.launcher.PrintFunc = func(ctx context.Context, req browser.PrintRequest) ([]byte, error) {
		panic("printer on fire")
	}
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypePDF, "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.ExportStatusFailed, job.Status)
	assert.Nil(t, job.FilePath)
	assert.Nil(t, job.DownloadURL)
	assert.Nil(t, job.CompletedAt)
	assert.Contains(t, job.ErrorMessage(), "printer on fire")
	assert.NotEmpty(t, job.Metadata.String(model.MetaErrorStack))
	assert.NotEmpty(t, job.Metadata.String(model.MetaFailedAt))
	// the browser is released even when printing panics
	assert.Equal(t, 1, env.launcher.Browsers()[0].Closes())
}

func TestProcessExport_LaunchFailureMarksFailed(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.launcher.LaunchErr = stderrors.New("chrome not found")
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{chartBlock("C", 1)}})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1", nil)
	require.NoError(t, err)

	assert.Equal(t, model.ExportStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage(), "chrome not found")
	assert.Contains(t, job.Metadata.String(model.MetaErrorStack), "chrome not found")

	err = env.svc.ProcessExport(context.Background(), job.ID)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBrowserLaunch))
	reloaded, err := env.store.ExportJob().GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, reloaded.Status)
}

func TestProcessExport_UnknownJob(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	err := env.svc.ProcessExport(context.Background(), 4242)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestGetExportStatus(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})
	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1", nil)
	require.NoError(t, err)

	first, err := env.svc.GetExportStatus(context.Background(), job.ID)
	require.NoError(t, err)
	second, err := env.svc.GetExportStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, model.ExportStatusCompleted, first.Status)
	assert.Equal(t, report.ID, first.ReportID)
	assert.Empty(t, first.ErrorMessage)

	_, err = env.svc.GetExportStatus(context.Background(), 777)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestListExports_NewestFirst(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	first, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1", nil)
	require.NoError(t, err)
	second, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypePDF, "u1", nil)
	require.NoError(t, err)

	list, err := env.svc.ListExports(context.Background(), report.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	empty, err := env.svc.ListExports(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCreateExport_ConcurrentRequestsGetDistinctJobs(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	const n = 5
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uint]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1", nil)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, model.ExportStatusCompleted, job.Status)
			mu.Lock()
			ids[job.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, n)
}

func TestCreateExport_UploadsArtifact(t *testing.T) {
	gw := storage.NewMemoryGateway("https://cdn.example.com")
	env := newTestEnv(t, gw, func(c *config.ExportConfig) { c.CleanupLocalAfterUpload = true })
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{chartBlock("C", 1)}})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypePDF, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, model.ExportStatusCompleted, job.Status)

	key := job.StorageKey()
	assert.True(t, strings.HasPrefix(key, fmt.Sprintf("pdf/%d/report_%d_%d_", report.ID, report.ID, job.ID)))
	_, ok := gw.Object(key)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/"+key, *job.DownloadURL)
	assert.Equal(t, *job.DownloadURL, job.StorageURL())

	// local copy removed, path now names the object
	assert.Equal(t, key, *job.FilePath)

	d, err := env.svc.DownloadExport(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StorageURL(), d.RemoteURL)
	assert.Empty(t, d.FilePath)
	assert.Equal(t, "application/pdf", d.ContentType)
}

func TestCreateExport_UploadFailureFallsBackToLocal(t *testing.T) {
	gw := storage.NewMemoryGateway("https://cdn.example.com")
	gw.UploadErr = stderrors.New("bucket unavailable")
	env := newTestEnv(t, gw, nil)
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypeHTML, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, model.ExportStatusCompleted, job.Status)

	assert.Equal(t, fmt.Sprintf("/exports/download/%d", job.ID), *job.DownloadURL)
	assert.Empty(t, job.StorageKey())
	assert.FileExists(t, *job.FilePath)
}

func TestDownloadExport(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	t.Run("local artifact", func(t *testing.T) {
		job, err := env.svc.CreateExport(ctx, report.ID, model.ExportTypeHTML, "u1", nil)
		require.NoError(t, err)

		d, err := env.svc.DownloadExport(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, *job.FilePath, d.FilePath)
		assert.Empty(t, d.RemoteURL)
		assert.Regexp(t, fmt.Sprintf(`^html_%d_\d{4}-\d{2}-\d{2}\.html$`, report.ID), d.FileName)
		assert.Equal(t, "text/html; charset=utf-8", d.ContentType)
	})

	t.Run("not completed", func(t *testing.T) {
		job := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypePDF, Status: model.ExportStatusPending}
		require.NoError(t, env.store.ExportJob().Create(job))

		_, err := env.svc.DownloadExport(ctx, job.ID)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
	})

	t.Run("failed with leftover file", func(t *testing.T) {
		leftover := filepath.Join(t.TempDir(), "partial.pdf")
		require.NoError(t, os.WriteFile(leftover, []byte("%PDF"), 0644))
		job := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypePDF, Status: model.ExportStatusFailed, FilePath: &leftover}
		require.NoError(t, env.store.ExportJob().Create(job))

		d, err := env.svc.DownloadExport(ctx, job.ID)
		assert.Nil(t, d)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidState))
	})

	t.Run("file gone", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "gone.pdf")
		job := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypePDF, Status: model.ExportStatusCompleted, FilePath: &missing}
		require.NoError(t, env.store.ExportJob().Create(job))

		_, err := env.svc.DownloadExport(ctx, job.ID)
		assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
	})

	t.Run("remote only", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "gone.pdf")
		job := &model.ExportJob{
			ReportID:   report.ID,
			ExportType: model.ExportTypePDF,
			Status:     model.ExportStatusCompleted,
			FilePath:   &missing,
			Metadata:   model.JSONMap{model.MetaStorageURL: "https://cdn.example.com/pdf/1/a.pdf"},
		}
		require.NoError(t, env.store.ExportJob().Create(job))

		d, err := env.svc.DownloadExport(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/pdf/1/a.pdf", d.RemoteURL)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := env.svc.DownloadExport(ctx, 12345)
		assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	})
}

func TestCleanupExpiredExports(t *testing.T) {
	gw := storage.NewMemoryGateway("https://cdn.example.com")
	env := newTestEnv(t, gw, nil)
	ctx := context.Background()
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{textBlock("x")}})

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	localPath := filepath.Join(t.TempDir(), "expired.html")
	require.NoError(t, os.WriteFile(localPath, []byte("<html></html>"), 0644))
	expiredLocal := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypeHTML, Status: model.ExportStatusCompleted,
		FilePath: &localPath, ExpiresAt: &past}
	require.NoError(t, env.store.ExportJob().Create(expiredLocal))

	remoteKey := "pdf/1/report_1_2_20240101_0000.pdf"
	expiredRemote := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypePDF, Status: model.ExportStatusCompleted,
		FilePath: &remoteKey, ExpiresAt: &past,
		Metadata: model.JSONMap{model.MetaStorageKey: remoteKey, model.MetaStorageURL: "https://cdn.example.com/" + remoteKey}}
	require.NoError(t, env.store.ExportJob().Create(expiredRemote))

	fresh := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypeHTML, Status: model.ExportStatusCompleted,
		FilePath: &localPath, ExpiresAt: &future}
	require.NoError(t, env.store.ExportJob().Create(fresh))

	failed := &model.ExportJob{ReportID: report.ID, ExportType: model.ExportTypeHTML, Status: model.ExportStatusFailed, ExpiresAt: &past}
	require.NoError(t, env.store.ExportJob().Create(failed))

	removed, err := env.svc.CleanupExpiredExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoFileExists(t, localPath)
	assert.Equal(t, []string{remoteKey}, gw.Deleted())

	_, err = env.store.ExportJob().GetByID(expiredLocal.ID)
	assert.True(t, store.IsNotFound(err))
	_, err = env.store.ExportJob().GetByID(expiredRemote.ID)
	assert.True(t, store.IsNotFound(err))
	_, err = env.store.ExportJob().GetByID(fresh.ID)
	assert.NoError(t, err)
	_, err = env.store.ExportJob().GetByID(failed.ID)
	assert.NoError(t, err)

	// a second sweep finds nothing
	removed, err = env.svc.CleanupExpiredExports(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCleanupExpiredExports_RemovesChartImages(t *testing.T) {
	gw := storage.NewMemoryGateway("https://cdn.example.com")
	env := newTestEnv(t, gw, nil)
	ctx := context.Background()
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{
		Title:  "S",
		Blocks: []store.TestBlock{chartBlock("A", 1, 2), chartBlock("B", 3, 4)},
	})

	job, err := env.svc.CreateExport(ctx, report.ID, model.ExportTypeHTML, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, model.ExportStatusCompleted, job.Status)

	files := job.ChartFiles()
	keys := job.ChartKeys()
	require.Len(t, files, 2)
	require.Len(t, keys, 2)
	for _, f := range files {
		assert.Equal(t, filepath.Join(env.cfg.OutputDir, "charts"), filepath.Dir(f))
		assert.FileExists(t, f)
	}
	for _, k := range keys {
		_, ok := gw.Object(k)
		assert.True(t, ok, k)
	}

	env.svc.now = func() time.Time { return job.ExpiresAt.Add(time.Minute) }
	removed, err := env.svc.CleanupExpiredExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	for _, f := range files {
		assert.NoFileExists(t, f)
	}
	assert.Empty(t, gw.Keys())
	assert.Subset(t, gw.Deleted(), append([]string{job.StorageKey()}, keys...))
}

func TestProcessExport_FailureRemovesChartImages(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.launcher.PrintFunc = func(ctx context.Context, req browser.PrintRequest) ([]byte, error) {
		return nil, stderrors.New("printer on fire")
	}
	report := store.CreateTestReport(t, env.store, "R", store.TestSection{Title: "S", Blocks: []store.TestBlock{chartBlock("A", 1)}})

	job, err := env.svc.CreateExport(context.Background(), report.ID, model.ExportTypePDF, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExportStatusFailed, job.Status)

	entries, err := os.ReadDir(filepath.Join(env.cfg.OutputDir, "charts"))
	if err == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(err))
	}
}

func TestErrorStack(t *testing.T) {
	root := stderrors.New("socket closed")
	err := errors.Wrap(errors.ErrCodeRenderFailure, "failed to print PDF", root)

	stack := errorStack(err)
	lines := strings.Split(stack, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, err.Error(), lines[0])
	assert.Equal(t, "socket closed", lines[1])

	assert.Equal(t, "failed to print PDF: socket closed", failureMessage(err))
	assert.Equal(t, "plain", failureMessage(stderrors.New("plain")))

	p := &panicError{value: "boom", stack: "goroutine 1"}
	assert.Equal(t, "goroutine 1", errorStack(p))
}

func TestFileNames(t *testing.T) {
	job := &model.ExportJob{ID: 9, ReportID: 4, ExportType: model.ExportTypePDF}
	ts := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)

	assert.Equal(t, "report_4_9_20240305_1407.pdf", ArtifactFileName(job, ts))
	assert.Equal(t, "pdf/4/report_4_9_20240305_1407.pdf", StorageKey(job, "report_4_9_20240305_1407.pdf"))
	assert.Equal(t, "pdf_4_2024-03-05.pdf", DownloadFileName(job, ts))
	assert.Equal(t, "https://api.example.com/exports/download/9", LocalDownloadURL("https://api.example.com/", 9))
	assert.Equal(t, "/exports/download/9", LocalDownloadURL("", 9))
}
