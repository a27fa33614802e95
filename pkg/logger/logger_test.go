package logger

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogger() {
	globalLogger = nil
	once = sync.Once{}
}

func TestInit(t *testing.T) {
	resetLogger()
	defer resetLogger()

	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	// Second call is a no-op
	require.NoError(t, Init(Config{Level: "debug", Format: "text"}))
	assert.NotNil(t, Get())
}

func TestInit_TextFormatWithFile(t *testing.T) {
	resetLogger()
	defer resetLogger()

	logFile := filepath.Join(t.TempDir(), "logs", "reportgate.log")
	require.NoError(t, Init(Config{Level: "debug", Format: "text", File: logFile}))

	Info("export finished", zap.Uint(FieldExportJobID, 7))
	_ = Sync()
}

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	resetLogger()
	defer resetLogger()

	require.NoError(t, Init(Config{Level: "loud", Format: "json"}))
	assert.True(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestGet_Uninitialized(t *testing.T) {
	resetLogger()
	assert.NotNil(t, Get(), "Get() should return a no-op logger before Init")
	assert.NoError(t, Sync())
	Info("dropped before init")
}

func TestWithExportJob(t *testing.T) {
	resetLogger()
	defer resetLogger()

	core, logs := observer.New(zapcore.DebugLevel)
	globalLogger = zap.New(core)

	WithExportJob(12, 3).Info("processing export")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 12, fields[FieldExportJobID])
	assert.EqualValues(t, 3, fields[FieldReportID])
}

func TestInit_JSONWithFileRotationDefaults(t *testing.T) {
	cfg := Config{File: filepath.Join(t.TempDir(), "app.log")}
	w := fileWriter(cfg)
	require.NotNil(t, w)
	assert.Nil(t, fileWriter(Config{}))

	resetLogger()
	defer resetLogger()
	require.NoError(t, Init(Config{Level: "warn", Format: "json", File: cfg.File}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
	Warn("disk nearly full", zap.String("path", "/exports"))
	_ = Sync()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantError bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"error", false},
		{"invalid", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			_, err := parseLevel(tt.level)
			assert.Equal(t, tt.wantError, err != nil)
		})
	}
}

func TestKVConsoleEncoder(t *testing.T) {
	enc := newKVConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      bracketLevelEncoder,
		ConsoleSeparator: " ",
	})

	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.WarnLevel,
		Message: "chart render failed",
		Time:    time.Now(),
	}, []zapcore.Field{
		zap.Uint("chart_id", 42),
		zap.String("reason", "timeout"),
		zap.Bool("shared_browser", true),
		zap.Error(errors.New("canvas missing")),
	})
	require.NoError(t, err)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[WARN] chart render failed"))
	assert.Contains(t, line, "chart_id=42")
	assert.Contains(t, line, "reason=timeout")
	assert.Contains(t, line, "shared_browser=true")
	assert.Contains(t, line, "error=canvas missing")
}
