// Package logger provides the process-wide zap logger for ReportGate.
// Output is key=value text or JSON on stdout, optionally teed to a rotating file.
package logger

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	once         sync.Once

	bufferpool = buffer.NewPool()
)

// Field keys shared by the export pipeline
const (
	FieldExportJobID = "export_job_id"
	FieldReportID    = "report_id"
	FieldChartID     = "chart_id"
)

// Rotation defaults applied when the config leaves them unset
const (
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 7
	defaultMaxBackups = 5
)

// Config holds the logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format is json or text
	Format string `yaml:"format"`
	// File mirrors the log to a rotating file when set
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
	// AccessLog logs successful HTTP requests at info level
	AccessLog bool `yaml:"access_log"`
}

// Init builds the global logger. Only the first call has an effect.
func Init(cfg Config) error {
	once.Do(func() {
		globalLogger = build(cfg)
	})
	return nil
}

func build(cfg Config) *zap.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var console, file zapcore.Encoder
	if cfg.Format == "text" {
		console = newKVConsoleEncoder(textEncoderConfig(bracketColorLevelEncoder))
		file = newKVConsoleEncoder(textEncoderConfig(bracketLevelEncoder))
	} else {
		console = zapcore.NewJSONEncoder(jsonEncoderConfig())
		file = console
	}

	core := zapcore.NewCore(console, zapcore.AddSync(os.Stdout), level)
	if w := fileWriter(cfg); w != nil {
		core = zapcore.NewTee(core, zapcore.NewCore(file, w, level))
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// fileWriter returns the rotating file sink, or nil when file logging is off
// or the directory cannot be created
func fileWriter(cfg Config) zapcore.WriteSyncer {
	if cfg.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v, using console only\n", err)
		return nil
	}

	rotate := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	if rotate.MaxSize <= 0 {
		rotate.MaxSize = defaultMaxSizeMB
	}
	if rotate.MaxAge <= 0 {
		rotate.MaxAge = defaultMaxAgeDays
	}
	if rotate.MaxBackups <= 0 {
		rotate.MaxBackups = defaultMaxBackups
	}
	return zapcore.AddSync(rotate)
}

func textEncoderConfig(levelEncoder zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          zapcore.OmitKey,
		CallerKey:        "caller",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder,
		EncodeTime:       bracketTimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// bracketTimeEncoder writes [2006-01-02 15:04:05]
func bracketTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format("2006-01-02 15:04:05") + "]")
}

// bracketLevelEncoder writes [INFO]
func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[35m",
	zapcore.InfoLevel:   "\x1b[34m",
	zapcore.WarnLevel:   "\x1b[33m",
	zapcore.ErrorLevel:  "\x1b[31m",
	zapcore.DPanicLevel: "\x1b[31m",
	zapcore.PanicLevel:  "\x1b[31m",
	zapcore.FatalLevel:  "\x1b[31m",
}

// bracketColorLevelEncoder writes [INFO] wrapped in an ANSI color
func bracketColorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color, ok := levelColors[level]
	if !ok {
		color = "\x1b[0m"
	}
	enc.AppendString(color + "[" + level.CapitalString() + "]\x1b[0m")
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}

// Get returns the global logger, or a no-op logger before Init
func Get() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// WithExportJob returns a child logger tagged with the export job and report.
//
//	log := logger.WithExportJob(job.ID, job.ReportID)
//	log.Info("Export started")
func WithExportJob(jobID, reportID uint) *zap.Logger {
	return Get().With(
		zap.Uint(FieldExportJobID, jobID),
		zap.Uint(FieldReportID, reportID),
	)
}

// kvConsoleEncoder is a console encoder that prints fields as key=value
type kvConsoleEncoder struct {
	zapcore.Encoder
	cfg zapcore.EncoderConfig
}

func newKVConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &kvConsoleEncoder{Encoder: zapcore.NewConsoleEncoder(cfg), cfg: cfg}
}

// Clone implements zapcore.Encoder
func (e *kvConsoleEncoder) Clone() zapcore.Encoder {
	return &kvConsoleEncoder{Encoder: e.Encoder.Clone(), cfg: e.cfg}
}

// EncodeEntry writes "time level caller message k=v k=v"
func (e *kvConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferpool.Get()
	sep := e.cfg.ConsoleSeparator

	var prefix stringArray
	if e.cfg.TimeKey != "" && e.cfg.EncodeTime != nil {
		e.cfg.EncodeTime(entry.Time, &prefix)
	}
	if e.cfg.LevelKey != "" && e.cfg.EncodeLevel != nil {
		e.cfg.EncodeLevel(entry.Level, &prefix)
	}
	if e.cfg.CallerKey != "" && entry.Caller.Defined && e.cfg.EncodeCaller != nil {
		e.cfg.EncodeCaller(entry.Caller, &prefix)
	}
	for _, s := range prefix {
		buf.AppendString(s)
		buf.AppendString(sep)
	}

	buf.AppendString(entry.Message)
	for _, field := range fields {
		buf.AppendString(sep)
		buf.AppendString(field.Key)
		buf.AppendByte('=')
		appendFieldValue(buf, field)
	}

	if e.cfg.LineEnding != "" {
		buf.AppendString(e.cfg.LineEnding)
	} else {
		buf.AppendString(zapcore.DefaultLineEnding)
	}
	return buf, nil
}

// stringArray collects what the time, level and caller encoders emit
type stringArray []string

func (s *stringArray) add(v any) { *s = append(*s, fmt.Sprint(v)) }

func (s *stringArray) AppendBool(v bool)              { s.add(v) }
func (s *stringArray) AppendByteString(v []byte)      { *s = append(*s, string(v)) }
func (s *stringArray) AppendComplex128(v complex128)  { s.add(v) }
func (s *stringArray) AppendComplex64(v complex64)    { s.add(v) }
func (s *stringArray) AppendFloat64(v float64)        { s.add(v) }
func (s *stringArray) AppendFloat32(v float32)        { s.add(v) }
func (s *stringArray) AppendInt(v int)                { s.add(v) }
func (s *stringArray) AppendInt64(v int64)            { s.add(v) }
func (s *stringArray) AppendInt32(v int32)            { s.add(v) }
func (s *stringArray) AppendInt16(v int16)            { s.add(v) }
func (s *stringArray) AppendInt8(v int8)              { s.add(v) }
func (s *stringArray) AppendString(v string)          { *s = append(*s, v) }
func (s *stringArray) AppendUint(v uint)              { s.add(v) }
func (s *stringArray) AppendUint64(v uint64)          { s.add(v) }
func (s *stringArray) AppendUint32(v uint32)          { s.add(v) }
func (s *stringArray) AppendUint16(v uint16)          { s.add(v) }
func (s *stringArray) AppendUint8(v uint8)            { s.add(v) }
func (s *stringArray) AppendUintptr(v uintptr)        { s.add(v) }
func (s *stringArray) AppendDuration(v time.Duration) { *s = append(*s, v.String()) }
func (s *stringArray) AppendTime(v time.Time)         { *s = append(*s, v.String()) }

func (s *stringArray) AppendReflected(v any) error {
	s.add(v)
	return nil
}

// AppendObject drops nested objects; the prefix encoders never emit them
func (s *stringArray) AppendObject(zapcore.ObjectMarshaler) error {
	return nil
}

func (s *stringArray) AppendArray(v zapcore.ArrayMarshaler) error {
	return v.MarshalLogArray(s)
}

// appendFieldValue writes the value half of key=value
func appendFieldValue(buf *buffer.Buffer, field zapcore.Field) {
	switch field.Type {
	case zapcore.StringType:
		buf.AppendString(field.String)
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		buf.AppendInt(field.Integer)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type, zapcore.UintptrType:
		buf.AppendUint(uint64(field.Integer))
	case zapcore.Float64Type:
		buf.AppendFloat(math.Float64frombits(uint64(field.Integer)), 64)
	case zapcore.Float32Type:
		buf.AppendFloat(float64(math.Float32frombits(uint32(field.Integer))), 32)
	case zapcore.BoolType:
		buf.AppendBool(field.Integer == 1)
	case zapcore.DurationType:
		buf.AppendString(time.Duration(field.Integer).String())
	case zapcore.TimeType:
		t := time.Unix(0, field.Integer)
		if loc, ok := field.Interface.(*time.Location); ok {
			t = t.In(loc)
		}
		buf.AppendString(t.Format(time.RFC3339))
	case zapcore.TimeFullType:
		buf.AppendString(field.Interface.(time.Time).Format(time.RFC3339))
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			buf.AppendString(err.Error())
		} else {
			buf.AppendString("<nil>")
		}
	case zapcore.StringerType:
		if s, ok := field.Interface.(fmt.Stringer); ok {
			buf.AppendString(s.String())
		}
	default:
		if field.Interface != nil {
			buf.AppendString(fmt.Sprint(field.Interface))
		}
	}
}
