// Package logger is the LMS backend's structured logger.
// Call sites build Fields; zap stays behind this package.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a minimum log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"DEBUG":   LevelDebug,
	"INFO":    LevelInfo,
	"WARN":    LevelWarn,
	"WARNING": LevelWarn,
	"ERROR":   LevelError,
	"FATAL":   LevelError, // the service never exits from a log call
}

// String returns the upper-case level name.
func (l Level) String() string {
	return l.zapLevel().CapitalString()
}

// ParseLevel reads LOG_LEVEL style strings. Unknown values mean info.
func ParseLevel(s string) Level {
	if l, ok := levelNames[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return l
	}
	return LevelInfo
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Fields
// ─────────────────────────────────────────────────────────────────────────────

// Field is one key/value pair on a log entry.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field   { return Field{Key: key, Value: value} }

// Err logs err under "error" as its message.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration logs d in its String form.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d.String()}
}

func UserID(id string) Field        { return String("user_id", id) }
func Handle(h string) Field         { return String("handle", h) }
func Score(v int) Field             { return Int("score", v) }
func Stage(v int) Field             { return Int("stage", v) }
func Step(v int) Field              { return Int("step", v) }
func Component(name string) Field   { return String("component", name) }
func Latency(d time.Duration) Field { return Duration("latency", d) }

func toZap(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Logger
// ─────────────────────────────────────────────────────────────────────────────

// Logger wraps a zap.Logger.
type Logger struct {
	zl *zap.Logger
}

// Options configures New.
type Options struct {
	// Output defaults to stdout.
	Output io.Writer
	Level  Level

	// Format is "json" or "console".
	Format string

	AddCaller bool
}

// New builds a Logger writing to opts.Output.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewJSONEncoder(encCfg)
	if f := strings.ToLower(opts.Format); f == "console" || f == "text" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var zapOpts []zap.Option
	if opts.AddCaller {
		// skip the exported wrapper method
		zapOpts = append(zapOpts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), opts.Level.zapLevel())
	return &Logger{zl: zap.New(core, zapOpts...)}
}

// Default is a JSON info logger on stdout.
func Default() *Logger {
	return New(Options{Level: LevelInfo, Format: "json", AddCaller: true})
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{zl: l.zl.With(toZap(fields)...)}
}

// WithRequestID tags the logger with the request's ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String("request_id", requestID))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, toZap(fields)...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.zl.Info(msg, toZap(fields)...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, toZap(fields)...) }
func (l *Logger) Error(msg string, fields ...Field) { l.zl.Error(msg, toZap(fields)...) }

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or Default when none is attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
