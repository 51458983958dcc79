// Package logger provides a structured logging solution using the Zap logging library.
// It includes utilities for creating and managing loggers, setting log levels,
// and integrating logging with context for enhanced traceability.
// The package supports key-value logging and customizable log levels,
// making it suitable for both development and production environments.
package logger

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// level is the atomic, shared log level gate for the global logger.
	//
	//nolint:gochecknoglobals // Mirrors the zap.AtomicLevel pattern for process-wide level control.
	level = zap.NewAtomicLevel()

	// current holds the active *zap.Logger, swappable via SetLogger.
	//
	//nolint:gochecknoglobals // A single process-wide logger instance is the intended usage.
	current atomic.Pointer[zap.Logger]

	// ring is the bounded in-memory buffer consumed by the scheduler's log introspection endpoint.
	//
	//nolint:gochecknoglobals // Single-writer ring buffer shared by every logger call site.
	ring = newRingBuffer(defaultRingCapacity)
)

const defaultRingCapacity = 500

//nolint:gochecknoinits // The package must have a working default logger before any caller touches it.
func init() {
	current.Store(New(level))
}

// New builds a zap.Logger writing JSON to stderr at the given level.
// A nil level falls back to Info.
func New(lvl zapcore.LevelEnabler) *zap.Logger {
	if lvl == nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	jsonCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), lvl)
	core := zapcore.NewTee(jsonCore, ring.core(lvl))

	return zap.New(core, zap.AddCaller())
}

// Logger returns the current process-wide logger instance.
func Logger() *zap.Logger {
	return current.Load()
}

// SetLogger replaces the process-wide logger instance.
func SetLogger(l *zap.Logger) {
	current.Store(l)
}

// Level returns the current minimum enabled log level.
func Level() zapcore.Level {
	return level.Level()
}

// SetLevel updates the minimum enabled log level for the global logger.
func SetLevel(lvl zapcore.Level) {
	level.SetLevel(lvl)
}

// ParseLogLevel parses a human-readable level name (case-insensitive, trimmed)
// into a zapcore.Level. The second return value reports whether the name was recognized.
func ParseLogLevel(name string) (zapcore.Level, bool) {
	var lvl zapcore.Level

	err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name))))
	if err != nil {
		return zapcore.InfoLevel, false
	}

	return lvl, true
}

// LogSnapshot returns a bounded, point-in-time copy of the most recent log lines,
// consumed by the scheduler's introspection surface (downloads/logs).
func LogSnapshot(maxLines int) []RingEntry {
	return ring.snapshot(maxLines)
}

// sugar returns a SugaredLogger bound to the current process-wide logger.
func sugar() *zap.SugaredLogger {
	return Logger().Sugar()
}

// fieldsFromContext extracts tracing-style fields from ctx, if any were attached via WithFields.
func fieldsFromContext(ctx context.Context) []any {
	v, _ := ctx.Value(ctxFieldsKey{}).([]any)

	return v
}

type ctxFieldsKey struct{}

// WithFields attaches key-value pairs to ctx so subsequent *KV-less log calls still carry them.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	existing := fieldsFromContext(ctx)
	merged := make([]any, 0, len(existing)+len(keysAndValues))
	merged = append(merged, existing...)
	merged = append(merged, keysAndValues...)

	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

func Debug(ctx context.Context, msg string)  { sugar().With(fieldsFromContext(ctx)...).Debug(msg) }
func Info(ctx context.Context, msg string)   { sugar().With(fieldsFromContext(ctx)...).Info(msg) }
func Warn(ctx context.Context, msg string)   { sugar().With(fieldsFromContext(ctx)...).Warn(msg) }
func Error(ctx context.Context, msg string)  { sugar().With(fieldsFromContext(ctx)...).Error(msg) }
func Fatal(ctx context.Context, msg string)  { sugar().With(fieldsFromContext(ctx)...).Fatal(msg) }

func Debugf(ctx context.Context, format string, args ...any) {
	sugar().With(fieldsFromContext(ctx)...).Debugf(format, args...)
}

func Infof(ctx context.Context, format string, args ...any) {
	sugar().With(fieldsFromContext(ctx)...).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	sugar().With(fieldsFromContext(ctx)...).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	sugar().With(fieldsFromContext(ctx)...).Errorf(format, args...)
}

func Fatalf(ctx context.Context, format string, args ...any) {
	sugar().With(fieldsFromContext(ctx)...).Fatalf(format, args...)
}

func DebugKV(ctx context.Context, msg string, keysAndValues ...any) {
	sugar().With(fieldsFromContext(ctx)...).Debugw(msg, keysAndValues...)
}

func InfoKV(ctx context.Context, msg string, keysAndValues ...any) {
	sugar().With(fieldsFromContext(ctx)...).Infow(msg, keysAndValues...)
}

func WarnKV(ctx context.Context, msg string, keysAndValues ...any) {
	sugar().With(fieldsFromContext(ctx)...).Warnw(msg, keysAndValues...)
}

func ErrorKV(ctx context.Context, msg string, keysAndValues ...any) {
	sugar().With(fieldsFromContext(ctx)...).Errorw(msg, keysAndValues...)
}

// ringBuffer is a fixed-size circular buffer of rendered log lines with a monotonic
// sequence number, per spec.md's "Log ring buffer" design note: readers take a bounded
// snapshot and no lock is held across I/O.
type ringBuffer struct {
	mu       sync.Mutex
	entries  []RingEntry
	capacity int
	nextSeq  uint64
}

// RingEntry is one line captured by the ring buffer.
type RingEntry struct {
	Seq     uint64
	Level   string
	Message string
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{entries: make([]RingEntry, 0, capacity), capacity: capacity}
}

func (r *ringBuffer) append(lvl zapcore.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	entry := RingEntry{Seq: r.nextSeq, Level: lvl.String(), Message: msg}

	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, entry)

		return
	}

	copy(r.entries, r.entries[1:])
	r.entries[len(r.entries)-1] = entry
}

func (r *ringBuffer) snapshot(maxLines int) []RingEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if maxLines <= 0 || maxLines > len(r.entries) {
		maxLines = len(r.entries)
	}

	start := len(r.entries) - maxLines
	out := make([]RingEntry, maxLines)
	copy(out, r.entries[start:])

	return out
}

func (r *ringBuffer) core(lvl zapcore.LevelEnabler) zapcore.Core {
	return &ringCore{buf: r, LevelEnabler: lvl}
}

// ringCore is a minimal zapcore.Core that forwards every entry into the ring buffer.
type ringCore struct {
	zapcore.LevelEnabler
	buf *ringBuffer
}

func (c *ringCore) With(_ []zapcore.Field) zapcore.Core { return c }

func (c *ringCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}

	return checked
}

func (c *ringCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.buf.append(entry.Level, entry.Message)

	return nil
}

func (c *ringCore) Sync() error { return nil }
