// Package logging is the process-wide logger of the adapter: a slog core with
// leveled helpers, field entries, rotating file output, the gin bridge and the
// per-request exchange log.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Fields is a set of structured attributes attached to one line.
type Fields map[string]any

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Logger]
	now     = time.Now

	outMu     sync.Mutex
	out       io.Writer = os.Stdout
	addSource           = true
)

func init() {
	level.Set(slog.LevelInfo)
	current.Store(slog.New(newLineHandler(out, level, addSource)))
}

func rebuild() {
	current.Store(slog.New(newLineHandler(out, level, addSource)))
}

// SetOutput redirects every subsequent line to w.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
	rebuild()
}

// SetReportCaller toggles the file:line column.
func SetReportCaller(enabled bool) {
	outMu.Lock()
	defer outMu.Unlock()
	addSource = enabled
	rebuild()
}

// SetLevel sets the minimum level written.
func SetLevel(l slog.Level) { level.Set(l) }

// SetDebug switches between debug and info level.
func SetDebug(debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// IsDebug reports whether debug lines are written.
func IsDebug() bool { return level.Level() <= slog.LevelDebug }

// emit writes one record. skip counts the frames between the caller of the
// public helper and runtime.Callers.
func emit(lvl slog.Level, msg string, attrs []slog.Attr, skip int) {
	logger := current.Load()
	if !logger.Enabled(context.Background(), lvl) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	r := slog.NewRecord(now(), lvl, msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = logger.Handler().Handle(context.Background(), r)
}

func Debug(msg string) { emit(slog.LevelDebug, msg, nil, 3) }
func Debugf(format string, args ...any) { emit(slog.LevelDebug, fmt.Sprintf(format, args...), nil, 3) }
func Info(msg string) { emit(slog.LevelInfo, msg, nil, 3) }
func Infof(format string, args ...any) { emit(slog.LevelInfo, fmt.Sprintf(format, args...), nil, 3) }
func Warn(msg string) { emit(slog.LevelWarn, msg, nil, 3) }
func Warnf(format string, args ...any) { emit(slog.LevelWarn, fmt.Sprintf(format, args...), nil, 3) }
func Error(msg string) { emit(slog.LevelError, msg, nil, 3) }
func Errorf(format string, args ...any) { emit(slog.LevelError, fmt.Sprintf(format, args...), nil, 3) }

// Fatal logs msg, runs the exit handlers and exits with status 1.
func Fatal(msg string) {
	emit(slog.LevelError, msg, nil, 3)
	exit()
}

// Fatalf is Fatal with formatting.
func Fatalf(format string, args ...any) {
	emit(slog.LevelError, fmt.Sprintf(format, args...), nil, 3)
	exit()
}

// Entry carries attributes for one log line. With* methods return a new
// Entry, so a shared base entry is never mutated.
type Entry struct {
	attrs []slog.Attr
}

// WithError starts an entry carrying err.
func WithError(err error) Entry { return Entry{}.WithError(err) }

// WithField starts an entry carrying one attribute.
func WithField(key string, value any) Entry { return Entry{}.WithField(key, value) }

// WithFields starts an entry carrying fields.
func WithFields(fields Fields) Entry { return Entry{}.WithFields(fields) }

func (e Entry) WithError(err error) Entry { return e.with(slog.Any("error", err)) }

func (e Entry) WithField(key string, value any) Entry { return e.with(slog.Any(key, value)) }

func (e Entry) WithFields(fields Fields) Entry {
	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return e.with(attrs...)
}

func (e Entry) with(attrs ...slog.Attr) Entry {
	merged := make([]slog.Attr, 0, len(e.attrs)+len(attrs))
	merged = append(merged, e.attrs...)
	return Entry{attrs: append(merged, attrs...)}
}

func (e Entry) Debug(msg string) { emit(slog.LevelDebug, msg, e.attrs, 3) }
func (e Entry) Debugf(format string, args ...any) { emit(slog.LevelDebug, fmt.Sprintf(format, args...), e.attrs, 3) }
func (e Entry) Info(msg string) { emit(slog.LevelInfo, msg, e.attrs, 3) }
func (e Entry) Infof(format string, args ...any) { emit(slog.LevelInfo, fmt.Sprintf(format, args...), e.attrs, 3) }
func (e Entry) Warn(msg string) { emit(slog.LevelWarn, msg, e.attrs, 3) }
func (e Entry) Warnf(format string, args ...any) { emit(slog.LevelWarn, fmt.Sprintf(format, args...), e.attrs, 3) }
func (e Entry) Error(msg string) { emit(slog.LevelError, msg, e.attrs, 3) }
func (e Entry) Errorf(format string, args ...any) { emit(slog.LevelError, fmt.Sprintf(format, args...), e.attrs, 3) }

// LevelWriter adapts the logger to io.Writer, one line per Write.
func LevelWriter(lvl slog.Level) io.Writer { return levelWriter(lvl) }

type levelWriter slog.Level

func (w levelWriter) Write(p []byte) (int, error) {
	if msg := strings.TrimRight(string(p), "\r\n"); msg != "" {
		emit(slog.Level(w), msg, nil, 4)
	}
	return len(p), nil
}

var (
	exitMu       sync.Mutex
	exitHandlers []func()
)

// RegisterExitHandler runs handler before Fatal exits.
func RegisterExitHandler(handler func()) {
	exitMu.Lock()
	defer exitMu.Unlock()
	exitHandlers = append(exitHandlers, handler)
}

func exit() {
	exitMu.Lock()
	handlers := append([]func(){}, exitHandlers...)
	exitMu.Unlock()
	for _, h := range handlers {
		h()
	}
	os.Exit(1)
}
