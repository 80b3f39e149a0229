package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

var (
	sanitizeRegex1 = regexp.MustCompile(`[<>:"|?*\s]`)
	sanitizeRegex2 = regexp.MustCompile(`-+`)
)

const maxErrorLogs = 10

// RequestLogger records inbound gateway calls and their responses.
type RequestLogger interface {
	// LogRequest logs a complete buffered exchange. force writes an error
	// log even while logging is disabled.
	LogRequest(url, method string, requestHeaders map[string][]string, body []byte, statusCode int, responseHeaders map[string][]string, response []byte, force bool) error

	// LogStreamingRequest starts a log for a streamed response.
	LogStreamingRequest(url, method string, headers map[string][]string, body []byte) (StreamingLogWriter, error)

	IsEnabled() bool
}

// StreamingLogWriter receives the chunks of a streamed response.
type StreamingLogWriter interface {
	WriteChunkAsync(chunk []byte)
	WriteStatus(status int, headers map[string][]string) error
	Close() error
}

// FileRequestLogger writes one file per request under logsDir.
type FileRequestLogger struct {
	enabled atomic.Bool
	logsDir string
}

// NewFileRequestLogger creates a file-based request logger. A relative
// logsDir is resolved against baseDir.
func NewFileRequestLogger(enabled bool, logsDir, baseDir string) *FileRequestLogger {
	if !filepath.IsAbs(logsDir) && baseDir != "" {
		logsDir = filepath.Join(baseDir, logsDir)
	}
	l := &FileRequestLogger{logsDir: logsDir}
	l.enabled.Store(enabled)
	return l
}

func (l *FileRequestLogger) IsEnabled() bool { return l.enabled.Load() }

// SetEnabled toggles logging at runtime.
func (l *FileRequestLogger) SetEnabled(enabled bool) { l.enabled.Store(enabled) }

// Dir returns the directory log files are written to.
func (l *FileRequestLogger) Dir() string { return l.logsDir }

func (l *FileRequestLogger) LogRequest(url, method string, requestHeaders map[string][]string, body []byte, statusCode int, responseHeaders map[string][]string, response []byte, force bool) error {
	enabled := l.enabled.Load()
	if !enabled && !force {
		return nil
	}
	if err := os.MkdirAll(l.logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	filename := l.generateFilename(url)
	if !enabled {
		filename = "error-" + filename
	}
	var content strings.Builder
	content.WriteString(formatRequestInfo(url, method, requestHeaders, body))
	content.WriteString(formatStatus(statusCode, responseHeaders))
	content.Write(response)
	content.WriteString("\n")

	if err := os.WriteFile(filepath.Join(l.logsDir, filename), []byte(content.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	if !enabled {
		if errCleanup := l.cleanupOldErrorLogs(); errCleanup != nil {
			WithError(errCleanup).Warn("failed to clean up old error logs")
		}
	}
	return nil
}

func (l *FileRequestLogger) LogStreamingRequest(url, method string, headers map[string][]string, body []byte) (StreamingLogWriter, error) {
	if !l.enabled.Load() {
		return NoOpStreamingLogWriter{}, nil
	}
	if err := os.MkdirAll(l.logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	file, err := os.Create(filepath.Join(l.logsDir, l.generateFilename(url)))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if _, err = file.WriteString(formatRequestInfo(url, method, headers, body)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write request info: %w", err)
	}
	w := &FileStreamingLogWriter{
		file:      file,
		chunkChan: make(chan []byte, 100),
		closeChan: make(chan struct{}),
	}
	go w.asyncWriter()
	return w, nil
}

func (l *FileRequestLogger) generateFilename(url string) string {
	path, _, _ := strings.Cut(url, "?")
	path = strings.TrimPrefix(path, "/")
	timestamp := strings.ReplaceAll(time.Now().Format("2006-01-02T150405-.000000000"), ".", "")
	return fmt.Sprintf("%s-%s.log", sanitizeForFilename(path), timestamp)
}

func sanitizeForFilename(path string) string {
	sanitized := strings.ReplaceAll(path, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, ":", "-")
	sanitized = sanitizeRegex1.ReplaceAllString(sanitized, "-")
	sanitized = sanitizeRegex2.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "root"
	}
	return sanitized
}

// cleanupOldErrorLogs keeps only the newest forced error logs.
func (l *FileRequestLogger) cleanupOldErrorLogs() error {
	entries, errRead := os.ReadDir(l.logsDir)
	if errRead != nil {
		return errRead
	}
	type logFile struct {
		name    string
		modTime time.Time
	}
	var files []logFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "error-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil {
			continue
		}
		files = append(files, logFile{name: name, modTime: info.ModTime()})
	}
	if len(files) <= maxErrorLogs {
		return nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	for _, file := range files[maxErrorLogs:] {
		if errRemove := os.Remove(filepath.Join(l.logsDir, file.name)); errRemove != nil {
			WithError(errRemove).Warnf("failed to remove old error log: %s", file.name)
		}
	}
	return nil
}

// formatRequestInfo renders the request section with credential headers masked.
func formatRequestInfo(url, method string, headers map[string][]string, body []byte) string {
	var content strings.Builder
	content.WriteString("=== REQUEST INFO ===\n")
	fmt.Fprintf(&content, "URL: %s\n", url)
	fmt.Fprintf(&content, "Method: %s\n", method)
	fmt.Fprintf(&content, "Timestamp: %s\n\n", time.Now().Format(time.RFC3339Nano))

	content.WriteString("=== HEADERS ===\n")
	for _, key := range sortedKeys(headers) {
		for _, value := range headers[key] {
			fmt.Fprintf(&content, "%s: %s\n", key, maskSensitiveHeaderValue(key, value))
		}
	}
	content.WriteString("\n=== REQUEST BODY ===\n")
	content.Write(body)
	content.WriteString("\n\n")
	return content.String()
}

func formatStatus(status int, headers map[string][]string) string {
	var content strings.Builder
	content.WriteString("=== RESPONSE ===\n")
	fmt.Fprintf(&content, "Status: %d\n", status)
	for _, key := range sortedKeys(headers) {
		for _, value := range headers[key] {
			fmt.Fprintf(&content, "%s: %s\n", key, value)
		}
	}
	content.WriteString("\n")
	return content.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileStreamingLogWriter appends streamed chunks to a log file from a
// background goroutine so the response path never blocks on disk.
type FileStreamingLogWriter struct {
	file          *os.File
	chunkChan     chan []byte
	closeChan     chan struct{}
	statusWritten bool
}

// WriteChunkAsync queues a copy of chunk; it is dropped when the queue is full.
func (w *FileStreamingLogWriter) WriteChunkAsync(chunk []byte) {
	if w.chunkChan == nil {
		return
	}
	chunkCopy := append([]byte(nil), chunk...)
	select {
	case w.chunkChan <- chunkCopy:
	default:
	}
}

// WriteStatus must be called before the first chunk.
func (w *FileStreamingLogWriter) WriteStatus(status int, headers map[string][]string) error {
	if w.file == nil || w.statusWritten {
		return nil
	}
	_, err := w.file.WriteString(formatStatus(status, headers))
	if err == nil {
		w.statusWritten = true
	}
	return err
}

func (w *FileStreamingLogWriter) Close() error {
	if w.chunkChan != nil {
		close(w.chunkChan)
		<-w.closeChan
		w.chunkChan = nil
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *FileStreamingLogWriter) asyncWriter() {
	defer close(w.closeChan)
	for chunk := range w.chunkChan {
		_, _ = w.file.Write(chunk)
	}
}

// NoOpStreamingLogWriter is used while logging is disabled.
type NoOpStreamingLogWriter struct{}

func (NoOpStreamingLogWriter) WriteChunkAsync(_ []byte) {}
func (NoOpStreamingLogWriter) WriteStatus(_ int, _ map[string][]string) error { return nil }
func (NoOpStreamingLogWriter) Close() error { return nil }
