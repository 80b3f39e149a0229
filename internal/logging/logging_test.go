package logging

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMaskSensitiveHeaderValue(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"Authorization", "Bearer sk-1234567890abcdef", "Bearer sk-1...cdef"},
		{"x-gateway-aws-secret-access-key", "wJalrXUtnFEMI", "wJal...FEMI"},
		{"api-key", "abcdef", "ab...ef"},
		{"Content-Type", "application/json", "application/json"},
	}
	for _, tc := range cases {
		if got := maskSensitiveHeaderValue(tc.key, tc.value); got != tc.want {
			t.Errorf("mask(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := maskSensitiveQuery("api-version=2024-10-21&key=abcdefghijkl")
	if !strings.HasPrefix(got, "api-version=2024-10-21&key=") || strings.Contains(got, "abcdefghijkl") {
		t.Fatalf("query not masked: %q", got)
	}
	if got = maskSensitiveQuery("limit=10"); got != "limit=10" {
		t.Fatalf("unrelated query changed: %q", got)
	}
}

func TestFileRequestLogger(t *testing.T) {
	dir := t.TempDir()
	l := NewFileRequestLogger(false, "logs", dir)

	if err := l.LogRequest("/v1/chat/completions", "POST", nil, []byte("{}"), 200, nil, []byte("ok"), false); err != nil {
		t.Fatalf("disabled log: %v", err)
	}
	if _, err := os.Stat(l.Dir()); !os.IsNotExist(err) {
		t.Fatal("disabled logger wrote files")
	}

	headers := map[string][]string{"Authorization": {"Bearer secret-value-1234"}}
	if err := l.LogRequest("/v1/chat/completions", "POST", headers, []byte(`{"model":"m"}`), 502, nil, []byte("bad"), true); err != nil {
		t.Fatalf("forced log: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil || len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "error-v1-chat-completions-") {
		t.Fatalf("entries = %v, %v", entries, err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "logs", entries[0].Name()))
	if strings.Contains(string(data), "secret-value-1234") || !strings.Contains(string(data), "Status: 502") {
		t.Fatalf("log content:\n%s", data)
	}
}

func TestStreamingLogWriter(t *testing.T) {
	l := NewFileRequestLogger(true, t.TempDir(), "")
	w, err := l.LogStreamingRequest("/v1/chat/completions", "POST", nil, []byte("{}"))
	if err != nil {
		t.Fatalf("LogStreamingRequest: %v", err)
	}
	if err = w.WriteStatus(200, map[string][]string{"Content-Type": {"text/event-stream"}}); err != nil {
		t.Fatal(err)
	}
	w.WriteChunkAsync([]byte("data: one\n\n"))
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(l.Dir())
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(l.Dir(), entries[0].Name()))
	if !strings.Contains(string(data), "data: one") || !strings.Contains(string(data), "text/event-stream") {
		t.Fatalf("stream log:\n%s", data)
	}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return &buf
}

func TestLineFormatAndLevels(t *testing.T) {
	buf := captureOutput(t)
	SetDebug(false)
	Debug("hidden")
	WithError(errors.New("boom")).WithField("provider", "bedrock").Warn("assume failed")

	line := buf.String()
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line written at info level: %q", line)
	}
	for _, want := range []string{"WARN", "logging_test.go:", "assume failed | error=boom provider=bedrock"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	SetDebug(true)
	defer SetDebug(false)
	Debugf("value %d", 7)
	if !strings.Contains(buf.String(), "value 7") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}

func TestEntryIsImmutable(t *testing.T) {
	buf := captureOutput(t)
	base := WithField("a", 1)
	_ = base.WithField("b", 2)
	base.Info("only a")
	if strings.Contains(buf.String(), "b=2") {
		t.Fatalf("derived entry leaked into base: %q", buf.String())
	}
}

func TestQuotedValues(t *testing.T) {
	buf := captureOutput(t)
	WithField("msg", "two words").Info("x")
	if !strings.Contains(buf.String(), `msg="two words"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestGinLoggerAssignsRequestID(t *testing.T) {
	buf := captureOutput(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLogger(), GinRecovery())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })
	r.GET("/panic", func(*gin.Context) { panic("bad") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok?key=abcdefghijkl", nil))
	id := rec.Header().Get(HeaderRequestID)
	if id == "" || rec.Body.String() != id {
		t.Fatalf("request id = %q body = %q", id, rec.Body.String())
	}
	if strings.Contains(buf.String(), "abcdefghijkl") || !strings.Contains(buf.String(), "request_id="+id) {
		t.Fatalf("access line: %q", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "given-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError || rec.Header().Get(HeaderRequestID) != "given-id" {
		t.Fatalf("panic response = %d %q", rec.Code, rec.Header().Get(HeaderRequestID))
	}
	if !strings.Contains(rec.Body.String(), "server_error") {
		t.Fatalf("panic body = %s", rec.Body.String())
	}
}

func TestDefaultLogsDir(t *testing.T) {
	t.Setenv(EnvWritablePath, "/var/lib/adapter")
	if got := DefaultLogsDir(); got != filepath.Join("/var/lib/adapter", "logs") {
		t.Fatalf("DefaultLogsDir = %q", got)
	}
	t.Setenv(EnvWritablePath, "")
	if got := DefaultLogsDir(); got != "logs" {
		t.Fatalf("DefaultLogsDir = %q", got)
	}
}
