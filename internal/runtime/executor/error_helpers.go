package executor

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nghyane/llm-adapter/internal/provider"
)

// StatusError is a non-2xx provider response classified for the dispatch
// layer.
type StatusError struct {
	code       int
	msg        string
	retryAfter *time.Duration
	category   provider.ErrorCategory
}

func (e StatusError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("status %d", e.code)
}

func (e StatusError) StatusCode() int { return e.code }

func (e StatusError) RetryAfter() *time.Duration { return e.retryAfter }

func (e StatusError) Category() provider.ErrorCategory { return e.category }

// NewStatusError classifies code and msg.
func NewStatusError(code int, msg string, retryAfter *time.Duration) StatusError {
	return StatusError{
		code:       code,
		msg:        msg,
		retryAfter: retryAfter,
		category:   provider.CategorizeError(code, msg),
	}
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) *time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if at, err := http.ParseTime(v); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

// summarizeErrorBody keeps HTML error pages out of logs.
func summarizeErrorBody(contentType string, body []byte) string {
	isHTML := strings.Contains(strings.ToLower(contentType), "text/html")
	if !isHTML {
		trimmed := bytes.TrimSpace(bytes.ToLower(body))
		isHTML = bytes.HasPrefix(trimmed, []byte("<!doctype html")) || bytes.HasPrefix(trimmed, []byte("<html"))
	}
	if !isHTML {
		if len(body) > 2048 {
			return string(body[:2048]) + "...[truncated]"
		}
		return string(body)
	}
	lower := bytes.ToLower(body)
	start := bytes.Index(lower, []byte("<title"))
	if start == -1 {
		return "[html body omitted]"
	}
	if gt := bytes.IndexByte(lower[start:], '>'); gt >= 0 {
		start += gt + 1
		if end := bytes.Index(lower[start:], []byte("</title>")); end >= 0 {
			if title := strings.Join(strings.Fields(html.UnescapeString(string(body[start:start+end]))), " "); title != "" {
				return title
			}
		}
	}
	return "[html body omitted]"
}
