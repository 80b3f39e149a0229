package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/llm-adapter/internal/logging"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/tidwall/gjson"
)

// maxLoggedBody caps the request body copy kept for the request log.
const maxLoggedBody = 1 << 20

// requestLoggingMiddleware records /v1 exchanges. Failed calls are logged even
// while request logging is off so upstream errors can be inspected later.
func requestLoggingMiddleware(logger logging.RequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if logger == nil || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		var body []byte
		if c.Request.Body != nil && !isMultipart(c.Request) {
			data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody+1))
			if err == nil && len(data) <= maxLoggedBody {
				body = data
				c.Request.Body = io.NopCloser(bytes.NewReader(data))
			} else {
				c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), c.Request.Body))
			}
		}
		url := c.Request.URL.String()

		if logger.IsEnabled() && gjson.GetBytes(body, "stream").Bool() {
			stream, err := logger.LogStreamingRequest(url, c.Request.Method, c.Request.Header, body)
			if err != nil {
				log.WithError(err).Warn("failed to start streaming request log")
				c.Next()
				return
			}
			c.Writer = &streamingCapture{ResponseWriter: c.Writer, log: stream}
			c.Next()
			if err = stream.Close(); err != nil {
				log.WithError(err).Warn("failed to close streaming request log")
			}
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := capture.Status()
		if !logger.IsEnabled() && status < http.StatusBadRequest {
			return
		}
		if err := logger.LogRequest(url, c.Request.Method, c.Request.Header, body, status, capture.Header(), capture.buf.Bytes(), status >= http.StatusBadRequest); err != nil {
			log.WithError(err).Warn("failed to write request log")
		}
	}
}

type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(p []byte) (int, error) {
	if w.buf.Len() < maxLoggedBody {
		w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

type streamingCapture struct {
	gin.ResponseWriter
	log           logging.StreamingLogWriter
	statusWritten bool
}

func (w *streamingCapture) Write(p []byte) (int, error) {
	if !w.statusWritten {
		_ = w.log.WriteStatus(w.Status(), w.Header())
		w.statusWritten = true
	}
	w.log.WriteChunkAsync(p)
	return w.ResponseWriter.Write(p)
}

func (w *streamingCapture) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
