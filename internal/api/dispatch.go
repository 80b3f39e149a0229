package api

import (
	"context"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/llm-adapter/internal/gateway"
	"github.com/nghyane/llm-adapter/internal/json"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/runtime/executor"
	"github.com/nghyane/llm-adapter/internal/unified"
)

const maxMultipartMemory = 32 << 20

var errInvalidAPIKey = &unified.Error{Message: "Invalid API key", Type: "authentication_error"}

// dispatch runs op for the inbound request.
func (s *Server) dispatch(op unified.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.cfg.Load()
		opts, err := resolveOptions(cfg, c.Request.Header)
		if err != nil {
			writeError(c, err, "")
			return
		}
		name := opts.Provider.String()
		call, err := buildCall(c, op, opts)
		if err != nil {
			writeError(c, err, name)
			return
		}

		ctx := c.Request.Context()
		if cfg.RequestTimeout > 0 && !call.Request.Stream() && !op.IsDownload() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.RequestTimeout)*time.Second)
			defer cancel()
		}

		if strings.EqualFold(strings.TrimSpace(c.GetHeader(HeaderMode)), "prepare") {
			s.prepare(ctx, c, call)
			return
		}
		res, err := s.gateway.Do(ctx, call)
		if err != nil {
			writeError(c, err, name)
			return
		}
		writeResult(c, res, name)
	}
}

// prepare answers with the signed provider request instead of sending it.
func (s *Server) prepare(ctx context.Context, c *gin.Context, call *gateway.Call) {
	bundle, err := s.gateway.Prepare(ctx, call)
	if errors.Is(err, gateway.ErrHandlerOperation) {
		err = &unified.ValidationError{Field: "operation", Message: "operation needs several upstream requests and cannot be prepared"}
	}
	if err != nil {
		writeError(c, err, call.Options.Provider.String())
		return
	}
	out := gin.H{"method": bundle.Method, "url": bundle.URL, "headers": bundle.Headers}
	if len(bundle.Body) > 0 {
		out["body"] = string(bundle.Body)
	}
	c.JSON(http.StatusOK, out)
}

func buildCall(c *gin.Context, op unified.Operation, opts *provider.Options) (*gateway.Call, error) {
	call := &gateway.Call{Operation: op, Options: opts}
	if id := c.Param("id"); id != "" {
		call.PathParams = map[string]string{"id": id}
	}
	if q := c.Request.URL.Query(); len(q) > 0 {
		call.Query = make(map[string]string, len(q))
		for k := range q {
			call.Query[k] = q.Get(k)
		}
	}

	switch {
	case isMultipart(c.Request):
		fields, upload, err := readMultipart(c)
		if err != nil {
			return nil, err
		}
		call.Request = unified.NewRequest(op, fields, false)
		call.Upload = upload
	case c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete:
		call.Request = unified.NewRequest(op, nil, false)
	default:
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, &unified.ValidationError{Message: "failed to read request body"}
		}
		req, err := unified.ParseRequest(op, body)
		if err != nil {
			return nil, err
		}
		call.Request = req
	}
	return call, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readMultipart splits a form into unified fields and the uploaded file.
// Repeated fields become lists.
func readMultipart(c *gin.Context) (map[string]any, *unified.FileUpload, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, nil, &unified.ValidationError{Message: "invalid multipart body: " + err.Error()}
	}
	form := c.Request.MultipartForm
	fields := make(map[string]any, len(form.Value))
	for key, values := range form.Value {
		switch {
		case len(values) == 1 && !strings.HasSuffix(key, "[]"):
			fields[key] = values[0]
		default:
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			fields[key] = list
		}
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		return fields, nil, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, &unified.ValidationError{Field: "file", Message: "failed to read uploaded file"}
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, &unified.ValidationError{Field: "file", Message: "failed to read uploaded file"}
	}
	upload := &unified.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
	if purpose, ok := fields["purpose"].(string); ok {
		upload.Purpose = purpose
	}
	return fields, upload, nil
}

func writeResult(c *gin.Context, res *providers.Result, name string) {
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	if res.Stream == nil {
		c.Data(status, contentType, res.Body)
		return
	}

	defer func() { _ = res.Stream.Close() }()
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "no-cache")
	c.Status(status)
	buf := make([]byte, 32*1024)
	for {
		n, err := res.Stream.Read(buf)
		if n > 0 {
			if _, errWrite := c.Writer.Write(buf[:n]); errWrite != nil {
				log.WithError(errWrite).WithField("provider", name).Debug("client went away mid-stream")
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).WithField("provider", name).Warn("upstream stream ended with error")
			}
			return
		}
	}
}

// writeError renders any failure as the unified error envelope.
func writeError(c *gin.Context, err error, name string) {
	out, status := unified.AsError(err, name)
	if errors.Is(err, errInvalidAPIKey) {
		status = http.StatusUnauthorized
	}
	switch {
	case executor.IsCanceled(err):
		log.WithError(err).WithField("provider", name).Debug("request ended by caller or deadline")
	case status >= http.StatusInternalServerError:
		log.WithError(err).WithField("provider", name).Warn("request failed")
	}
	var upstream *unified.UpstreamError
	if errors.As(err, &upstream) && upstream.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(upstream.RetryAfter.Seconds()))))
	}
	body, errMarshal := json.Marshal(out.Body())
	if errMarshal != nil {
		c.AbortWithStatus(status)
		return
	}
	c.Abort()
	c.Data(status, "application/json", body)
}
