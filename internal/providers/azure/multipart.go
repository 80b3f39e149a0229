package azure

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

var (
	transcriptionFields = []string{"model", "language", "prompt", "response_format", "temperature", "timestamp_granularities[]"}
	translationFields   = []string{"model", "prompt", "response_format", "temperature"}
)

// multipartHandler re-encodes the upload and the listed form fields as
// multipart/form-data.
func multipartHandler(fields []string) providers.HandlerFunc {
	return func(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
		upload := call.Upload
		if upload == nil || len(upload.Data) == 0 {
			return nil, &unified.ValidationError{Field: "file"}
		}
		body, contentType, err := encodeMultipart(call.Request, upload, fields)
		if err != nil {
			return nil, err
		}
		resp, err := env.Fetch(ctx, call, providers.Outbound{
			Method:      http.MethodPost,
			URL:         call.Endpoint.URL(),
			Body:        body,
			ContentType: contentType,
		})
		if err != nil {
			return nil, err
		}
		if normalize.IsError(provider.AzureOpenAI, resp.Status, resp.Body) {
			return nil, normalize.Upstream(provider.AzureOpenAI, resp.Status, resp.Body)
		}
		if gjson.ValidBytes(resp.Body) && gjson.ParseBytes(resp.Body).IsObject() {
			out, errStamp := providers.StampProvider(provider.AzureOpenAI)(resp.Status, resp.Body, call.Request)
			if errStamp != nil {
				return nil, errStamp
			}
			return providers.JSONResult(resp.Status, out), nil
		}
		// Plain-text transcription formats (text, srt, vtt).
		return &providers.Result{Status: resp.Status, Body: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
	}
}

func encodeMultipart(req *unified.Request, upload *unified.FileUpload, fields []string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		value, ok := req.Get(f)
		if f == "purpose" && upload.Purpose != "" {
			value, ok = upload.Purpose, true
		}
		if !ok {
			continue
		}
		values, isList := value.([]any)
		if !isList {
			values = []any{value}
		}
		for _, v := range values {
			if err := w.WriteField(f, transform.Stringify(v)); err != nil {
				return nil, "", fmt.Errorf("azure: write field %s: %w", f, err)
			}
		}
	}
	filename := upload.Filename
	if filename == "" {
		filename = "file"
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("azure: create file part: %w", err)
	}
	if _, err = part.Write(upload.Data); err != nil {
		return nil, "", fmt.Errorf("azure: write file part: %w", err)
	}
	if err = w.Close(); err != nil {
		return nil, "", fmt.Errorf("azure: close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
