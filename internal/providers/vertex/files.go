package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/storage"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
)

const maxBatchLine = 8 << 20

// uploadFile stores the file in the configured bucket. Batch files are
// rewritten line by line from chat requests into generateContent requests.
func uploadFile(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	upload := call.Upload
	if upload == nil || len(upload.Data) == 0 {
		return nil, &unified.ValidationError{Field: "file"}
	}
	bucket := strings.TrimSpace(call.Options.VertexStorageBucket)
	if bucket == "" {
		return nil, &unified.ValidationError{Field: "vertex_storage_bucket"}
	}
	purpose := upload.Purpose
	if purpose == "" {
		purpose = call.Request.String("purpose")
	}

	data, contentType := upload.Data, upload.ContentType
	if purpose == "batch" {
		converted, err := ConvertBatchFile(data)
		if err != nil {
			return nil, err
		}
		data, contentType = converted, "application/jsonl"
	}
	if contentType == "" {
		contentType = MimeType(upload.Filename)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	object := upload.Filename
	if object == "" {
		object = uuid.NewString() + ".jsonl"
	}
	if purpose != "" {
		object = purpose + "/" + object
	}

	resp, err := env.Fetch(ctx, call, providers.Outbound{
		Method:      http.MethodPost,
		URL:         storage.GCSUploadURL(storageBase(call), bucket, object),
		Body:        data,
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, normalize.Upstream(provider.VertexAI, resp.Status, resp.Body)
	}
	out, err := json.Marshal(unified.FileObject{
		ID:        storage.GCSURI(bucket, object),
		Object:    "file",
		Bytes:     int64(len(data)),
		CreatedAt: time.Now().Unix(),
		Filename:  upload.Filename,
		Purpose:   purpose,
		Status:    "processed",
	})
	if err != nil {
		return nil, err
	}
	return providers.JSONResult(http.StatusOK, out), nil
}

// ConvertBatchFile rewrites OpenAI batch lines ({custom_id, body}) into
// Vertex batch lines ({custom_id, request}) with the body built by the
// Gemini chat specs.
func ConvertBatchFile(data []byte) ([]byte, error) {
	out, err := json.RewriteLines(data, maxBatchLine, func(line int, raw []byte) (any, error) {
		var entry struct {
			CustomID string         `json:"custom_id"`
			Body     map[string]any `json:"body"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, &unified.ValidationError{Field: "file", Message: fmt.Sprintf("batch line %d: %v", line, err)}
		}
		if entry.Body == nil {
			return nil, &unified.ValidationError{Field: "file", Message: fmt.Sprintf("batch line %d: missing body", line)}
		}
		request, err := transform.Build(googleChatParams, unified.NewRequest(unified.OpChatComplete, entry.Body, false))
		if err != nil {
			return nil, fmt.Errorf("batch line %d: %w", line, err)
		}
		return map[string]any{"custom_id": entry.CustomID, "request": transform.Raw(request)}, nil
	})
	var readErr *json.ReadError
	if errors.As(err, &readErr) {
		return nil, &unified.ValidationError{Field: "file", Message: fmt.Sprintf("read batch file: %v", readErr.Err)}
	}
	return out, err
}
