package bedrock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
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
	"github.com/tidwall/gjson"
)

const maxBatchLine = 8 << 20

// createBatchParams builds CreateModelInvocationJob bodies.
var createBatchParams = []transform.ParamSpec{
	{Field: "job_name", Param: "jobName", Required: true, DefaultFunc: func(*unified.Request) any {
		return "llm-adapter-batch-" + uuid.NewString()
	}},
	{Field: "role_arn", Param: "roleArn", Required: true},
	{Field: "model", Param: "modelId", Required: true},
	{Field: "input_file_id", Param: "inputDataConfig", Required: true, Transform: batchInput},
	{Field: "output_data_config", Param: "outputDataConfig", Required: true, DefaultFunc: defaultBatchOutput, Transform: batchOutput},
	{Field: "completion_window", Param: "timeoutDurationInHours", Transform: windowHours, Min: transform.Bound(24), Max: transform.Bound(168)},
}

func batchInput(value any, _ *unified.Request) (any, error) {
	uri := transform.DecodeURIComponent(transform.Stringify(value))
	if _, _, ok := storage.SplitS3URI(uri); !ok {
		return nil, fmt.Errorf("expected an s3:// uri, got %q", uri)
	}
	return map[string]any{"s3InputDataConfig": map[string]any{"s3Uri": uri, "s3InputFormat": "JSONL"}}, nil
}

func defaultBatchOutput(req *unified.Request) any {
	input := transform.DecodeURIComponent(req.String("input_file_id"))
	if _, _, ok := storage.SplitS3URI(input); !ok {
		return nil
	}
	return storage.Dir(input) + "output/"
}

func batchOutput(value any, _ *unified.Request) (any, error) {
	uri := transform.DecodeURIComponent(transform.Stringify(value))
	return map[string]any{"s3OutputDataConfig": map[string]any{"s3Uri": uri}}, nil
}

func windowHours(value any, _ *unified.Request) (any, error) {
	s := strings.TrimSuffix(transform.Stringify(value), "h")
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("completion_window must look like 24h")
	}
	return hours, nil
}

func createBatchResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	arn := gjson.GetBytes(body, "jobArn").String()
	if arn == "" {
		return nil, normalize.Upstream(provider.Bedrock, http.StatusOK, body)
	}
	return json.Marshal(unified.BatchJob{
		ID:          normalize.BedrockJobID(arn),
		Object:      "batch",
		Endpoint:    "/invoke",
		Status:      unified.BatchQueued,
		InputFileID: transform.DecodeURIComponent(req.String("input_file_id")),
		CreatedAt:   time.Now().Unix(),
	})
}

func retrieveBatchResponse(_ int, body []byte, _ *unified.Request) ([]byte, error) {
	return json.Marshal(normalize.BedrockBatch(gjson.ParseBytes(body)))
}

func listBatchesResponse(_ int, body []byte, _ *unified.Request) ([]byte, error) {
	return json.Marshal(normalize.BedrockBatchList(gjson.ParseBytes(body)))
}

func jobURL(call *providers.Call, id string) string {
	return strings.TrimRight(call.Endpoint.BaseURL, "/") + "/model-invocation-job/" + url.PathEscape(normalize.DecodeJobID(id))
}

func fetchJob(ctx context.Context, env providers.Env, call *providers.Call, id string) (gjson.Result, error) {
	resp, err := env.Fetch(ctx, call, providers.Outbound{Method: http.MethodGet, URL: jobURL(call, id)})
	if err != nil {
		return gjson.Result{}, err
	}
	if normalize.IsError(provider.Bedrock, resp.Status, resp.Body) {
		return gjson.Result{}, normalize.Upstream(provider.Bedrock, resp.Status, resp.Body)
	}
	return gjson.ParseBytes(resp.Body), nil
}

// cancelBatch stops the job and reports its state afterwards.
func cancelBatch(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	resp, err := env.Fetch(ctx, call, providers.Outbound{Method: http.MethodPost, URL: call.Endpoint.URL()})
	if err != nil {
		return nil, err
	}
	if normalize.IsError(provider.Bedrock, resp.Status, resp.Body) {
		return nil, normalize.Upstream(provider.Bedrock, resp.Status, resp.Body)
	}
	record, err := fetchJob(ctx, env, call, call.Param("id"))
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(normalize.BedrockBatch(record))
	if err != nil {
		return nil, err
	}
	return providers.JSONResult(http.StatusOK, out), nil
}

func objectStore(ctx context.Context, env providers.Env, call *providers.Call) (*storage.S3, error) {
	creds, err := env.AWSCredentials(ctx, call.Options)
	if err != nil {
		return nil, err
	}
	endpoint := storage.S3Endpoint(call.Options.AWSRegion)
	custom := call.Options.CustomHost != ""
	if custom {
		endpoint = call.Options.CustomHost
	}
	return storage.NewS3(storage.S3Config{
		Endpoint:    endpoint,
		Region:      call.Options.AWSRegion,
		Credentials: creds,
		PathStyle:   custom,
		Transport:   env.Transport(),
	})
}

// getBatchOutput downloads the .out file Bedrock writes under
// {output}/{job id}/{input name}.out.
func getBatchOutput(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	id := strings.TrimSpace(call.Param("id"))
	if id == "" {
		return nil, &unified.ValidationError{Field: "id"}
	}
	record, err := fetchJob(ctx, env, call, id)
	if err != nil {
		return nil, err
	}
	job := normalize.BedrockBatch(record)
	if job.Status != unified.BatchSucceeded {
		return nil, &unified.ValidationError{Field: "id", Message: fmt.Sprintf("batch %s has no output yet (status %s)", id, job.Status)}
	}
	bucket, prefix, ok := storage.SplitS3URI(job.OutputFileID)
	_, inputKey, okIn := storage.SplitS3URI(job.InputFileID)
	if !ok || !okIn {
		return nil, &unified.ValidationError{Field: "id", Message: fmt.Sprintf("batch %s has no s3 output location", id)}
	}
	arn := record.Get("jobArn").String()
	key := strings.TrimRight(prefix, "/") + "/" + arn[strings.LastIndex(arn, "/")+1:] + "/" + path.Base(inputKey) + ".out"

	store, err := objectStore(ctx, env, call)
	if err != nil {
		return nil, err
	}
	obj, err := store.Open(ctx, bucket, key)
	if err != nil {
		return nil, &unified.TransportError{Provider: string(provider.Bedrock), Cause: err}
	}
	return &providers.Result{Status: http.StatusOK, Stream: obj, ContentType: "application/octet-stream"}, nil
}

// uploadFile writes the file to the configured bucket. Batch files are
// rewritten into Bedrock's {recordId, modelInput} records.
func uploadFile(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	upload := call.Upload
	if upload == nil || len(upload.Data) == 0 {
		return nil, &unified.ValidationError{Field: "file"}
	}
	bucket := strings.TrimSpace(call.Options.AWSS3Bucket)
	if bucket == "" {
		return nil, &unified.ValidationError{Field: "aws_s3_bucket"}
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
	name := upload.Filename
	if name == "" {
		name = uuid.NewString() + ".jsonl"
	}
	key := name
	if purpose != "" {
		key = purpose + "/" + name
	}

	store, err := objectStore(ctx, env, call)
	if err != nil {
		return nil, err
	}
	uri, err := store.Put(ctx, bucket, key, data, contentType)
	if err != nil {
		return nil, &unified.TransportError{Provider: string(provider.Bedrock), Cause: err}
	}
	out, err := json.Marshal(unified.FileObject{
		ID:        url.QueryEscape(uri),
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

// ConvertBatchFile maps OpenAI batch lines ({custom_id, body}) onto
// model-invocation records ({recordId, modelInput}). The body is forwarded as
// the native model input without the routing fields.
func ConvertBatchFile(data []byte) ([]byte, error) {
	out, err := json.RewriteLines(data, maxBatchLine, func(line int, raw []byte) (any, error) {
		var entry struct {
			CustomID string         `json:"custom_id"`
			Body     map[string]any `json:"body"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Body == nil {
			return nil, &unified.ValidationError{Field: "file", Message: fmt.Sprintf("batch line %d: expected {custom_id, body}", line)}
		}
		delete(entry.Body, "model")
		delete(entry.Body, "stream")
		return map[string]any{"recordId": entry.CustomID, "modelInput": entry.Body}, nil
	})
	var readErr *json.ReadError
	if errors.As(err, &readErr) {
		return nil, &unified.ValidationError{Field: "file", Message: fmt.Sprintf("read batch file: %v", readErr.Err)}
	}
	return out, err
}
