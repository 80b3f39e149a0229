package vertex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/routing"
	"github.com/nghyane/llm-adapter/internal/storage"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

var createBatchParams = []transform.ParamSpec{
	{Field: "job_name", Param: "displayName", DefaultFunc: func(*unified.Request) any {
		return "llm-adapter-batch-" + uuid.NewString()
	}},
	{Field: "model", Param: "model", Required: true, Transform: publisherModel},
	{Field: "input_file_id", Param: "inputConfig", Required: true, Transform: batchInput},
	{Field: "output_data_config", Param: "outputConfig", DefaultFunc: defaultBatchOutput, Transform: batchOutput},
	{Field: "metadata", Param: "labels"},
}

func publisherModel(value any, _ *unified.Request) (any, error) {
	model, _ := value.(string)
	family, name := routing.VertexModel(model)
	return fmt.Sprintf("publishers/%s/models/%s", family, name), nil
}

func batchInput(value any, _ *unified.Request) (any, error) {
	uri := transform.DecodeURIComponent(transform.Stringify(value))
	switch {
	case strings.HasPrefix(uri, "gs://"):
		return map[string]any{
			"instancesFormat": "jsonl",
			"gcsSource":       map[string]any{"uris": []any{uri}},
		}, nil
	case strings.HasPrefix(uri, "bq://"):
		return map[string]any{
			"instancesFormat": "bigquery",
			"bigquerySource":  map[string]any{"inputUri": uri},
		}, nil
	}
	return nil, fmt.Errorf("expected a gs:// or bq:// uri, got %q", uri)
}

func defaultBatchOutput(req *unified.Request) any {
	input := transform.DecodeURIComponent(req.String("input_file_id"))
	if !strings.HasPrefix(input, "gs://") {
		return nil
	}
	return storage.Dir(input) + "output"
}

func batchOutput(value any, _ *unified.Request) (any, error) {
	uri := transform.DecodeURIComponent(transform.Stringify(value))
	if strings.HasPrefix(uri, "bq://") {
		return map[string]any{
			"predictionsFormat":   "bigquery",
			"bigqueryDestination": map[string]any{"outputUri": uri},
		}, nil
	}
	return map[string]any{
		"predictionsFormat": "jsonl",
		"gcsDestination":    map[string]any{"outputUriPrefix": uri},
	}, nil
}

func jobsURL(call *providers.Call) string {
	opts := call.Options
	return strings.TrimRight(call.Endpoint.BaseURL, "/") +
		routing.VertexProjectRoute("v1", opts.ProjectID(), opts.VertexRegion) + "/batchPredictionJobs"
}

func storageBase(call *providers.Call) string {
	if call.Options != nil && call.Options.CustomHost != "" {
		return strings.TrimRight(call.Options.CustomHost, "/")
	}
	return storage.GCSBaseURL
}

// createBatch builds the job body and submits it in one call.
func createBatch(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	body, err := transform.Build(createBatchParams, call.Request)
	if err != nil {
		return nil, err
	}
	resp, err := env.Fetch(ctx, call, providers.Outbound{Method: http.MethodPost, URL: jobsURL(call), Body: body})
	if err != nil {
		return nil, err
	}
	if !resp.OK() || normalize.IsError(provider.VertexAI, resp.Status, resp.Body) {
		return nil, normalize.Upstream(provider.VertexAI, resp.Status, resp.Body)
	}
	return batchResult(resp.Body)
}

func fetchJob(ctx context.Context, env providers.Env, call *providers.Call, id string) (unified.BatchJob, error) {
	resp, err := env.Fetch(ctx, call, providers.Outbound{Method: http.MethodGet, URL: jobsURL(call) + "/" + url.PathEscape(id)})
	if err != nil {
		return unified.BatchJob{}, err
	}
	if !resp.OK() || normalize.IsError(provider.VertexAI, resp.Status, resp.Body) {
		return unified.BatchJob{}, normalize.Upstream(provider.VertexAI, resp.Status, resp.Body)
	}
	return normalize.VertexBatch(gjson.ParseBytes(resp.Body)), nil
}

// cancelBatch requests cancellation and reports the job as it stands after.
func cancelBatch(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	resp, err := env.Fetch(ctx, call, providers.Outbound{Method: http.MethodPost, URL: call.Endpoint.URL(), Body: []byte("{}")})
	if err != nil {
		return nil, err
	}
	if !resp.OK() || normalize.IsError(provider.VertexAI, resp.Status, resp.Body) {
		return nil, normalize.Upstream(provider.VertexAI, resp.Status, resp.Body)
	}
	job, err := fetchJob(ctx, env, call, call.Param("id"))
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return providers.JSONResult(http.StatusOK, out), nil
}

// getBatchOutput reads the job and downloads its predictions file.
func getBatchOutput(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	id := strings.TrimSpace(call.Param("id"))
	if id == "" {
		return nil, &unified.ValidationError{Field: "id"}
	}
	job, err := fetchJob(ctx, env, call, id)
	if err != nil {
		return nil, err
	}
	bucket, object, ok := storage.SplitGCSURI(job.OutputFileID)
	if !ok || job.Status != unified.BatchSucceeded {
		return nil, &unified.ValidationError{Field: "id", Message: fmt.Sprintf("batch %s has no output yet (status %s)", id, job.Status)}
	}
	resp, err := env.Open(ctx, call, providers.Outbound{Method: http.MethodGet, URL: storage.GCSMediaURL(storageBase(call), bucket, object)})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, normalize.Upstream(provider.VertexAI, resp.Status, resp.Body)
	}
	return providers.StreamResult(resp, "application/octet-stream"), nil
}

func batchResult(body []byte) (*providers.Result, error) {
	out, err := json.Marshal(normalize.VertexBatch(gjson.ParseBytes(body)))
	if err != nil {
		return nil, err
	}
	return providers.JSONResult(http.StatusOK, out), nil
}

func retrieveBatchResponse(_ int, body []byte, _ *unified.Request) ([]byte, error) {
	return json.Marshal(normalize.VertexBatch(gjson.ParseBytes(body)))
}

func listBatchesResponse(_ int, body []byte, _ *unified.Request) ([]byte, error) {
	return json.Marshal(normalize.VertexBatchList(gjson.ParseBytes(body)))
}
