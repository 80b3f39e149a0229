package azure

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/routing"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// getBatchOutput reads the batch, then streams back its output file.
func getBatchOutput(ctx context.Context, env providers.Env, call *providers.Call) (*providers.Result, error) {
	id := strings.TrimSpace(call.Param("id"))
	if id == "" {
		return nil, &unified.ValidationError{Field: "id"}
	}
	version := routing.DefaultAzureAPIVersion
	if call.Options != nil && strings.TrimSpace(call.Options.AzureAPIVersion) != "" {
		version = strings.TrimSpace(call.Options.AzureAPIVersion)
	}
	q := "?" + url.Values{"api-version": {version}}.Encode()
	base := strings.TrimRight(call.Endpoint.BaseURL, "/")

	resp, err := env.Fetch(ctx, call, providers.Outbound{Method: http.MethodGet, URL: base + "/batches/" + url.PathEscape(id) + q})
	if err != nil {
		return nil, err
	}
	if normalize.IsError(provider.AzureOpenAI, resp.Status, resp.Body) {
		return nil, normalize.Upstream(provider.AzureOpenAI, resp.Status, resp.Body)
	}
	fileID := gjson.GetBytes(resp.Body, "output_file_id").String()
	if fileID == "" {
		status := gjson.GetBytes(resp.Body, "status").String()
		return nil, &unified.ValidationError{Field: "id", Message: "batch " + id + " has no output yet (status " + status + ")"}
	}

	resp, err = env.Open(ctx, call, providers.Outbound{Method: http.MethodGet, URL: base + "/files/" + url.PathEscape(fileID) + "/content" + q})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, normalize.Upstream(provider.AzureOpenAI, resp.Status, resp.Body)
	}
	return providers.StreamResult(resp, "application/octet-stream"), nil
}
