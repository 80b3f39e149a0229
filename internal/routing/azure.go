package routing

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// DefaultAzureAPIVersion is used when the caller does not pin one.
const DefaultAzureAPIVersion = "2024-10-21"

var azureDeploymentPaths = map[unified.Operation]string{
	unified.OpChatComplete:        "/chat/completions",
	unified.OpComplete:            "/completions",
	unified.OpEmbed:               "/embeddings",
	unified.OpImageGenerate:       "/images/generations",
	unified.OpCreateSpeech:        "/audio/speech",
	unified.OpCreateTranscription: "/audio/transcriptions",
	unified.OpCreateTranslation:   "/audio/translations",
}

// AzureBaseURL returns the resource's OpenAI root.
func AzureBaseURL(resource string) string {
	return fmt.Sprintf("https://%s.openai.azure.com/openai", resource)
}

func azureRoute(t Target) (Endpoint, error) {
	opts := t.Options
	if opts == nil {
		opts = &provider.Options{}
	}
	resource := strings.TrimSpace(opts.AzureResourceName)
	if resource == "" && opts.CustomHost == "" {
		return Endpoint{}, &unified.ValidationError{Field: "azure_resource_name", Message: "missing required parameter: azure_resource_name"}
	}
	version := strings.TrimSpace(opts.AzureAPIVersion)
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	q := url.Values{}
	q.Set("api-version", version)

	ep := Endpoint{BaseURL: AzureBaseURL(resource), Method: http.MethodPost}
	if suffix, ok := azureDeploymentPaths[t.Operation]; ok {
		deployment := strings.TrimSpace(opts.AzureDeploymentID)
		if deployment == "" {
			return Endpoint{}, &unified.ValidationError{Field: "azure_deployment_id", Message: "missing required parameter: azure_deployment_id"}
		}
		ep.Path = "/deployments/" + url.PathEscape(deployment) + suffix + "?" + q.Encode()
		return ep, nil
	}

	var (
		path string
		err  error
		id   string
	)
	needID := func() {
		if id, err = requireParam(t, "id"); err == nil {
			id = url.PathEscape(id)
		}
	}
	switch t.Operation {
	case unified.OpUploadFile:
		path = "/files"
	case unified.OpListFiles:
		path, ep.Method = "/files", http.MethodGet
	case unified.OpRetrieveFile:
		needID()
		path, ep.Method = "/files/"+id, http.MethodGet
	case unified.OpDeleteFile:
		needID()
		path, ep.Method = "/files/"+id, http.MethodDelete
	case unified.OpRetrieveFileContent:
		needID()
		path, ep.Method = "/files/"+id+"/content", http.MethodGet
	case unified.OpCreateBatch:
		path = "/batches"
	case unified.OpRetrieveBatch:
		needID()
		path, ep.Method = "/batches/"+id, http.MethodGet
	case unified.OpCancelBatch:
		needID()
		path = "/batches/" + id + "/cancel"
	case unified.OpListBatches:
		path, ep.Method = "/batches", http.MethodGet
		if limit := t.query("limit", ""); limit != "" {
			q.Set("limit", limit)
		}
		if after := t.query("after", ""); after != "" {
			q.Set("after", after)
		}
	case unified.OpGetBatchOutput:
		// Served by a handler that reads the batch and then its output file.
		ep.Method = http.MethodGet
		return ep, nil
	case unified.OpCreateFinetune:
		path = "/fine_tuning/jobs"
	case unified.OpRetrieveFinetune:
		needID()
		path, ep.Method = "/fine_tuning/jobs/"+id, http.MethodGet
	default:
		return Endpoint{}, unsupported(provider.AzureOpenAI, t.Operation)
	}
	if err != nil {
		return Endpoint{}, err
	}
	ep.Path = path + "?" + q.Encode()
	return ep, nil
}
