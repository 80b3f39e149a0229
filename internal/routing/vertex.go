package routing

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/storage"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Vertex model families addressable through a compound model string.
const (
	VertexFamilyGoogle    = "google"
	VertexFamilyAnthropic = "anthropic"
	VertexFamilyMeta      = "meta"
	VertexFamilyEndpoints = "endpoints"
)

var vertexFamilies = []string{VertexFamilyGoogle, VertexFamilyAnthropic, VertexFamilyMeta, VertexFamilyEndpoints}

const vertexStorageBaseURL = storage.GCSBaseURL

// VertexModel splits a Vertex model string into family and model name.
func VertexModel(model string) (family, name string) {
	return SplitModel(model, vertexFamilies, VertexFamilyGoogle)
}

// VertexBaseURL returns the regional aiplatform host.
func VertexBaseURL(region string) string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com", region)
}

// vertexAPIVersion is keyed by family; some preview models also need v1beta1.
func vertexAPIVersion(family, model string) string {
	if family == VertexFamilyMeta || strings.Contains(model, "gemini-2.0-flash-thinking-exp") {
		return "v1beta1"
	}
	return "v1"
}

// VertexProjectRoute returns /{version}/projects/{project}/locations/{region}.
func VertexProjectRoute(version, project, region string) string {
	return fmt.Sprintf("/%s/projects/%s/locations/%s", version, project, region)
}

func vertexRoute(t Target) (Endpoint, error) {
	opts := t.Options
	if opts == nil {
		opts = &provider.Options{}
	}
	region := strings.TrimSpace(opts.VertexRegion)
	if region == "" && !t.Operation.IsFile() {
		return Endpoint{}, &unified.ValidationError{Field: "vertex_region", Message: "missing required parameter: vertex_region"}
	}
	project := opts.ProjectID()

	if t.Operation.IsResource() {
		return vertexResourceRoute(t, project, region)
	}

	family, model := VertexModel(t.Model)
	ep := Endpoint{
		BaseURL: VertexBaseURL(region),
		Method:  http.MethodPost,
	}
	root := VertexProjectRoute(vertexAPIVersion(family, t.Model), project, region)
	publisher := fmt.Sprintf("%s/publishers/%s/models/%s", root, family, model)

	switch family {
	case VertexFamilyGoogle:
		switch t.Operation {
		case unified.OpChatComplete:
			if t.Stream {
				ep.Path = publisher + ":streamGenerateContent?alt=sse"
			} else {
				ep.Path = publisher + ":generateContent"
			}
		case unified.OpEmbed, unified.OpImageGenerate:
			ep.Path = publisher + ":predict"
		default:
			return Endpoint{}, unsupported(provider.VertexAI, t.Operation)
		}
	case VertexFamilyAnthropic:
		if t.Operation != unified.OpChatComplete {
			return Endpoint{}, unsupported(provider.VertexAI, t.Operation)
		}
		if t.Stream {
			ep.Path = publisher + ":streamRawPredict"
		} else {
			ep.Path = publisher + ":rawPredict"
		}
	case VertexFamilyMeta:
		if t.Operation != unified.OpChatComplete {
			return Endpoint{}, unsupported(provider.VertexAI, t.Operation)
		}
		ep.Path = root + "/endpoints/openapi/chat/completions"
	case VertexFamilyEndpoints:
		if t.Operation != unified.OpChatComplete {
			return Endpoint{}, unsupported(provider.VertexAI, t.Operation)
		}
		ep.Path = fmt.Sprintf("%s/endpoints/%s/chat/completions", root, model)
	}
	return ep, nil
}

func vertexResourceRoute(t Target, project, region string) (Endpoint, error) {
	jobs := VertexProjectRoute("v1", project, region) + "/batchPredictionJobs"
	ep := Endpoint{BaseURL: VertexBaseURL(region)}

	switch t.Operation {
	case unified.OpUploadFile:
		ep.BaseURL, ep.Method = vertexStorageBaseURL, http.MethodPost
	case unified.OpCreateBatch:
		ep.Method = http.MethodPost
	case unified.OpGetBatchOutput:
		ep.Method = http.MethodGet
	case unified.OpRetrieveBatch:
		id, err := requireParam(t, "id")
		if err != nil {
			return Endpoint{}, err
		}
		ep.Path, ep.Method = jobs+"/"+url.PathEscape(id), http.MethodGet
	case unified.OpCancelBatch:
		id, err := requireParam(t, "id")
		if err != nil {
			return Endpoint{}, err
		}
		ep.Path, ep.Method = jobs+"/"+url.PathEscape(id)+":cancel", http.MethodPost
	case unified.OpListBatches:
		q := url.Values{}
		q.Set("pageSize", t.query("limit", "20"))
		q.Set("pageToken", t.query("after", ""))
		ep.Path, ep.Method = jobs+"?"+q.Encode(), http.MethodGet
	case unified.OpRetrieveFileContent:
		id, err := requireParam(t, "id")
		if err != nil {
			return Endpoint{}, err
		}
		bucket, object, ok := SplitGCSURI(id)
		if !ok {
			return Endpoint{}, &unified.ValidationError{Field: "id", Message: fmt.Sprintf("invalid file id %q: expected gs://bucket/object", id)}
		}
		ep.BaseURL, ep.Method = vertexStorageBaseURL, http.MethodGet
		ep.Path = fmt.Sprintf("/storage/v1/b/%s/o/%s?alt=media", bucket, url.PathEscape(object))
	default:
		return Endpoint{}, unsupported(provider.VertexAI, t.Operation)
	}
	return ep, nil
}

// SplitGCSURI splits gs://bucket/object. A URL-encoded id is decoded first.
func SplitGCSURI(uri string) (bucket, object string, ok bool) {
	return storage.SplitGCSURI(uri)
}
