package routing

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// BedrockRuntimeURL is the inference host for region.
func BedrockRuntimeURL(region string) string {
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)
}

// BedrockControlURL is the control-plane host for region.
func BedrockControlURL(region string) string {
	return fmt.Sprintf("https://bedrock.%s.amazonaws.com", region)
}

func bedrockRoute(t Target) (Endpoint, error) {
	var region string
	if t.Options != nil {
		region = strings.TrimSpace(t.Options.AWSRegion)
	}
	if region == "" {
		return Endpoint{}, &unified.ValidationError{Field: "aws_region", Message: "missing required parameter: aws_region"}
	}

	if t.Operation.IsResource() {
		return bedrockResourceRoute(t, region)
	}

	model := "/model/" + url.PathEscape(t.Model)
	ep := Endpoint{BaseURL: BedrockRuntimeURL(region), Method: http.MethodPost}
	switch t.Operation {
	case unified.OpChatComplete:
		if t.Stream {
			ep.Path = model + "/converse-stream"
		} else {
			ep.Path = model + "/converse"
		}
	case unified.OpComplete, unified.OpEmbed, unified.OpImageGenerate:
		if t.Stream {
			ep.Path = model + "/invoke-with-response-stream"
		} else {
			ep.Path = model + "/invoke"
		}
	default:
		return Endpoint{}, unsupported(provider.Bedrock, t.Operation)
	}
	return ep, nil
}

func bedrockResourceRoute(t Target, region string) (Endpoint, error) {
	ep := Endpoint{BaseURL: BedrockControlURL(region)}
	switch t.Operation {
	case unified.OpUploadFile:
		ep.Method = http.MethodPut
	case unified.OpGetBatchOutput:
		ep.Method = http.MethodGet
	case unified.OpCreateFinetune:
		ep.Path, ep.Method = "/model-customization-jobs", http.MethodPost
	case unified.OpRetrieveFinetune:
		id, err := bedrockJobID(t)
		if err != nil {
			return Endpoint{}, err
		}
		ep.Path, ep.Method = "/model-customization-jobs/"+id, http.MethodGet
	case unified.OpCreateBatch:
		ep.Path, ep.Method = "/model-invocation-job", http.MethodPost
	case unified.OpRetrieveBatch:
		id, err := bedrockJobID(t)
		if err != nil {
			return Endpoint{}, err
		}
		ep.Path, ep.Method = "/model-invocation-job/"+id, http.MethodGet
	case unified.OpCancelBatch:
		id, err := bedrockJobID(t)
		if err != nil {
			return Endpoint{}, err
		}
		ep.Path, ep.Method = "/model-invocation-job/"+id+"/stop", http.MethodPost
	case unified.OpListBatches:
		q := url.Values{}
		q.Set("maxResults", t.query("limit", "20"))
		if after := t.query("after", ""); after != "" {
			q.Set("nextToken", after)
		}
		ep.Path, ep.Method = "/model-invocation-jobs?"+q.Encode(), http.MethodGet
	default:
		return Endpoint{}, unsupported(provider.Bedrock, t.Operation)
	}
	return ep, nil
}

// bedrockJobID accepts a raw ARN or the URL-encoded id handed to callers and
// returns a path-safe segment.
func bedrockJobID(t Target) (string, error) {
	id, err := requireParam(t, "id")
	if err != nil {
		return "", err
	}
	if decoded, errDecode := url.QueryUnescape(id); errDecode == nil {
		id = decoded
	}
	return url.PathEscape(id), nil
}
