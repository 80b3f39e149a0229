package vertex

import (
	"fmt"
	"time"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

var embedParams = []transform.ParamSpec{
	{Field: "input", Param: "instances", Required: true, Transform: embedInstances},
	{Field: "dimensions", Param: "parameters.outputDimensionality"},
	{Field: "auto_truncate", Param: "parameters.autoTruncate"},
}

func embedInstances(value any, req *unified.Request) (any, error) {
	var inputs []any
	switch typed := value.(type) {
	case string:
		inputs = []any{typed}
	case []any:
		inputs = typed
	default:
		return nil, fmt.Errorf("input must be a string or an array of strings")
	}
	taskType := req.String("task_type")
	instances := make([]any, 0, len(inputs))
	for i, in := range inputs {
		text, ok := in.(string)
		if !ok {
			return nil, fmt.Errorf("input[%d] must be a string", i)
		}
		instance := map[string]any{"content": text}
		if taskType != "" {
			instance["task_type"] = taskType
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func embedResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	out := unified.EmbeddingList{Object: "list", Data: []unified.Embedding{}, Provider: string(provider.VertexAI)}
	_, out.Model = routingModel(req)
	var tokens int64
	gjson.GetBytes(body, "predictions").ForEach(func(key, pred gjson.Result) bool {
		values := []float64{}
		pred.Get("embeddings.values").ForEach(func(_, v gjson.Result) bool {
			values = append(values, v.Float())
			return true
		})
		tokens += pred.Get("embeddings.statistics.token_count").Int()
		out.Data = append(out.Data, unified.Embedding{Object: "embedding", Embedding: values, Index: int(key.Int())})
		return true
	})
	out.Usage = &unified.Usage{PromptTokens: tokens, TotalTokens: tokens}
	return json.Marshal(out)
}

var imageParams = []transform.ParamSpec{
	{Field: "prompt", Param: "instances", Required: true, Transform: func(value any, _ *unified.Request) (any, error) {
		return []any{map[string]any{"prompt": value}}, nil
	}},
	{Field: "n", Param: "parameters.sampleCount", Min: transform.Bound(1), Max: transform.Bound(8)},
	{Field: "negative_prompt", Param: "parameters.negativePrompt"},
	{Field: "seed", Param: "parameters.seed"},
	{Field: "aspect_ratio", Param: "parameters.aspectRatio"},
	{Field: "size", Param: "parameters.aspectRatio", Transform: aspectRatio},
}

var sizeAspectRatios = map[string]string{
	"1024x1024": "1:1",
	"1792x1024": "16:9",
	"1024x1792": "9:16",
	"1536x1024": "3:2",
	"1024x1536": "2:3",
}

func aspectRatio(value any, req *unified.Request) (any, error) {
	if req.String("aspect_ratio") != "" {
		return req.String("aspect_ratio"), nil
	}
	size, _ := value.(string)
	if ratio, ok := sizeAspectRatios[size]; ok {
		return ratio, nil
	}
	return nil, nil
}

func imageResponse(_ int, body []byte, _ *unified.Request) ([]byte, error) {
	out := unified.ImageList{Created: time.Now().Unix(), Data: []unified.Image{}, Provider: string(provider.VertexAI)}
	gjson.GetBytes(body, "predictions").ForEach(func(_, pred gjson.Result) bool {
		out.Data = append(out.Data, unified.Image{
			B64JSON:       pred.Get("bytesBase64Encoded").String(),
			RevisedPrompt: pred.Get("prompt").String(),
		})
		return true
	})
	return json.Marshal(out)
}
