package bedrock

import (
	"fmt"
	"strings"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// Titan embeds one text per call.
var titanEmbedParams = []transform.ParamSpec{
	{Field: "input", Param: "inputText", Required: true, Transform: singleInput},
	{Field: "dimensions", Param: "dimensions"},
	{Field: "normalize", Param: "normalize"},
}

// Cohere embeds a list and needs an input type.
var cohereEmbedParams = []transform.ParamSpec{
	{Field: "input", Param: "texts", Required: true, Transform: inputList},
	{Field: "input_type", Param: "input_type", Default: "search_document"},
	{Field: "truncate", Param: "truncate"},
}

func isCohere(model string) bool {
	return strings.HasPrefix(model, "cohere.")
}

func singleInput(value any, _ *unified.Request) (any, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []any:
		if len(typed) == 1 {
			if s, ok := typed[0].(string); ok {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("this model embeds a single string per request")
}

func inputList(value any, _ *unified.Request) (any, error) {
	switch typed := value.(type) {
	case string:
		return []any{typed}, nil
	case []any:
		return typed, nil
	}
	return nil, fmt.Errorf("input must be a string or an array of strings")
}

func titanEmbedResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	root := gjson.ParseBytes(body)
	tokens := root.Get("inputTextTokenCount").Int()
	return json.Marshal(unified.EmbeddingList{
		Object:   "list",
		Data:     []unified.Embedding{{Object: "embedding", Embedding: floats(root.Get("embedding"))}},
		Model:    req.Model(),
		Provider: string(provider.Bedrock),
		Usage:    &unified.Usage{PromptTokens: tokens, TotalTokens: tokens},
	})
}

func cohereEmbedResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	out := unified.EmbeddingList{Object: "list", Data: []unified.Embedding{}, Model: req.Model(), Provider: string(provider.Bedrock)}
	embeddings := gjson.GetBytes(body, "embeddings")
	if embeddings.IsObject() {
		embeddings = embeddings.Get("float")
	}
	embeddings.ForEach(func(key, v gjson.Result) bool {
		out.Data = append(out.Data, unified.Embedding{Object: "embedding", Embedding: floats(v), Index: int(key.Int())})
		return true
	})
	return json.Marshal(out)
}

func floats(v gjson.Result) []float64 {
	out := []float64{}
	v.ForEach(func(_, f gjson.Result) bool {
		out = append(out, f.Float())
		return true
	})
	return out
}
