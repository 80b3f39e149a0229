package providers

import (
	"fmt"
	"strings"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// OpenAI-compatible field sets forwarded under their own names.
var (
	ChatFields = []string{
		"model", "messages", "frequency_penalty", "logit_bias", "logprobs", "top_logprobs",
		"max_tokens", "max_completion_tokens", "n", "presence_penalty", "response_format",
		"seed", "stop", "stream", "stream_options", "temperature", "top_p", "tools",
		"tool_choice", "parallel_tool_calls", "user", "reasoning_effort",
	}
	CompleteFields = []string{
		"model", "prompt", "max_tokens", "temperature", "top_p", "n", "stream", "logprobs",
		"echo", "stop", "presence_penalty", "frequency_penalty", "best_of", "logit_bias",
		"user", "seed", "suffix",
	}
	EmbedFields  = []string{"model", "input", "encoding_format", "dimensions", "user"}
	ImageFields  = []string{"prompt", "model", "n", "quality", "response_format", "size", "style", "user"}
	SpeechFields = []string{"model", "input", "voice", "response_format", "speed"}
	BatchFields  = []string{"input_file_id", "endpoint", "completion_window", "metadata"}
)

// Passthrough declares one spec per field, copying it under the same name.
// Fields listed in required must be present.
func Passthrough(fields []string, required ...string) []transform.ParamSpec {
	need := make(map[string]bool, len(required))
	for _, f := range required {
		need[f] = true
	}
	specs := make([]transform.ParamSpec, 0, len(fields))
	for _, f := range fields {
		specs = append(specs, transform.ParamSpec{Field: f, Param: f, Required: need[f]})
	}
	return specs
}

// StampProvider adds the provider name to an object body and otherwise
// passes it through.
func StampProvider(name provider.Name) ResponseFunc {
	return func(_ int, body []byte, _ *unified.Request) ([]byte, error) {
		if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
			return body, nil
		}
		out, err := sjson.SetBytes(body, "provider", string(name))
		if err != nil {
			return nil, fmt.Errorf("%s: stamp provider: %w", name, err)
		}
		return out, nil
	}
}

// Raw returns the body untouched.
func Raw(_ int, body []byte, _ *unified.Request) ([]byte, error) { return body, nil }

// TextOf flattens an OpenAI content value (string or part array) to text.
func TextOf(content any) string {
	switch typed := content.(type) {
	case string:
		return typed
	case []any:
		var b strings.Builder
		for _, raw := range typed {
			part, _ := raw.(map[string]any)
			if text, ok := part["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	}
	return ""
}

// DecodeArguments parses tool-call arguments. Malformed JSON yields an empty
// object.
func DecodeArguments(v any) any {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return map[string]any{}
		}
		return v
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// StopSequences accepts a single stop string or a list.
func StopSequences(value any, _ *unified.Request) (any, error) {
	switch typed := value.(type) {
	case string:
		return []any{typed}, nil
	case []any:
		return typed, nil
	}
	return nil, fmt.Errorf("stop must be a string or an array")
}
