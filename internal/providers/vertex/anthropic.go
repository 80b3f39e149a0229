package vertex

import (
	"fmt"
	"strings"
	"time"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// AnthropicVersion is sent when the caller does not pin one.
const AnthropicVersion = "vertex-2023-10-16"

// anthropicChatParams builds rawPredict bodies for Claude models.
var anthropicChatParams = []transform.ParamSpec{
	{Field: "messages", Required: true, Transform: anthropicMessages},
	{Field: "anthropic_version", Param: "anthropic_version", Default: AnthropicVersion},
	{Field: "max_tokens", Param: "max_tokens", Required: true, DefaultFunc: func(req *unified.Request) any {
		v, _ := req.Get("max_completion_tokens")
		return v
	}},
	{Field: "temperature", Param: "temperature", Min: transform.Bound(0), Max: transform.Bound(1)},
	{Field: "top_p", Param: "top_p"},
	{Field: "top_k", Param: "top_k"},
	{Field: "stop", Param: "stop_sequences", Transform: providers.StopSequences},
	{Field: "stream", Param: "stream"},
	{Field: "tools", Param: "tools", Transform: anthropicTools},
	{Field: "tool_choice", Param: "tool_choice", Transform: anthropicToolChoice},
	{Field: "user", Param: "metadata.user_id"},
}

func anthropicMessages(value any, _ *unified.Request) (any, error) {
	messages, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("messages must be an array, got %T", value)
	}
	var (
		system []string
		out    = []any{}
	)
	for i, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("messages[%d] must be an object", i)
		}
		role, _ := msg["role"].(string)
		switch role {
		case "system", "developer":
			if text := providers.TextOf(msg["content"]); text != "" {
				system = append(system, text)
			}
		case "tool":
			id, _ := msg["tool_call_id"].(string)
			out = append(out, map[string]any{
				"role": "user",
				"content": []any{map[string]any{
					"type":        "tool_result",
					"tool_use_id": id,
					"content":     providers.TextOf(msg["content"]),
				}},
			})
		case "assistant":
			blocks := anthropicBlocks(msg["content"])
			calls, _ := msg["tool_calls"].([]any)
			for _, rc := range calls {
				call, _ := rc.(map[string]any)
				fn, _ := call["function"].(map[string]any)
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    call["id"],
					"name":  fn["name"],
					"input": providers.DecodeArguments(fn["arguments"]),
				})
			}
			out = append(out, map[string]any{"role": "assistant", "content": blocks})
		default:
			out = append(out, map[string]any{"role": "user", "content": anthropicBlocks(msg["content"])})
		}
	}
	body := map[string]any{"messages": out}
	if len(system) > 0 {
		body["system"] = strings.Join(system, "\n")
	}
	return body, nil
}

func anthropicBlocks(content any) []any {
	switch typed := content.(type) {
	case string:
		return []any{map[string]any{"type": "text", "text": typed}}
	case []any:
		blocks := make([]any, 0, len(typed))
		for _, raw := range typed {
			part, _ := raw.(map[string]any)
			switch part["type"] {
			case "text":
				blocks = append(blocks, map[string]any{"type": "text", "text": part["text"]})
			case "image_url":
				img, _ := part["image_url"].(map[string]any)
				url, _ := img["url"].(string)
				if rest, ok := strings.CutPrefix(url, "data:"); ok {
					header, data, _ := strings.Cut(rest, ",")
					mediaType, _, _ := strings.Cut(header, ";")
					blocks = append(blocks, map[string]any{
						"type":   "image",
						"source": map[string]any{"type": "base64", "media_type": mediaType, "data": data},
					})
				} else if url != "" {
					blocks = append(blocks, map[string]any{
						"type":   "image",
						"source": map[string]any{"type": "url", "url": url},
					})
				}
			}
		}
		return blocks
	}
	return []any{}
}

func anthropicTools(value any, _ *unified.Request) (any, error) {
	tools, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("tools must be an array")
	}
	out := make([]any, 0, len(tools))
	for _, raw := range tools {
		tool, _ := raw.(map[string]any)
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		schema := fn["parameters"]
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		entry := map[string]any{"name": fn["name"], "input_schema": schema}
		if desc, ok := fn["description"]; ok {
			entry["description"] = desc
		}
		out = append(out, entry)
	}
	return out, nil
}

func anthropicToolChoice(value any, _ *unified.Request) (any, error) {
	switch typed := value.(type) {
	case string:
		switch typed {
		case "auto":
			return map[string]any{"type": "auto"}, nil
		case "required":
			return map[string]any{"type": "any"}, nil
		case "none":
			return nil, nil
		}
	case map[string]any:
		fn, _ := typed["function"].(map[string]any)
		if name, _ := fn["name"].(string); name != "" {
			return map[string]any{"type": "tool", "name": name}, nil
		}
	}
	return nil, nil
}

var anthropicStopReasons = map[string]string{
	"end_turn":      "stop",
	"stop_sequence": "stop",
	"max_tokens":    "length",
	"tool_use":      "tool_calls",
}

// anthropicChatResponse maps a Messages API response onto a chat completion.
func anthropicChatResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	root := gjson.ParseBytes(body)
	var (
		text  strings.Builder
		calls []unified.ToolCall
	)
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			text.WriteString(block.Get("text").String())
		case "tool_use":
			args := block.Get("input").Raw
			if args == "" {
				args = "{}"
			}
			calls = append(calls, unified.ToolCall{
				ID:       block.Get("id").String(),
				Type:     "function",
				Function: unified.FunctionCall{Name: block.Get("name").String(), Arguments: args},
			})
		}
		return true
	})
	finish, ok := anthropicStopReasons[root.Get("stop_reason").String()]
	if !ok {
		finish = "stop"
	}
	model := root.Get("model").String()
	if model == "" {
		_, model = routingModel(req)
	}
	in, outTokens := root.Get("usage.input_tokens").Int(), root.Get("usage.output_tokens").Int()
	return json.Marshal(unified.ChatCompletion{
		ID:       root.Get("id").String(),
		Object:   "chat.completion",
		Created:  time.Now().Unix(),
		Model:    model,
		Provider: string(provider.VertexAI),
		Choices: []unified.ChatChoice{{
			Message:      unified.ChatMessage{Role: "assistant", Content: text.String(), ToolCalls: calls},
			FinishReason: finish,
		}},
		Usage: &unified.Usage{PromptTokens: in, CompletionTokens: outTokens, TotalTokens: in + outTokens},
	})
}
