package bedrock

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// converseParams builds Converse API bodies.
var converseParams = []transform.ParamSpec{
	{Field: "messages", Required: true, Transform: converseMessages},
	{Field: "max_tokens", Param: "inferenceConfig.maxTokens"},
	{Field: "max_completion_tokens", Param: "inferenceConfig.maxTokens"},
	{Field: "temperature", Param: "inferenceConfig.temperature", Min: transform.Bound(0), Max: transform.Bound(1)},
	{Field: "top_p", Param: "inferenceConfig.topP"},
	{Field: "stop", Param: "inferenceConfig.stopSequences", Transform: providers.StopSequences},
	{Field: "tools", Param: "toolConfig.tools", Transform: converseTools},
	{Field: "tool_choice", Param: "toolConfig.toolChoice", Transform: converseToolChoice},
	{Field: "top_k", Param: "additionalModelRequestFields.top_k"},
	{Field: "guardrail_config", Param: "guardrailConfig"},
	{Field: "additional_model_request_fields", Param: "additionalModelRequestFields"},
}

func converseMessages(value any, _ *unified.Request) (any, error) {
	messages, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("messages must be an array, got %T", value)
	}
	var (
		system []any
		out    []any
	)
	push := func(role string, content []any) {
		if len(content) == 0 {
			return
		}
		// Converse requires alternating roles; adjacent turns are merged.
		if n := len(out); n > 0 {
			if last := out[n-1].(map[string]any); last["role"] == role {
				last["content"] = append(last["content"].([]any), content...)
				return
			}
		}
		out = append(out, map[string]any{"role": role, "content": content})
	}
	for i, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("messages[%d] must be an object", i)
		}
		role, _ := msg["role"].(string)
		switch role {
		case "system", "developer":
			if text := providers.TextOf(msg["content"]); text != "" {
				system = append(system, map[string]any{"text": text})
			}
		case "tool":
			id, _ := msg["tool_call_id"].(string)
			push("user", []any{map[string]any{"toolResult": map[string]any{
				"toolUseId": id,
				"content":   []any{map[string]any{"text": providers.TextOf(msg["content"])}},
			}}})
		case "assistant":
			content := converseContent(msg["content"])
			calls, _ := msg["tool_calls"].([]any)
			for _, rc := range calls {
				call, _ := rc.(map[string]any)
				fn, _ := call["function"].(map[string]any)
				content = append(content, map[string]any{"toolUse": map[string]any{
					"toolUseId": call["id"],
					"name":      fn["name"],
					"input":     providers.DecodeArguments(fn["arguments"]),
				}})
			}
			push("assistant", content)
		default:
			push("user", converseContent(msg["content"]))
		}
	}
	if out == nil {
		out = []any{}
	}
	body := map[string]any{"messages": out}
	if len(system) > 0 {
		body["system"] = system
	}
	return body, nil
}

func converseContent(content any) []any {
	switch typed := content.(type) {
	case string:
		if typed == "" {
			return nil
		}
		return []any{map[string]any{"text": typed}}
	case []any:
		blocks := make([]any, 0, len(typed))
		for _, raw := range typed {
			part, _ := raw.(map[string]any)
			switch part["type"] {
			case "text":
				if text, _ := part["text"].(string); text != "" {
					blocks = append(blocks, map[string]any{"text": text})
				}
			case "image_url":
				img, _ := part["image_url"].(map[string]any)
				url, _ := img["url"].(string)
				if block := imageBlock(url); block != nil {
					blocks = append(blocks, block)
				}
			}
		}
		return blocks
	}
	return nil
}

func imageBlock(url string) map[string]any {
	var format string
	source := map[string]any{}
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		header, data, _ := strings.Cut(rest, ",")
		mediaType, _, _ := strings.Cut(header, ";")
		_, format, _ = strings.Cut(mediaType, "/")
		source["bytes"] = data
	} else if strings.HasPrefix(url, "s3://") {
		format = strings.TrimPrefix(strings.ToLower(path.Ext(url)), ".")
		if format == "jpg" {
			format = "jpeg"
		}
		source["s3Location"] = map[string]any{"uri": url}
	} else {
		return nil
	}
	return map[string]any{"image": map[string]any{"format": format, "source": source}}
}

func converseTools(value any, _ *unified.Request) (any, error) {
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
		spec := map[string]any{"name": fn["name"], "inputSchema": map[string]any{"json": schema}}
		if desc, ok := fn["description"]; ok {
			spec["description"] = desc
		}
		out = append(out, map[string]any{"toolSpec": spec})
	}
	return out, nil
}

func converseToolChoice(value any, _ *unified.Request) (any, error) {
	switch typed := value.(type) {
	case string:
		switch typed {
		case "auto":
			return map[string]any{"auto": map[string]any{}}, nil
		case "required":
			return map[string]any{"any": map[string]any{}}, nil
		}
	case map[string]any:
		fn, _ := typed["function"].(map[string]any)
		if name, _ := fn["name"].(string); name != "" {
			return map[string]any{"tool": map[string]any{"name": name}}, nil
		}
	}
	return nil, nil
}

var converseStopReasons = map[string]string{
	"end_turn":             "stop",
	"stop_sequence":        "stop",
	"max_tokens":           "length",
	"tool_use":             "tool_calls",
	"guardrail_intervened": "content_filter",
	"content_filtered":     "content_filter",
}

// converseResponse maps a Converse response onto a chat completion.
func converseResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	root := gjson.ParseBytes(body)
	var (
		text  strings.Builder
		calls []unified.ToolCall
	)
	root.Get("output.message.content").ForEach(func(_, block gjson.Result) bool {
		if t := block.Get("text"); t.Exists() {
			text.WriteString(t.String())
		}
		if use := block.Get("toolUse"); use.Exists() {
			args := use.Get("input").Raw
			if args == "" {
				args = "{}"
			}
			calls = append(calls, unified.ToolCall{
				ID:       use.Get("toolUseId").String(),
				Type:     "function",
				Function: unified.FunctionCall{Name: use.Get("name").String(), Arguments: args},
			})
		}
		return true
	})
	finish, ok := converseStopReasons[root.Get("stopReason").String()]
	if !ok {
		finish = "stop"
	}
	usage := root.Get("usage")
	return json.Marshal(unified.ChatCompletion{
		ID:       "chatcmpl-" + uuid.NewString(),
		Object:   "chat.completion",
		Created:  time.Now().Unix(),
		Model:    req.Model(),
		Provider: string(provider.Bedrock),
		Choices: []unified.ChatChoice{{
			Message:      unified.ChatMessage{Role: "assistant", Content: text.String(), ToolCalls: calls},
			FinishReason: finish,
		}},
		Usage: &unified.Usage{
			PromptTokens:     usage.Get("inputTokens").Int(),
			CompletionTokens: usage.Get("outputTokens").Int(),
			TotalTokens:      usage.Get("totalTokens").Int(),
		},
	})
}
