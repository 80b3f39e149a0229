package vertex

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// googleChatParams builds generateContent bodies for Gemini models.
var googleChatParams = []transform.ParamSpec{
	{Field: "messages", Required: true, Transform: buildContents},
	{Field: "temperature", Param: "generationConfig.temperature", Min: transform.Bound(0), Max: transform.Bound(2)},
	{Field: "top_p", Param: "generationConfig.topP"},
	{Field: "top_k", Param: "generationConfig.topK"},
	{Field: "max_tokens", Param: "generationConfig.maxOutputTokens"},
	{Field: "max_completion_tokens", Param: "generationConfig.maxOutputTokens"},
	{Field: "stop", Param: "generationConfig.stopSequences", Transform: providers.StopSequences},
	{Field: "n", Param: "generationConfig.candidateCount"},
	{Field: "presence_penalty", Param: "generationConfig.presencePenalty"},
	{Field: "frequency_penalty", Param: "generationConfig.frequencyPenalty"},
	{Field: "seed", Param: "generationConfig.seed"},
	{Field: "response_format", Param: "generationConfig.responseMimeType", Transform: responseMimeType},
	{Field: "response_format", Param: "generationConfig.responseSchema", Transform: responseSchema},
	{Field: "logprobs", Param: "generationConfig.responseLogprobs"},
	{Field: "top_logprobs", Param: "generationConfig.logprobs"},
	{Field: "tools", Param: "tools", Transform: functionDeclarations},
	{Field: "tool_choice", Param: "toolConfig.functionCallingConfig", Transform: functionCallingConfig},
	{Field: "safety_settings", Param: "safetySettings"},
	{Field: "labels", Param: "labels"},
}

func responseMimeType(value any, _ *unified.Request) (any, error) {
	format, _ := value.(map[string]any)
	switch format["type"] {
	case "json_object", "json_schema":
		return "application/json", nil
	}
	return nil, nil
}

func responseSchema(value any, _ *unified.Request) (any, error) {
	format, _ := value.(map[string]any)
	if format["type"] != "json_schema" {
		return nil, nil
	}
	js, _ := format["json_schema"].(map[string]any)
	schema, ok := js["schema"]
	if !ok {
		return nil, nil
	}
	return CleanSchema(schema), nil
}

func functionDeclarations(value any, _ *unified.Request) (any, error) {
	tools, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("tools must be an array")
	}
	var (
		decls []any
		out   []any
	)
	for _, raw := range tools {
		tool, _ := raw.(map[string]any)
		switch tool["type"] {
		case "function":
			fn, _ := tool["function"].(map[string]any)
			decl := map[string]any{"name": fn["name"]}
			if desc, ok := fn["description"]; ok {
				decl["description"] = desc
			}
			if params, ok := fn["parameters"]; ok {
				decl["parameters"] = CleanSchema(params)
			}
			decls = append(decls, decl)
		default:
			// Native Vertex tools (googleSearch, codeExecution) pass through.
			if tool["type"] == nil {
				out = append(out, tool)
			}
		}
	}
	if len(decls) > 0 {
		out = append([]any{map[string]any{"functionDeclarations": decls}}, out...)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func functionCallingConfig(value any, _ *unified.Request) (any, error) {
	switch typed := value.(type) {
	case string:
		switch typed {
		case "none":
			return map[string]any{"mode": "NONE"}, nil
		case "auto":
			return map[string]any{"mode": "AUTO"}, nil
		case "required":
			return map[string]any{"mode": "ANY"}, nil
		}
		return nil, fmt.Errorf("unknown tool_choice %q", typed)
	case map[string]any:
		fn, _ := typed["function"].(map[string]any)
		if name, _ := fn["name"].(string); name != "" {
			return map[string]any{"mode": "ANY", "allowedFunctionNames": []any{name}}, nil
		}
	}
	return nil, nil
}

var googleFinishReasons = map[string]string{
	"STOP":                    "stop",
	"MAX_TOKENS":              "length",
	"SAFETY":                  "content_filter",
	"RECITATION":              "content_filter",
	"BLOCKLIST":               "content_filter",
	"PROHIBITED_CONTENT":      "content_filter",
	"SPII":                    "content_filter",
	"MALFORMED_FUNCTION_CALL": "stop",
}

// googleChatResponse maps a generateContent response onto a chat completion.
func googleChatResponse(_ int, body []byte, req *unified.Request) ([]byte, error) {
	root := gjson.ParseBytes(body)
	out := unified.ChatCompletion{
		ID:       root.Get("responseId").String(),
		Object:   "chat.completion",
		Created:  normalize.UnixSeconds(root.Get("createTime")),
		Model:    root.Get("modelVersion").String(),
		Provider: string(provider.VertexAI),
		Choices:  []unified.ChatChoice{},
	}
	if out.ID == "" {
		out.ID = "chatcmpl-" + uuid.NewString()
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	if out.Model == "" {
		_, out.Model = routingModel(req)
	}

	root.Get("candidates").ForEach(func(key, cand gjson.Result) bool {
		idx := int(key.Int())
		if v := cand.Get("index"); v.Exists() {
			idx = int(v.Int())
		}
		var (
			text  strings.Builder
			calls []unified.ToolCall
		)
		cand.Get("content.parts").ForEach(func(pi, part gjson.Result) bool {
			if part.Get("thought").Bool() {
				return true
			}
			if t := part.Get("text"); t.Exists() {
				text.WriteString(t.String())
			}
			if fc := part.Get("functionCall"); fc.Exists() {
				id := fc.Get("id").String()
				if id == "" {
					id = fmt.Sprintf("call_%d_%d", idx, pi.Int())
				}
				args := fc.Get("args").Raw
				if args == "" {
					args = "{}"
				}
				calls = append(calls, unified.ToolCall{
					ID:       id,
					Type:     "function",
					Function: unified.FunctionCall{Name: fc.Get("name").String(), Arguments: args},
				})
			}
			return true
		})
		finish := googleFinishReason(cand.Get("finishReason").String())
		if len(calls) > 0 && finish == "stop" {
			finish = "tool_calls"
		}
		choice := unified.ChatChoice{
			Index:        idx,
			Message:      unified.ChatMessage{Role: "assistant", Content: text.String(), ToolCalls: calls},
			FinishReason: finish,
		}
		if lp := normalize.VertexLogprobs(cand); lp != nil {
			choice.Logprobs = &unified.ChoiceLogprobs{Content: lp}
		}
		out.Choices = append(out.Choices, choice)
		return true
	})

	if usage := root.Get("usageMetadata"); usage.Exists() {
		completion := usage.Get("candidatesTokenCount").Int() + usage.Get("thoughtsTokenCount").Int()
		out.Usage = &unified.Usage{
			PromptTokens:     usage.Get("promptTokenCount").Int(),
			CompletionTokens: completion,
			TotalTokens:      usage.Get("totalTokenCount").Int(),
		}
	}
	return json.Marshal(out)
}

func googleFinishReason(reason string) string {
	if reason == "" {
		return "stop"
	}
	if mapped, ok := googleFinishReasons[reason]; ok {
		return mapped
	}
	return strings.ToLower(reason)
}
