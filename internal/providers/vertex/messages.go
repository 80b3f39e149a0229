package vertex

import (
	"fmt"
	"strings"

	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// buildContents converts chat messages into generateContent contents plus a
// systemInstruction. It is merged into the body root.
func buildContents(value any, _ *unified.Request) (any, error) {
	messages, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("messages must be an array, got %T", value)
	}
	var (
		contents []any
		system   []any
		toolName = map[string]string{}
	)
	for i, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("messages[%d] must be an object", i)
		}
		role, _ := msg["role"].(string)
		switch role {
		case "system", "developer":
			system = append(system, contentParts(msg["content"])...)
		case "assistant":
			parts := contentParts(msg["content"])
			calls, _ := msg["tool_calls"].([]any)
			for _, rc := range calls {
				call, _ := rc.(map[string]any)
				fn, _ := call["function"].(map[string]any)
				name, _ := fn["name"].(string)
				if id, _ := call["id"].(string); id != "" {
					toolName[id] = name
				}
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{"name": name, "args": providers.DecodeArguments(fn["arguments"])},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, map[string]any{"role": "model", "parts": parts})
			}
		case "tool", "function":
			name, _ := msg["name"].(string)
			if id, _ := msg["tool_call_id"].(string); name == "" && id != "" {
				name = toolName[id]
			}
			contents = append(contents, map[string]any{
				"role": "user",
				"parts": []any{map[string]any{
					"functionResponse": map[string]any{
						"name":     name,
						"response": map[string]any{"content": providers.TextOf(msg["content"])},
					},
				}},
			})
		default:
			if parts := contentParts(msg["content"]); len(parts) > 0 {
				contents = append(contents, map[string]any{"role": "user", "parts": parts})
			}
		}
	}
	out := map[string]any{"contents": contents}
	if contents == nil {
		out["contents"] = []any{}
	}
	if len(system) > 0 {
		out["systemInstruction"] = map[string]any{"parts": system}
	}
	return out, nil
}

// contentParts maps an OpenAI content value (string or part array) to
// Vertex parts.
func contentParts(content any) []any {
	switch typed := content.(type) {
	case string:
		if typed == "" {
			return nil
		}
		return []any{map[string]any{"text": typed}}
	case []any:
		parts := make([]any, 0, len(typed))
		for _, raw := range typed {
			part, _ := raw.(map[string]any)
			switch part["type"] {
			case "text":
				if text, _ := part["text"].(string); text != "" {
					parts = append(parts, map[string]any{"text": text})
				}
			case "image_url":
				img, _ := part["image_url"].(map[string]any)
				if url, _ := img["url"].(string); url != "" {
					parts = append(parts, mediaPart(url, ""))
				}
			case "file":
				file, _ := part["file"].(map[string]any)
				url, _ := file["file_id"].(string)
				if url == "" {
					url, _ = file["file_data"].(string)
				}
				mimeType, _ := file["mime_type"].(string)
				if url != "" {
					parts = append(parts, mediaPart(url, mimeType))
				}
			}
		}
		return parts
	}
	return nil
}

// mediaPart inlines data URLs and references everything else by URI.
func mediaPart(url, mimeType string) map[string]any {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		header, data, _ := strings.Cut(rest, ",")
		mt, _, _ := strings.Cut(header, ";")
		if mimeType == "" {
			mimeType = mt
		}
		return map[string]any{"inlineData": map[string]any{"mimeType": mimeType, "data": data}}
	}
	if mimeType == "" {
		mimeType = MimeType(url)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return map[string]any{"fileData": map[string]any{"mimeType": mimeType, "fileUri": url}}
}
