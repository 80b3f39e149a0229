// Package normalize maps provider responses, success or failure, onto the
// unified shapes.
package normalize

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/gjson"
)

// IsError reports whether the exchange failed: a non-2xx status or a body
// shaped like the provider's error envelope.
func IsError(p provider.Name, status int, body []byte) bool {
	if status < 200 || status >= 300 {
		return true
	}
	if !gjson.ValidBytes(body) {
		return false
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		root = root.Get("0")
	}
	if root.Get("error").IsObject() {
		return true
	}
	if p == provider.VertexAI && root.Get("type").String() == "error" {
		return true
	}
	return false
}

// Error extracts a unified error from a provider error response. The result
// always carries the provider name and a non-empty message.
func Error(p provider.Name, status int, body []byte) *unified.Error {
	var message, typ, param, code string
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		// Streaming Vertex failures arrive as a one-element array.
		root = root.Get("0")
	}

	switch p {
	case provider.VertexAI:
		switch {
		case root.Get("error.status").Exists() || root.Get("error.code").Type == gjson.Number:
			message = root.Get("error.message").String()
			typ = root.Get("error.status").String()
			code = typ
		case root.Get("error.type").Exists():
			// Anthropic models served through rawPredict.
			message = root.Get("error.message").String()
			typ = root.Get("error.type").String()
		default:
			message = root.Get("error.message").String()
		}
	case provider.Bedrock:
		message = firstString(root, "message", "Message", "error.message")
		typ = firstString(root, "__type", "error.type")
		if i := strings.LastIndexByte(typ, '#'); i >= 0 {
			typ = typ[i+1:]
		}
		if i := strings.IndexByte(typ, ':'); i >= 0 {
			typ = typ[:i]
		}
	default:
		message = root.Get("error.message").String()
		typ = root.Get("error.type").String()
		param = root.Get("error.param").String()
		code = scalarString(root.Get("error.code"))
	}

	if message == "" {
		message = fallbackMessage(status, body)
	}
	return unified.NewError(string(p), message, typ, param, code)
}

// Upstream wraps Error into an UpstreamError carrying status.
func Upstream(p provider.Name, status int, body []byte) *unified.UpstreamError {
	if status >= 200 && status < 300 {
		// Error-shaped 2xx bodies still surface as failures.
		status = http.StatusBadGateway
	}
	return &unified.UpstreamError{Status: status, Err: Error(p, status, body)}
}

func firstString(root gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := root.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func scalarString(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return strconv.FormatInt(v.Int(), 10)
	default:
		return v.String()
	}
}

func fallbackMessage(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && !gjson.Valid(trimmed) {
		if len(trimmed) > 512 {
			trimmed = trimmed[:512]
		}
		return trimmed
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "unknown error"
}
