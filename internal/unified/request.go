package unified

import (
	"fmt"
	"strings"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/tidwall/gjson"
)

// Request is one inbound unified call. It is immutable once built: the
// constructor deep-copies the field map and every accessor returns copies or
// scalar values.
type Request struct {
	op     Operation
	fields map[string]any
	stream bool
	raw    []byte
}

// NewRequest builds a Request from an already-decoded field map.
func NewRequest(op Operation, fields map[string]any, stream bool) *Request {
	cloned, _ := cloneValue(fields).(map[string]any)
	if cloned == nil {
		cloned = map[string]any{}
	}
	raw, err := json.MarshalSorted(cloned)
	if err != nil {
		raw = []byte("{}")
	}
	return &Request{op: op, fields: cloned, stream: stream, raw: raw}
}

// ParseRequest decodes a JSON body. The streaming flag is read from the
// "stream" field.
func ParseRequest(op Operation, body []byte) (*Request, error) {
	fields := map[string]any{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
		}
	}
	stream, _ := fields["stream"].(bool)
	return NewRequest(op, fields, stream), nil
}

// Operation returns the unified operation name.
func (r *Request) Operation() Operation { return r.op }

// Stream reports whether the caller asked for a streamed response.
func (r *Request) Stream() bool { return r.stream }

// Get returns a copy of the top-level field. Absent and null fields report false.
func (r *Request) Get(field string) (any, bool) {
	v, ok := r.fields[field]
	if !ok || v == nil {
		return nil, false
	}
	return cloneValue(v), true
}

// String returns the field as a string, or "" when absent or not a string.
func (r *Request) String(field string) string {
	s, _ := r.fields[field].(string)
	return s
}

// Lookup evaluates a gjson path against the request.
func (r *Request) Lookup(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Fields returns a deep copy of every field.
func (r *Request) Fields() map[string]any {
	cloned, _ := cloneValue(r.fields).(map[string]any)
	return cloned
}

// JSON returns the canonical (key-sorted) encoding of the request fields.
func (r *Request) JSON() []byte {
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

// Model is a convenience accessor for the "model" field.
func (r *Request) Model() string { return r.String("model") }

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}

// IsEmpty reports whether a resolved value counts as missing.
func IsEmpty(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case map[string]any:
		return typed == nil
	case []any:
		return typed == nil
	}
	return false
}

// FileUpload is the file part of an upload, transcription or translation
// call.
type FileUpload struct {
	Filename    string
	Purpose     string
	ContentType string
	Data        []byte
}
