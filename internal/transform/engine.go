// Package transform builds provider request bodies from unified requests by
// interpreting declarative per-field parameter specs.
package transform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nghyane/llm-adapter/internal/json"
	"github.com/nghyane/llm-adapter/internal/unified"
	"github.com/tidwall/sjson"
)

// DefaultFunc derives a value for an absent field from the whole request.
type DefaultFunc func(req *unified.Request) any

// Func maps a resolved unified value onto the provider value. It must be pure:
// no I/O, no clocks, no randomness. Returning nil drops the parameter.
type Func func(value any, req *unified.Request) (any, error)

// Raw marks a transform result that is already encoded JSON.
type Raw = json.RawMessage

// ParamSpec declares how one unified field lands in a provider body.
type ParamSpec struct {
	// Field is the unified field name.
	Field string
	// Param is the provider target path; nested keys are separated by dots.
	// An empty Param merges an object result into the body root.
	Param string

	Required    bool
	Default     any
	DefaultFunc DefaultFunc
	Transform   Func

	// Min and Max clamp numeric values after transformation.
	Min *float64
	Max *float64
}

// Bound is a helper for Min/Max literals.
func Bound(v float64) *float64 { return &v }

func (s ParamSpec) resolveDefault(req *unified.Request) (any, bool) {
	if s.DefaultFunc != nil {
		v := s.DefaultFunc(req)
		return v, !unified.IsEmpty(v)
	}
	if s.Default != nil {
		return s.Default, !unified.IsEmpty(s.Default)
	}
	return nil, false
}

// Build produces the provider body for req. Specs are applied in declaration
// order; unified fields not named by any spec are dropped. Defaults fill
// absent or null fields only. A missing required field aborts the whole build
// with a *unified.ValidationError.
func Build(specs []ParamSpec, req *unified.Request) ([]byte, error) {
	body := []byte("{}")
	for _, spec := range specs {
		value, ok := req.Get(spec.Field)
		switch {
		case !ok:
			value, ok = spec.resolveDefault(req)
		case unified.IsEmpty(value):
			// Present but empty: dropped, and never replaced by the default.
			ok = false
		}
		if !ok {
			if spec.Required {
				return nil, &unified.ValidationError{
					Field:   spec.Field,
					Message: fmt.Sprintf("missing required parameter: %s", spec.Field),
				}
			}
			continue
		}

		if spec.Transform != nil {
			transformed, err := spec.Transform(value, req)
			if err != nil {
				var ve *unified.ValidationError
				if errors.As(err, &ve) {
					return nil, err
				}
				return nil, &unified.ValidationError{
					Field:   spec.Field,
					Message: fmt.Sprintf("invalid parameter %s: %v", spec.Field, err),
				}
			}
			if unified.IsEmpty(transformed) {
				if spec.Required {
					return nil, &unified.ValidationError{
						Field:   spec.Field,
						Message: fmt.Sprintf("missing required parameter: %s", spec.Field),
					}
				}
				continue
			}
			value = transformed
		}
		value = clamp(value, spec.Min, spec.Max)

		var err error
		body, err = place(body, spec.Param, value)
		if err != nil {
			return nil, fmt.Errorf("transform: set %s: %w", spec.Param, err)
		}
	}
	return body, nil
}

func place(body []byte, path string, value any) ([]byte, error) {
	if path == "" {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("root merge needs an object, got %T", value)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var err error
		for _, k := range keys {
			if body, err = place(body, escapeKey(k), obj[k]); err != nil {
				return nil, err
			}
		}
		return body, nil
	}
	if raw, ok := value.(Raw); ok {
		return sjson.SetRawBytes(body, path, raw)
	}
	encoded, err := json.MarshalSorted(value)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(body, path, encoded)
}

func clamp(value any, lo, hi *float64) any {
	if lo == nil && hi == nil {
		return value
	}
	f, ok := value.(float64)
	if !ok {
		return value
	}
	if lo != nil && f < *lo {
		f = *lo
	}
	if hi != nil && f > *hi {
		f = *hi
	}
	return f
}

func escapeKey(k string) string {
	out := make([]byte, 0, len(k))
	for i := 0; i < len(k); i++ {
		switch k[i] {
		case '.', '*', '?', '\\':
			out = append(out, '\\')
		}
		out = append(out, k[i])
	}
	return string(out)
}
