package vertex

import "strings"

const maxSchemaDepth = 32

// unsupportedSchemaKeys are rejected by the Vertex Schema object.
var unsupportedSchemaKeys = []string{"additionalProperties", "additional_properties", "$schema"}

// CleanSchema inlines $ref pointers against the root $defs and strips
// keywords Vertex does not accept. The input is not modified.
func CleanSchema(schema any) any {
	root, ok := schema.(map[string]any)
	if !ok {
		return schema
	}
	defs, _ := root["$defs"].(map[string]any)
	if defs == nil {
		defs, _ = root["definitions"].(map[string]any)
	}
	out := deref(root, defs, 0)
	if m, ok := out.(map[string]any); ok {
		delete(m, "$defs")
		delete(m, "definitions")
	}
	stripUnsupported(out)
	return out
}

func deref(v any, defs map[string]any, depth int) any {
	switch typed := v.(type) {
	case map[string]any:
		if ref, ok := typed["$ref"].(string); ok {
			name := ref[strings.LastIndex(ref, "/")+1:]
			def, found := defs[name]
			if !found || depth >= maxSchemaDepth {
				return map[string]any{}
			}
			return deref(def, defs, depth+1)
		}
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			if k == "$defs" || k == "definitions" {
				continue
			}
			out[k] = deref(val, defs, depth)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = deref(val, defs, depth)
		}
		return out
	}
	return v
}

func stripUnsupported(v any) {
	switch typed := v.(type) {
	case map[string]any:
		for _, k := range unsupportedSchemaKeys {
			delete(typed, k)
		}
		for _, val := range typed {
			stripUnsupported(val)
		}
	case []any:
		for _, val := range typed {
			stripUnsupported(val)
		}
	}
}
