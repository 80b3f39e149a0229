package transform

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/nghyane/llm-adapter/internal/unified"
)

// Stringify renders numbers and booleans as strings for providers that
// document string-typed numeric fields.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	}
	return fmt.Sprint(value)
}

// DecodeURIComponent undoes percent-encoding; '+' is preserved. Values that
// are not valid escapes are returned unchanged.
func DecodeURIComponent(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// Const ignores the unified value and always emits v.
func Const(v any) Func {
	return func(any, *unified.Request) (any, error) { return v, nil }
}

