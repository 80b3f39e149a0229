package normalize

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// UnixSeconds converts an RFC 3339 timestamp, or an epoch number, to unix
// seconds. Unparseable input yields 0.
func UnixSeconds(v gjson.Result) int64 {
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return n / 1000
		}
		return n
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return 0
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0
		}
		return t.Unix()
	}
	return 0
}
