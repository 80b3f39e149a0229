package unified

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestAsErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", &ValidationError{Field: "model"}, http.StatusBadRequest, "invalid_request_error"},
		{"transport", &TransportError{Provider: "bedrock", Cause: fmt.Errorf("dial")}, http.StatusBadGateway, "api_error"},
		{"deadline", fmt.Errorf("exchange: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout_error"},
		{"cancelled", context.Canceled, StatusClientClosedRequest, "request_cancelled"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "api_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, status := AsError(tc.err, "bedrock")
			if status != tc.status || out.Type != tc.typ {
				t.Errorf("AsError = %d %s, want %d %s", status, out.Type, tc.status, tc.typ)
			}
			if out.Provider != "bedrock" {
				t.Errorf("provider = %q", out.Provider)
			}
		})
	}
}
