// Package providers holds the per-provider adapter contract: for each
// operation, the ordered parameter specs that build the outbound body, the
// response transform and an optional custom request handler.
package providers

import (
	"context"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/routing"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// ResponseFunc maps a 2xx provider body onto the unified body.
type ResponseFunc func(status int, body []byte, req *unified.Request) ([]byte, error)

// HandlerFunc replaces the generic single-call path for operations that need
// several upstream calls.
type HandlerFunc func(ctx context.Context, env Env, call *Call) (*Result, error)

// OperationConfig is one (provider, operation) entry.
type OperationConfig struct {
	// Params builds the body. Nil means the call has no body.
	Params   []transform.ParamSpec
	Response ResponseFunc
	Handler  HandlerFunc
}

// Adapter exposes a provider's operation table. The request is passed so a
// provider can select by model family.
type Adapter interface {
	Name() provider.Name
	Operation(op unified.Operation, req *unified.Request) (OperationConfig, bool)
}

// Call is everything a handler may read about the inbound call.
type Call struct {
	Request    *unified.Request
	Options    *provider.Options
	PathParams map[string]string
	Query      map[string]string
	Upload     *unified.FileUpload
	Endpoint   routing.Endpoint
}

// Param returns a path parameter.
func (c *Call) Param(key string) string {
	if c == nil || c.PathParams == nil {
		return ""
	}
	return c.PathParams[key]
}

// Outbound is one request a handler asks the environment to send.
type Outbound struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
}

// Response is an upstream response. Fetch buffers Body; Open leaves a 2xx
// body unread in Stream, which the caller closes.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Stream io.ReadCloser
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r != nil && r.Status >= 200 && r.Status < 300 }

// Env is what handlers may use from the gateway.
type Env interface {
	// Fetch sends out with the call's credentials attached.
	Fetch(ctx context.Context, call *Call, out Outbound) (*Response, error)
	// Open sends out like Fetch but streams a 2xx body. Non-2xx bodies are
	// buffered so they can be normalized.
	Open(ctx context.Context, call *Call, out Outbound) (*Response, error)
	// AWSCredentials resolves and validates the call's AWS credentials.
	AWSCredentials(ctx context.Context, opts *provider.Options) (aws.Credentials, error)
	// Transport is the round tripper object-store clients should use.
	Transport() http.RoundTripper
}

// Result is the unified outcome of one call.
type Result struct {
	Status      int
	Body        []byte
	ContentType string
	// Stream is set instead of Body for streamed responses; the caller
	// closes it.
	Stream io.ReadCloser
}

// StreamResult passes an opened download through to the caller.
func StreamResult(resp *Response, contentType string) *Result {
	if ct := resp.Header.Get("Content-Type"); contentType == "" && ct != "" {
		contentType = ct
	}
	return &Result{Status: http.StatusOK, Stream: resp.Stream, ContentType: contentType}
}

// JSONResult wraps a JSON body.
func JSONResult(status int, body []byte) *Result {
	return &Result{Status: status, Body: body, ContentType: "application/json"}
}

// Table is a static operation table.
type Table map[unified.Operation]OperationConfig

// Lookup returns the entry for op.
func (t Table) Lookup(op unified.Operation) (OperationConfig, bool) {
	cfg, ok := t[op]
	return cfg, ok
}
