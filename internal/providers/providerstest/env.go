// Package providerstest provides a scripted providers.Env for adapter tests.
package providerstest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
)

// Reply answers one outbound request.
type Reply func(out providers.Outbound) *providers.Response

// Env records every outbound request and answers it with Reply.
type Env struct {
	Reply       Reply
	Credentials aws.Credentials
	RoundTrip   http.RoundTripper

	mu   sync.Mutex
	sent []providers.Outbound
}

// Fetch implements providers.Env.
func (e *Env) Fetch(_ context.Context, _ *providers.Call, out providers.Outbound) (*providers.Response, error) {
	e.mu.Lock()
	e.sent = append(e.sent, out)
	e.mu.Unlock()
	if e.Reply == nil {
		return nil, fmt.Errorf("providerstest: unexpected %s %s", out.Method, out.URL)
	}
	resp := e.Reply(out)
	if resp == nil {
		return nil, fmt.Errorf("providerstest: no reply for %s %s", out.Method, out.URL)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	return resp, nil
}

// Open implements providers.Env. A 2xx reply body is handed back as Stream.
func (e *Env) Open(ctx context.Context, call *providers.Call, out providers.Outbound) (*providers.Response, error) {
	resp, err := e.Fetch(ctx, call, out)
	if err != nil || !resp.OK() {
		return resp, err
	}
	return &providers.Response{Status: resp.Status, Header: resp.Header, Stream: io.NopCloser(bytes.NewReader(resp.Body))}, nil
}

// AWSCredentials implements providers.Env.
func (e *Env) AWSCredentials(context.Context, *provider.Options) (aws.Credentials, error) {
	if e.Credentials.AccessKeyID == "" {
		return aws.Credentials{AccessKeyID: "AKIATEST", SecretAccessKey: "secret"}, nil
	}
	return e.Credentials, nil
}

// Transport implements providers.Env.
func (e *Env) Transport() http.RoundTripper {
	if e.RoundTrip != nil {
		return e.RoundTrip
	}
	return http.DefaultTransport
}

// Sent returns a copy of the recorded requests.
func (e *Env) Sent() []providers.Outbound {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]providers.Outbound(nil), e.sent...)
}

// JSON is a Reply helper for a fixed status and body.
func JSON(status int, body string) *providers.Response {
	return &providers.Response{Status: status, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte(body)}
}

// ReadBody returns the bytes of res, draining and closing Stream when the
// result was streamed.
func ReadBody(t testing.TB, res *providers.Result) []byte {
	t.Helper()
	if res.Stream == nil {
		return res.Body
	}
	defer func() { _ = res.Stream.Close() }()
	data, err := io.ReadAll(res.Stream)
	if err != nil {
		t.Fatalf("read result stream: %v", err)
	}
	return data
}
