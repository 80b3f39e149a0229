// Package executor performs the outbound HTTP exchange with provider
// endpoints over a shared, proxy-aware transport.
package executor

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Request is one prepared outbound call.
type Request struct {
	Provider string
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
}

// Response is a fully buffered provider response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// StatusError classifies a non-2xx response; it returns nil for 2xx.
func (r *Response) StatusError() *StatusError {
	if r.OK() {
		return nil
	}
	se := NewStatusError(r.Status, string(r.Body), parseRetryAfter(r.Header, time.Now()))
	return &se
}

// Executor sends prepared requests. Retries are left to the caller.
type Executor struct {
	client *http.Client
}

// New wraps client; nil uses a direct client over SharedTransport.
func New(client *http.Client) *Executor {
	if client == nil {
		client = NewHTTPClient("", 0)
	}
	return &Executor{client: client}
}

// Client exposes the underlying client for collaborators that issue their
// own requests (token exchange, object storage).
func (e *Executor) Client() *http.Client { return e.client }

// NewHTTPRequest builds the http.Request for r without sending it.
func NewHTTPRequest(ctx context.Context, r Request) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	if len(r.Body) == 0 && (r.Method == http.MethodGet || r.Method == http.MethodDelete) {
		req.Body = http.NoBody
		req.ContentLength = 0
	}
	return req, nil
}

// Do sends req and buffers the decoded body. Failures below HTTP surface as
// *unified.TransportError; context cancellation is returned unchanged.
func (e *Executor) Do(req *http.Request, providerName string) (*Response, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &unified.TransportError{Provider: providerName, Cause: err}
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, &unified.TransportError{Provider: providerName, Cause: err}
	}
	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	if !out.OK() {
		log.WithFields(log.Fields{
			"provider": providerName,
			"status":   resp.StatusCode,
			"url":      req.URL.Redacted(),
		}).Debugf("upstream error: %s", summarizeErrorBody(resp.Header.Get("Content-Type"), body))
	}
	return out, nil
}

// Stream sends req and returns the live response with a decoded body. The
// caller closes the body.
func (e *Executor) Stream(req *http.Request, providerName string) (*http.Response, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &unified.TransportError{Provider: providerName, Cause: err}
	}
	decoded, err := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, &unified.TransportError{Provider: providerName, Cause: err}
	}
	resp.Body = decoded
	resp.Header.Del("Content-Encoding")
	return resp, nil
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
