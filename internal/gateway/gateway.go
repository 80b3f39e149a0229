// Package gateway runs one unified call end to end: route, build the body,
// attach credentials, exchange and normalize.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nghyane/llm-adapter/internal/auth"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/normalize"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/providers/azure"
	"github.com/nghyane/llm-adapter/internal/providers/bedrock"
	"github.com/nghyane/llm-adapter/internal/providers/vertex"
	"github.com/nghyane/llm-adapter/internal/routing"
	"github.com/nghyane/llm-adapter/internal/runtime/executor"
	"github.com/nghyane/llm-adapter/internal/transform"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// ErrHandlerOperation is returned by Prepare for operations that need more
// than one upstream request and therefore cannot be expressed as a bundle.
var ErrHandlerOperation = errors.New("gateway: operation runs a multi-step handler; use Do")

// maxErrorBody caps how much of a failed streamed response is read for
// normalization.
const maxErrorBody = 1 << 20

// Call is one inbound unified call.
type Call struct {
	Operation  unified.Operation
	Request    *unified.Request
	Options    *provider.Options
	PathParams map[string]string
	Query      map[string]string
	Upload     *unified.FileUpload
}

// Bundle is a ready-to-send provider request.
type Bundle struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Gateway wires the router, adapters, resolver and executor together. It is
// safe for concurrent use.
type Gateway struct {
	router   *routing.Router
	registry *providers.Registry
	resolver *auth.Resolver
	exec     *executor.Executor
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRouter replaces the default router.
func WithRouter(r *routing.Router) Option { return func(g *Gateway) { g.router = r } }

// WithRegistry replaces the default adapter registry.
func WithRegistry(r *providers.Registry) Option { return func(g *Gateway) { g.registry = r } }

// WithResolver replaces the default credential resolver.
func WithResolver(r *auth.Resolver) Option { return func(g *Gateway) { g.resolver = r } }

// WithExecutor replaces the default HTTP executor.
func WithExecutor(e *executor.Executor) Option { return func(g *Gateway) { g.exec = e } }

// DefaultRegistry holds the Vertex AI, Bedrock and Azure OpenAI adapters.
func DefaultRegistry() *providers.Registry {
	return providers.NewRegistry(vertex.New(), bedrock.New(), azure.New())
}

// New builds a gateway. Unset collaborators get defaults.
func New(opts ...Option) *Gateway {
	g := &Gateway{}
	for _, opt := range opts {
		opt(g)
	}
	if g.router == nil {
		g.router = routing.NewRouter()
	}
	if g.registry == nil {
		g.registry = DefaultRegistry()
	}
	if g.exec == nil {
		g.exec = executor.New(nil)
	}
	if g.resolver == nil {
		g.resolver = auth.NewResolver(auth.WithServiceAccountTokens(auth.NewServiceAccountTokens(g.exec.Client(), "")))
	}
	return g
}

// Registry exposes the adapter registry.
func (g *Gateway) Registry() *providers.Registry { return g.registry }

type plan struct {
	name     provider.Name
	op       unified.Operation
	call     *providers.Call
	config   providers.OperationConfig
	endpoint routing.Endpoint
}

func (g *Gateway) plan(c *Call) (*plan, error) {
	if c == nil || c.Options == nil {
		return nil, &unified.ValidationError{Field: "provider", Message: "missing provider options"}
	}
	name := c.Options.Provider
	op := c.Operation
	req := c.Request
	if req == nil {
		req = unified.NewRequest(op, nil, false)
	}
	if op == "" {
		op = req.Operation()
	}
	adapter, ok := g.registry.Get(name)
	if !ok {
		return nil, &unified.ValidationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q", name)}
	}
	ep, err := g.router.Resolve(routing.Target{
		Provider:   name,
		Operation:  op,
		Model:      req.Model(),
		Stream:     req.Stream(),
		PathParams: c.PathParams,
		Query:      c.Query,
		Options:    c.Options,
	})
	if err != nil {
		return nil, unsupportedAsValidation(err)
	}
	cfg, ok := adapter.Operation(op, req)
	if !ok {
		return nil, unsupportedAsValidation(fmt.Errorf("%s %s: %w", name, op, routing.ErrUnsupportedOperation))
	}
	return &plan{
		name: name,
		op:   op,
		call: &providers.Call{
			Request:    req,
			Options:    c.Options,
			PathParams: c.PathParams,
			Query:      c.Query,
			Upload:     c.Upload,
			Endpoint:   ep,
		},
		config:   cfg,
		endpoint: ep,
	}, nil
}

func unsupportedAsValidation(err error) error {
	if errors.Is(err, routing.ErrUnsupportedOperation) {
		return &unified.ValidationError{Field: "operation", Message: err.Error()}
	}
	return err
}

func (p *plan) body() ([]byte, error) {
	if p.config.Params == nil {
		return nil, nil
	}
	return transform.Build(p.config.Params, p.call.Request)
}

// Prepare resolves the destination, builds the body and attaches
// credentials without sending anything. Validation failures return before
// any credential exchange.
func (g *Gateway) Prepare(ctx context.Context, c *Call) (*Bundle, error) {
	p, err := g.plan(c)
	if err != nil {
		return nil, err
	}
	if p.config.Handler != nil {
		return nil, ErrHandlerOperation
	}
	if p.endpoint.NeedsHandler() {
		return nil, unsupportedAsValidation(fmt.Errorf("%s %s: %w", p.name, p.op, routing.ErrUnsupportedOperation))
	}
	body, err := p.body()
	if err != nil {
		return nil, err
	}
	req, err := g.signed(ctx, p.call, providers.Outbound{Method: p.endpoint.Method, URL: p.endpoint.URL(), Body: body})
	if err != nil {
		return nil, err
	}
	return &Bundle{Method: req.Method, URL: req.URL.String(), Headers: req.Header.Clone(), Body: body}, nil
}

// Do runs the call. Streamed responses come back in Result.Stream; every
// other result is buffered.
func (g *Gateway) Do(ctx context.Context, c *Call) (*providers.Result, error) {
	p, err := g.plan(c)
	if err != nil {
		return nil, err
	}
	entry := log.WithFields(log.Fields{"provider": p.name, "operation": p.op})
	if p.config.Handler != nil {
		entry.Debug("running operation handler")
		return p.config.Handler(ctx, env{g}, p.call)
	}
	if p.endpoint.NeedsHandler() {
		return nil, unsupportedAsValidation(fmt.Errorf("%s %s: %w", p.name, p.op, routing.ErrUnsupportedOperation))
	}
	body, err := p.body()
	if err != nil {
		return nil, err
	}
	req, err := g.signed(ctx, p.call, providers.Outbound{Method: p.endpoint.Method, URL: p.endpoint.URL(), Body: body})
	if err != nil {
		return nil, err
	}
	entry.WithField("url", req.URL.Redacted()).Debug("dispatching")

	if p.call.Request.Stream() || (p.op.IsDownload() && p.config.Response == nil) {
		return g.stream(req, p)
	}
	resp, err := g.exec.Do(req, string(p.name))
	if err != nil {
		return nil, err
	}
	if normalize.IsError(p.name, resp.Status, resp.Body) {
		return nil, upstreamError(p.name, resp)
	}
	if p.config.Response == nil {
		return &providers.Result{Status: resp.Status, Body: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
	}
	out, err := p.config.Response(resp.Status, resp.Body, p.call.Request)
	if err != nil {
		return nil, err
	}
	return providers.JSONResult(resp.Status, out), nil
}

func (g *Gateway) stream(req *http.Request, p *plan) (*providers.Result, error) {
	resp, err := g.exec.Stream(req, string(p.name))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		data, errRead := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if errRead != nil {
			return nil, &unified.TransportError{Provider: string(p.name), Cause: errRead}
		}
		return nil, upstreamError(p.name, &executor.Response{Status: resp.StatusCode, Header: resp.Header, Body: data})
	}
	return &providers.Result{Status: resp.StatusCode, Stream: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// upstreamError normalizes a failed exchange and records how the provider
// classified it.
func upstreamError(name provider.Name, resp *executor.Response) error {
	up := normalize.Upstream(name, resp.Status, resp.Body)
	if se := resp.StatusError(); se != nil {
		entry := log.WithFields(log.Fields{
			"provider": name,
			"status":   se.StatusCode(),
			"category": se.Category().String(),
		})
		if ra := se.RetryAfter(); ra != nil {
			up.RetryAfter = *ra
			entry = entry.WithField("retry_after", ra.String())
		}
		if se.Category().IsUserFault() {
			entry.Debug("upstream rejected call")
		} else {
			entry.Info("upstream rejected call")
		}
	}
	return up
}

// signed builds the outbound request and attaches the call's credentials.
func (g *Gateway) signed(ctx context.Context, call *providers.Call, out providers.Outbound) (*http.Request, error) {
	req, err := executor.NewHTTPRequest(ctx, executor.Request{
		Provider: string(call.Options.Provider),
		Method:   out.Method,
		URL:      out.URL,
		Body:     out.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	if out.ContentType != "" {
		req.Header.Set("Content-Type", out.ContentType)
	}
	if _, err = g.resolver.Resolve(ctx, call.Options, req, out.Body); err != nil {
		return nil, err
	}
	return req, nil
}

// env is the providers.Env handed to operation handlers.
type env struct{ g *Gateway }

func (e env) Fetch(ctx context.Context, call *providers.Call, out providers.Outbound) (*providers.Response, error) {
	req, err := e.g.signed(ctx, call, out)
	if err != nil {
		return nil, err
	}
	resp, err := e.g.exec.Do(req, string(call.Options.Provider))
	if err != nil {
		return nil, err
	}
	return &providers.Response{Status: resp.Status, Header: resp.Header, Body: resp.Body}, nil
}

func (e env) Open(ctx context.Context, call *providers.Call, out providers.Outbound) (*providers.Response, error) {
	req, err := e.g.signed(ctx, call, out)
	if err != nil {
		return nil, err
	}
	name := string(call.Options.Provider)
	resp, err := e.g.exec.Stream(req, name)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &providers.Response{Status: resp.StatusCode, Header: resp.Header, Stream: resp.Body}, nil
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, &unified.TransportError{Provider: name, Cause: err}
	}
	return &providers.Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (e env) AWSCredentials(ctx context.Context, opts *provider.Options) (aws.Credentials, error) {
	return e.g.resolver.AWSCredentials(ctx, opts)
}

func (e env) Transport() http.RoundTripper {
	if t := e.g.exec.Client().Transport; t != nil {
		return t
	}
	return executor.SharedTransport
}
