// Package routing resolves the provider destination (base URL, path and
// method) of a unified call.
package routing

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// ErrUnsupportedOperation is returned when a provider has no route for an
// operation.
var ErrUnsupportedOperation = errors.New("operation not supported by provider")

// Target describes the call being routed.
type Target struct {
	Provider  provider.Name
	Operation unified.Operation
	Model     string
	Stream    bool

	// PathParams carries resource identifiers, usually "id".
	PathParams map[string]string
	// Query carries caller query parameters such as limit and after.
	Query map[string]string

	Options *provider.Options
}

func (t Target) param(key string) string {
	if t.PathParams == nil {
		return ""
	}
	return t.PathParams[key]
}

func (t Target) query(key, fallback string) string {
	if v, ok := t.Query[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Endpoint is a resolved destination. An empty Path on an upload or
// batch-create operation means the adapter's custom handler must run.
type Endpoint struct {
	BaseURL string
	Path    string
	Method  string
}

// URL joins BaseURL and Path.
func (e Endpoint) URL() string {
	return strings.TrimRight(e.BaseURL, "/") + e.Path
}

// NeedsHandler reports whether the endpoint defers to a custom handler.
func (e Endpoint) NeedsHandler() bool { return e.Path == "" }

// RouteFunc resolves one provider's endpoints.
type RouteFunc func(t Target) (Endpoint, error)

// Router dispatches resolution to per-provider route functions.
type Router struct {
	routes map[provider.Name]RouteFunc
}

// NewRouter returns a router with the built-in provider routes registered.
func NewRouter() *Router {
	return &Router{routes: map[provider.Name]RouteFunc{
		provider.VertexAI:    vertexRoute,
		provider.Bedrock:     bedrockRoute,
		provider.AzureOpenAI: azureRoute,
	}}
}

// Register installs or replaces the route function for a provider.
func (r *Router) Register(name provider.Name, fn RouteFunc) {
	r.routes[name] = fn
}

// Resolve computes the endpoint for t. It performs no I/O.
func (r *Router) Resolve(t Target) (Endpoint, error) {
	fn, ok := r.routes[t.Provider]
	if !ok {
		return Endpoint{}, fmt.Errorf("routing: unknown provider %q", t.Provider)
	}
	if !t.Operation.Valid() {
		return Endpoint{}, fmt.Errorf("routing: unknown operation %q", t.Operation)
	}
	if t.Operation.IsInference() && strings.TrimSpace(t.Model) == "" {
		return Endpoint{}, &unified.ValidationError{Field: "model"}
	}
	ep, err := fn(t)
	if err != nil {
		return Endpoint{}, err
	}
	if ep.Method == "" {
		ep.Method = http.MethodPost
	}
	if t.Options != nil && t.Options.CustomHost != "" {
		ep.BaseURL = strings.TrimRight(t.Options.CustomHost, "/")
	}
	return ep, nil
}

func unsupported(p provider.Name, op unified.Operation) error {
	return fmt.Errorf("routing: %s %s: %w", p, op, ErrUnsupportedOperation)
}

func requireParam(t Target, key string) (string, error) {
	v := strings.TrimSpace(t.param(key))
	if v == "" {
		return "", &unified.ValidationError{Field: key}
	}
	return v, nil
}
