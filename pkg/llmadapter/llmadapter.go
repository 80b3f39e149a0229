// Package llmadapter provides the public API for embedding llm-adapter as a
// library, either as a full HTTP service or as an in-process gateway.
package llmadapter

import (
	"context"

	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/gateway"
	"github.com/nghyane/llm-adapter/internal/provider"
	"github.com/nghyane/llm-adapter/internal/providers"
	"github.com/nghyane/llm-adapter/internal/service"
	"github.com/nghyane/llm-adapter/internal/unified"
)

// Service wraps the server lifecycle for external embedding.
type Service = service.Service

// Builder constructs a Service instance with customizable collaborators.
type Builder = service.Builder

// Hooks allows callers to plug into service lifecycle stages.
type Hooks = service.Hooks

// Config is the application configuration.
type Config = config.Config

// Gateway turns unified calls into provider requests.
type Gateway = gateway.Gateway

// Call is one unified operation addressed to a provider.
type Call = gateway.Call

// Bundle is a fully prepared outbound request.
type Bundle = gateway.Bundle

// Result is the normalized outcome of a call.
type Result = providers.Result

// Options carries the caller's provider selection and credentials.
type Options = provider.Options

// Request is a parsed unified request body.
type Request = unified.Request

// Operation names a unified endpoint.
type Operation = unified.Operation

// NewBuilder creates a new service builder.
func NewBuilder() *Builder {
	return service.NewBuilder()
}

// NewConfig creates a new default configuration.
func NewConfig() *Config {
	return config.NewDefaultConfig()
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(path string) (*Config, error) {
	return config.LoadConfig(path)
}

// ParseRequest decodes a unified JSON body for op.
func ParseRequest(op Operation, body []byte) (*Request, error) {
	return unified.ParseRequest(op, body)
}

// NewGateway builds a gateway from cfg's proxy and assumed-role settings
// without starting an HTTP server. The returned close func releases the
// credential cache.
func NewGateway(ctx context.Context, cfg *Config) (*Gateway, func() error, error) {
	svc, err := NewBuilder().WithConfig(cfg).Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return svc.Gateway(), func() error { return svc.Shutdown(context.Background()) }, nil
}

// Run is a convenience function to create and run a service with default settings.
func Run(ctx context.Context, cfg *Config) error {
	svc, err := NewBuilder().
		WithConfig(cfg).
		Build(ctx)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
