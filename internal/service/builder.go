// Package service wires configuration, the credential cache, the resolver,
// the gateway, the HTTP server and the config watcher into one runnable unit.
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nghyane/llm-adapter/internal/api"
	"github.com/nghyane/llm-adapter/internal/auth"
	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/credstore"
	"github.com/nghyane/llm-adapter/internal/gateway"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/runtime/executor"
)

// Builder constructs a Service instance with customizable collaborators.
type Builder struct {
	cfg            *config.Config
	configPath     string
	cache          auth.CredentialCache
	assumerFactory auth.AssumerFactory
	httpClient     *http.Client
	hooks          Hooks
	serverOptions  []api.ServerOption
}

// Hooks allows callers to plug into service lifecycle stages.
type Hooks struct {
	// OnBeforeStart runs before the HTTP server starts listening.
	OnBeforeStart func(*config.Config)
	// OnAfterStart runs once the server goroutine is running.
	OnAfterStart func(*Service)
}

// NewBuilder creates a Builder with default dependencies left unset.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the configuration instance used by the service.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithConfigPath sets the configuration file watched for hot reload. An
// empty path disables watching.
func (b *Builder) WithConfigPath(path string) *Builder {
	b.configPath = path
	return b
}

// WithCredentialCache injects the assumed-role credential cache instead of
// opening the configured backend.
func (b *Builder) WithCredentialCache(cache auth.CredentialCache) *Builder {
	b.cache = cache
	return b
}

// WithAssumerFactory injects the STS client factory instead of loading the
// default AWS credential chain.
func (b *Builder) WithAssumerFactory(factory auth.AssumerFactory) *Builder {
	b.assumerFactory = factory
	return b
}

// WithHTTPClient replaces the outbound HTTP client built from proxy-url.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithHooks registers lifecycle hooks executed around service startup.
func (b *Builder) WithHooks(h Hooks) *Builder {
	b.hooks = h
	return b
}

// WithServerOptions appends server configuration options used during construction.
func (b *Builder) WithServerOptions(opts ...api.ServerOption) *Builder {
	b.serverOptions = append(b.serverOptions, opts...)
	return b
}

// Build validates inputs, applies defaults, and returns a ready-to-run service.
func (b *Builder) Build(ctx context.Context) (*Service, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("service: configuration is required")
	}
	cfg := b.cfg

	var closer func() error
	cache := b.cache
	if cache == nil {
		store, err := credstore.Open(ctx, cfg.CredentialCache.Backend, config.ResolvePath(cfg.CredentialCache.DSN))
		if err != nil {
			return nil, fmt.Errorf("service: credential cache: %w", err)
		}
		cache, closer = store, store.Close
		log.Debugf("credential cache backend: %s", cfg.CredentialCache.Backend)
	}

	client := b.httpClient
	if client == nil {
		client = executor.NewHTTPClient(cfg.ProxyURL, 0)
	}

	resolverOpts := []auth.Option{auth.WithServiceAccountTokens(auth.NewServiceAccountTokens(client, ""))}
	if cfg.AssumeRoleSource.ARN != "" {
		factory := b.assumerFactory
		if factory == nil {
			loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			loaded, err := auth.LoadSTSFactory(loadCtx)
			cancel()
			if err != nil {
				if closer != nil {
					_ = closer()
				}
				return nil, fmt.Errorf("service: %w", err)
			}
			factory = loaded
		}
		source := auth.SourceRole{ARN: cfg.AssumeRoleSource.ARN, ExternalID: cfg.AssumeRoleSource.ExternalID}
		resolverOpts = append(resolverOpts, auth.WithChainedAssumer(auth.NewChainedAssumer(source, cache, factory)))
		log.Infof("assumed-role credentials chain through %s", source.ARN)
	} else {
		log.Debug("no assume-role source configured; assumedRole calls will fail with missing credentials")
	}

	gw := gateway.New(
		gateway.WithExecutor(executor.New(client)),
		gateway.WithResolver(auth.NewResolver(resolverOpts...)),
	)

	return &Service{
		cfg:           cfg,
		configPath:    b.configPath,
		gateway:       gw,
		hooks:         b.hooks,
		serverOptions: append([]api.ServerOption(nil), b.serverOptions...),
		closeCache:    closer,
	}, nil
}
