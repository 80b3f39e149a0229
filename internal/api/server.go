// Package api is the HTTP dispatch layer: it maps OpenAI-style routes onto
// unified operations, resolves provider options from headers or named
// profiles and hands each call to the gateway.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/gateway"
	"github.com/nghyane/llm-adapter/internal/logging"
	log "github.com/nghyane/llm-adapter/internal/logging"
)

type serverOptionConfig struct {
	extraMiddleware []gin.HandlerFunc
	requestLogger   logging.RequestLogger
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithRequestLogger replaces the default file request logger.
func WithRequestLogger(l logging.RequestLogger) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.requestLogger = l
	}
}

// Server represents the main API server.
type Server struct {
	engine        *gin.Engine
	server        *http.Server
	gateway       *gateway.Gateway
	cfg           atomic.Pointer[config.Config]
	requestLogger logging.RequestLogger
}

// NewServer creates the server and registers every route.
func NewServer(cfg *config.Config, gw *gateway.Gateway, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	state := &serverOptionConfig{}
	for i := range opts {
		opts[i](state)
	}
	if state.requestLogger == nil {
		state.requestLogger = logging.NewFileRequestLogger(cfg.RequestLog, logging.DefaultLogsDir(), "")
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogger())
	engine.Use(logging.GinRecovery())
	for _, mw := range state.extraMiddleware {
		engine.Use(mw)
	}
	engine.Use(requestLoggingMiddleware(state.requestLogger))

	s := &Server{
		engine:        engine,
		gateway:       gw,
		requestLogger: state.requestLogger,
	}
	s.cfg.Store(cfg)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Config returns the configuration currently in effect.
func (s *Server) Config() *config.Config { return s.cfg.Load() }

// Start begins listening for and serving HTTP or HTTPS requests. It blocks
// until the server stops.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}
	cfg := s.cfg.Load()
	if cfg.TLS.Enable {
		cert := strings.TrimSpace(cfg.TLS.Cert)
		key := strings.TrimSpace(cfg.TLS.Key)
		if cert == "" || key == "" {
			return fmt.Errorf("failed to start HTTPS server: tls.cert or tls.key is empty")
		}
		log.Infof("API server listening on %s (TLS)", s.server.Addr)
		if errServeTLS := s.server.ListenAndServeTLS(cert, key); errServeTLS != nil && !errors.Is(errServeTLS, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTPS server: %w", errServeTLS)
		}
		return nil
	}
	log.Infof("API server listening on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", errServe)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// UpdateConfig swaps in a reloaded configuration. Profiles and API keys take
// effect on the next request; listen settings need a restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	old := s.cfg.Swap(cfg)
	if toggler, ok := s.requestLogger.(interface{ SetEnabled(bool) }); ok && old.RequestLog != cfg.RequestLog {
		toggler.SetEnabled(cfg.RequestLog)
		log.Debugf("request logging updated from %t to %t", old.RequestLog, cfg.RequestLog)
	}
	if old.LoggingToFile != cfg.LoggingToFile {
		if err := logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
			log.Errorf("failed to reconfigure log output: %v", err)
		}
	}
	if old.Debug != cfg.Debug {
		logging.SetDebug(cfg.Debug)
		log.Debugf("debug mode updated from %t to %t", old.Debug, cfg.Debug)
	}
	if old.Port != cfg.Port || old.Host != cfg.Host || old.TLS != cfg.TLS {
		log.Warn("listen settings changed; restart the server to apply them")
	}
	log.Infof("server configuration updated: %d profiles, %d api keys", len(cfg.Profiles), len(cfg.APIKeys))
}
