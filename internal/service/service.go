package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nghyane/llm-adapter/internal/api"
	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/gateway"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/watcher"
)

// Service runs the HTTP server and the config watcher.
type Service struct {
	cfgMu         sync.RWMutex
	cfg           *config.Config
	configPath    string
	gateway       *gateway.Gateway
	hooks         Hooks
	serverOptions []api.ServerOption
	closeCache    func() error

	server        *api.Server
	serverErr     chan error
	watcher       *watcher.Watcher
	watcherCancel context.CancelFunc
	shutdownOnce  sync.Once
}

// Gateway exposes the gateway for in-process callers.
func (s *Service) Gateway() *gateway.Gateway { return s.gateway }

// Config returns the configuration currently in effect.
func (s *Service) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Run starts the server and blocks until ctx is cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("service: service is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Errorf("service shutdown returned error: %v", err)
		}
	}()

	cfg := s.Config()
	s.server = api.NewServer(cfg, s.gateway, s.serverOptions...)
	if s.hooks.OnBeforeStart != nil {
		s.hooks.OnBeforeStart(cfg)
	}

	s.serverErr = make(chan error, 1)
	go func() {
		s.serverErr <- s.server.Start()
	}()
	if s.hooks.OnAfterStart != nil {
		s.hooks.OnAfterStart(s)
	}

	if s.configPath != "" {
		w, err := watcher.NewWatcher(s.configPath, s.reload)
		if err != nil {
			return fmt.Errorf("service: failed to create watcher: %w", err)
		}
		w.SetConfig(cfg)
		watcherCtx, watcherCancel := context.WithCancel(context.Background())
		s.watcher, s.watcherCancel = w, watcherCancel
		if err = w.Start(watcherCtx); err != nil {
			return fmt.Errorf("service: failed to start watcher: %w", err)
		}
		log.Info("config watcher started")
	}

	select {
	case <-ctx.Done():
		log.Debug("service context cancelled, shutting down")
		return ctx.Err()
	case err := <-s.serverErr:
		return err
	}
}

func (s *Service) reload(newCfg *config.Config) {
	if newCfg == nil {
		return
	}
	s.cfgMu.Lock()
	old := s.cfg
	s.cfg = newCfg
	s.cfgMu.Unlock()
	if s.server != nil {
		s.server.UpdateConfig(newCfg)
	}
	if old != nil && (old.ProxyURL != newCfg.ProxyURL || old.CredentialCache != newCfg.CredentialCache || old.AssumeRoleSource != newCfg.AssumeRoleSource) {
		log.Warn("proxy, credential cache or source role changed; restart to apply")
	}
}

// Shutdown stops the watcher and the HTTP server and closes the credential
// cache. It is idempotent.
func (s *Service) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.watcherCancel != nil {
			s.watcherCancel()
		}
		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				log.Errorf("failed to stop config watcher: %v", err)
				shutdownErr = err
			}
		}
		if s.server != nil {
			if err := s.server.Stop(ctx); err != nil {
				log.Errorf("error stopping API server: %v", err)
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}
		if s.closeCache != nil {
			if err := s.closeCache(); err != nil {
				log.Errorf("failed to close credential cache: %v", err)
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}
	})
	return shutdownErr
}
