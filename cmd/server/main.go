// Package main provides the entry point for the llm-adapter server, which
// exposes one OpenAI-shaped HTTP surface over Vertex AI, Bedrock and Azure
// OpenAI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nghyane/llm-adapter/internal/config"
	"github.com/nghyane/llm-adapter/internal/logging"
	log "github.com/nghyane/llm-adapter/internal/logging"
	"github.com/nghyane/llm-adapter/internal/service"
	flag "github.com/spf13/pflag"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var initConfig bool
	var force bool
	var debug bool
	var port int
	var configPath string

	flag.BoolVar(&initConfig, "init", false, "Write a default config file and exit")
	flag.BoolVar(&force, "force", false, "Overwrite an existing config (use with --init)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.IntVar(&port, "port", 0, "Override the listen port")
	flag.StringVar(&configPath, "config", config.DefaultConfigPath, "Configure File Path")
	flag.Parse()

	configPath = config.ResolvePath(configPath)
	if initConfig {
		doInitConfig(configPath, force)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}
	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// Always optional so the server starts with no config file at all.
	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if port > 0 {
		cfg.Port = port
	}
	if debug {
		cfg.Debug = true
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}
	logging.SetDebug(cfg.Debug)
	log.Infof("llm-adapter Version: %s, Commit: %s, BuiltAt: %s", Version, Commit, BuildDate)
	if len(cfg.Profiles) > 0 {
		log.Infof("loaded profiles: %s", strings.Join(cfg.ProfileNames(), ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.NewBuilder().
		WithConfig(cfg).
		WithConfigPath(configPath).
		Build(ctx)
	if err != nil {
		log.Fatalf("failed to build service: %v", err)
	}
	if err = svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server stopped: %v", err)
	}
	log.Info("server stopped")
}

func doInitConfig(configPath string, force bool) {
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Printf("Config already exists: %s\n", configPath)
		fmt.Println("Use --init --force to overwrite")
		return
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(configPath, config.GenerateDefaultConfigYAML(), 0o600); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	fmt.Printf("Created: %s\n", configPath)
}
