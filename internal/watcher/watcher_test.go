package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nghyane/llm-adapter/internal/config"
)

func TestWatcherReloadsProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *config.Config, 4)
	w, err := NewWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = w.Stop() }()

	body := "port: 9000\nprofiles:\n  azure-prod:\n    provider: azure\n    azure-resource-name: res\n"
	if err = os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if _, ok := cfg.Profiles["azure-prod"]; !ok {
			t.Fatalf("profiles = %v", cfg.ProfileNames())
		}
		if w.Config() != cfg {
			t.Fatal("watcher did not record the reloaded config")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	calls := 0
	w := &Watcher{configPath: path, reloadCallback: func(*config.Config) { calls++ }}
	w.reloadIfChanged()
	w.reloadIfChanged()
	if calls != 1 {
		t.Fatalf("callback ran %d times, want 1", calls)
	}
}

func TestReloadKeepsConfigOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [broken\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	prev := config.NewDefaultConfig()
	w := &Watcher{configPath: path, config: prev, reloadCallback: func(*config.Config) { t.Fatal("callback must not run") }}
	w.reloadIfChanged()
	if w.Config() != prev {
		t.Fatal("config replaced after a parse error")
	}
}

func TestBuildConfigChangeDetails(t *testing.T) {
	oldCfg := &config.Config{Profiles: map[string]config.Profile{
		"a": {Provider: "bedrock"},
		"b": {Provider: "vertex-ai"},
	}}
	newCfg := &config.Config{Debug: true, Profiles: map[string]config.Profile{
		"a": {Provider: "bedrock", AWSRegion: "us-east-1"},
		"c": {Provider: "azure-openai"},
	}}
	got := map[string]bool{}
	for _, d := range buildConfigChangeDetails(oldCfg, newCfg) {
		got[d] = true
	}
	for _, want := range []string{"debug: false -> true", "profile a updated", "profile b removed", "profile c added (azure-openai)"} {
		if !got[want] {
			t.Errorf("missing detail %q in %v", want, got)
		}
	}
}
