package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nghyane/llm-adapter/internal/provider"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOptionalMissingFile(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8327 || cfg.CredentialCache.Backend != "memory" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if _, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing required config")
	}
}

func TestLoadConfigOptionalInvalidYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a number\n")
	cfg, err := LoadConfigOptional(path, true)
	if err != nil || cfg.Port != 8327 {
		t.Fatalf("optional load should fall back to defaults, got %+v, %v", cfg, err)
	}
	if _, err = LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigProfiles(t *testing.T) {
	saPath := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(saPath, []byte(`{"client_email":"svc@p.iam.gserviceaccount.com","project_id":"p"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, `
port: 9000
api-keys: [" k1 ", "", "k1", "k2"]
credential-cache:
  backend: SQLite
  dsn: /tmp/creds.db
profiles:
  prod-bedrock:
    provider: aws-bedrock
    aws-auth-type: assumedRole
    aws-role-arn: arn:aws:iam::123456789012:role/caller
    aws-region: us-west-2
  vertex:
    provider: vertex
    vertex-region: europe-west4
    vertex-service-account-file: `+saPath+`
  broken:
    api-key: x
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9000 || cfg.RequestTimeout != 600 {
		t.Fatalf("port/timeout = %d/%d", cfg.Port, cfg.RequestTimeout)
	}
	if got := cfg.APIKeys; len(got) != 2 || got[0] != "k1" || got[1] != "k2" {
		t.Fatalf("api keys = %v", got)
	}
	if cfg.CredentialCache.Backend != "sqlite" {
		t.Fatalf("backend = %q", cfg.CredentialCache.Backend)
	}
	if names := cfg.ProfileNames(); len(names) != 2 || names[0] != "prod-bedrock" || names[1] != "vertex" {
		t.Fatalf("profiles = %v", names)
	}

	opts, err := cfg.Profile("prod-bedrock")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if opts.Provider != provider.Bedrock || opts.AWSAuthType != provider.AWSAssumedRole || opts.AWSRegion != "us-west-2" {
		t.Fatalf("bedrock options = %+v", opts)
	}

	opts, err = cfg.Profile("vertex")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if opts.Provider != provider.VertexAI || !opts.HasServiceAccount() || opts.ProjectID() != "p" {
		t.Fatalf("vertex options = %+v", opts)
	}

	if _, err = cfg.Profile("missing"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAssumeRoleSourceARN, "arn:aws:iam::111111111111:role/gateway")
	t.Setenv(EnvAssumeRoleSourceExternalID, "ext")
	t.Setenv(EnvProxyURL, "socks5://127.0.0.1:1080")
	path := writeConfig(t, "assume-role-source:\n  arn: arn:aws:iam::1:role/file\nproxy-url: http://file\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AssumeRoleSource.ARN != "arn:aws:iam::111111111111:role/gateway" || cfg.AssumeRoleSource.ExternalID != "ext" {
		t.Fatalf("source role = %+v", cfg.AssumeRoleSource)
	}
	if cfg.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Fatalf("proxy = %q", cfg.ProxyURL)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := ResolvePath(DefaultConfigPath); got != "/xdg/llm-adapter/config.yaml" {
		t.Fatalf("ResolvePath = %q", got)
	}
	if got := ConfigDir(); got != "/xdg/llm-adapter" {
		t.Fatalf("ConfigDir = %q", got)
	}
}

func TestGenerateDefaultConfigYAMLRoundTrips(t *testing.T) {
	path := writeConfig(t, string(GenerateDefaultConfigYAML()))
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load generated: %v", err)
	}
	if cfg.Port != 8327 || cfg.CredentialCache.Backend != "memory" {
		t.Fatalf("generated config = %+v", cfg)
	}
}
