// Package config loads the adapter server's YAML configuration: listen
// settings, logging, the credential cache backend, the gateway's source role
// and the named provider profiles callers can select per request.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/nghyane/llm-adapter/internal/provider"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvAssumeRoleSourceARN        = "AWS_ASSUME_ROLE_SOURCE_ARN"
	EnvAssumeRoleSourceExternalID = "AWS_ASSUME_ROLE_SOURCE_EXTERNAL_ID"
	EnvProxyURL                   = "LLM_ADAPTER_PROXY_URL"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	Host          string    `yaml:"host" json:"-"`
	Port          int       `yaml:"port" json:"-"`
	TLS           TLSConfig `yaml:"tls" json:"tls"`
	Debug         bool      `yaml:"debug" json:"debug"`
	LoggingToFile bool      `yaml:"logging-to-file" json:"logging-to-file"`

	// RequestLog writes every proxied exchange to the logs directory.
	// Failed exchanges are written regardless.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// RequestTimeout bounds one upstream exchange, in seconds. Zero disables the limit.
	RequestTimeout int `yaml:"request-timeout" json:"request-timeout"`

	// APIKeys is a list of keys for authenticating clients to this server.
	// An empty list leaves the API open.
	APIKeys []string `yaml:"api-keys" json:"api-keys"`

	CredentialCache  CredentialCache  `yaml:"credential-cache" json:"credential-cache"`
	AssumeRoleSource AssumeRoleSource `yaml:"assume-role-source" json:"assume-role-source"`

	// Profiles maps a profile name to stored provider options.
	Profiles map[string]Profile `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// TLSConfig holds HTTPS server settings.
type TLSConfig struct {
	Enable bool   `yaml:"enable" json:"enable"`
	Cert   string `yaml:"cert" json:"cert"`
	Key    string `yaml:"key" json:"key"`
}

// CredentialCache selects where assumed-role credentials are cached.
type CredentialCache struct {
	// Backend is one of memory, sqlite or postgres.
	Backend string `yaml:"backend" json:"backend"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `yaml:"dsn" json:"dsn"`
}

// AssumeRoleSource is the gateway-owned role assumed before any caller role.
type AssumeRoleSource struct {
	ARN        string `yaml:"arn" json:"arn"`
	ExternalID string `yaml:"external-id" json:"external-id"`
}

// Profile is a named set of provider options.
type Profile struct {
	Provider   string `yaml:"provider" json:"provider"`
	APIKey     string `yaml:"api-key,omitempty" json:"api-key,omitempty"`
	CustomHost string `yaml:"custom-host,omitempty" json:"custom-host,omitempty"`

	VertexProjectID          string `yaml:"vertex-project-id,omitempty" json:"vertex-project-id,omitempty"`
	VertexRegion             string `yaml:"vertex-region,omitempty" json:"vertex-region,omitempty"`
	VertexServiceAccountFile string `yaml:"vertex-service-account-file,omitempty" json:"vertex-service-account-file,omitempty"`
	VertexServiceAccountJSON string `yaml:"vertex-service-account-json,omitempty" json:"-"`
	VertexStorageBucket      string `yaml:"vertex-storage-bucket,omitempty" json:"vertex-storage-bucket,omitempty"`

	AWSAuthType        string `yaml:"aws-auth-type,omitempty" json:"aws-auth-type,omitempty"`
	AWSAccessKeyID     string `yaml:"aws-access-key-id,omitempty" json:"-"`
	AWSSecretAccessKey string `yaml:"aws-secret-access-key,omitempty" json:"-"`
	AWSSessionToken    string `yaml:"aws-session-token,omitempty" json:"-"`
	AWSRegion          string `yaml:"aws-region,omitempty" json:"aws-region,omitempty"`
	AWSRoleARN         string `yaml:"aws-role-arn,omitempty" json:"aws-role-arn,omitempty"`
	AWSExternalID      string `yaml:"aws-external-id,omitempty" json:"-"`
	AWSS3Bucket        string `yaml:"aws-s3-bucket,omitempty" json:"aws-s3-bucket,omitempty"`

	AzureResourceName string `yaml:"azure-resource-name,omitempty" json:"azure-resource-name,omitempty"`
	AzureDeploymentID string `yaml:"azure-deployment-id,omitempty" json:"azure-deployment-id,omitempty"`
	AzureAPIVersion   string `yaml:"azure-api-version,omitempty" json:"azure-api-version,omitempty"`
}

// Options converts the profile into provider options. A service-account file
// is read on every call so rotated keys are picked up without a reload.
func (p Profile) Options() (*provider.Options, error) {
	name := provider.FromString(p.Provider)
	if name == provider.Unknown {
		return nil, fmt.Errorf("profile: provider is required")
	}
	opts := &provider.Options{
		Provider:            name,
		APIKey:              p.APIKey,
		CustomHost:          p.CustomHost,
		VertexProjectID:     p.VertexProjectID,
		VertexRegion:        p.VertexRegion,
		VertexStorageBucket: p.VertexStorageBucket,
		AWSAuthType:         provider.AWSAuthType(p.AWSAuthType),
		AWSAccessKeyID:      p.AWSAccessKeyID,
		AWSSecretAccessKey:  p.AWSSecretAccessKey,
		AWSSessionToken:     p.AWSSessionToken,
		AWSRegion:           p.AWSRegion,
		AWSRoleARN:          p.AWSRoleARN,
		AWSExternalID:       p.AWSExternalID,
		AWSS3Bucket:         p.AWSS3Bucket,
		AzureResourceName:   p.AzureResourceName,
		AzureDeploymentID:   p.AzureDeploymentID,
		AzureAPIVersion:     p.AzureAPIVersion,
	}
	switch {
	case strings.TrimSpace(p.VertexServiceAccountJSON) != "":
		opts.VertexServiceAccountJSON = []byte(p.VertexServiceAccountJSON)
	case strings.TrimSpace(p.VertexServiceAccountFile) != "":
		data, err := os.ReadFile(ResolvePath(p.VertexServiceAccountFile))
		if err != nil {
			return nil, fmt.Errorf("profile: read service account: %w", err)
		}
		opts.VertexServiceAccountJSON = data
	}
	return opts, nil
}

// Profile returns the named profile's provider options.
func (c *Config) Profile(name string) (*provider.Options, error) {
	if c == nil {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	p, ok := c.Profiles[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	opts, err := p.Options()
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return opts, nil
}

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDefaultConfig creates a new Config with sensible defaults.
// The server runs without a config file; callers then pass credentials per request.
func NewDefaultConfig() *Config {
	return &Config{
		Port:           8327,
		RequestTimeout: 600,
		CredentialCache: CredentialCache{
			Backend: "memory",
		},
	}
}

// GenerateDefaultConfigYAML renders NewDefaultConfig as YAML.
func GenerateDefaultConfigYAML() []byte {
	data, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return []byte("port: 8327\nrequest-timeout: 600\ncredential-cache:\n  backend: memory\n")
	}
	return data
}

// LoadConfig reads a YAML configuration file from the given path,
// unmarshals it into a Config struct, applies environment variable overrides,
// and returns it.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional is LoadConfig that, when optional is set, falls back to
// defaults for a missing, empty or unparsable file.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return finish(NewDefaultConfig()), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if optional && len(strings.TrimSpace(string(data))) == 0 {
		return finish(NewDefaultConfig()), nil
	}

	// Start with defaults so absent keys keep sensible values.
	cfg := NewDefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		if optional {
			return finish(NewDefaultConfig()), nil
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return finish(cfg), nil
}

func finish(cfg *Config) *Config {
	applyEnv(cfg, os.LookupEnv)
	cfg.APIKeys = NormalizeKeys(cfg.APIKeys)
	cfg.Profiles = normalizeProfiles(cfg.Profiles)
	cfg.CredentialCache.Backend = strings.ToLower(strings.TrimSpace(cfg.CredentialCache.Backend))
	return cfg
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAssumeRoleSourceARN); ok && strings.TrimSpace(v) != "" {
		cfg.AssumeRoleSource.ARN = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAssumeRoleSourceExternalID); ok && strings.TrimSpace(v) != "" {
		cfg.AssumeRoleSource.ExternalID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvProxyURL); ok && strings.TrimSpace(v) != "" {
		cfg.ProxyURL = strings.TrimSpace(v)
	}
}

// NormalizeKeys trims entries and drops blanks and duplicates, keeping order.
func NormalizeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		trimmed := strings.TrimSpace(k)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeProfiles trims names and drops profiles without a provider.
func normalizeProfiles(in map[string]Profile) map[string]Profile {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]Profile, len(in))
	for name, p := range in {
		name = strings.TrimSpace(name)
		if name == "" || strings.TrimSpace(p.Provider) == "" {
			continue
		}
		p.Provider = string(provider.FromString(p.Provider))
		out[name] = p
	}
	return out
}
