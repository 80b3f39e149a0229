package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the config location used when no --config flag is given.
const DefaultConfigPath = "$XDG_CONFIG_HOME/llm-adapter/config.yaml"

// ConfigDir returns the configuration directory per the XDG base directory
// layout: $XDG_CONFIG_HOME/llm-adapter, otherwise ~/.config/llm-adapter.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "llm-adapter")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "llm-adapter")
	}
	return ""
}

// ResolvePath expands a leading ~/ and the $XDG_CONFIG_HOME placeholder. An
// unset XDG_CONFIG_HOME falls back to ~/.config.
func ResolvePath(path string) string {
	path = strings.TrimSpace(path)
	if strings.Contains(path, "$XDG_CONFIG_HOME") {
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			if home, err := os.UserHomeDir(); err == nil {
				base = filepath.Join(home, ".config")
			}
		}
		path = strings.ReplaceAll(path, "$XDG_CONFIG_HOME", base)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return filepath.Clean(path)
}
