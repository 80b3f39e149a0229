package watcher

import (
	"fmt"
	"reflect"

	"github.com/nghyane/llm-adapter/internal/config"
)

// buildConfigChangeDetails lists material differences between two configs.
// Secret values are never included.
func buildConfigChangeDetails(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var details []string
	if oldCfg.Debug != newCfg.Debug {
		details = append(details, fmt.Sprintf("debug: %t -> %t", oldCfg.Debug, newCfg.Debug))
	}
	if oldCfg.RequestLog != newCfg.RequestLog {
		details = append(details, fmt.Sprintf("request-log: %t -> %t", oldCfg.RequestLog, newCfg.RequestLog))
	}
	if oldCfg.ProxyURL != newCfg.ProxyURL {
		details = append(details, "proxy-url changed")
	}
	if oldCfg.RequestTimeout != newCfg.RequestTimeout {
		details = append(details, fmt.Sprintf("request-timeout: %d -> %d", oldCfg.RequestTimeout, newCfg.RequestTimeout))
	}
	if len(oldCfg.APIKeys) != len(newCfg.APIKeys) {
		details = append(details, fmt.Sprintf("api-keys: %d -> %d", len(oldCfg.APIKeys), len(newCfg.APIKeys)))
	}
	for name, p := range newCfg.Profiles {
		prev, ok := oldCfg.Profiles[name]
		switch {
		case !ok:
			details = append(details, fmt.Sprintf("profile %s added (%s)", name, p.Provider))
		case !reflect.DeepEqual(prev, p):
			details = append(details, fmt.Sprintf("profile %s updated", name))
		}
	}
	for name := range oldCfg.Profiles {
		if _, ok := newCfg.Profiles[name]; !ok {
			details = append(details, fmt.Sprintf("profile %s removed", name))
		}
	}
	return details
}
