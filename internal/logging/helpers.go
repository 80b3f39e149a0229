package logging

import (
	"net/url"
	"strings"
)

// Header and query keys whose values are credentials. Matched as substrings
// of the lowercased key.
var (
	sensitiveHeaderParts = []string{
		"api-key", "apikey", "token", "secret", "access-key", "service-account", "x-amz-security-token",
	}
	sensitiveQueryParts = []string{
		"api-key", "apikey", "api_key", "token", "secret", "x-amz-signature", "x-amz-credential",
	}
)

// redact keeps a short prefix and suffix so values stay distinguishable.
func redact(v string) string {
	switch n := len(v); {
	case n > 8:
		return v[:4] + "..." + v[n-4:]
	case n > 4:
		return v[:2] + "..." + v[n-2:]
	case n > 2:
		return v[:1] + "..." + v[n-1:]
	}
	return v
}

func containsAnyPart(key string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

func maskSensitiveHeaderValue(key, value string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if strings.Contains(k, "authorization") {
		scheme, cred, ok := strings.Cut(strings.TrimSpace(value), " ")
		if !ok {
			return redact(value)
		}
		return scheme + " " + redact(cred)
	}
	if containsAnyPart(k, sensitiveHeaderParts) {
		return redact(value)
	}
	return value
}

func maskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
		if key == "" || (key != "key" && key != "sig" && !containsAnyPart(key, sensitiveQueryParts)) {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = rawValue
		}
		parts[i] = rawKey + "=" + url.QueryEscape(redact(strings.TrimSpace(value)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}
