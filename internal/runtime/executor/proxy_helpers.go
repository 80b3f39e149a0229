package executor

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/nghyane/llm-adapter/internal/logging"
	"golang.org/x/net/proxy"
)

// NewHTTPClient returns a client that honours proxyURL (http, https or
// socks5). An empty or unusable proxy falls back to SharedTransport.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
		if transport := buildProxyTransport(proxyURL); transport != nil {
			client.Transport = transport
			return client
		}
		log.Debugf("failed to set up proxy from URL %s, using direct transport", proxyURL)
	}
	client.Transport = SharedTransport
	return client
}

func buildProxyTransport(raw string) *http.Transport {
	parsed, err := url.Parse(raw)
	if err != nil {
		log.Errorf("parse proxy URL failed: %v", err)
		return nil
	}
	switch parsed.Scheme {
	case "socks5":
		var auth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", err)
			return nil
		}
		return SOCKS5Transport(dialer.Dial)
	case "http", "https":
		return ProxyTransport(parsed)
	default:
		log.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
		return nil
	}
}
