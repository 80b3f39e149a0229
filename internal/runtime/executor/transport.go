package executor

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// TransportOptions sizes the connection pool toward provider endpoints.
type TransportOptions struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for response headers.
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	// HTTP2PingInterval enables idle health checks on HTTP/2 connections.
	HTTP2PingInterval time.Duration
}

// DefaultTransportOptions returns the settings behind SharedTransport.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		MaxConnsPerHost:       0,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 5 * time.Minute,
		DialTimeout:           15 * time.Second,
		KeepAlive:             30 * time.Second,
		HTTP2PingInterval:     30 * time.Second,
	}
}

// NewTransport builds a transport from opts. dial overrides the TCP dialer,
// e.g. for SOCKS5.
func NewTransport(opts TransportOptions, dial func(ctx context.Context, network, addr string) (net.Conn, error)) *http.Transport {
	if dial == nil {
		dial = (&net.Dialer{Timeout: opts.DialTimeout, KeepAlive: opts.KeepAlive}).DialContext
	}
	t := &http.Transport{
		DialContext:           dial,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       opts.IdleConnTimeout,
		TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
		// Bodies are decoded by decodeResponseBody; SigV4-signed requests
		// must not gain an Accept-Encoding header after signing.
		DisableCompression: true,
		TLSClientConfig:    &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if h2, err := http2.ConfigureTransports(t); err == nil && opts.HTTP2PingInterval > 0 {
		h2.ReadIdleTimeout = opts.HTTP2PingInterval
		h2.PingTimeout = opts.HTTP2PingInterval / 2
	}
	return t
}

// SharedTransport is used by every client without a proxy.
var SharedTransport = NewTransport(DefaultTransportOptions(), nil)

// ProxyTransport routes through an HTTP(S) proxy.
func ProxyTransport(proxyURL *url.URL) *http.Transport {
	t := NewTransport(DefaultTransportOptions(), nil)
	t.Proxy = http.ProxyURL(proxyURL)
	return t
}

// SOCKS5Transport dials through a SOCKS5 proxy.
func SOCKS5Transport(dial func(network, addr string) (net.Conn, error)) *http.Transport {
	return NewTransport(DefaultTransportOptions(), func(_ context.Context, network, addr string) (net.Conn, error) {
		return dial(network, addr)
	})
}
