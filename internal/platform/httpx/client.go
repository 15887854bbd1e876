// Package httpx builds the hardened HTTP clients used for outbound calls.
package httpx

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4

	defaultProviderTimeout     = 120 * time.Second
	defaultStreamHeaderTimeout = 30 * time.Second
)

// NewClient returns a hardened HTTP client for short requests such as
// reference image downloads and health probes.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(capped(timeout, defaultDialTimeout), capped(timeout, defaultResponseHeaderTimeout)),
	}
}

// NewProviderClient returns a client for generation providers. Image and text
// generation only answers once the result is ready, so the response header
// deadline is the full request timeout.
func NewProviderClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(capped(timeout, defaultDialTimeout), timeout),
	}
}

// NewStreamingClient returns a client without an overall deadline for
// long-lived responses (SSE). Callers bound the stream with a context.
func NewStreamingClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout <= 0 {
		headerTimeout = defaultStreamHeaderTimeout
	}
	return &http.Client{
		Transport: newTransport(defaultDialTimeout, headerTimeout),
	}
}

func capped(d, limit time.Duration) time.Duration {
	if d > limit {
		return limit
	}
	return d
}

func newTransport(dialTimeout, responseHeaderTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}
