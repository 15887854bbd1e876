package httpx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transportOf(t *testing.T, c *http.Client) *http.Transport {
	t.Helper()
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok, "transport type = %T", c.Transport)
	return tr
}

func TestNewClient_DefaultTimeoutAndTransport(t *testing.T) {
	client := NewClient(0)
	assert.Equal(t, defaultClientTimeout, client.Timeout)

	tr := transportOf(t, client)
	assert.Equal(t, defaultMaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
	assert.Equal(t, defaultIdleConnTimeout, tr.IdleConnTimeout)
}

func TestNewClient_CapsDialAndHeaderTimeouts(t *testing.T) {
	tr := transportOf(t, NewClient(10*time.Second))
	assert.Equal(t, defaultDialTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, defaultResponseHeaderTimeout, tr.ResponseHeaderTimeout)
}

func TestNewClient_UsesShortTimeoutAsProvided(t *testing.T) {
	want := 1500 * time.Millisecond
	client := NewClient(want)
	tr := transportOf(t, client)
	assert.Equal(t, want, client.Timeout)
	assert.Equal(t, want, tr.TLSHandshakeTimeout)
	assert.Equal(t, want, tr.ResponseHeaderTimeout)
}

func TestNewProviderClient_WaitsForSlowHeaders(t *testing.T) {
	client := NewProviderClient(90 * time.Second)
	tr := transportOf(t, client)
	assert.Equal(t, 90*time.Second, client.Timeout)
	assert.Equal(t, 90*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, defaultDialTimeout, tr.TLSHandshakeTimeout)

	assert.Equal(t, defaultProviderTimeout, NewProviderClient(0).Timeout)
}

func TestNewStreamingClient_HasNoOverallDeadline(t *testing.T) {
	client := NewStreamingClient(0)
	assert.Zero(t, client.Timeout)
	assert.Equal(t, defaultStreamHeaderTimeout, transportOf(t, client).ResponseHeaderTimeout)
}
