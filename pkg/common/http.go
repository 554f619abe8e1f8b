package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// DefaultUserAgent is sent when a caller has no vendor-mandated user agent.
func DefaultUserAgent() string {
	return "SEMSLedger/" + strings.TrimSpace(version)
}

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper and stamps the configured user agent.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the
// wrapped transport.
func (t *userAgentTransport) CloseIdleConnections() {
	if ci, ok := t.transport.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

// HTTPClient returns an http client with the given timeout that always sends
// userAgent. An empty userAgent falls back to DefaultUserAgent. Each client
// owns its connection pool.
func HTTPClient(timeout time.Duration, userAgent string) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent()
	}
	return &http.Client{
		Transport: &userAgentTransport{
			transport: http.DefaultTransport.(*http.Transport).Clone(),
			userAgent: userAgent,
		},
		Timeout: timeout,
	}
}
