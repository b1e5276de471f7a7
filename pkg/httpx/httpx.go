// Package httpx holds the request policy shared by the prober and the fetcher.
package httpx

import (
	"net/http"
	"time"
)

const DefaultUserAgent = "epfetch/1.0"

// Headers are attached to every request the core issues. Referrer is sent
// verbatim when set, and omitted otherwise.
type Headers struct {
	Referrer  string
	UserAgent string
	Extra     map[string]string
}

func (h Headers) Apply(req *http.Request) {
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.Referrer != "" {
		req.Header.Set("Referer", h.Referrer)
	}
	for k, v := range h.Extra {
		req.Header.Set(k, v)
	}
}

// NewClient returns a client for body transfers. Transfers may take hours so
// only connection setup and response headers are bounded.
func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// NewProbeClient returns a client whose whole round trip is bounded by timeout.
func NewProbeClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: timeout,
	}
}
