package util

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// ProxySettings are explicit proxy overrides. Empty settings defer to the
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY environment variables.
type ProxySettings struct {
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// IsZero reports whether no override is configured
func (p ProxySettings) IsZero() bool {
	return p.HTTPProxy == "" && p.HTTPSProxy == ""
}

// NewProxyFunc returns the proxy selector for an http.Transport
func NewProxyFunc(settings ProxySettings) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if !settings.IsZero() {
		cfg = &httpproxy.Config{
			HTTPProxy:  settings.HTTPProxy,
			HTTPSProxy: settings.HTTPSProxy,
			NoProxy:    settings.NoProxy,
		}
		// An HTTPS override alone should not leave plain HTTP unproxied
		if cfg.HTTPProxy == "" {
			cfg.HTTPProxy = settings.HTTPSProxy
		}
	}

	proxy := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

// NewHTTPClient builds a client that routes through the configured proxy
func NewHTTPClient(settings ProxySettings, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(settings)
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
