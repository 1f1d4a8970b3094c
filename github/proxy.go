package github_handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

// ProxySettings is the process-wide outbound proxy configuration.
// It is read once at startup and passed into client construction.
type ProxySettings struct {
	// OutboundProxy is the egress proxy for hosts outside TrustedDomains.
	// Empty means direct connections.
	OutboundProxy string
	// NoProxy uses the NO_PROXY syntax to exempt further hosts.
	NoProxy string
	// TrustedDomains are never proxied. A domain matches itself and its subdomains.
	TrustedDomains []string
}

// TransportConfig is the network path chosen for one client.
type TransportConfig struct {
	HTTPProxy  *url.URL
	HTTPSProxy *url.URL

	proxyFunc func(*url.URL) (*url.URL, error)
}

// Proxied reports whether any traffic goes through a proxy.
func (t TransportConfig) Proxied() bool {
	return t.proxyFunc != nil
}

// ProxyFor returns the proxy for a request URL, or nil for a direct connection.
func (t TransportConfig) ProxyFor(target *url.URL) (*url.URL, error) {
	if t.proxyFunc == nil {
		return nil, nil
	}
	return t.proxyFunc(target)
}

// NewTransport builds the http.Transport for the chosen path. The proxy is
// always set explicitly so HTTP_PROXY style environment variables are never
// consulted behind the caller's back.
func (t TransportConfig) NewTransport() *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	if t.proxyFunc != nil {
		tr.Proxy = func(req *http.Request) (*url.URL, error) {
			return t.proxyFunc(req.URL)
		}
	}
	return tr
}

// SelectTransport picks the network path for calls to targetBaseURL.
//
// An explicit proxy wins for every host and both schemes. Otherwise hosts in
// the trusted domains go direct, and everything else uses the outbound proxy
// from settings when one is configured.
func SelectTransport(targetBaseURL, explicitProxyURL string, settings ProxySettings) (TransportConfig, error) {
	if explicitProxyURL != "" {
		proxyURL, err := parseProxyURL(explicitProxyURL)
		if err != nil {
			return TransportConfig{}, err
		}
		return TransportConfig{
			HTTPProxy:  proxyURL,
			HTTPSProxy: proxyURL,
			proxyFunc: func(target *url.URL) (*url.URL, error) {
				switch target.Scheme {
				case "http", "https":
					return proxyURL, nil
				}
				return nil, nil
			},
		}, nil
	}

	target, err := url.Parse(targetBaseURL)
	if err != nil {
		return TransportConfig{}, fmt.Errorf("%w: invalid target URL %q: %v", ErrInvalidConfig, targetBaseURL, err)
	}
	if isTrustedHost(target.Hostname(), settings.TrustedDomains) || settings.OutboundProxy == "" {
		return TransportConfig{}, nil
	}

	proxyURL, err := parseProxyURL(settings.OutboundProxy)
	if err != nil {
		return TransportConfig{}, err
	}
	env := &httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    settings.NoProxy,
	}
	return TransportConfig{
		HTTPProxy:  proxyURL,
		HTTPSProxy: proxyURL,
		proxyFunc:  env.ProxyFunc(),
	}, nil
}

func parseProxyURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid proxy URL %q", ErrInvalidConfig, raw)
	}
	return u, nil
}

func isTrustedHost(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
