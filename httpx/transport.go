package httpx

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

// TransportConfig captures the low-level http.Transport knobs callers may override.
// Zero values mean "keep the default".
type TransportConfig struct {
	Proxy                 func(*http.Request) (*url.URL, error)
	TLSClientConfig       *tls.Config
	DialTimeout           time.Duration
	DialKeepAlive         time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration
	IdleConnTimeout       time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	ForceAttemptHTTP2   bool
	DisableKeepAlives   bool
}

// Merge returns c with every set field of o applied on top. o wins on collision.
func (c TransportConfig) Merge(o TransportConfig) TransportConfig {
	out := c
	if o.Proxy != nil {
		out.Proxy = o.Proxy
	}
	if o.TLSClientConfig != nil {
		out.TLSClientConfig = o.TLSClientConfig
	}
	if o.DialTimeout > 0 {
		out.DialTimeout = o.DialTimeout
	}
	if o.DialKeepAlive > 0 {
		out.DialKeepAlive = o.DialKeepAlive
	}
	if o.TLSHandshakeTimeout > 0 {
		out.TLSHandshakeTimeout = o.TLSHandshakeTimeout
	}
	if o.ResponseHeaderTimeout > 0 {
		out.ResponseHeaderTimeout = o.ResponseHeaderTimeout
	}
	if o.ExpectContinueTimeout > 0 {
		out.ExpectContinueTimeout = o.ExpectContinueTimeout
	}
	if o.IdleConnTimeout > 0 {
		out.IdleConnTimeout = o.IdleConnTimeout
	}
	if o.MaxIdleConns > 0 {
		out.MaxIdleConns = o.MaxIdleConns
	}
	if o.MaxIdleConnsPerHost > 0 {
		out.MaxIdleConnsPerHost = o.MaxIdleConnsPerHost
	}
	if o.MaxConnsPerHost > 0 {
		out.MaxConnsPerHost = o.MaxConnsPerHost
	}
	out.ForceAttemptHTTP2 = out.ForceAttemptHTTP2 || o.ForceAttemptHTTP2
	out.DisableKeepAlives = out.DisableKeepAlives || o.DisableKeepAlives
	return out
}

const (
	defaultDialTimeout   = 10 * time.Second
	defaultDialKeepAlive = 30 * time.Second
)

// newDialer returns the default dialer with the dial fields of cfg applied on top.
func newDialer(cfg TransportConfig) *net.Dialer {
	d := &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultDialKeepAlive}
	if cfg.DialTimeout > 0 {
		d.Timeout = cfg.DialTimeout
	}
	if cfg.DialKeepAlive > 0 {
		d.KeepAlive = cfg.DialKeepAlive
	}
	return d
}

// NewTransport builds an *http.Transport starting from DefaultTransport() and applying overrides.
func NewTransport(cfg TransportConfig) *http.Transport {
	t := DefaultTransport()
	if cfg.Proxy != nil {
		t.Proxy = cfg.Proxy
	}
	if cfg.TLSClientConfig != nil {
		t.TLSClientConfig = cfg.TLSClientConfig.Clone()
	}
	if cfg.DialTimeout > 0 || cfg.DialKeepAlive > 0 {
		t.DialContext = newDialer(cfg).DialContext
	}
	if cfg.TLSHandshakeTimeout > 0 {
		t.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
	}
	if cfg.ResponseHeaderTimeout > 0 {
		t.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
	}
	if cfg.ExpectContinueTimeout > 0 {
		t.ExpectContinueTimeout = cfg.ExpectContinueTimeout
	}
	if cfg.IdleConnTimeout > 0 {
		t.IdleConnTimeout = cfg.IdleConnTimeout
	}
	if cfg.MaxIdleConns > 0 {
		t.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.MaxConnsPerHost > 0 {
		t.MaxConnsPerHost = cfg.MaxConnsPerHost
	}
	if cfg.ForceAttemptHTTP2 {
		t.ForceAttemptHTTP2 = true
	}
	if cfg.DisableKeepAlives {
		t.DisableKeepAlives = true
	}
	return t
}

// DefaultTransport returns a tuned clone of http.DefaultTransport speaking HTTP/1.1.
// HTTP/2 is opt-in through TransportConfig.ForceAttemptHTTP2.
//
// ResponseHeaderTimeout is left unset: completions can take minutes before the first
// byte and the client-wide Timeout already bounds the call.
func DefaultTransport() *http.Transport {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		return &http.Transport{}
	}
	t := base.Clone()

	t.DialContext = newDialer(TransportConfig{}).DialContext
	t.TLSHandshakeTimeout = 10 * time.Second
	t.ExpectContinueTimeout = 1 * time.Second
	t.IdleConnTimeout = 90 * time.Second
	if t.MaxIdleConns == 0 {
		t.MaxIdleConns = 100
	}
	if t.MaxIdleConnsPerHost == 0 {
		t.MaxIdleConnsPerHost = 20
	}
	// A custom DialContext without ForceAttemptHTTP2 keeps the transport on HTTP/1.1.
	t.ForceAttemptHTTP2 = false
	return t
}
