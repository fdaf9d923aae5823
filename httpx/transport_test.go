package httpx

import (
	"testing"
	"time"
)

func TestTransportConfig_MergeCallerWins(t *testing.T) {
	base := TransportConfig{DialTimeout: time.Second, MaxIdleConns: 10}
	got := base.Merge(TransportConfig{DialTimeout: 3 * time.Second, DisableKeepAlives: true})

	if got.DialTimeout != 3*time.Second {
		t.Fatalf("DialTimeout=%s", got.DialTimeout)
	}
	if got.MaxIdleConns != 10 {
		t.Fatalf("MaxIdleConns=%d", got.MaxIdleConns)
	}
	if !got.DisableKeepAlives {
		t.Fatalf("DisableKeepAlives not applied")
	}

	tr := NewTransport(got)
	if tr.MaxIdleConns != 10 || !tr.DisableKeepAlives {
		t.Fatalf("transport not built from overrides: %+v", tr)
	}
}

func TestNewDialer_KeepsUnsetDefaults(t *testing.T) {
	d := newDialer(TransportConfig{DialKeepAlive: 45 * time.Second})
	if d.Timeout != defaultDialTimeout {
		t.Fatalf("Timeout=%s, want %s", d.Timeout, defaultDialTimeout)
	}
	if d.KeepAlive != 45*time.Second {
		t.Fatalf("KeepAlive=%s", d.KeepAlive)
	}

	d = newDialer(TransportConfig{DialTimeout: 2 * time.Second})
	if d.Timeout != 2*time.Second || d.KeepAlive != defaultDialKeepAlive {
		t.Fatalf("dialer=%+v", d)
	}
}

func TestNewTransport_KeepAliveOnlyOverride(t *testing.T) {
	tr := NewTransport(TransportConfig{DialKeepAlive: 45 * time.Second})
	if tr.DialContext == nil {
		t.Fatalf("DialContext not set")
	}
	if tr.TLSHandshakeTimeout != 10*time.Second || tr.IdleConnTimeout != 90*time.Second {
		t.Fatalf("tuned defaults lost: tls=%s idle=%s", tr.TLSHandshakeTimeout, tr.IdleConnTimeout)
	}
}

func TestDefaultTransport_HTTP2OptIn(t *testing.T) {
	if DefaultTransport().ForceAttemptHTTP2 {
		t.Fatalf("default transport should stay on HTTP/1.1")
	}
	if !NewTransport(TransportConfig{ForceAttemptHTTP2: true}).ForceAttemptHTTP2 {
		t.Fatalf("ForceAttemptHTTP2 override not applied")
	}
}
