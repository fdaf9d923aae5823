package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config configures a Client. Use DefaultConfig() as a baseline.
type Config struct {
	// BaseURL is optional. If set, relative paths passed to NewRequest are resolved against it.
	BaseURL string

	// Timeout bounds the whole call, including reading a streamed body.
	// If the request context already has a deadline, the earlier one wins.
	Timeout time.Duration

	// MaxRedirects caps how many redirects are followed. Negative disables redirects.
	MaxRedirects int

	// Transport is the underlying RoundTripper. If nil, NewTransport(TransportOverrides) is used.
	Transport http.RoundTripper

	// TransportOverrides are applied on top of DefaultTransport(); set fields win.
	// Ignored when Transport is set.
	TransportOverrides TransportConfig

	// DefaultHeaders are copied into every request (caller headers win).
	DefaultHeaders http.Header

	// UserAgent is set when the request does not already have a User-Agent header.
	UserAgent string

	// MaxErrorBodyBytes limits how many bytes of a rejected streamed response are buffered.
	// If zero, DefaultMaxErrorBodyBytes is used.
	MaxErrorBodyBytes int64

	// ChunkSize is the read size used by Stream. If zero, DefaultChunkSize is used.
	ChunkSize int

	// RequestID configures correlation id propagation.
	RequestID RequestIDConfig

	Logger *slog.Logger
}

const (
	DefaultTimeout                 = 300 * time.Second
	DefaultMaxRedirects            = 10
	DefaultMaxErrorBodyBytes int64 = 64 << 10 // 64KiB
	DefaultChunkSize               = 4 << 10
)

// DefaultConfig returns the baseline used by New.
func DefaultConfig() Config {
	return Config{
		Timeout:           DefaultTimeout,
		MaxRedirects:      DefaultMaxRedirects,
		DefaultHeaders:    make(http.Header),
		MaxErrorBodyBytes: DefaultMaxErrorBodyBytes,
		ChunkSize:         DefaultChunkSize,
		RequestID:         DefaultRequestIDConfig(),
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
