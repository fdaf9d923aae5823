package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorKind string

const (
	// ErrKindTransport is a connection-level failure (DNS, TLS, timeout, abrupt close).
	ErrKindTransport ErrorKind = "transport"
	// ErrKindHTTPStatus is a status outside the dialect's accepted set.
	ErrKindHTTPStatus ErrorKind = "http_status"
	// ErrKindStreamProtocol is an unexpected non-data frame, a transient marker or an
	// in-band error payload during streaming.
	ErrKindStreamProtocol ErrorKind = "stream_protocol"
	// ErrKindStreamDecode is malformed JSON inside a data frame.
	ErrKindStreamDecode ErrorKind = "stream_decode"
	// ErrKindStreamOverflow is an undelimited stream that outgrew the buffer cap.
	ErrKindStreamOverflow ErrorKind = "stream_overflow"
	// ErrKindConfiguration is a caller mistake detected before any I/O.
	ErrKindConfiguration ErrorKind = "configuration"
)

// StreamFailureStatus is the status attached to stream protocol failures.
const StreamFailureStatus = http.StatusInternalServerError

// Error is the only error shape the API clients surface.
//
// HTTPStatus, Code and Message are the normalized triple; Kind says which stage failed.
type Error struct {
	Kind ErrorKind

	// HTTPStatus is the response status, StreamFailureStatus for stream failures and
	// zero for transport and configuration errors.
	HTTPStatus int

	// Code is the provider error code or type, e.g. "model_not_found".
	Code string

	Message string

	// Raw is the offending payload: the error response body or the raw stream frame.
	Raw []byte

	// RetryAfter is the server's Retry-After hint on a rejected call, zero when absent.
	RetryAfter time.Duration

	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString("openai")
	if e.Kind != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Kind))
	}
	if e.HTTPStatus != 0 {
		b.WriteString(fmt.Sprintf(" [%d]", e.HTTPStatus))
	}

	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg != "" {
		b.WriteString(": ")
		if code := strings.TrimSpace(e.Code); code != "" {
			b.WriteString(code)
			b.WriteString("|")
		}
		b.WriteString(msg)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// IsRateLimit reports whether the provider rejected the call for rate limiting.
func IsRateLimit(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	if e.Kind == ErrKindHTTPStatus && e.HTTPStatus == http.StatusTooManyRequests {
		return true
	}
	code := strings.ToLower(strings.TrimSpace(e.Code))
	return code == "rate_limit" || code == "rate_limit_exceeded" || code == "429"
}

// IsAuth reports whether the provider rejected the credentials.
func IsAuth(err error) bool {
	e, ok := AsError(err)
	if !ok || e.Kind != ErrKindHTTPStatus {
		return false
	}
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsTemporary reports whether the failure is likely transient. The clients never act
// on this themselves; it is a hint for callers with their own policy.
func IsTemporary(err error) bool {
	e, ok := AsError(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case ErrKindTransport:
		return true
	case ErrKindHTTPStatus:
		switch e.HTTPStatus {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
