package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response is a completed HTTP exchange. Body is nil for accepted streamed responses,
// whose bytes were delivered to the ChunkFunc instead.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// RetryAfter parses the Retry-After header when present.
func (r *Response) RetryAfter(now time.Time) (time.Duration, bool) {
	if r == nil {
		return 0, false
	}
	v := strings.TrimSpace(r.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
