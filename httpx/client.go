package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	httpClient *http.Client

	baseURL *url.URL

	timeout        time.Duration
	defaultHeaders http.Header
	userAgent      string

	maxErrBody int64
	chunkSize  int

	requestID RequestIDConfig
	logger    *slog.Logger

	rateLimiter RateLimiter
	before      []BeforeHook
	after       []AfterHook
}

// ChunkFunc receives body bytes as they arrive, in order. The slice is only valid for
// the duration of the call. Returning false stops reading the body.
type ChunkFunc func(chunk []byte) bool

// New constructs a Client from DefaultConfig() plus the provided options.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Client, error) {
	var bu *url.URL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, &url.Error{Op: "parse", URL: cfg.BaseURL, Err: errors.New("base url must be absolute")}
		}
		// Normalize so relative paths resolve as expected (treat BaseURL path as a prefix).
		if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		bu = u
	}

	rt := cfg.Transport
	if rt == nil {
		rt = NewTransport(cfg.TransportOverrides)
	}

	hc := &http.Client{
		Transport:     rt,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects),
	}

	maxErrBody := cfg.MaxErrorBodyBytes
	if maxErrBody == 0 {
		maxErrBody = DefaultMaxErrorBodyBytes
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// Clone headers to avoid caller mutation.
	hdr := make(http.Header)
	for k, vv := range cfg.DefaultHeaders {
		for _, v := range vv {
			hdr.Add(k, v)
		}
	}

	c := &Client{
		httpClient:     hc,
		baseURL:        bu,
		timeout:        cfg.Timeout,
		defaultHeaders: hdr,
		userAgent:      cfg.UserAgent,
		maxErrBody:     maxErrBody,
		chunkSize:      chunkSize,
		requestID:      cfg.RequestID,
		logger:         logger,
	}
	if c.requestID.New == nil && c.requestID.Header != "" {
		c.requestID.New = DefaultRequestID
	}
	return c, nil
}

func redirectPolicy(max int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if max < 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// WithMiddleware wraps the underlying RoundTripper with middleware.
// Call this during initialization (before the client is used concurrently).
func (c *Client) WithMiddleware(mws ...Middleware) *Client {
	if len(mws) == 0 {
		return c
	}
	rt := c.httpClient.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.httpClient.Transport = chain(rt, mws)
	return c
}

// WithRateLimiter installs a client-wide rate limiter.
func (c *Client) WithRateLimiter(rl RateLimiter) *Client {
	c.rateLimiter = rl
	return c
}

// WithHooks adds hooks (executed for every request).
func (c *Client) WithHooks(before []BeforeHook, after []AfterHook) *Client {
	c.before = append(c.before, before...)
	c.after = append(c.after, after...)
	return c
}

func (c *Client) resolveURL(path string, q url.Values) (*url.URL, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty url/path")
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		u2 := *u
		addQuery(&u2, q)
		return &u2, nil
	}
	if c.baseURL == nil {
		return nil, errors.New("relative path requires BaseURL")
	}
	// Treat leading "/" as a relative path when BaseURL is set, so BaseURL with a path
	// prefix (e.g. https://host/openai) works with "/models" as expected.
	if strings.HasPrefix(u.Path, "/") {
		u2 := *u
		u2.Path = strings.TrimPrefix(u2.Path, "/")
		u = &u2
	}
	u2 := c.baseURL.ResolveReference(u)
	addQuery(u2, q)
	return u2, nil
}

func addQuery(u *url.URL, q url.Values) {
	if q == nil {
		return
	}
	qq := u.Query()
	for k, vv := range q {
		for _, v := range vv {
			qq.Add(k, v)
		}
	}
	u.RawQuery = qq.Encode()
}

func withEarlierDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return ctx, func() {}
	}
	if existing, ok := ctx.Deadline(); ok && !existing.After(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

func earliestDeadline(base context.Context, timeouts ...time.Duration) (time.Time, bool) {
	now := time.Now()
	var earliest time.Time
	for _, d := range timeouts {
		if d <= 0 {
			continue
		}
		dd := now.Add(d)
		if earliest.IsZero() || dd.Before(earliest) {
			earliest = dd
		}
	}
	if dl, ok := base.Deadline(); ok {
		if earliest.IsZero() || dl.Before(earliest) {
			earliest = dl
		}
	}
	if earliest.IsZero() {
		return time.Time{}, false
	}
	return earliest, true
}

// Execute performs req once and reads the whole body. Any HTTP status is returned as
// a *Response; only connection-level failures produce an error (*Error).
func (c *Client) Execute(req *http.Request) (*Response, error) {
	req, cancel, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(req, err)
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: raw, Duration: time.Since(start)}
	c.logger.Debug("http response",
		"method", req.Method, "url", req.URL.String(), "status", out.StatusCode,
		"bytes", len(raw), "dur", out.Duration)
	return out, nil
}

// Stream performs req once. When accept(status) reports true, body bytes are handed to fn
// as they arrive until EOF or fn returns false, and the returned Response has a nil Body.
// Otherwise up to MaxErrorBodyBytes of the body are buffered into Response.Body and fn is
// never called. A read failure after headers arrived is reported as *Error alongside the
// Response; callers can tell a canceled context apart with IsCanceled.
func (c *Client) Stream(req *http.Request, accept func(status int) bool, fn ChunkFunc) (*Response, error) {
	req, cancel, err := c.prepare(req)
	if err != nil {
		return nil, err
	}
	defer cancel()

	start := time.Now()
	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	if accept != nil && !accept(resp.StatusCode) {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxErrBody))
		out.Body = raw
		out.Duration = time.Since(start)
		if err != nil {
			return out, c.transportError(req, err)
		}
		return out, nil
	}

	var total int
	buf := make([]byte, c.chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			total += n
			if !fn(buf[:n]) {
				break
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			out.Duration = time.Since(start)
			if ctxErr := req.Context().Err(); ctxErr != nil {
				rerr = ctxErr
			}
			return out, c.transportError(req, rerr)
		}
	}
	out.Duration = time.Since(start)
	c.logger.Debug("http stream finished",
		"method", req.Method, "url", req.URL.String(), "status", out.StatusCode,
		"bytes", total, "dur", out.Duration)
	return out, nil
}

func (c *Client) prepare(req *http.Request) (*http.Request, context.CancelFunc, error) {
	if req == nil {
		return nil, nil, errors.New("nil request")
	}
	ctx := req.Context()
	cancel := context.CancelFunc(func() {})
	if dl, ok := earliestDeadline(ctx, c.timeout, requestTimeout(ctx)); ok {
		ctx, cancel = withEarlierDeadline(ctx, dl)
	}
	return req.Clone(ctx), cancel, nil
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, c.transportError(req, err)
	}
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, c.transportError(req, err)
		}
	}
	for _, h := range c.before {
		if h == nil {
			continue
		}
		if err := h(req); err != nil {
			return nil, err
		}
	}

	t0 := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(t0)

	for _, h := range c.after {
		if h != nil {
			h(req, resp, err, dur)
		}
	}

	if err != nil {
		// http.Client may return a non-nil resp alongside an error (e.g. redirect issues).
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		c.logger.Debug("http transport error", "method", req.Method, "url", req.URL.String(), "err", err, "dur", dur)
		return nil, c.transportError(req, err)
	}
	return resp, nil
}

func (c *Client) transportError(req *http.Request, err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	rid := ""
	if c.requestID.Header != "" {
		rid = strings.TrimSpace(req.Header.Get(c.requestID.Header))
	}
	return &Error{
		Method:    req.Method,
		URL:       req.URL.String(),
		RequestID: rid,
		Cause:     err,
	}
}
