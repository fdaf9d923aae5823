package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lgc202/openai-kit/httpx"
	"github.com/lgc202/openai-kit/llm"
	"github.com/lgc202/openai-kit/llm/sse"
)

// StreamObserver is told the outcome of every streamed call.
type StreamObserver interface {
	ObserveStream(dialect string, res sse.Result, err error, dur time.Duration)
}

// Client issues calls for one Dialect. It is safe for concurrent use.
type Client struct {
	dialect    Dialect
	builder    Builder
	classifier Classifier

	tr       *httpx.Client
	httpOpts []httpx.Option

	streamOpts []sse.Option
	observer   StreamObserver
	logger     *slog.Logger
}

type Option func(*Client) error

// WithHTTPOptions configures the transport built by New. Ignored with WithHTTPClient.
func WithHTTPOptions(opts ...httpx.Option) Option {
	return func(c *Client) error {
		c.httpOpts = append(c.httpOpts, opts...)
		return nil
	}
}

// WithHTTPClient uses a prepared transport. Its base URL must point at the dialect's endpoint.
func WithHTTPClient(tr *httpx.Client) Option {
	return func(c *Client) error {
		if tr == nil {
			return errors.New("openai: nil http client")
		}
		c.tr = tr
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return WithHTTPOptions(httpx.WithTimeout(d))
}

// WithTransportConfig merges low-level transport overrides; set fields win over the defaults.
func WithTransportConfig(cfg httpx.TransportConfig) Option {
	return WithHTTPOptions(httpx.WithTransportConfig(cfg))
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
			c.httpOpts = append(c.httpOpts, httpx.WithLogger(logger))
		}
		return nil
	}
}

// WithEmbeddedErrors treats an error envelope in a success response as a failure.
func WithEmbeddedErrors(on bool) Option {
	return func(c *Client) error {
		c.classifier.EmbeddedErrors = on
		return nil
	}
}

// WithStreamOptions configures the stream decoder of every streamed call.
func WithStreamOptions(opts ...sse.Option) Option {
	return func(c *Client) error {
		c.streamOpts = append(c.streamOpts, opts...)
		return nil
	}
}

func WithStreamObserver(o StreamObserver) Option {
	return func(c *Client) error {
		c.observer = o
		return nil
	}
}

func New(d Dialect, opts ...Option) (*Client, error) {
	d = d.clone()
	c := &Client{
		dialect:    d,
		builder:    NewBuilder(d),
		classifier: NewClassifier(d.AcceptedStatuses),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.tr == nil {
		if d.BaseURL == "" {
			return nil, configError("base url is required")
		}
		tr, err := httpx.New(append([]httpx.Option{httpx.WithBaseURL(d.BaseURL)}, c.httpOpts...)...)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		c.tr = tr
	}
	return c, nil
}

// HTTP exposes the transport, e.g. to install hooks or a rate limiter during setup.
func (c *Client) HTTP() *httpx.Client { return c.tr }

// Dialect returns a copy of the client's dialect.
func (c *Client) Dialect() Dialect { return c.dialect.clone() }

// Do builds, executes and classifies one non-streamed call. The successful body is
// returned unmodified.
func (c *Client) Do(ctx context.Context, method, path string, opts Options) ([]byte, error) {
	req, err := c.builder.Build(method, path, opts)
	if err != nil {
		return nil, configError(err.Error())
	}
	hreq, err := c.tr.NewRequest(ctx, req.Method, req.Path, req.httpOptions()...)
	if err != nil {
		return nil, requestError(err)
	}

	resp, err := c.tr.Execute(hreq)
	if err != nil {
		return nil, transportError(err)
	}

	body, err := c.classifier.Classify(resp.StatusCode, resp.Body)
	if err != nil {
		withRetryAfter(err, resp)
		c.logger.Debug("openai call rejected", "method", method, "path", path, "status", resp.StatusCode, "err", err)
		return nil, err
	}
	return body, nil
}

// ChatStream streams a chat completion. Deltas are delivered to h as they arrive; the
// result holds the accumulated text and the terminal frame.
func (c *Client) ChatStream(ctx context.Context, opts Options, h sse.Handler) (sse.Result, error) {
	path, body, err := c.modelScoped(opts, "/chat/completions", c.dialect.ChatModel, true)
	if err != nil {
		return sse.Result{}, err
	}
	return c.stream(ctx, path, body, h, sse.ChatDelta)
}

// CompletionStream streams a legacy completion.
func (c *Client) CompletionStream(ctx context.Context, opts Options, h sse.Handler) (sse.Result, error) {
	path, body, err := c.modelScoped(opts, "/completions", c.dialect.CompletionModel, true)
	if err != nil {
		return sse.Result{}, err
	}
	return c.stream(ctx, path, body, h, sse.CompletionDelta)
}

func (c *Client) stream(ctx context.Context, path string, opts Options, h sse.Handler, delta sse.DeltaFunc) (res sse.Result, err error) {
	if v, ok := opts["stream"]; ok && v != true {
		return sse.Result{}, configError(`streaming requires "stream": true`)
	}
	opts["stream"] = true

	req, err := c.builder.Build(http.MethodPost, path, opts)
	if err != nil {
		return sse.Result{}, configError(err.Error())
	}
	hreq, err := c.tr.NewRequest(ctx, req.Method, req.Path,
		append(req.httpOptions(), httpx.WithHeader("Accept", "text/event-stream"))...)
	if err != nil {
		return sse.Result{}, requestError(err)
	}

	start := time.Now()
	dec := sse.NewDecoder(append(append([]sse.Option(nil), c.streamOpts...), sse.WithDeltaFunc(delta))...)
	defer func() {
		c.logger.Debug("openai stream finished",
			"path", path, "state", dec.State(), "frames", res.Frames, "deltas", res.Deltas, "dur", time.Since(start))
		if c.observer != nil {
			c.observer.ObserveStream(string(c.dialect.Kind), res, err, time.Since(start))
		}
	}()

	var (
		ended   bool
		failure error
	)
	resp, terr := c.tr.Stream(hreq, c.classifier.Accepts, func(chunk []byte) bool {
		dec.Feed(chunk)
		done, derr := dec.Drain(h)
		if derr != nil {
			failure = derr
			return false
		}
		ended = done
		return !done
	})
	if resp == nil {
		return sse.Result{}, transportError(terr)
	}
	if !c.classifier.Accepts(resp.StatusCode) {
		_, cerr := c.classifier.Classify(resp.StatusCode, resp.Body)
		withRetryAfter(cerr, resp)
		return sse.Result{}, cerr
	}
	if failure != nil {
		c.logger.Warn("openai stream failed", "path", path, "err", failure)
		return dec.Result(), failure
	}
	if terr != nil && !httpx.IsCanceled(terr) {
		return dec.Result(), transportError(terr)
	}

	// End of input or peer close without the end marker is a normal end.
	if !ended {
		dec.Finish()
		if h.OnDone != nil {
			h.OnDone("")
		}
	}
	return dec.Result(), nil
}

// modelScoped prepares the body and path of a call addressed to a model. With deployments
// the (sanitized) model moves into the path; otherwise a default model is filled in.
func (c *Client) modelScoped(opts Options, suffix, defaultModel string, streamed bool) (string, Options, error) {
	body := opts.clone()
	model, _ := body["model"].(string)

	if !c.dialect.Deployments {
		if model == "" && defaultModel != "" {
			body["model"] = defaultModel
		}
		return suffix, body, nil
	}

	if model == "" {
		model = defaultModel
	}
	if model == "" {
		return "", nil, configError("model is required")
	}
	delete(body, "model")
	if streamed {
		if m := c.dialect.ResolveModel(model); m != model {
			body["model"] = m
		}
	}
	return c.dialect.ModelPath(model, suffix), body, nil
}

func configError(msg string) *llm.Error {
	return &llm.Error{Kind: llm.ErrKindConfiguration, Message: msg}
}

// requestError reports a request that could not be built. Nothing was sent, so only a
// done context counts as a transport failure.
func requestError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transportError(err)
	}
	return &llm.Error{Kind: llm.ErrKindConfiguration, Message: err.Error(), Cause: err}
}

func withRetryAfter(err error, resp *httpx.Response) {
	e, ok := llm.AsError(err)
	if !ok {
		return
	}
	if d, ok := resp.RetryAfter(time.Now()); ok {
		e.RetryAfter = d
	}
}

func transportError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := llm.AsError(err); ok {
		return e
	}
	return &llm.Error{Kind: llm.ErrKindTransport, Message: err.Error(), Cause: err}
}
