// Package relay forwards streamed deltas to a downstream HTTP client as they arrive.
package relay

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/lgc202/openai-kit/llm/sse"
)

// Writer writes text to a downstream response and flushes after every write. The event
// stream headers are set on the first write.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewWriter(w http.ResponseWriter) *Writer {
	fl, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: fl}
}

func (w *Writer) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.w.WriteHeader(http.StatusOK)
}

// Started reports whether headers were sent. After that the status can no longer change.
func (w *Writer) Started() bool { return w.started }

// Send writes text as is and flushes.
func (w *Writer) Send(text string) error {
	w.start()
	if text != "" {
		if _, err := io.WriteString(w.w, text); err != nil {
			return err
		}
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Call is a streamed API call driving h, e.g. a bound (*openai.Client).ChatStream.
type Call func(ctx context.Context, h sse.Handler) (sse.Result, error)

// Relay runs call and writes every forwarded delta to w, in order. onDelta may be nil;
// its return value is what reaches w. The producer and the writer run concurrently: a
// failed downstream write cancels the call, which then ends like a peer close.
func Relay(ctx context.Context, w *Writer, onDelta func(string) string, call Call) (sse.Result, error) {
	var res sse.Result
	err := Pipe(ctx, w, func(ctx context.Context, send func(string)) error {
		var err error
		res, err = call(ctx, sse.Handler{OnDelta: onDelta, Forward: send})
		return err
	})
	return res, err
}

// Pipe connects a producer to w through a buffered channel.
func Pipe(ctx context.Context, w *Writer, produce func(ctx context.Context, send func(string)) error) error {
	g, ctx := errgroup.WithContext(ctx)
	ch := make(chan string, 64)

	g.Go(func() error {
		defer close(ch)
		return produce(ctx, func(s string) {
			select {
			case ch <- s:
			case <-ctx.Done():
			}
		})
	})
	g.Go(func() error {
		for s := range ch {
			if err := w.Send(s); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}
