package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lgc202/openai-kit/llm/sse"
)

func TestRelay_WritesForwardedDeltas(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec)

	call := func(ctx context.Context, h sse.Handler) (sse.Result, error) {
		d := sse.NewDecoder()
		d.Feed([]byte(`data: {"choices":[{"delta":{"content":"a"}}]}` + "\n\n"))
		d.Feed([]byte(`data: {"choices":[{"delta":{"content":"b"}}]}` + "\n\ndata: [DONE]\n\n"))
		if _, err := d.Drain(h); err != nil {
			return sse.Result{}, err
		}
		return d.Result(), nil
	}

	res, err := Relay(context.Background(), w, func(s string) string { return "data: " + s + "\n\n" }, call)
	if err != nil {
		t.Fatalf("Relay() err=%v", err)
	}
	if res.Text != "ab" {
		t.Fatalf("text=%q", res.Text)
	}
	if got := rec.Body.String(); got != "data: a\n\ndata: b\n\n" {
		t.Fatalf("body=%q", got)
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" || rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Fatalf("headers=%v", rec.Header())
	}
	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Fatalf("headers=%v", rec.Header())
	}
	if !rec.Flushed {
		t.Fatalf("expected flush")
	}
}

type failingWriter struct {
	header http.Header
	writes int
}

func (f *failingWriter) Header() http.Header { return f.header }

func (f *failingWriter) WriteHeader(int) {}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("client went away")
}

func TestPipe_WriteFailureCancelsProducer(t *testing.T) {
	fw := &failingWriter{header: make(http.Header)}
	w := NewWriter(fw)

	canceled := make(chan struct{})
	err := Pipe(context.Background(), w, func(ctx context.Context, send func(string)) error {
		for i := 0; i < 1000; i++ {
			send("x")
		}
		<-ctx.Done()
		close(canceled)
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Fatalf("err=%v", err)
	}
	select {
	case <-canceled:
	default:
		t.Fatalf("producer context was not canceled")
	}
	if fw.writes != 1 {
		t.Fatalf("writes=%d", fw.writes)
	}
}

func TestPipe_ProducerError(t *testing.T) {
	rec := httptest.NewRecorder()
	boom := errors.New("upstream failed")
	err := Pipe(context.Background(), NewWriter(rec), func(ctx context.Context, send func(string)) error {
		send("partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if rec.Body.String() != "partial" {
		t.Fatalf("body=%q", rec.Body.String())
	}
}
