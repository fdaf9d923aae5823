package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lgc202/openai-kit/llm"
	"github.com/lgc202/openai-kit/llm/sse"
)

func TestCollector_AfterHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New("test", reg)
	hook := c.AfterHook()

	req, _ := http.NewRequest(http.MethodPost, "https://example.test/v1/chat/completions", nil)
	hook(req, &http.Response{StatusCode: 200}, nil, 10*time.Millisecond)
	hook(req, &http.Response{StatusCode: 429}, nil, 10*time.Millisecond)
	hook(req, nil, errors.New("dial"), time.Millisecond)

	if got := testutil.ToFloat64(c.requests.WithLabelValues("POST", "2xx", "response")); got != 1 {
		t.Fatalf("2xx=%v", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("POST", "4xx", "response")); got != 1 {
		t.Fatalf("4xx=%v", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("POST", "none", "transport_error")); got != 1 {
		t.Fatalf("transport=%v", got)
	}
	if n := testutil.CollectAndCount(c.latency); n != 1 {
		t.Fatalf("latency series=%d", n)
	}
}

func TestCollector_ObserveStream(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New("", reg)

	c.ObserveStream("openai", sse.Result{Text: "hi", Deltas: 3}, nil, time.Second)
	c.ObserveStream("azure", sse.Result{Deltas: 1}, &llm.Error{Kind: llm.ErrKindStreamDecode}, time.Second)
	c.ObserveStream("azure", sse.Result{}, errors.New("other"), time.Second)

	if got := testutil.ToFloat64(c.streams.WithLabelValues("openai", "done")); got != 1 {
		t.Fatalf("done=%v", got)
	}
	if got := testutil.ToFloat64(c.streams.WithLabelValues("azure", "stream_decode")); got != 1 {
		t.Fatalf("stream_decode=%v", got)
	}
	if got := testutil.ToFloat64(c.streams.WithLabelValues("azure", "error")); got != 1 {
		t.Fatalf("error=%v", got)
	}
	if got := testutil.ToFloat64(c.deltas.WithLabelValues("openai")); got != 3 {
		t.Fatalf("deltas=%v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() err=%v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == DefaultNamespace+"_stream_calls_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("stream_calls_total not registered")
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New("test", reg)
	c.ObserveStream("openai", sse.Result{Deltas: 2}, nil, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_stream_deltas_total{dialect="openai"} 2`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
}
