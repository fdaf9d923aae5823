package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lgc202/openai-kit/llm/providers/openai"
	"github.com/lgc202/openai-kit/metrics"
)

func newTestServer(t *testing.T, upstream http.HandlerFunc) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	reg := prometheus.NewRegistry()
	s := &server{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.New("test", reg),
	}
	if err := s.configure(appConfig{Client: openai.Settings{APIKey: "k", BaseURL: up.URL}}); err != nil {
		t.Fatalf("configure() err=%v", err)
	}
	return s, s.routes(reg)
}

func TestServer_ChatStreamRelaysDeltas(t *testing.T) {
	_, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"Hi"}}]}`+"\n\n"+
			`data: {"choices":[{"delta":{"content":" there"}}]}`+"\n\n"+"data: [DONE]\n\n")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	want := `data: {"content":"Hi"}` + "\n\n" + `data: {"content":" there"}` + "\n\n" + "data: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Fatalf("body=%q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
}

func TestServer_ChatStreamUpstreamRejects(t *testing.T) {
	_, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"type":"invalid_api_key","message":"bad key"}}`)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"code":"invalid_api_key"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestServer_ChatStreamFailsMidway(t *testing.T) {
	_, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"A"}}]}`+"\n\n"+"data: [continue]\n\n")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.HasPrefix(body, `data: {"content":"A"}`) {
		t.Fatalf("body=%q", body)
	}
	if !strings.Contains(body, `"code":"stream_protocol"`) || strings.Contains(body, "[DONE]") {
		t.Fatalf("body=%q", body)
	}
}

func TestServer_ChatPassThroughAndBadInput(t *testing.T) {
	_, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"c1"}`)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"id":"c1"}` {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("stream flag on /v1/chat: status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status=%d", rec.Code)
	}
}

func TestServer_MetricsAndReconfigure(t *testing.T) {
	s, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `test_stream_calls_total{dialect="openai",result="done"} 1`) {
		t.Fatalf("metrics=%s", rec.Body.String())
	}

	before := s.client.Load()
	if err := s.configure(appConfig{Client: openai.Settings{Dialect: "bogus"}}); err == nil {
		t.Fatalf("expected error for bad dialect")
	}
	if s.client.Load() != before {
		t.Fatalf("failed reconfigure replaced the client")
	}
	if err := s.configure(appConfig{Client: openai.Settings{Dialect: "azure", Resource: "acme"}}); err != nil {
		t.Fatalf("configure() err=%v", err)
	}
	if s.client.Load().Dialect().Kind != openai.DialectAzure {
		t.Fatalf("client not swapped")
	}
}

func TestServer_ForwardsRequestIDUpstream(t *testing.T) {
	seen := make(chan string, 2)
	_, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("X-Request-ID")
		_, _ = io.WriteString(w, `{"id":"c1"}`)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(rec, req)

	if got := <-seen; got != "abc-123" {
		t.Fatalf("upstream request id=%q", got)
	}
	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("response request id=%q", rec.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)
	if got := <-seen; got == "" || got == "abc-123" {
		t.Fatalf("generated request id=%q", got)
	}
}

func TestServer_PassesRetryAfterDownstream(t *testing.T) {
	_, r := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"type":"rate_limit_exceeded","message":"slow"}}`)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "3" {
		t.Fatalf("status=%d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
}
