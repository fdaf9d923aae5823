// Package metrics exports Prometheus collectors for API calls and streams.
//
// Metrics:
//   - <ns>_http_requests_total: round trips by method, status class and outcome
//   - <ns>_http_request_duration_seconds: round-trip latency up to response headers
//   - <ns>_stream_calls_total: streamed calls by dialect and result (done, kind of failure)
//   - <ns>_stream_deltas_total: content deltas received
//   - <ns>_stream_duration_seconds: duration of whole streamed calls
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lgc202/openai-kit/httpx"
	"github.com/lgc202/openai-kit/llm"
	"github.com/lgc202/openai-kit/llm/sse"
)

const DefaultNamespace = "openai_client"

type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	streams        *prometheus.CounterVec
	deltas         *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. An empty namespace means
// DefaultNamespace.
func New(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c := &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP round trips",
			},
			[]string{"method", "code", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP round-trip latency until response headers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		streams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_calls_total",
				Help:      "Total number of streamed calls by result",
			},
			[]string{"dialect", "result"},
		),
		deltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_deltas_total",
				Help:      "Total number of content deltas received",
			},
			[]string{"dialect"},
		),
		streamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stream_duration_seconds",
				Help:      "Duration of streamed calls",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"dialect"},
		),
	}
	reg.MustRegister(c.requests, c.latency, c.streams, c.deltas, c.streamDuration)
	return c
}

// AfterHook records every round trip, see (*httpx.Client).WithHooks.
func (c *Collector) AfterHook() httpx.AfterHook {
	return func(req *http.Request, resp *http.Response, err error, dur time.Duration) {
		code, outcome := "none", "transport_error"
		if err == nil && resp != nil {
			code = strconv.Itoa(resp.StatusCode/100) + "xx"
			outcome = "response"
		}
		c.requests.WithLabelValues(req.Method, code, outcome).Inc()
		c.latency.WithLabelValues(req.Method).Observe(dur.Seconds())
	}
}

// ObserveStream implements openai.StreamObserver.
func (c *Collector) ObserveStream(dialect string, res sse.Result, err error, dur time.Duration) {
	result := "done"
	if err != nil {
		result = "error"
		if e, ok := llm.AsError(err); ok {
			result = string(e.Kind)
		}
	}
	c.streams.WithLabelValues(dialect, result).Inc()
	c.deltas.WithLabelValues(dialect).Add(float64(res.Deltas))
	c.streamDuration.WithLabelValues(dialect).Observe(dur.Seconds())
}
