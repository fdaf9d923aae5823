package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lgc202/openai-kit/httpx"
	"github.com/lgc202/openai-kit/llm"
	"github.com/lgc202/openai-kit/llm/providers/openai"
	"github.com/lgc202/openai-kit/llm/relay"
	"github.com/lgc202/openai-kit/llm/sse"
	"github.com/lgc202/openai-kit/metrics"
)

func newServeCmd(o *globalOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Relay streamed chat completions to downstream clients",
		Long: `serve exposes:
  POST /v1/chat           non-streamed chat completion, upstream body passed through
  POST /v1/chat/stream    streamed chat completion relayed as text/event-stream
  GET  /metrics           Prometheus metrics
  GET  /healthz

With --config the file is watched and the upstream client is rebuilt on change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgs, err := o.load(o.configFile != "")
			if err != nil {
				return err
			}
			cfg := o.apply(cfgs.Get())
			if listen != "" {
				cfg.Serve.Listen = listen
			}
			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			s := &server{logger: logger, metrics: metrics.New("", reg)}
			if err := s.configure(cfg); err != nil {
				return err
			}
			cfgs.OnChange(func(_, next appConfig) {
				if err := s.configure(o.apply(next)); err != nil {
					logger.Error("keeping previous client", "err", err)
					return
				}
				logger.Info("upstream client reconfigured", "dialect", next.Client.Dialect)
			})

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              cfg.Serve.Listen,
				Handler:           s.routes(reg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("listening", "addr", cfg.Serve.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	return cmd
}

type server struct {
	client  atomic.Pointer[openai.Client]
	logger  *slog.Logger
	metrics *metrics.Collector
}

// configure builds a client for cfg and swaps it in. In-flight calls keep the old one.
func (s *server) configure(cfg appConfig) error {
	opts := []openai.Option{}
	if s.metrics != nil {
		opts = append(opts, openai.WithStreamObserver(s.metrics))
	}
	c, err := newClient(cfg, s.logger, opts...)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		c.HTTP().WithHooks(nil, []httpx.AfterHook{s.metrics.AfterHook()})
	}
	c.HTTP().WithMiddleware(forwardRequestID)
	s.client.Store(c)
	return nil
}

func (s *server) routes(g prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID)

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if g != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(g)))
	}
	v1 := r.Group("/v1")
	v1.POST("/chat", s.chat)
	v1.POST("/chat/stream", s.chatStream)
	return r
}

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// requestID echoes the caller's request id and carries it to the upstream call.
func requestID(c *gin.Context) {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, id))
	}
	c.Next()
}

// forwardRequestID replaces the generated upstream request id with the downstream one.
func forwardRequestID(next http.RoundTripper) http.RoundTripper {
	return httpx.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		id, _ := r.Context().Value(requestIDKey{}).(string)
		if id == "" {
			return next.RoundTrip(r)
		}
		r = r.Clone(r.Context())
		r.Header.Set(requestIDHeader, id)
		return next.RoundTrip(r)
	})
}

func (s *server) chat(c *gin.Context) {
	var opts openai.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}
	body, err := s.client.Load().Chat(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

type deltaEvent struct {
	Content string `json:"content"`
}

func (s *server) chatStream(c *gin.Context) {
	var opts openai.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}
	client := s.client.Load()

	w := relay.NewWriter(c.Writer)
	res, err := relay.Relay(c.Request.Context(), w, eventFrame, func(ctx context.Context, h sse.Handler) (sse.Result, error) {
		return client.ChatStream(ctx, opts, h)
	})
	if err != nil {
		if !w.Started() {
			s.fail(c, err)
			return
		}
		s.logger.Warn("relay ended with error", "err", err, "deltas", res.Deltas)
		_ = w.Send(errorFrame(err))
		return
	}
	_ = w.Send("data: [DONE]\n\n")
}

// eventFrame wraps one delta in a downstream event.
func eventFrame(delta string) string {
	b, _ := json.Marshal(deltaEvent{Content: delta})
	return "data: " + string(b) + "\n\n"
}

func errorFrame(err error) string {
	b, _ := json.Marshal(errorPayload(err))
	return "data: " + string(b) + "\n\n"
}

func (s *server) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if e, ok := llm.AsError(err); ok {
		switch e.Kind {
		case llm.ErrKindConfiguration:
			status = http.StatusBadRequest
		case llm.ErrKindHTTPStatus:
			status = e.HTTPStatus
			if e.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(e.RetryAfter.Round(time.Second)/time.Second)))
			}
		}
	}
	s.logger.Debug("request failed", "status", status, "err", err)
	c.AbortWithStatusJSON(status, errorPayload(err))
}

func errorPayload(err error) gin.H {
	if e, ok := llm.AsError(err); ok {
		code := e.Code
		if code == "" {
			code = string(e.Kind)
		}
		return errorBody(code, e.Message)
	}
	return errorBody("internal", err.Error())
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}
