// Package http receives hook events over HTTP for assistants that deliver
// them as webhooks.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/membank/internal/hooks"
	"github.com/fyrsmithlabs/membank/internal/logging"
)

// MaxBodyBytes caps the size of a hook payload.
const MaxBodyBytes = 1 << 20

// limiterTTL bounds how long per-IP limiters are kept before the map is reset.
const limiterTTL = time.Hour

// HookHandler processes one hook event. *hooks.Handler implements it.
type HookHandler interface {
	Handle(ctx context.Context, raw []byte, opts hooks.Options) hooks.Result
}

// Server provides HTTP endpoints for membank.
type Server struct {
	echo    *echo.Echo
	hooks   HookHandler
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics

	// handleMu serializes hook handling; the state store and vault are
	// not safe for concurrent runs.
	handleMu sync.Mutex

	limiterMu   sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimit is the sustained requests per second allowed per client IP.
	RateLimit float64
	RateBurst int

	// MeterProvider receives the OTel request metrics; nil uses the global one.
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns the server defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:      "localhost",
		Port:      9191,
		RateLimit: 1,
		RateBurst: 10,
	}
}

// NewServer creates a new HTTP server.
func NewServer(handler HookHandler, logger *zap.Logger, cfg *Config) (*Server, error) {
	if handler == nil {
		return nil, fmt.Errorf("hook handler cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RateLimit <= 0 || cfg.RateBurst <= 0 {
		return nil, fmt.Errorf("rate limit and burst must be positive")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		hooks:   handler,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(cfg.MeterProvider, logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/hooks/:source", s.handleHook)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleHook runs one webhook-delivered event through the hook handler.
func (s *Server) handleHook(c echo.Context) error {
	req := c.Request()
	ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
	start := time.Now()

	clientIP := c.RealIP()
	if !s.limiter(clientIP).Allow() {
		s.logger.Warn("rate limit exceeded", zap.String("ip", clientIP))
		HookRequestsTotal.WithLabelValues(c.Param("source"), "rate_limited").Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	source, err := hooks.ParseSource(c.Param("source"))
	if err != nil {
		HookRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HookRequestsTotal.WithLabelValues(string(source), "rejected").Inc()
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	s.handleMu.Lock()
	res := s.hooks.Handle(ctx, raw, hooks.Options{
		Source:  source,
		Headers: req.Header,
		Webhook: true,
	})
	s.handleMu.Unlock()

	HookRequestsTotal.WithLabelValues(string(source), string(res.Status)).Inc()
	HookDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())

	return c.JSON(statusCode(res), HookResponse{
		Status:   string(res.Status),
		Reason:   res.Reason,
		NotePath: res.NotePath,
		TurnID:   res.TurnID,
	})
}

// statusCode maps a hook result to an HTTP status. Skipped events are a
// normal outcome; only rejected input and failures are errors.
func statusCode(res hooks.Result) int {
	switch {
	case res.Status == hooks.StatusRecorded:
		return http.StatusOK
	case errors.Is(res.Err, hooks.ErrSignatureRejected):
		return http.StatusUnauthorized
	case errors.Is(res.Err, hooks.ErrMalformedPayload):
		return http.StatusBadRequest
	case res.Status == hooks.StatusFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// limiter returns the rate limiter for ip.
func (s *Server) limiter(ip string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	if s.limiters == nil || time.Since(s.lastCleanup) > limiterTTL {
		s.limiters = make(map[string]*rate.Limiter)
		s.lastCleanup = time.Now()
	}

	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.config.RateLimit), s.config.RateBurst)
		s.limiters[ip] = l
	}
	return l
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
