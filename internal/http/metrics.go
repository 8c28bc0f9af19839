package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/membank/internal/hooks"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/membank/internal/http"

// HTTPMetrics records OTel request metrics for the receiver.
type HTTPMetrics struct {
	logger   *zap.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates HTTPMetrics on mp. A nil mp uses the global
// meter provider.
func NewHTTPMetrics(mp metric.MeterProvider, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := &HTTPMetrics{logger: logger}
	m.init(mp.Meter(httpInstrumentationName))
	return m
}

func (m *HTTPMetrics) init(meter metric.Meter) {
	var err error

	m.requests, err = meter.Int64Counter(
		"membank.http.requests_total",
		metric.WithDescription("Receiver requests by method, route, hook source and status code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"membank.http.request_duration_seconds",
		metric.WithDescription("Receiver request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.inFlight, err = meter.Int64UpDownCounter(
		"membank.http.in_flight",
		metric.WithDescription("Receiver requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create in-flight counter", zap.Error(err))
	}
}

// Middleware returns an Echo middleware that records request metrics.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.String("source", sourceLabel(c.Param("source"))),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return err
		}
	}
}

// routeLabel keeps labels bounded. c.Path() is already the route pattern
// (/api/v1/hooks/:source), so only unmatched requests need care.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

// sourceLabel maps the :source parameter onto the known sources.
func sourceLabel(raw string) string {
	if raw == "" {
		return "none"
	}
	source, err := hooks.ParseSource(raw)
	if err != nil {
		return "unknown"
	}
	return string(source)
}
