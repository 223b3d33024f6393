package http

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/menucart/internal/http"

// HTTPMetrics records request and event stream instruments. Instruments that
// fail to register are replaced by no-ops, so recording never checks for nil.
type HTTPMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	bodySize    metric.Int64Histogram
	inFlight    metric.Int64UpDownCounter
	openStreams metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the instruments on provider, or on the global
// provider when nil.
func NewHTTPMetrics(provider metric.MeterProvider, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(httpInstrumentationName)
	fallback := noop.Meter{}

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{request}"))
		if err != nil {
			errs = append(errs, err)
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}
	gauge := func(name, desc, unit string) metric.Int64UpDownCounter {
		g, err := meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			errs = append(errs, err)
			g, _ = fallback.Int64UpDownCounter(name)
		}
		return g
	}

	m := &HTTPMetrics{
		requests:    counter("menucart.http.requests_total", "HTTP requests by method, route template and status."),
		inFlight:    gauge("menucart.http.active_requests", "Requests being served, open event streams included.", "{request}"),
		openStreams: gauge("menucart.http.sse_streams", "Connected cart event streams.", "{stream}"),
	}

	var err error
	m.duration, err = meter.Float64Histogram(
		"menucart.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route template and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		errs = append(errs, err)
		m.duration, _ = fallback.Float64Histogram("duration")
	}
	m.bodySize, err = meter.Int64Histogram(
		"menucart.http.response_size_bytes",
		metric.WithDescription("Response body size."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000),
	)
	if err != nil {
		errs = append(errs, err)
		m.bodySize, _ = fallback.Int64Histogram("size")
	}

	if err := errors.Join(errs...); err != nil {
		logger.Warn("some http instruments are disabled", zap.Error(err))
	}
	return m
}

// streamOpened counts a connected event stream until the returned func runs.
func (m *HTTPMetrics) streamOpened(ctx context.Context) func() {
	m.openStreams.Add(ctx, 1)
	return func() { m.openStreams.Add(context.WithoutCancel(ctx), -1) }
}

// MetricsMiddleware records every request under its route template.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := context.WithoutCancel(c.Request().Context())

			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)

			// Let echo's error handler write the response so the final status
			// is what gets recorded.
			if err := next(c); err != nil {
				c.Error(err)
			}

			res := c.Response()
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", res.Status),
			)
			m.requests.Add(ctx, 1, attrs)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.bodySize.Record(ctx, res.Size, attrs)
			return nil
		}
	}
}

// normalizePath keeps the endpoint label bounded. c.Path() is already the
// route template (/api/v1/cart/items/:index), so only unmatched requests need
// folding into one label.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
