// Package http serves the cart pages, the JSON cart API and the live update
// stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/menucart/internal/cartstore"
	"github.com/fyrsmithlabs/menucart/internal/logging"
	"github.com/fyrsmithlabs/menucart/internal/render"
)

// Server provides HTTP endpoints for one cart.
type Server struct {
	echo    *echo.Echo
	store   *cartstore.Store
	syncer  *render.Syncer
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics

	// closing is closed on shutdown so open event streams return.
	closing   chan struct{}
	closeOnce sync.Once
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	ShutdownTimeout   time.Duration
	HeartbeatInterval time.Duration

	// RateLimit is requests per second per client on /api. Zero disables it.
	RateLimit float64
	RateBurst int

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// MeterProvider records HTTP metrics. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewServer creates a new HTTP server. syncer may be nil, in which case the
// event stream answers 503.
func NewServer(store *cartstore.Store, syncer *render.Syncer, logger *logging.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 8080,
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		store:   store,
		syncer:  syncer,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(cfg.MeterProvider, logger.Underlying()),
		closing: make(chan struct{}),
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.contextMiddleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	})
	e.Use(s.metrics.MetricsMiddleware())

	s.registerRoutes()

	return s, nil
}

// contextMiddleware carries the request id, cart key and logger in the
// request context.
func (s *Server) contextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		ctx = logging.WithCartKey(ctx, s.store.Keys().Canonical)
		ctx = logging.WithLogger(ctx, s.logger)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	// Pages
	s.echo.GET("/", s.handleMenuPage)
	s.echo.GET("/cart", s.handleCartPage)
	s.echo.POST("/cart/items/:index/:action", s.handleCartControl)
	s.echo.GET("/pedido", s.handleOrderPage)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	if s.config.RateLimit > 0 {
		burst := s.config.RateBurst
		if burst <= 0 {
			burst = int(2 * s.config.RateLimit)
		}
		v1.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.RateLimit),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}
	v1.GET("/cart", s.handleGetCart)
	v1.DELETE("/cart", s.handleClearCart)
	v1.GET("/cart/count", s.handleCount)
	v1.GET("/cart/events", s.handleEvents)
	v1.POST("/cart/items", s.handleAddItem)
	v1.POST("/cart/items/:index/increment", s.handleIncrement)
	v1.POST("/cart/items/:index/decrement", s.handleDecrement)
	v1.PATCH("/cart/items/:index", s.handleChangeQuantity)
	v1.DELETE("/cart/items/:index", s.handleRemoveItem)
	v1.POST("/cart/checkout", s.handleCheckout)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully and
// returns http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "starting HTTP server", zap.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		s.logger.Info(ctx, "shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown ends open event streams and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.echo.Shutdown(ctx)
}
