package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/menucart/internal/logging"
	"github.com/fyrsmithlabs/menucart/internal/render"
)

// handleEvents streams the cart projection via Server-Sent Events.
//
// The current cart is sent as soon as the stream opens and again after every
// change, whether made through this server or by another process sharing the
// storage:
//
//	GET /api/v1/cart/events
//
//	event: cart
//	data: {"items":[...],"total":"73.00","count":3,"empty":false}
//
//	: heartbeat
func (s *Server) handleEvents(c echo.Context) error {
	if s.syncer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "live updates are disabled")
	}
	ctx := c.Request().Context()
	logger := logging.FromContext(ctx)

	stream := render.NewStream("sse:"+c.Response().Header().Get(echo.HeaderXRequestID), 4)

	// Set SSE headers before Attach renders the first projection.
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	detach, err := s.syncer.Attach(ctx, stream)
	if err != nil {
		return err
	}
	defer detach()
	defer s.metrics.streamOpened(ctx)()
	logger.Debug(ctx, "event stream opened")

	// Heartbeat ticker to prevent proxy timeouts
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case p := <-stream.Updates():
			data, err := json.Marshal(p)
			if err != nil {
				logger.Error(ctx, "encode projection", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Response(), "event: cart\n")
			fmt.Fprintf(c.Response(), "data: %s\n\n", data)
			c.Response().Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()

		case <-s.closing:
			return nil

		case <-ctx.Done():
			// Client disconnected
			logger.Debug(ctx, "event stream closed")
			return nil
		}
	}
}
