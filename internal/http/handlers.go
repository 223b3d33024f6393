package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/menucart/internal/cart"
	"github.com/fyrsmithlabs/menucart/internal/cartstore"
	"github.com/fyrsmithlabs/menucart/internal/logging"
	"github.com/fyrsmithlabs/menucart/internal/price"
	"github.com/fyrsmithlabs/menucart/internal/render"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AddItemRequest is the request body for POST /api/v1/cart/items.
type AddItemRequest struct {
	Name string `json:"name"`
	// Price accepts a number or a string such as "25,50".
	Price    any    `json:"price"`
	Image    string `json:"image"`
	Note     string `json:"note"`
	Quantity int    `json:"qty"`
}

// ChangeQuantityRequest is the request body for PATCH /api/v1/cart/items/:index.
type ChangeQuantityRequest struct {
	Delta int `json:"delta"`
}

// CountResponse is the response body for GET /api/v1/cart/count.
type CountResponse struct {
	Count int `json:"count"`
}

// MessageResponse carries a customer-facing message.
type MessageResponse struct {
	Message string `json:"message"`
}

// CheckoutResponse is the response body for POST /api/v1/cart/checkout.
type CheckoutResponse struct {
	*cartstore.Receipt
	Total   string `json:"total"`
	Display string `json:"display"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleMenuPage renders the menu header: the badge and nothing else.
func (s *Server) handleMenuPage(c echo.Context) error {
	var buf bytes.Buffer
	return s.renderPage(c, &buf, render.NewPage(&buf, "Cardápio", render.NewBadge(&buf), nil))
}

// handleCartPage imports an item passed in the query string, then renders the
// badge and the editable listing.
func (s *Server) handleCartPage(c echo.Context) error {
	ctx := c.Request().Context()
	imported, err := s.store.ImportQuery(ctx, c.QueryParams())
	if err != nil {
		logging.FromContext(ctx).Warn(ctx, "query import rejected", zap.Error(err))
	}
	if imported || err != nil {
		// Drop the parameters so a reload does not add the item again.
		return c.Redirect(http.StatusSeeOther, render.StripImportParams(c.Request().URL, cartstore.ImportParams))
	}

	var buf bytes.Buffer
	page := render.NewPage(&buf, "Carrinho",
		render.NewBadge(&buf),
		render.NewListing(&buf, render.WithControls("/cart/items")))
	return s.renderPage(c, &buf, page)
}

// handleOrderPage renders the read-only order summary.
func (s *Server) handleOrderPage(c echo.Context) error {
	var buf bytes.Buffer
	return s.renderPage(c, &buf, render.NewPage(&buf, "Pedido", nil, render.NewListing(&buf)))
}

// handleCartControl applies a listing button and sends the browser back to
// the cart page.
func (s *Server) handleCartControl(c echo.Context) error {
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	switch c.Param("action") {
	case "increment":
		s.store.Increment(ctx, index)
	case "decrement":
		s.store.Decrement(ctx, index)
	case "remove":
		s.store.Remove(ctx, index)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown action")
	}
	return c.Redirect(http.StatusSeeOther, "/cart")
}

func (s *Server) renderPage(c echo.Context, buf *bytes.Buffer, page *render.Page) error {
	ctx := c.Request().Context()
	if err := page.Render(render.Project(s.store.Load(ctx))); err != nil {
		logging.FromContext(ctx).Error(ctx, "render page failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "render failed")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// handleGetCart returns the cart projection.
func (s *Server) handleGetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, render.Project(s.store.Load(c.Request().Context())))
}

// handleCount returns the badge count.
func (s *Server) handleCount(c echo.Context) error {
	return c.JSON(http.StatusOK, CountResponse{Count: cart.ItemCount(s.store.Load(c.Request().Context()))})
}

// handleAddItem merges an item into the cart.
func (s *Server) handleAddItem(c echo.Context) error {
	var req AddItemRequest
	if err := c.Bind(&req); err != nil {
		logging.FromContext(c.Request().Context()).Warn(c.Request().Context(), "invalid add request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity < 0 || req.Quantity > cart.MaxQuantity {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("qty must be between 1 and %d", cart.MaxQuantity))
	}

	item, err := cart.NewLineItem(req.Name, req.Price, req.Image, req.Note)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity > 1 {
		item.Quantity = req.Quantity
	}

	updated, err := s.store.Add(c.Request().Context(), item)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.Project(updated))
}

func (s *Server) handleIncrement(c echo.Context) error {
	return s.changeQuantity(c, 1)
}

func (s *Server) handleDecrement(c echo.Context) error {
	return s.changeQuantity(c, -1)
}

// handleChangeQuantity applies an arbitrary delta.
func (s *Server) handleChangeQuantity(c echo.Context) error {
	var req ChangeQuantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Delta < -cart.MaxQuantity || req.Delta > cart.MaxQuantity {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("delta must be within ±%d", cart.MaxQuantity))
	}
	return s.changeQuantity(c, req.Delta)
}

func (s *Server) changeQuantity(c echo.Context, delta int) error {
	index, err := s.existingIndex(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.Project(s.store.ChangeQuantity(c.Request().Context(), index, delta)))
}

// handleRemoveItem deletes one line.
func (s *Server) handleRemoveItem(c echo.Context) error {
	index, err := s.existingIndex(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, render.Project(s.store.Remove(c.Request().Context(), index)))
}

// handleClearCart empties the cart once the caller confirms.
func (s *Server) handleClearCart(c echo.Context) error {
	if confirmed, _ := strconv.ParseBool(c.QueryParam("confirm")); !confirmed {
		return c.JSON(http.StatusPreconditionRequired, MessageResponse{Message: cartstore.ClearPrompt})
	}
	ctx := c.Request().Context()
	s.store.Clear(ctx)
	return c.JSON(http.StatusOK, render.Project(s.store.Load(ctx)))
}

// handleCheckout finalizes the order.
func (s *Server) handleCheckout(c echo.Context) error {
	receipt, err := s.store.Checkout(c.Request().Context())
	if errors.Is(err, cartstore.ErrEmptyCart) {
		return c.JSON(http.StatusConflict, MessageResponse{Message: cartstore.EmptyCartMessage})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CheckoutResponse{
		Receipt: receipt,
		Total:   price.Format(receipt.Total),
		Display: price.Display(receipt.Total),
	})
}

// indexParam parses the :index path parameter.
func indexParam(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "index must be a non-negative integer")
	}
	return index, nil
}

// existingIndex is indexParam plus a 404 when no line has that index. The
// store itself treats such an index as a no-op; API clients get told.
func (s *Server) existingIndex(c echo.Context) (int, error) {
	index, err := indexParam(c)
	if err != nil {
		return 0, err
	}
	if index >= len(s.store.Load(c.Request().Context())) {
		return 0, echo.NewHTTPError(http.StatusNotFound, "no item at index "+strconv.Itoa(index))
	}
	return index, nil
}
