package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/menucart/internal/cartstore"
	"github.com/fyrsmithlabs/menucart/internal/render"
)

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// AddItemRequest matches internal/http AddItemRequest
type AddItemRequest struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Image    string `json:"image,omitempty"`
	Note     string `json:"note,omitempty"`
	Quantity int    `json:"qty,omitempty"`
}

// CheckoutResponse matches the fields of internal/http CheckoutResponse the
// CLI prints.
type CheckoutResponse struct {
	ID        string `json:"id"`
	Display   string `json:"display"`
	ItemCount int    `json:"item_count"`
	Message   string `json:"message"`
	Redirect  string `json:"redirect"`
}

func newShowCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p render.Projection
			if err := c.do(http.MethodGet, "/api/v1/cart", nil, &p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCart(p))
			return nil
		},
	}
}

func newAddCmd(c *client) *cobra.Command {
	var req AddItemRequest
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the cart",
		Long: `Add an item to the cart. An item with the same name and price as an
existing line increases that line's quantity instead.

Examples:
  cartctl add --name "Tacacá" --price 25
  cartctl add --name "Açaí" --price "12,50" --qty 2 --note "sem açúcar"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(req.Name) == "" {
				return errors.New("--name is required")
			}
			var p render.Projection
			if err := c.do(http.MethodPost, "/api/v1/cart/items", req, &p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCart(p))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "item name")
	cmd.Flags().StringVar(&req.Price, "price", "0", "unit price, e.g. 25 or 25,50")
	cmd.Flags().StringVar(&req.Image, "image", "", "image URL")
	cmd.Flags().StringVar(&req.Note, "note", "", "note for the kitchen")
	cmd.Flags().IntVar(&req.Quantity, "qty", 1, "quantity")
	return cmd
}

func newQuantityCmd(c *client, use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " INDEX",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			var p render.Projection
			if err := c.do(http.MethodPost, fmt.Sprintf("/api/v1/cart/items/%d/%s", index, action), nil, &p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCart(p))
			return nil
		},
	}
}

func newRemoveCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:     "rm INDEX",
		Aliases: []string{"remove"},
		Short:   "Remove a line from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			var p render.Projection
			if err := c.do(http.MethodDelete, fmt.Sprintf("/api/v1/cart/items/%d", index), nil, &p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCart(p))
			return nil
		},
	}
}

func newClearCmd(c *client) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s [s/N] ", cartstore.ClearPrompt)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if !confirmed(answer) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelado.")
					return nil
				}
			}
			var p render.Projection
			if err := c.do(http.MethodDelete, "/api/v1/cart?confirm=true", nil, &p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCart(p))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newCheckoutCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place the order and empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp CheckoutResponse
			err := c.do(http.MethodPost, "/api/v1/cart/checkout", nil, &resp)
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render(apiErr.Message))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatReceipt(resp))
			return nil
		},
	}
}

func newWatchCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the cart summary every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.watch(ctx, func(p render.Projection) {
				fmt.Fprintln(cmd.OutOrStdout(), formatSummary(p))
			})
		},
	}
}

// watch reads the event stream until ctx ends or the server closes it.
func (c *client) watch(ctx context.Context, fn func(render.Projection)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/v1/cart/events", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// The stream outlives any request timeout.
	resp, err := (&http.Client{Transport: c.http.Transport}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &apiError{Status: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var p render.Projection
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		fn(p)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newHealthCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check menucart server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp HealthResponse
			if err := c.do(http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", resp.Status)
			return nil
		},
	}
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid index %q: must be a non-negative integer", s)
	}
	return index, nil
}

// confirmed accepts Portuguese and English yes.
func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}
