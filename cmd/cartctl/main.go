// Package main implements the cartctl CLI for operating a menucart server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// client talks to the menucart JSON API.
type client struct {
	serverURL string
	http      *http.Client
}

func newRootCmd() *cobra.Command {
	c := &client{http: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:   "cartctl",
		Short: "CLI for menucart cart operations",
		Long: `cartctl is a command-line interface for the menucart HTTP server.
It shows the cart, edits its lines, clears it and places the order.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&c.serverURL, "server", "http://127.0.0.1:8080", "menucart server URL")

	root.AddCommand(
		newShowCmd(c),
		newAddCmd(c),
		newQuantityCmd(c, "inc", "Increase the quantity of a line", "increment"),
		newQuantityCmd(c, "dec", "Decrease the quantity of a line (never below one)", "decrement"),
		newRemoveCmd(c),
		newClearCmd(c),
		newCheckoutCmd(c),
		newWatchCmd(c),
		newHealthCmd(c),
	)
	return root
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// do sends a request and decodes a JSON answer into out, which may be nil.
func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.serverURL + path
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &msg) != nil || msg.Message == "" {
			msg.Message = string(bytes.TrimSpace(raw))
		}
		return &apiError{Status: resp.StatusCode, Message: msg.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
