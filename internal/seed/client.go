package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client implements Catalog by POSTing programs to a remote server's ingest
// endpoint. Retries up to 3 times with exponential backoff on failure.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: *Client satisfies Catalog.
var _ Catalog = (*Client)(nil)

// NewClient creates a new HTTP catalog client.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// UpsertProgram POSTs one program to the ingest endpoint.
func (c *Client) UpsertProgram(ctx context.Context, id, name string, definition json.RawMessage) error {
	data, err := json.Marshal(map[string]any{
		"id":         id,
		"name":       name,
		"definition": definition,
	})
	if err != nil {
		return fmt.Errorf("marshaling program %s: %w", id, err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.serverURL+"/api/v1/ingest/programs", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("ingest failed (status %d): %s", resp.StatusCode, body)
	}

	return fmt.Errorf("after 3 attempts: %w", lastErr)
}
