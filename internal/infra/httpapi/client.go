package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pixel_pets/internal/domain/reminder"
)

// Client talks to a running server's command API. It satisfies
// CommandExecutor, so the CLI and the server share one command path.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Execute posts cmd and decodes the result. A result with Success false is
// returned without error; transport and decoding problems are errors.
func (c *Client) Execute(ctx context.Context, cmd reminder.Command) (reminder.Result, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return reminder.Result{}, fmt.Errorf("encode command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/commands", bytes.NewReader(body))
	if err != nil {
		return reminder.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return reminder.Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var res reminder.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return reminder.Result{}, fmt.Errorf("invalid response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode >= 500 {
		return res, fmt.Errorf("server error %s: %s", resp.Status, res.Error)
	}
	return res, nil
}
