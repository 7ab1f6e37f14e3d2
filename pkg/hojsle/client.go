// Package hojsle provides a Go SDK for the hojsle-server quote API.
package hojsle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running hojsle-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetQuotes retrieves daily bars for one symbol. Zero start/end times mean
// an unbounded side of the range.
func (c *Client) GetQuotes(ctx context.Context, code string, start, end time.Time) (*QuotesResponse, error) {
	params := url.Values{}
	params.Set("code", code)
	if !start.IsZero() {
		params.Set("start", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		params.Set("end", end.Format("2006-01-02"))
	}

	var resp QuotesResponse
	if err := c.get(ctx, "/api/v1/quotes?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSymbols retrieves the list of symbols present in the store.
func (c *Client) GetSymbols(ctx context.Context) ([]string, error) {
	var resp SymbolsResponse
	if err := c.get(ctx, "/api/v1/symbols", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

// GetDates retrieves the list of collected snapshot dates.
func (c *Client) GetDates(ctx context.Context) ([]string, error) {
	var resp DatesResponse
	if err := c.get(ctx, "/api/v1/dates", &resp); err != nil {
		return nil, err
	}
	return resp.Dates, nil
}

// Health checks server liveness and returns the row count.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/api/v1/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
