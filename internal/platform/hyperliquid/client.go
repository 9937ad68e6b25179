// Package hyperliquid provides REST and WebSocket clients for the
// Hyperliquid public market-data API.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client is the REST client for the Hyperliquid info API. All market-data
// requests go through the single POST /info endpoint, distinguished by the
// "type" field of the request body.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an info API client.
//
// baseURL is the API root, e.g. "https://api.hyperliquid.xyz".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AllMids returns the current mid price for every listed coin, keyed by the
// exchange's coin name (e.g. "BTC").
func (c *Client) AllMids(ctx context.Context) (map[string]float64, error) {
	body, err := c.doInfo(ctx, map[string]string{"type": "allMids"})
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: all mids: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode all mids: %w", err)
	}

	mids := make(map[string]float64, len(raw))
	for coin, s := range raw {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("hyperliquid: parse mid %s=%q: %w", coin, s, err)
		}
		mids[coin] = price
	}
	return mids, nil
}

func (c *Client) doInfo(ctx context.Context, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
