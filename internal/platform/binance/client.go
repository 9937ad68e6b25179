// Package binance provides REST and WebSocket clients for the Binance spot
// public market-data API. The scanner's symbol universe uses bare coin names
// (e.g. "BTC"); this package maps them onto Binance's USDT pairs.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// quoteAsset is the quote side of every pair the scanner watches.
const quoteAsset = "USDT"

// PairFor maps a coin name to its Binance spot pair, e.g. "BTC" -> "BTCUSDT".
func PairFor(symbol string) string {
	return strings.ToUpper(symbol) + quoteAsset
}

// SymbolFor maps a Binance pair back to a coin name, e.g. "BTCUSDT" -> "BTC".
// The second return is false when the pair is not a USDT pair.
func SymbolFor(pair string) (string, bool) {
	p := strings.ToUpper(pair)
	if !strings.HasSuffix(p, quoteAsset) || len(p) == len(quoteAsset) {
		return "", false
	}
	return strings.TrimSuffix(p, quoteAsset), true
}

// Client is the REST client for the Binance spot API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a spot API client.
//
// baseURL is the API root, e.g. "https://api.binance.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Prices fetches the latest price for the given coins in one batched
// /api/v3/ticker/price call and returns them keyed by coin name.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	pairs := make([]string, 0, len(symbols))
	for _, s := range symbols {
		pairs = append(pairs, PairFor(s))
	}
	encoded, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("binance: encode symbols: %w", err)
	}

	params := url.Values{}
	params.Set("symbols", string(encoded))

	body, err := c.doGet(ctx, "/api/v3/ticker/price?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("binance: ticker price: %w", err)
	}

	var tickers []tickerPrice
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("binance: decode ticker price: %w", err)
	}

	prices := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		symbol, ok := SymbolFor(t.Symbol)
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("binance: parse price %s=%q: %w", t.Symbol, t.Price, err)
		}
		prices[symbol] = price
	}
	return prices, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

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
