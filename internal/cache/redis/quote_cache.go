package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// quoteTTL bounds how long a mirrored quote survives without refresh, so a
// dead feed never leaves a permanently fresh-looking price behind.
const quoteTTL = 30 * time.Second

// QuoteCache mirrors the freshest quote per (exchange, symbol) into Redis as
// a hash at "quote:{exchange}:{symbol}" with fields "price", "ts" (Unix
// millisecond timestamp), and "transport". The in-process ledger stays the
// source of truth for detection; the mirror exists for external consumers.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(exchange domain.ExchangeID, symbol string) string {
	return fmt.Sprintf("quote:%s:%s", exchange, symbol)
}

// SetQuote stores the latest quote for an (exchange, symbol) pair.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.PriceQuote) error {
	key := quoteKey(q.Exchange, q.Symbol)
	fields := map[string]interface{}{
		"price":     strconv.FormatFloat(q.Price, 'f', -1, 64),
		"ts":        strconv.FormatInt(q.ObservedAt.UnixMilli(), 10),
		"transport": string(q.Transport),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for an (exchange, symbol) pair.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, exchange domain.ExchangeID, symbol string) (domain.PriceQuote, error) {
	key := quoteKey(exchange, symbol)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.PriceQuote{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse price %s: %w", key, err)
	}
	tsMs, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse ts %s: %w", key, err)
	}

	return domain.PriceQuote{
		Symbol:     symbol,
		Exchange:   exchange,
		Price:      price,
		ObservedAt: time.UnixMilli(tsMs).UTC(),
		Transport:  domain.Transport(vals["transport"]),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
