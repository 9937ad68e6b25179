package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/platform/hyperliquid"
)

// reconnectDelay is the base delay before a feed reconnects.
const reconnectDelay = 2 * time.Second

// maxReconnectDelay caps the exponential backoff.
const maxReconnectDelay = 60 * time.Second

// HyperliquidWSFeed streams allMids ticks into the pipeline, filtering down
// to the configured symbol universe. Reconnects with backoff on disconnect.
type HyperliquidWSFeed struct {
	wsURL   string
	symbols map[string]struct{}
	onQuote QuoteHandler
	logger  *slog.Logger
	now     func() time.Time
}

// NewHyperliquidWSFeed creates a feed for the given symbols.
func NewHyperliquidWSFeed(wsURL string, symbols []string, onQuote QuoteHandler, logger *slog.Logger) *HyperliquidWSFeed {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &HyperliquidWSFeed{
		wsURL:   wsURL,
		symbols: set,
		onQuote: onQuote,
		logger:  logger.With(slog.String("component", "hyperliquid_ws_feed")),
		now:     time.Now,
	}
}

// Run connects and streams until ctx is cancelled.
func (f *HyperliquidWSFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("hyperliquid ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *HyperliquidWSFeed) runConnection(ctx context.Context) error {
	client := hyperliquid.NewWSClient(f.wsURL, func(mids map[string]float64) {
		observed := f.now().UTC()
		for symbol, price := range mids {
			if _, ok := f.symbols[symbol]; !ok {
				continue
			}
			q := domain.PriceQuote{
				Symbol:     symbol,
				Exchange:   domain.ExchangeHyperliquid,
				Price:      price,
				ObservedAt: observed,
				Transport:  domain.TransportStream,
			}
			if err := f.onQuote(ctx, q); err != nil {
				f.logger.Warn("quote rejected",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	f.logger.Info("hyperliquid ws subscribed", slog.Int("symbols", len(f.symbols)))
	return client.Wait(ctx)
}
