package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/platform/binance"
)

// BinanceWSFeed streams miniTicker updates for the configured symbols into
// the pipeline. Reconnects with backoff on disconnect.
type BinanceWSFeed struct {
	wsURL   string
	symbols []string
	onQuote QuoteHandler
	logger  *slog.Logger
	now     func() time.Time
}

// NewBinanceWSFeed creates a feed for the given symbols.
func NewBinanceWSFeed(wsURL string, symbols []string, onQuote QuoteHandler, logger *slog.Logger) *BinanceWSFeed {
	return &BinanceWSFeed{
		wsURL:   wsURL,
		symbols: symbols,
		onQuote: onQuote,
		logger:  logger.With(slog.String("component", "binance_ws_feed")),
		now:     time.Now,
	}
}

// Run connects and streams until ctx is cancelled.
func (f *BinanceWSFeed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("binance ws disconnected, reconnecting",
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

func (f *BinanceWSFeed) runConnection(ctx context.Context) error {
	client := binance.NewWSClient(f.wsURL, f.symbols, func(symbol string, price float64) {
		q := domain.PriceQuote{
			Symbol:     symbol,
			Exchange:   domain.ExchangeBinance,
			Price:      price,
			ObservedAt: f.now().UTC(),
			Transport:  domain.TransportStream,
		}
		if err := f.onQuote(ctx, q); err != nil {
			f.logger.Warn("quote rejected",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	f.logger.Info("binance ws subscribed", slog.Int("symbols", len(f.symbols)))
	return client.Wait(ctx)
}
