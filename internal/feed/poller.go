// Package feed drives quotes from the exchange clients into the scanning
// pipeline, over REST polling and WebSocket streams.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/platform/binance"
	"github.com/ppedziwiatr/nautilus/internal/platform/hyperliquid"
)

// QuoteHandler receives each quote produced by a feed. Validation errors are
// the handler's to report; the feed logs and keeps going.
type QuoteHandler func(ctx context.Context, q domain.PriceQuote) error

// Poller fetches prices from both exchanges over REST at a fixed interval
// and forwards one quote per (exchange, symbol) per tick. One exchange
// failing never blocks the other's quotes.
type Poller struct {
	hl       *hyperliquid.Client
	bn       *binance.Client
	symbols  []string
	interval time.Duration
	onQuote  QuoteHandler
	logger   *slog.Logger
	now      func() time.Time
}

// NewPoller creates a Poller over the two REST clients.
func NewPoller(
	hl *hyperliquid.Client,
	bn *binance.Client,
	symbols []string,
	interval time.Duration,
	onQuote QuoteHandler,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		hl:       hl,
		bn:       bn,
		symbols:  symbols,
		interval: interval,
		onQuote:  onQuote,
		logger:   logger.With(slog.String("component", "rest_poller")),
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.pollHyperliquid(ctx)
	p.pollBinance(ctx)
}

func (p *Poller) pollHyperliquid(ctx context.Context) {
	mids, err := p.hl.AllMids(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "hyperliquid poll failed", slog.String("error", err.Error()))
		return
	}
	observed := p.now().UTC()
	for _, symbol := range p.symbols {
		price, ok := mids[symbol]
		if !ok {
			continue
		}
		p.emit(ctx, domain.PriceQuote{
			Symbol:     symbol,
			Exchange:   domain.ExchangeHyperliquid,
			Price:      price,
			ObservedAt: observed,
			Transport:  domain.TransportREST,
		})
	}
}

func (p *Poller) pollBinance(ctx context.Context) {
	prices, err := p.bn.Prices(ctx, p.symbols)
	if err != nil {
		p.logger.WarnContext(ctx, "binance poll failed", slog.String("error", err.Error()))
		return
	}
	observed := p.now().UTC()
	for _, symbol := range p.symbols {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		p.emit(ctx, domain.PriceQuote{
			Symbol:     symbol,
			Exchange:   domain.ExchangeBinance,
			Price:      price,
			ObservedAt: observed,
			Transport:  domain.TransportREST,
		})
	}
}

func (p *Poller) emit(ctx context.Context, q domain.PriceQuote) {
	if err := p.onQuote(ctx, q); err != nil {
		p.logger.WarnContext(ctx, "quote rejected",
			slog.String("symbol", q.Symbol),
			slog.String("exchange", string(q.Exchange)),
			slog.String("error", err.Error()),
		)
	}
}
