package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ppedziwiatr/nautilus/internal/cache/redis"
	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/feed"
	"github.com/ppedziwiatr/nautilus/internal/ledger"
	"github.com/ppedziwiatr/nautilus/internal/platform/binance"
	"github.com/ppedziwiatr/nautilus/internal/platform/hyperliquid"
	"github.com/ppedziwiatr/nautilus/internal/service"
)

// ScanMode runs the full pipeline: REST poller plus, when enabled, one
// websocket feed per exchange, all driving the scanner until shutdown.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode",
		slog.Any("symbols", a.cfg.Scanner.Symbols),
		slog.Float64("threshold_pct", a.cfg.Scanner.ThresholdPct),
		slog.Bool("streams", a.cfg.Scanner.Streams),
	)

	led := ledger.New()
	scanner, err := service.NewScanner(
		service.ScannerConfig{
			Symbols:        a.cfg.Scanner.Symbols,
			ThresholdPct:   a.cfg.Scanner.ThresholdPct,
			MaxQuoteAge:    a.cfg.Scanner.MaxQuoteAge.Duration,
			DebounceWindow: a.cfg.Scanner.DebounceWindow.Duration,
			ExchangeA:      domain.ExchangeHyperliquid,
			ExchangeB:      domain.ExchangeBinance,
		},
		led, deps.Store, deps.QuoteCache, deps.SignalBus, a.logger,
	)
	if err != nil {
		return fmt.Errorf("app: build scanner: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	poller := feed.NewPoller(
		hyperliquid.NewClient(a.cfg.ExchangeA.RestURL),
		binance.NewClient(a.cfg.ExchangeB.RestURL),
		a.cfg.Scanner.Symbols,
		a.cfg.Scanner.PollInterval.Duration,
		scanner.OnQuote,
		a.logger,
	)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	if a.cfg.Scanner.Streams {
		hlFeed := feed.NewHyperliquidWSFeed(a.cfg.ExchangeA.WsURL, a.cfg.Scanner.Symbols, scanner.OnQuote, a.logger)
		g.Go(func() error {
			return hlFeed.Run(ctx)
		})

		bnFeed := feed.NewBinanceWSFeed(a.cfg.ExchangeB.WsURL, a.cfg.Scanner.Symbols, scanner.OnQuote, a.logger)
		g.Go(func() error {
			return bnFeed.Run(ctx)
		})
	}

	return g.Wait()
}

// StatsMode prints the running aggregate as JSON and exits.
func (a *App) StatsMode(ctx context.Context, deps *Dependencies) error {
	qs := service.NewQueryService(deps.Store, deps.Exporter, a.logger)

	stats, err := qs.Stats(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.logger.InfoContext(ctx, "no opportunities recorded yet")
			return nil
		}
		return fmt.Errorf("app: stats: %w", err)
	}
	return printJSON(stats)
}

// RecentMode prints the most recent records as JSON and exits.
func (a *App) RecentMode(ctx context.Context, deps *Dependencies) error {
	qs := service.NewQueryService(deps.Store, deps.Exporter, a.logger)

	limit := a.RecentLimit
	if limit == 0 {
		limit = 20
	}
	recs, err := qs.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("app: recent: %w", err)
	}
	return printJSON(recs)
}

// ExportMode uploads records as JSONL to blob storage and exits.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	qs := service.NewQueryService(deps.Store, deps.Exporter, a.logger)

	path, count, err := qs.Export(ctx, a.ExportSymbol, a.ExportLimit)
	if err != nil {
		return fmt.Errorf("app: export: %w", err)
	}
	if count == 0 {
		a.logger.InfoContext(ctx, "nothing to export")
		return nil
	}
	a.logger.InfoContext(ctx, "exported records",
		slog.String("path", path),
		slog.Int("count", count),
	)
	return nil
}

// CleanupMode deletes records beyond the retention window and exits.
func (a *App) CleanupMode(ctx context.Context, deps *Dependencies) error {
	qs := service.NewQueryService(deps.Store, deps.Exporter, a.logger)

	deleted, err := qs.Cleanup(ctx, a.CleanupOlderThan, a.CleanupForce)
	if err != nil {
		return fmt.Errorf("app: cleanup: %w", err)
	}
	a.logger.InfoContext(ctx, "cleanup done", slog.Int("deleted", deleted))
	return nil
}

// MonitorMode subscribes to the opportunities channel and prints each event
// as it arrives, until shutdown. Requires Redis.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	if deps.SignalBus == nil {
		return fmt.Errorf("app: monitor mode requires redis to be enabled")
	}

	events, err := deps.SignalBus.Subscribe(ctx, redis.ChannelOpportunities)
	if err != nil {
		return fmt.Errorf("app: subscribe: %w", err)
	}
	a.logger.InfoContext(ctx, "monitoring opportunities", slog.String("channel", redis.ChannelOpportunities))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stdout, string(payload))
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
