package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/ledger"
	"github.com/ppedziwiatr/nautilus/internal/store/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScanner(t *testing.T, cfg ScannerConfig) (*Scanner, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	s, err := NewScanner(cfg, ledger.New(), store, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}
	return s, store
}

func defaultCfg() ScannerConfig {
	return ScannerConfig{
		Symbols:      []string{"BTC", "ETH"},
		ThresholdPct: 0.5,
		ExchangeA:    domain.ExchangeHyperliquid,
		ExchangeB:    domain.ExchangeBinance,
	}
}

func quoteAt(exchange domain.ExchangeID, symbol string, price float64, at time.Time) domain.PriceQuote {
	return domain.PriceQuote{
		Symbol:     symbol,
		Exchange:   exchange,
		Price:      price,
		ObservedAt: at,
		Transport:  domain.TransportStream,
	}
}

func TestScanner_DetectsAndPersists(t *testing.T) {
	s, store := newTestScanner(t, defaultCfg())
	ctx := context.Background()
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	// First quote has no counterpart; nothing happens.
	if err := s.OnQuote(ctx, quoteAt(domain.ExchangeBinance, "BTC", 100, at)); err != nil {
		t.Fatalf("first quote: %v", err)
	}
	if recs, _ := store.QueryRecent(ctx, 0); len(recs) != 0 {
		t.Fatalf("records after one side = %d, want 0", len(recs))
	}

	// Counterpart arrives with a ~0.995% gap, above the 0.5% threshold.
	if err := s.OnQuote(ctx, quoteAt(domain.ExchangeHyperliquid, "BTC", 101, at)); err != nil {
		t.Fatalf("second quote: %v", err)
	}

	recs, _ := store.QueryRecent(ctx, 0)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Symbol != "BTC" {
		t.Fatalf("symbol = %s", rec.Symbol)
	}
	// PriceA is always the A-side (hyperliquid) price, whichever side fired.
	if rec.PriceA != 101 || rec.PriceB != 100 {
		t.Fatalf("prices = %v/%v, want 101/100", rec.PriceA, rec.PriceB)
	}
	if rec.Direction != domain.DirectionBuyBSellA {
		t.Fatalf("direction = %s", rec.Direction)
	}
	if rec.Transport != domain.TransportStream {
		t.Fatalf("transport = %s", rec.Transport)
	}
}

func TestScanner_BelowThresholdIsSilent(t *testing.T) {
	s, store := newTestScanner(t, defaultCfg())
	ctx := context.Background()
	at := time.Now().UTC()
	s.SetClock(func() time.Time { return at })

	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeBinance, "BTC", 100, at))
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeHyperliquid, "BTC", 100.3, at))

	if recs, _ := store.QueryRecent(ctx, 0); len(recs) != 0 {
		t.Fatalf("records = %d, want 0 for a sub-threshold gap", len(recs))
	}
}

func TestScanner_RejectsInvalidQuotes(t *testing.T) {
	s, _ := newTestScanner(t, defaultCfg())
	ctx := context.Background()
	at := time.Now().UTC()

	cases := []struct {
		name string
		q    domain.PriceQuote
		want error
	}{
		{"empty symbol", quoteAt(domain.ExchangeBinance, "", 100, at), domain.ErrInvalidQuote},
		{"zero price", quoteAt(domain.ExchangeBinance, "BTC", 0, at), domain.ErrInvalidQuote},
		{"negative price", quoteAt(domain.ExchangeBinance, "BTC", -5, at), domain.ErrInvalidQuote},
		{"zero time", quoteAt(domain.ExchangeBinance, "BTC", 100, time.Time{}), domain.ErrInvalidQuote},
		{"unknown exchange", quoteAt("kraken", "BTC", 100, at), domain.ErrUnknownExchange},
		{"unknown symbol", quoteAt(domain.ExchangeBinance, "DOGE", 100, at), domain.ErrUnknownSymbol},
	}
	for _, tc := range cases {
		if err := s.OnQuote(ctx, tc.q); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestScanner_StaleCounterpartSkipsDetection(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxQuoteAge = 5 * time.Second
	s, store := newTestScanner(t, cfg)
	ctx := context.Background()
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	// Counterpart is 10s old at detection time.
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeBinance, "BTC", 100, at.Add(-10*time.Second)))
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeHyperliquid, "BTC", 101, at))

	if recs, _ := store.QueryRecent(ctx, 0); len(recs) != 0 {
		t.Fatalf("records = %d, want 0 against a stale counterpart", len(recs))
	}
}

func TestScanner_DebounceCollapsesDuplicateFirings(t *testing.T) {
	cfg := defaultCfg()
	cfg.DebounceWindow = 2 * time.Second
	s, store := newTestScanner(t, cfg)
	ctx := context.Background()
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	// Both sides updating produces two detector firings of the same gap.
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeBinance, "BTC", 100, at))
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeHyperliquid, "BTC", 101, at))
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeBinance, "BTC", 100, at))

	if recs, _ := store.QueryRecent(ctx, 0); len(recs) != 1 {
		t.Fatalf("records = %d, want 1 after debounce", len(recs))
	}
}

func TestScanner_SetThreshold(t *testing.T) {
	s, store := newTestScanner(t, defaultCfg())
	ctx := context.Background()
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	if err := s.SetThreshold(0); !errors.Is(err, domain.ErrInvalidThreshold) {
		t.Fatalf("zero threshold: got %v, want ErrInvalidThreshold", err)
	}
	if err := s.SetThreshold(-1); !errors.Is(err, domain.ErrInvalidThreshold) {
		t.Fatalf("negative threshold: got %v, want ErrInvalidThreshold", err)
	}
	if got := s.Threshold(); got != 0.5 {
		t.Fatalf("threshold after rejected updates = %v, want 0.5", got)
	}

	// Raising the threshold makes the same gap invisible.
	if err := s.SetThreshold(2.0); err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeBinance, "BTC", 100, at))
	_ = s.OnQuote(ctx, quoteAt(domain.ExchangeHyperliquid, "BTC", 101, at))

	if recs, _ := store.QueryRecent(ctx, 0); len(recs) != 0 {
		t.Fatalf("records = %d, want 0 above raised threshold", len(recs))
	}
}

func TestNewScanner_Validation(t *testing.T) {
	led := ledger.New()
	store := memstore.New()

	cfg := defaultCfg()
	cfg.Symbols = nil
	if _, err := NewScanner(cfg, led, store, nil, nil, discardLogger()); err == nil {
		t.Fatal("empty symbol universe must be rejected")
	}

	cfg = defaultCfg()
	cfg.ThresholdPct = 0
	if _, err := NewScanner(cfg, led, store, nil, nil, discardLogger()); !errors.Is(err, domain.ErrInvalidThreshold) {
		t.Fatalf("zero threshold: got %v, want ErrInvalidThreshold", err)
	}

	cfg = defaultCfg()
	cfg.ExchangeB = cfg.ExchangeA
	if _, err := NewScanner(cfg, led, store, nil, nil, discardLogger()); err == nil {
		t.Fatal("identical exchanges must be rejected")
	}
}
