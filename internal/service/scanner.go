// Package service holds the scanning pipeline and the read-side façade over
// the opportunity store.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/arbitrage"
	"github.com/ppedziwiatr/nautilus/internal/cache/redis"
	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/ledger"
)

// ScannerConfig holds the tunable parameters for the scanning pipeline.
type ScannerConfig struct {
	// Symbols is the configured symbol universe; quotes for anything else
	// are rejected.
	Symbols []string

	// ThresholdPct is the minimum percentage gap that counts as an
	// opportunity. Must be positive.
	ThresholdPct float64

	// MaxQuoteAge is how stale the counterpart quote may be before
	// detection is skipped. Zero disables the staleness gate.
	MaxQuoteAge time.Duration

	// DebounceWindow collapses repeated firings of the same gap. Zero
	// disables debouncing.
	DebounceWindow time.Duration

	// ExchangeA and ExchangeB name the two compared venues. Detection
	// always evaluates A against B in that order.
	ExchangeA domain.ExchangeID
	ExchangeB domain.ExchangeID
}

// Scanner wires every quote through the ledger, the detector, the debounce,
// and the store. Quote delivery order between feeds is arbitrary; the
// pipeline is driven entirely by whichever side updated last.
type Scanner struct {
	cfg      ScannerConfig
	ledger   *ledger.Ledger
	debounce *arbitrage.Debounce
	store    domain.OpportunityStore
	cache    domain.QuoteCache // optional
	bus      domain.SignalBus  // optional
	logger   *slog.Logger

	symbols map[string]struct{}

	mu        sync.RWMutex
	threshold float64

	now func() time.Time
}

// NewScanner creates a Scanner. cache and bus may be nil; the pipeline then
// runs without the Redis mirror and without event publishing. An empty
// symbol universe or non-positive threshold is a configuration error.
func NewScanner(
	cfg ScannerConfig,
	led *ledger.Ledger,
	store domain.OpportunityStore,
	cache domain.QuoteCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) (*Scanner, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("service: empty symbol universe")
	}
	if cfg.ThresholdPct <= 0 {
		return nil, domain.ErrInvalidThreshold
	}
	if cfg.ExchangeA == cfg.ExchangeB {
		return nil, fmt.Errorf("service: exchanges must differ, got %q twice", cfg.ExchangeA)
	}

	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}

	return &Scanner{
		cfg:       cfg,
		ledger:    led,
		debounce:  arbitrage.NewDebounce(cfg.DebounceWindow),
		store:     store,
		cache:     cache,
		bus:       bus,
		logger:    logger.With(slog.String("component", "scanner")),
		symbols:   symbols,
		threshold: cfg.ThresholdPct,
		now:       time.Now,
	}, nil
}

// SetClock overrides the scanner's clock. Intended for tests.
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// Threshold returns the current detection threshold.
func (s *Scanner) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetThreshold replaces the detection threshold at runtime. The new value
// applies from the next quote onward; non-positive values are rejected and
// the old threshold stays in force.
func (s *Scanner) SetThreshold(pct float64) error {
	if pct <= 0 {
		return domain.ErrInvalidThreshold
	}
	s.mu.Lock()
	s.threshold = pct
	s.mu.Unlock()
	return nil
}

// OnQuote runs one quote through the full pipeline: validate, ledger update,
// counterpart lookup, staleness gate, detect, debounce, persist, publish.
// A quote with no counterpart yet is a normal no-op.
func (s *Scanner) OnQuote(ctx context.Context, q domain.PriceQuote) error {
	if err := s.validate(q); err != nil {
		return err
	}

	s.ledger.Update(q)
	s.mirror(ctx, q)

	counterpartEx := s.cfg.ExchangeB
	if q.Exchange == s.cfg.ExchangeB {
		counterpartEx = s.cfg.ExchangeA
	}

	counterpart, ok := s.ledger.Get(counterpartEx, q.Symbol)
	if !ok {
		return nil
	}

	now := s.now()
	if s.cfg.MaxQuoteAge > 0 && counterpart.Age(now) > s.cfg.MaxQuoteAge {
		s.logger.DebugContext(ctx, "skipping stale counterpart",
			slog.String("symbol", q.Symbol),
			slog.String("exchange", string(counterpartEx)),
			slog.Duration("age", counterpart.Age(now)),
		)
		return nil
	}

	quoteA, quoteB := q, counterpart
	if q.Exchange != s.cfg.ExchangeA {
		quoteA, quoteB = counterpart, q
	}

	opp, found := arbitrage.Detect(quoteA, quoteB, s.Threshold(), now)
	if !found {
		return nil
	}

	if !s.debounce.ShouldEmit(opp) {
		return nil
	}

	rec, err := s.store.Insert(ctx, opp, q.Transport)
	if err != nil {
		return fmt.Errorf("service: persist opportunity: %w", err)
	}

	s.logger.InfoContext(ctx, "opportunity detected",
		slog.String("id", rec.ID),
		slog.String("symbol", rec.Symbol),
		slog.Float64("pct_diff", rec.PctDiff),
		slog.String("direction", string(rec.Direction)),
		slog.String("transport", string(rec.Transport)),
	)

	s.publish(ctx, rec)
	return nil
}

// validate rejects quotes that must never enter the ledger.
func (s *Scanner) validate(q domain.PriceQuote) error {
	if strings.TrimSpace(q.Symbol) == "" || q.Price <= 0 || q.ObservedAt.IsZero() {
		return domain.ErrInvalidQuote
	}
	if q.Exchange != s.cfg.ExchangeA && q.Exchange != s.cfg.ExchangeB {
		return fmt.Errorf("%w: %q", domain.ErrUnknownExchange, q.Exchange)
	}
	if _, ok := s.symbols[q.Symbol]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSymbol, q.Symbol)
	}
	return nil
}

// mirror pushes the quote to the Redis mirror. Best-effort: a mirror failure
// is logged and never blocks detection.
func (s *Scanner) mirror(ctx context.Context, q domain.PriceQuote) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetQuote(ctx, q); err != nil {
		s.logger.WarnContext(ctx, "quote mirror failed",
			slog.String("symbol", q.Symbol),
			slog.String("exchange", string(q.Exchange)),
			slog.String("error", err.Error()),
		)
	}
}

// publish pushes the persisted record to the signal bus. Best-effort: the
// store is the durable record, subscribers are advisory.
func (s *Scanner) publish(ctx context.Context, rec domain.OpportunityRecord) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.WarnContext(ctx, "encode opportunity event failed",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, redis.ChannelOpportunities, payload); err != nil {
		s.logger.WarnContext(ctx, "publish opportunity event failed",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}
