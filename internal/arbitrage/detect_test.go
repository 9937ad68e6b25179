package arbitrage

import (
	"math"
	"testing"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

func quote(exchange domain.ExchangeID, symbol string, price float64, at time.Time) domain.PriceQuote {
	return domain.PriceQuote{
		Symbol:     symbol,
		Exchange:   exchange,
		Price:      price,
		ObservedAt: at,
		Transport:  domain.TransportREST,
	}
}

func TestDetect_BelowThreshold(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a := quote(domain.ExchangeHyperliquid, "BTC", 100.30, at)
	b := quote(domain.ExchangeBinance, "BTC", 100.00, at)

	// 0.30 gap on a 100.15 midpoint is ~0.2996%, just under 0.3%.
	_, found := Detect(a, b, 0.3, at)
	if found {
		t.Fatal("expected no opportunity below threshold")
	}
}

func TestDetect_AboveThreshold(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a := quote(domain.ExchangeHyperliquid, "ETH", 101.00, at)
	b := quote(domain.ExchangeBinance, "ETH", 100.00, at)

	opp, found := Detect(a, b, 0.5, at)
	if !found {
		t.Fatal("expected an opportunity")
	}

	wantPct := 1.0 / 100.5 * 100
	if math.Abs(opp.PctDiff-wantPct) > 1e-12 {
		t.Fatalf("pctDiff = %v, want %v", opp.PctDiff, wantPct)
	}
	if opp.AbsDiff != 1.0 {
		t.Fatalf("absDiff = %v, want 1.0", opp.AbsDiff)
	}
	// A is the expensive side, so the buy happens on B.
	if opp.Direction != domain.DirectionBuyBSellA {
		t.Fatalf("direction = %v, want %v", opp.Direction, domain.DirectionBuyBSellA)
	}
	if opp.Symbol != "ETH" || opp.PriceA != 101.00 || opp.PriceB != 100.00 {
		t.Fatalf("unexpected opportunity fields: %+v", opp)
	}
	if !opp.DetectedAt.Equal(at) {
		t.Fatalf("detectedAt = %v, want %v", opp.DetectedAt, at)
	}
}

func TestDetect_ThresholdInclusive(t *testing.T) {
	at := time.Now()
	a := quote(domain.ExchangeHyperliquid, "SOL", 101.00, at)
	b := quote(domain.ExchangeBinance, "SOL", 100.00, at)

	threshold := 1.0 / 100.5 * 100
	if _, found := Detect(a, b, threshold, at); !found {
		t.Fatal("gap exactly at the threshold must be emitted")
	}
}

func TestDetect_DirectionWhenACheaper(t *testing.T) {
	at := time.Now()
	a := quote(domain.ExchangeHyperliquid, "BTC", 99.00, at)
	b := quote(domain.ExchangeBinance, "BTC", 100.00, at)

	opp, found := Detect(a, b, 0.5, at)
	if !found {
		t.Fatal("expected an opportunity")
	}
	if opp.Direction != domain.DirectionBuyASellB {
		t.Fatalf("direction = %v, want %v", opp.Direction, domain.DirectionBuyASellB)
	}
}

func TestDetect_EqualPrices(t *testing.T) {
	at := time.Now()
	a := quote(domain.ExchangeHyperliquid, "BTC", 100.00, at)
	b := quote(domain.ExchangeBinance, "BTC", 100.00, at)

	if _, found := Detect(a, b, 0.5, at); found {
		t.Fatal("equal prices must never produce an opportunity")
	}
}

func TestDetect_Deterministic(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	a := quote(domain.ExchangeHyperliquid, "BTC", 64321.5, at)
	b := quote(domain.ExchangeBinance, "BTC", 63990.25, at)

	first, ok1 := Detect(a, b, 0.4, at)
	second, ok2 := Detect(a, b, 0.4, at)
	if ok1 != ok2 || first != second {
		t.Fatalf("identical inputs produced different results: %+v vs %+v", first, second)
	}
}
