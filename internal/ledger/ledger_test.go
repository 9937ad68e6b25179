package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

func quote(exchange domain.ExchangeID, symbol string, price float64) domain.PriceQuote {
	return domain.PriceQuote{
		Symbol:     symbol,
		Exchange:   exchange,
		Price:      price,
		ObservedAt: time.Now(),
		Transport:  domain.TransportStream,
	}
}

func TestLedger_LastWriteWins(t *testing.T) {
	l := New()

	l.Update(quote(domain.ExchangeBinance, "BTC", 100))
	l.Update(quote(domain.ExchangeBinance, "BTC", 101))

	q, ok := l.Get(domain.ExchangeBinance, "BTC")
	if !ok {
		t.Fatal("expected a stored quote")
	}
	if q.Price != 101 {
		t.Fatalf("price = %v, want 101 (last write)", q.Price)
	}
}

func TestLedger_KeysAreIndependent(t *testing.T) {
	l := New()

	l.Update(quote(domain.ExchangeBinance, "BTC", 100))
	l.Update(quote(domain.ExchangeHyperliquid, "BTC", 200))
	l.Update(quote(domain.ExchangeBinance, "ETH", 300))

	if q, _ := l.Get(domain.ExchangeBinance, "BTC"); q.Price != 100 {
		t.Fatalf("binance BTC = %v, want 100", q.Price)
	}
	if q, _ := l.Get(domain.ExchangeHyperliquid, "BTC"); q.Price != 200 {
		t.Fatalf("hyperliquid BTC = %v, want 200", q.Price)
	}
	if _, ok := l.Get(domain.ExchangeHyperliquid, "ETH"); ok {
		t.Fatal("unset key must not resolve")
	}
}

func TestLedger_HookSeesWrittenQuote(t *testing.T) {
	l := New()

	var got []float64
	l.OnUpdate(func(q domain.PriceQuote) {
		// The hook runs after the write; the ledger must already hold it.
		stored, ok := l.Get(q.Exchange, q.Symbol)
		if !ok || stored.Price != q.Price {
			t.Errorf("hook observed unwritten quote: %+v", q)
		}
		got = append(got, q.Price)
	})

	l.Update(quote(domain.ExchangeBinance, "BTC", 100))
	l.Update(quote(domain.ExchangeBinance, "BTC", 101))

	if len(got) != 2 || got[0] != 100 || got[1] != 101 {
		t.Fatalf("hook calls = %v, want [100 101]", got)
	}
}

func TestLedger_ConcurrentUpdates(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Update(quote(domain.ExchangeBinance, "BTC", float64(n)))
			l.Get(domain.ExchangeBinance, "BTC")
		}(i)
	}
	wg.Wait()

	if snap := l.Snapshot(); len(snap) != 1 {
		t.Fatalf("snapshot size = %d, want 1", len(snap))
	}
}
