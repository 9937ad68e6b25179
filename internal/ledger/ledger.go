// Package ledger holds the single freshest quote per (exchange, symbol).
package ledger

import (
	"sync"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// UpdateHook is invoked after a quote has been fully written, outside the
// ledger lock.
type UpdateHook func(q domain.PriceQuote)

type key struct {
	exchange domain.ExchangeID
	symbol   string
}

// Ledger is the in-memory table of the most recent quote per exchange/symbol.
// Last write observed by this process wins, regardless of transport: a stale
// out-of-order REST response arriving after a newer stream update will
// overwrite it. No sequence numbers are kept; this is an accepted
// approximation.
type Ledger struct {
	mu     sync.RWMutex
	quotes map[key]domain.PriceQuote
	hook   UpdateHook
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{quotes: make(map[key]domain.PriceQuote)}
}

// OnUpdate registers the hook called after every successful update. Must be
// called before the ledger receives concurrent traffic.
func (l *Ledger) OnUpdate(hook UpdateHook) {
	l.hook = hook
}

// Update unconditionally overwrites the stored quote for the quote's
// (exchange, symbol) key, then invokes the update hook.
func (l *Ledger) Update(q domain.PriceQuote) {
	l.mu.Lock()
	l.quotes[key{q.Exchange, q.Symbol}] = q
	l.mu.Unlock()

	if l.hook != nil {
		l.hook(q)
	}
}

// Get returns the stored quote for (exchange, symbol), if any. A returned
// quote is always fully written; updates hold the lock for the whole write.
func (l *Ledger) Get(exchange domain.ExchangeID, symbol string) (domain.PriceQuote, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q, ok := l.quotes[key{exchange, symbol}]
	return q, ok
}

// Snapshot returns a copy of every stored quote.
func (l *Ledger) Snapshot() []domain.PriceQuote {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.PriceQuote, 0, len(l.quotes))
	for _, q := range l.quotes {
		out = append(out, q)
	}
	return out
}
