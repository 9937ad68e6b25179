package arbitrage

import (
	"fmt"
	"sync"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// Debounce collapses repeated detector firings for the same underlying
// price-gap event into one record. The detector fires independently each
// time either side's ledger entry changes, so both sides updating within one
// evaluation window would otherwise produce duplicate records. Keyed by
// (symbol, pctDiff rounded to 2dp) within a time window. A zero window
// disables debouncing entirely, restoring at-least-once emission.
//
// Safe for concurrent use.
type Debounce struct {
	seen   map[string]time.Time // key -> last emission time
	window time.Duration
	mu     sync.Mutex
}

// NewDebounce creates a Debounce with the given collapse window.
func NewDebounce(window time.Duration) *Debounce {
	return &Debounce{
		seen:   make(map[string]time.Time),
		window: window,
	}
}

// ShouldEmit reports whether the opportunity is a fresh event. The first
// sighting of a (symbol, rounded pct) key within the window is emitted and
// recorded; repeats inside the window are suppressed.
func (d *Debounce) ShouldEmit(opp domain.Opportunity) bool {
	if d.window <= 0 {
		return true
	}

	k := fmt.Sprintf("%s:%.2f", opp.Symbol, opp.PctDiff)

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[k]; ok && opp.DetectedAt.Sub(last) < d.window {
		return false
	}
	d.seen[k] = opp.DetectedAt
	return true
}

// Cleanup removes entries older than the window. Call periodically to keep
// memory bounded.
func (d *Debounce) Cleanup(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.window {
			delete(d.seen, k)
		}
	}
}
