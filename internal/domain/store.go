package domain

import (
	"context"
	"time"
)

// OpportunityStore is the multi-indexed event store for detected
// opportunities. Records are append-mostly and immutable once written;
// the store additionally maintains the Stats singleton, updated on every
// insert.
type OpportunityStore interface {
	// Insert assigns identity to the opportunity, writes it under the
	// primary-by-id, by-symbol, and by-date(YYYY-MM-DD) indexes, and
	// updates Stats. It returns the persisted record.
	Insert(ctx context.Context, opp Opportunity, transport Transport) (OpportunityRecord, error)

	// QueryBySymbol returns up to limit records for the symbol,
	// newest-first. limit 0 means unbounded.
	QueryBySymbol(ctx context.Context, symbol string, limit int) ([]OpportunityRecord, error)

	// QueryByDate returns all records detected on the given UTC day,
	// keyed "YYYY-MM-DD". Order within the day is unspecified.
	QueryByDate(ctx context.Context, date string) ([]OpportunityRecord, error)

	// QueryRecent returns up to limit records across all symbols,
	// newest-first by primary-index insertion time. limit 0 means unbounded.
	QueryRecent(ctx context.Context, limit int) ([]OpportunityRecord, error)

	// GetStats returns the running statistics singleton, or ErrNotFound
	// before the first insert.
	GetStats(ctx context.Context) (Stats, error)

	// CountSince counts records with DetectedAt >= now-since. Full scan
	// of the primary index; linear in total record count.
	CountSince(ctx context.Context, since time.Duration) (uint64, error)

	// DeleteOlderThan removes every record older than now-olderThan and
	// returns the number deleted. Stats is intentionally left untouched.
	DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int, error)
}
