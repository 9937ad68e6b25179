// Package memstore implements domain.OpportunityStore entirely in memory.
//
// The store keeps one canonical append log as the source of truth; the
// by-symbol and by-date indexes hold record IDs and are resolved against the
// primary map at read time. A delete from the primary therefore removes the
// record from every read path, even though the secondary index slices are
// only pruned lazily.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// Store is an in-memory, multi-indexed opportunity store. Safe for
// concurrent use; every operation runs under one store-wide mutex, which
// also serializes the three index writes plus the stats update of an insert
// into a single critical section.
type Store struct {
	mu       sync.RWMutex
	log      []string // record IDs in insertion order (canonical)
	primary  map[string]domain.OpportunityRecord
	bySymbol map[string][]string
	byDate   map[string][]string
	stats    *domain.Stats

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		primary:  make(map[string]domain.OpportunityRecord),
		bySymbol: make(map[string][]string),
		byDate:   make(map[string][]string),
		now:      time.Now,
	}
}

// SetClock overrides the store's clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Insert writes the record under all three indexes and updates Stats in the
// same critical section.
func (s *Store) Insert(ctx context.Context, opp domain.Opportunity, transport domain.Transport) (domain.OpportunityRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.OpportunityRecord{}, err
	}

	rec := domain.NewRecord(opp, transport)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, rec.ID)
	s.primary[rec.ID] = rec
	s.bySymbol[rec.Symbol] = append(s.bySymbol[rec.Symbol], rec.ID)
	dk := rec.DateKey()
	s.byDate[dk] = append(s.byDate[dk], rec.ID)

	s.applyStats(rec)

	return rec, nil
}

// applyStats folds one freshly inserted record into the stats singleton.
// Caller must hold s.mu. The singleton is created lazily on first insert.
func (s *Store) applyStats(rec domain.OpportunityRecord) {
	if s.stats == nil {
		s.stats = &domain.Stats{
			CountBySymbol:    make(map[string]uint64),
			CountByDirection: make(map[domain.Direction]uint64),
		}
	}
	st := s.stats

	oldCount := float64(st.TotalCount)
	st.TotalCount++
	st.CountBySymbol[rec.Symbol]++
	st.CountByDirection[rec.Direction]++
	st.RunningMeanPct = (st.RunningMeanPct*oldCount + rec.PctDiff) / float64(st.TotalCount)

	// Strict inequality: the first-seen record wins pctDiff ties.
	if st.Best == nil || rec.PctDiff > st.Best.PctDiff {
		best := rec
		st.Best = &best
	}
	st.LastUpdatedAt = s.now()
}

// QueryBySymbol returns up to limit records for the symbol, newest-first.
func (s *Store) QueryBySymbol(ctx context.Context, symbol string, limit int) ([]domain.OpportunityRecord, error) {
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveNewestFirst(s.bySymbol[symbol], limit), nil
}

// QueryByDate returns all records detected on the given UTC day. A
// malformed date key is an error, never an empty result.
func (s *Store) QueryByDate(ctx context.Context, date string) ([]domain.OpportunityRecord, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, domain.ErrInvalidDate
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byDate[date]
	out := make([]domain.OpportunityRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.primary[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// QueryRecent returns up to limit records across all symbols, newest-first
// by primary-index insertion order.
func (s *Store) QueryRecent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveNewestFirst(s.log, limit), nil
}

// resolveNewestFirst walks an ID slice backwards, resolving against the
// primary map and skipping IDs whose records have been deleted. Caller must
// hold s.mu. limit 0 means unbounded.
func (s *Store) resolveNewestFirst(ids []string, limit int) []domain.OpportunityRecord {
	out := make([]domain.OpportunityRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		rec, ok := s.primary[ids[i]]
		if !ok {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// GetStats returns a deep copy of the stats singleton so callers can never
// mutate the store's view. ErrNotFound before the first insert.
func (s *Store) GetStats(ctx context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stats == nil {
		return domain.Stats{}, domain.ErrNotFound
	}

	st := domain.Stats{
		TotalCount:       s.stats.TotalCount,
		CountBySymbol:    make(map[string]uint64, len(s.stats.CountBySymbol)),
		CountByDirection: make(map[domain.Direction]uint64, len(s.stats.CountByDirection)),
		RunningMeanPct:   s.stats.RunningMeanPct,
		LastUpdatedAt:    s.stats.LastUpdatedAt,
	}
	for k, v := range s.stats.CountBySymbol {
		st.CountBySymbol[k] = v
	}
	for k, v := range s.stats.CountByDirection {
		st.CountByDirection[k] = v
	}
	if s.stats.Best != nil {
		best := *s.stats.Best
		st.Best = &best
	}
	return st, nil
}

// CountSince counts records with DetectedAt >= now-since. Full scan of the
// primary index; linear in record count, acceptable because the store is
// append-mostly and bounded by retention.
func (s *Store) CountSince(ctx context.Context, since time.Duration) (uint64, error) {
	if since <= 0 {
		return 0, domain.ErrInvalidDuration
	}

	cutoff := s.now().Add(-since).UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n uint64
	for _, rec := range s.primary {
		if rec.DetectedAtMs >= cutoff {
			n++
		}
	}
	return n, nil
}

// DeleteOlderThan removes every record older than now-olderThan from the
// canonical log and the primary index. The secondary index slices are
// pruned lazily at read time, and Stats is intentionally untouched: the
// running counters, mean, and best remain historical.
func (s *Store) DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, domain.ErrInvalidDuration
	}

	cutoff := s.now().Add(-olderThan).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.log[:0]
	deleted := 0
	for _, id := range s.log {
		rec, ok := s.primary[id]
		if !ok {
			continue
		}
		if rec.DetectedAtMs < cutoff {
			delete(s.primary, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.log = kept
	return deleted, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*Store)(nil)
