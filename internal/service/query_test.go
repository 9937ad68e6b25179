package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/store/memstore"
)

// fakeExporter records the last export call instead of touching blob storage.
type fakeExporter struct {
	lastSymbol string
	lastLimit  int
	path       string
	count      int
	err        error
}

func (f *fakeExporter) ExportRecent(ctx context.Context, limit int, at time.Time) (string, int, error) {
	f.lastSymbol, f.lastLimit = "", limit
	return f.path, f.count, f.err
}

func (f *fakeExporter) ExportSymbol(ctx context.Context, symbol string, limit int, at time.Time) (string, int, error) {
	f.lastSymbol, f.lastLimit = symbol, limit
	return f.path, f.count, f.err
}

func seedStore(t *testing.T, s *memstore.Store, n int, base time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		opp := domain.Opportunity{
			Symbol:     "BTC",
			PriceA:     101,
			PriceB:     100,
			AbsDiff:    1,
			PctDiff:    0.9,
			Direction:  domain.DirectionBuyBSellA,
			DetectedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := s.Insert(context.Background(), opp, domain.TransportREST); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
}

func TestQueryService_ReadsDelegate(t *testing.T) {
	store := memstore.New()
	qs := NewQueryService(store, nil, discardLogger())
	ctx := context.Background()
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	seedStore(t, store, 3, base)

	if recs, err := qs.Recent(ctx, 2); err != nil || len(recs) != 2 {
		t.Fatalf("recent: %v, %d records", err, len(recs))
	}
	if recs, err := qs.BySymbol(ctx, "BTC", 0); err != nil || len(recs) != 3 {
		t.Fatalf("by symbol: %v, %d records", err, len(recs))
	}
	if recs, err := qs.ByDate(ctx, "2026-08-23"); err != nil || len(recs) != 3 {
		t.Fatalf("by date: %v, %d records", err, len(recs))
	}
	if st, err := qs.Stats(ctx); err != nil || st.TotalCount != 3 {
		t.Fatalf("stats: %v, %+v", err, st)
	}
}

func TestQueryService_ExportRouting(t *testing.T) {
	store := memstore.New()
	exp := &fakeExporter{path: "exports/opportunities/test.jsonl", count: 3}
	qs := NewQueryService(store, exp, discardLogger())
	ctx := context.Background()

	path, count, err := qs.Export(ctx, "", 10)
	if err != nil || path != exp.path || count != 3 {
		t.Fatalf("export all: %v, %s, %d", err, path, count)
	}
	if exp.lastSymbol != "" || exp.lastLimit != 10 {
		t.Fatalf("export all routed wrong: symbol=%q limit=%d", exp.lastSymbol, exp.lastLimit)
	}

	if _, _, err := qs.Export(ctx, "BTC", 5); err != nil {
		t.Fatalf("export symbol: %v", err)
	}
	if exp.lastSymbol != "BTC" || exp.lastLimit != 5 {
		t.Fatalf("export symbol routed wrong: symbol=%q limit=%d", exp.lastSymbol, exp.lastLimit)
	}
}

func TestQueryService_ExportWithoutBlobStorage(t *testing.T) {
	qs := NewQueryService(memstore.New(), nil, discardLogger())

	if _, _, err := qs.Export(context.Background(), "", 0); err == nil {
		t.Fatal("export without blob storage must fail")
	}
}

func TestQueryService_CleanupSafetyFloor(t *testing.T) {
	store := memstore.New()
	qs := NewQueryService(store, nil, discardLogger())
	ctx := context.Background()

	if _, err := qs.Cleanup(ctx, 0, false); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Fatalf("zero window: got %v, want ErrInvalidDuration", err)
	}
	if _, err := qs.Cleanup(ctx, time.Hour, false); err == nil {
		t.Fatal("sub-floor window without force must be refused")
	}
	if _, err := qs.Cleanup(ctx, time.Hour, true); err != nil {
		t.Fatalf("forced sub-floor window: %v", err)
	}
}

func TestQueryService_CleanupDeletes(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	qs := NewQueryService(store, nil, discardLogger())
	ctx := context.Background()

	seedStore(t, store, 2, now.Add(-40*24*time.Hour))
	seedStore(t, store, 1, now.Add(-time.Hour))

	deleted, err := qs.Cleanup(ctx, 30*24*time.Hour, false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if recs, _ := store.QueryRecent(ctx, 0); len(recs) != 1 {
		t.Fatalf("remaining = %d, want 1", len(recs))
	}
}
