package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
	"github.com/ppedziwiatr/nautilus/internal/store/memstore"
)

// captureWriter records uploads in memory.
type captureWriter struct {
	path        string
	contentType string
	body        []byte
}

func (w *captureWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.path, w.contentType, w.body = path, contentType, body
	return nil
}

func (w *captureWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return w.Put(ctx, path, data, "application/octet-stream")
}

func seed(t *testing.T, s *memstore.Store, symbol string, n int) {
	t.Helper()
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		opp := domain.Opportunity{
			Symbol:     symbol,
			PriceA:     101,
			PriceB:     100,
			AbsDiff:    1,
			PctDiff:    0.9,
			Direction:  domain.DirectionBuyBSellA,
			DetectedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := s.Insert(context.Background(), opp, domain.TransportREST); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestArchiver_ExportRecent(t *testing.T) {
	store := memstore.New()
	seed(t, store, "BTC", 3)
	writer := &captureWriter{}
	a := NewArchiver(writer, store)
	at := time.Date(2026, 8, 23, 15, 30, 0, 0, time.UTC)

	path, count, err := a.ExportRecent(context.Background(), 0, at)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if path != writer.path {
		t.Fatalf("returned path %q != uploaded path %q", path, writer.path)
	}
	if !strings.HasPrefix(path, "exports/opportunities/") || !strings.HasSuffix(path, ".jsonl") {
		t.Fatalf("unexpected path %q", path)
	}
	if writer.contentType != "application/x-ndjson" {
		t.Fatalf("content type = %q", writer.contentType)
	}

	// Every line is one well-formed record.
	lines := bytes.Split(bytes.TrimSpace(writer.body), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("jsonl lines = %d, want 3", len(lines))
	}
	for _, line := range lines {
		var rec domain.OpportunityRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("bad jsonl line %q: %v", line, err)
		}
		if rec.ID == "" || rec.Symbol != "BTC" {
			t.Fatalf("unexpected record %+v", rec)
		}
	}
}

func TestArchiver_ExportSymbolFilters(t *testing.T) {
	store := memstore.New()
	seed(t, store, "BTC", 2)
	seed(t, store, "ETH", 1)
	writer := &captureWriter{}
	a := NewArchiver(writer, store)

	_, count, err := a.ExportSymbol(context.Background(), "ETH", 0, time.Now())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestArchiver_EmptyStoreUploadsNothing(t *testing.T) {
	writer := &captureWriter{}
	a := NewArchiver(writer, memstore.New())

	path, count, err := a.ExportRecent(context.Background(), 0, time.Now())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if count != 0 || path != "" {
		t.Fatalf("empty export = %q, %d; want no upload", path, count)
	}
	if writer.body != nil {
		t.Fatal("writer must not be called for an empty export")
	}
}
