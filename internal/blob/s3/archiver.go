package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// Archiver serializes opportunity records to JSONL and uploads them to blob
// storage. It only needs the query side of the store; deletion of exported
// records is a separate, explicit cleanup step.
type Archiver struct {
	writer domain.BlobWriter
	store  domain.OpportunityStore
}

// NewArchiver creates an Archiver writing through the given BlobWriter.
func NewArchiver(writer domain.BlobWriter, store domain.OpportunityStore) *Archiver {
	return &Archiver{writer: writer, store: store}
}

// ExportRecent exports up to limit most recent records (0 = all) to
// exports/opportunities/<UTC timestamp>.jsonl and returns the object path
// and record count.
func (a *Archiver) ExportRecent(ctx context.Context, limit int, at time.Time) (string, int, error) {
	recs, err := a.store.QueryRecent(ctx, limit)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: export query: %w", err)
	}
	return a.upload(ctx, exportPath("opportunities", at), recs)
}

// ExportSymbol exports up to limit most recent records for one symbol.
func (a *Archiver) ExportSymbol(ctx context.Context, symbol string, limit int, at time.Time) (string, int, error) {
	recs, err := a.store.QueryBySymbol(ctx, symbol, limit)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: export query %s: %w", symbol, err)
	}
	return a.upload(ctx, exportPath(symbol, at), recs)
}

func (a *Archiver) upload(ctx context.Context, path string, recs []domain.OpportunityRecord) (string, int, error) {
	if len(recs) == 0 {
		return "", 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return "", 0, fmt.Errorf("s3blob: export marshal: %w", err)
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", 0, fmt.Errorf("s3blob: export upload: %w", err)
	}
	return path, len(recs), nil
}

func exportPath(name string, at time.Time) string {
	return fmt.Sprintf("exports/opportunities/%s-%s.jsonl", name, at.UTC().Format("20060102T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL(recs []domain.OpportunityRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
