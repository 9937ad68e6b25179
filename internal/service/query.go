package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// minRetention is the floor below which Cleanup refuses to delete unless
// forced, protecting against a fat-fingered retention window wiping the
// whole store.
const minRetention = 24 * time.Hour

// Exporter is the narrow archive surface the query service needs.
type Exporter interface {
	ExportRecent(ctx context.Context, limit int, at time.Time) (string, int, error)
	ExportSymbol(ctx context.Context, symbol string, limit int, at time.Time) (string, int, error)
}

// QueryService is the read-and-maintenance façade over the opportunity
// store: queries, stats, export, and retention cleanup.
type QueryService struct {
	store    domain.OpportunityStore
	exporter Exporter // optional
	logger   *slog.Logger
	now      func() time.Time
}

// NewQueryService creates a QueryService. exporter may be nil; Export then
// fails with a plain error instead of uploading.
func NewQueryService(store domain.OpportunityStore, exporter Exporter, logger *slog.Logger) *QueryService {
	return &QueryService{
		store:    store,
		exporter: exporter,
		logger:   logger.With(slog.String("component", "query")),
		now:      time.Now,
	}
}

// Recent returns up to limit records across all symbols, newest-first.
func (s *QueryService) Recent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	return s.store.QueryRecent(ctx, limit)
}

// BySymbol returns up to limit records for one symbol, newest-first.
func (s *QueryService) BySymbol(ctx context.Context, symbol string, limit int) ([]domain.OpportunityRecord, error) {
	return s.store.QueryBySymbol(ctx, symbol, limit)
}

// ByDate returns all records detected on the given UTC day (YYYY-MM-DD).
func (s *QueryService) ByDate(ctx context.Context, date string) ([]domain.OpportunityRecord, error) {
	return s.store.QueryByDate(ctx, date)
}

// Stats returns the running aggregate, or ErrNotFound before any insert.
func (s *QueryService) Stats(ctx context.Context) (domain.Stats, error) {
	return s.store.GetStats(ctx)
}

// CountSince counts records detected in the trailing window.
func (s *QueryService) CountSince(ctx context.Context, since time.Duration) (uint64, error) {
	return s.store.CountSince(ctx, since)
}

// Export uploads records as JSONL to blob storage. An empty symbol exports
// across all symbols. Returns the object path and record count; a count of
// zero means nothing was uploaded.
func (s *QueryService) Export(ctx context.Context, symbol string, limit int) (string, int, error) {
	if s.exporter == nil {
		return "", 0, fmt.Errorf("service: export requires blob storage to be configured")
	}

	at := s.now()
	var (
		path  string
		count int
		err   error
	)
	if symbol == "" {
		path, count, err = s.exporter.ExportRecent(ctx, limit, at)
	} else {
		path, count, err = s.exporter.ExportSymbol(ctx, symbol, limit, at)
	}
	if err != nil {
		return "", 0, err
	}

	s.logger.InfoContext(ctx, "export finished",
		slog.String("path", path),
		slog.Int("count", count),
	)
	return path, count, nil
}

// Cleanup deletes records older than the retention window and returns the
// deleted count. Windows below 24h are refused unless force is set. Stats
// are never adjusted by retention.
func (s *QueryService) Cleanup(ctx context.Context, olderThan time.Duration, force bool) (int, error) {
	if olderThan <= 0 {
		return 0, domain.ErrInvalidDuration
	}
	if olderThan < minRetention && !force {
		return 0, fmt.Errorf("service: retention window %s below %s floor, use force to override", olderThan, minRetention)
	}

	deleted, err := s.store.DeleteOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("service: cleanup: %w", err)
	}

	s.logger.InfoContext(ctx, "cleanup finished",
		slog.Duration("older_than", olderThan),
		slog.Int("deleted", deleted),
	)
	return deleted, nil
}
