package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

// OpportunityStore persists detected opportunities and their running stats.
// The insert of a record and the fold into the stats singleton happen in one
// transaction, so readers never observe a record without its stats update.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given client.
func NewOpportunityStore(client *Client) *OpportunityStore {
	return &OpportunityStore{pool: client.Pool()}
}

const recordColumns = `id, symbol, price_a, price_b, abs_diff, pct_diff, direction, detected_at_ms, detected_at_iso, transport`

// Insert writes the record and folds it into the stats row atomically.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity, transport domain.Transport) (domain.OpportunityRecord, error) {
	rec := domain.NewRecord(opp, transport)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.OpportunityRecord{}, fmt.Errorf("postgres: begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO opportunities (`+recordColumns+`, date_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Symbol, rec.PriceA, rec.PriceB, rec.AbsDiff, rec.PctDiff,
		string(rec.Direction), rec.DetectedAtMs, rec.DetectedAtISO,
		string(rec.Transport), rec.DateKey(),
	)
	if err != nil {
		return domain.OpportunityRecord{}, fmt.Errorf("postgres: insert opportunity: %w", err)
	}

	if err := s.foldStats(ctx, tx, rec); err != nil {
		return domain.OpportunityRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.OpportunityRecord{}, fmt.Errorf("postgres: commit insert tx: %w", err)
	}
	return rec, nil
}

// foldStats locks the stats singleton, folds the record into it in Go, and
// writes it back. The row lock serializes concurrent inserts.
func (s *OpportunityStore) foldStats(ctx context.Context, tx pgx.Tx, rec domain.OpportunityRecord) error {
	var (
		st       domain.Stats
		bySymbol, byDirection, best []byte
		exists   bool
	)

	err := tx.QueryRow(ctx, `
		SELECT total_count, count_by_symbol, count_by_direction, running_mean_pct, best, last_updated_at
		FROM opportunity_stats WHERE id = 1 FOR UPDATE`,
	).Scan(&st.TotalCount, &bySymbol, &byDirection, &st.RunningMeanPct, &best, &st.LastUpdatedAt)
	switch {
	case err == nil:
		exists = true
		if err := json.Unmarshal(bySymbol, &st.CountBySymbol); err != nil {
			return fmt.Errorf("postgres: decode count_by_symbol: %w", err)
		}
		if err := json.Unmarshal(byDirection, &st.CountByDirection); err != nil {
			return fmt.Errorf("postgres: decode count_by_direction: %w", err)
		}
		if len(best) > 0 {
			st.Best = &domain.OpportunityRecord{}
			if err := json.Unmarshal(best, st.Best); err != nil {
				return fmt.Errorf("postgres: decode best record: %w", err)
			}
		}
	case errors.Is(err, pgx.ErrNoRows):
		st.CountBySymbol = make(map[string]uint64)
		st.CountByDirection = make(map[domain.Direction]uint64)
	default:
		return fmt.Errorf("postgres: lock stats row: %w", err)
	}

	oldCount := float64(st.TotalCount)
	st.TotalCount++
	st.CountBySymbol[rec.Symbol]++
	st.CountByDirection[rec.Direction]++
	st.RunningMeanPct = (st.RunningMeanPct*oldCount + rec.PctDiff) / float64(st.TotalCount)
	if st.Best == nil || rec.PctDiff > st.Best.PctDiff {
		r := rec
		st.Best = &r
	}
	st.LastUpdatedAt = time.Now().UTC()

	bySymbol, err = json.Marshal(st.CountBySymbol)
	if err != nil {
		return fmt.Errorf("postgres: encode count_by_symbol: %w", err)
	}
	byDirection, err = json.Marshal(st.CountByDirection)
	if err != nil {
		return fmt.Errorf("postgres: encode count_by_direction: %w", err)
	}
	best, err = json.Marshal(st.Best)
	if err != nil {
		return fmt.Errorf("postgres: encode best record: %w", err)
	}

	if exists {
		_, err = tx.Exec(ctx, `
			UPDATE opportunity_stats
			SET total_count = $1, count_by_symbol = $2, count_by_direction = $3,
			    running_mean_pct = $4, best = $5, last_updated_at = $6
			WHERE id = 1`,
			st.TotalCount, bySymbol, byDirection, st.RunningMeanPct, best, st.LastUpdatedAt,
		)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO opportunity_stats (id, total_count, count_by_symbol, count_by_direction, running_mean_pct, best, last_updated_at)
			VALUES (1, $1, $2, $3, $4, $5, $6)`,
			st.TotalCount, bySymbol, byDirection, st.RunningMeanPct, best, st.LastUpdatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("postgres: write stats row: %w", err)
	}
	return nil
}

// QueryBySymbol returns up to limit records for the symbol, newest-first.
// limit 0 means unbounded.
func (s *OpportunityStore) QueryBySymbol(ctx context.Context, symbol string, limit int) ([]domain.OpportunityRecord, error) {
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}

	q := `SELECT ` + recordColumns + ` FROM opportunities WHERE symbol = $1 ORDER BY detected_at_ms DESC, id DESC`
	args := []any{symbol}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query by symbol: %w", err)
	}
	return scanRecords(rows)
}

// QueryByDate returns all records detected on the given UTC day. A malformed
// date key is an error, never an empty result.
func (s *OpportunityStore) QueryByDate(ctx context.Context, date string) ([]domain.OpportunityRecord, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, domain.ErrInvalidDate
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM opportunities
		WHERE date_key = $1 ORDER BY detected_at_ms ASC, id ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("postgres: query by date: %w", err)
	}
	return scanRecords(rows)
}

// QueryRecent returns up to limit records across all symbols, newest-first.
// limit 0 means unbounded.
func (s *OpportunityStore) QueryRecent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}

	q := `SELECT ` + recordColumns + ` FROM opportunities ORDER BY detected_at_ms DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query recent: %w", err)
	}
	return scanRecords(rows)
}

// GetStats returns the stats singleton. ErrNotFound before the first insert.
func (s *OpportunityStore) GetStats(ctx context.Context) (domain.Stats, error) {
	var (
		st       domain.Stats
		bySymbol, byDirection, best []byte
	)

	err := s.pool.QueryRow(ctx, `
		SELECT total_count, count_by_symbol, count_by_direction, running_mean_pct, best, last_updated_at
		FROM opportunity_stats WHERE id = 1`,
	).Scan(&st.TotalCount, &bySymbol, &byDirection, &st.RunningMeanPct, &best, &st.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stats{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: get stats: %w", err)
	}

	if err := json.Unmarshal(bySymbol, &st.CountBySymbol); err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: decode count_by_symbol: %w", err)
	}
	if err := json.Unmarshal(byDirection, &st.CountByDirection); err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: decode count_by_direction: %w", err)
	}
	if len(best) > 0 && string(best) != "null" {
		st.Best = &domain.OpportunityRecord{}
		if err := json.Unmarshal(best, st.Best); err != nil {
			return domain.Stats{}, fmt.Errorf("postgres: decode best record: %w", err)
		}
	}
	return st, nil
}

// CountSince counts records detected in the trailing window.
func (s *OpportunityStore) CountSince(ctx context.Context, since time.Duration) (uint64, error) {
	if since <= 0 {
		return 0, domain.ErrInvalidDuration
	}

	cutoff := time.Now().Add(-since).UnixMilli()

	var n uint64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM opportunities WHERE detected_at_ms >= $1`, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count since: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes records older than the retention window. The stats
// row is intentionally untouched: counters, mean, and best stay historical.
func (s *OpportunityStore) DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, domain.ErrInvalidDuration
	}

	cutoff := time.Now().Add(-olderThan).UnixMilli()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunities WHERE detected_at_ms < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete older than: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRecords(rows pgx.Rows) ([]domain.OpportunityRecord, error) {
	defer rows.Close()

	var out []domain.OpportunityRecord
	for rows.Next() {
		var (
			rec                  domain.OpportunityRecord
			direction, transport string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.PriceA, &rec.PriceB, &rec.AbsDiff,
			&rec.PctDiff, &direction, &rec.DetectedAtMs, &rec.DetectedAtISO,
			&transport,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity row: %w", err)
		}
		rec.Direction = domain.Direction(direction)
		rec.Transport = domain.Transport(transport)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunity rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
