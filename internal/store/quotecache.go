package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteEntry is the last known quote (or last error) for one stock. CMP zero
// is the sentinel for "no usable price"; LastError says why when the previous
// resolution failed outright.
type QuoteEntry struct {
	CMP           decimal.Decimal `json:"cmp"`
	PERatio       *float64        `json:"peRatio"`
	LatestEarning *string         `json:"latestEarning"`
	LastError     *string         `json:"lastError"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UpsertQuoteCache replaces the whole entry for a stock. Field merging is the
// resolver's job; the storage layer is a plain keyed create-or-replace with
// exactly one row per stock.
func (s *Store) UpsertQuoteCache(ctx context.Context, stockID int64, entry QuoteEntry) error {
	updated := entry.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO quote_cache (stock_id, cmp, pe_ratio, latest_earning, last_error, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (stock_id) DO UPDATE SET
            cmp = excluded.cmp,
            pe_ratio = excluded.pe_ratio,
            latest_earning = excluded.latest_earning,
            last_error = excluded.last_error,
            updated_at = excluded.updated_at`,
		stockID, entry.CMP.String(), entry.PERatio, entry.LatestEarning, entry.LastError, updated)
	if err != nil {
		return fmt.Errorf("upsert quote cache for stock %d: %w", stockID, err)
	}
	return nil
}

// GetQuoteCache returns the cached entry for a stock, reporting absence via
// ok=false rather than an error.
func (s *Store) GetQuoteCache(ctx context.Context, stockID int64) (QuoteEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT cmp, pe_ratio, latest_earning, last_error, updated_at
        FROM quote_cache WHERE stock_id = ?`, stockID)

	var (
		entry         QuoteEntry
		cmpStr        string
		peRatio       sql.NullFloat64
		latestEarning sql.NullString
		lastError     sql.NullString
	)
	err := row.Scan(&cmpStr, &peRatio, &latestEarning, &lastError, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return QuoteEntry{}, false, nil
	}
	if err != nil {
		return QuoteEntry{}, false, err
	}
	if entry.CMP, err = decimal.NewFromString(cmpStr); err != nil {
		return QuoteEntry{}, false, fmt.Errorf("stock %d cmp: %w", stockID, err)
	}
	if peRatio.Valid {
		entry.PERatio = &peRatio.Float64
	}
	if latestEarning.Valid {
		entry.LatestEarning = &latestEarning.String
	}
	if lastError.Valid {
		entry.LastError = &lastError.String
	}
	return entry, true, nil
}
