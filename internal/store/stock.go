package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Stock struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Sector    string    `json:"sector"`
	Exchange  string    `json:"exchange"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeSymbol is the canonical stock identity: trimmed and uppercased.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// UpsertStockBySymbol creates the stock on first reference. The symbol is the
// immutable identity; an existing row is left untouched even when different
// attributes are supplied.
func (s *Store) UpsertStockBySymbol(ctx context.Context, symbol, name, sector, exchange string) (Stock, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return Stock{}, validationErrorf("symbol is required")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = sym
	}
	if sector = strings.TrimSpace(sector); sector == "" {
		sector = "Unknown"
	}
	if exchange = strings.TrimSpace(exchange); exchange == "" {
		exchange = "NSE"
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO stocks (symbol, name, sector, exchange)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (symbol) DO NOTHING`,
		sym, name, sector, exchange)
	if err != nil {
		return Stock{}, err
	}
	return s.FindStockBySymbol(ctx, sym)
}

// FindStockBySymbol looks a stock up by its normalized symbol.
func (s *Store) FindStockBySymbol(ctx context.Context, symbol string) (Stock, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, symbol, name, sector, exchange, created_at
        FROM stocks WHERE symbol = ?`, NormalizeSymbol(symbol))
	return scanStock(row)
}

// ListStocks returns every known stock ordered by symbol.
func (s *Store) ListStocks(ctx context.Context) ([]Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, symbol, name, sector, exchange, created_at
        FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SearchStocks matches symbol or name prefixes, for the purchase form.
func (s *Store) SearchStocks(ctx context.Context, q string, limit int) ([]Stock, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := strings.TrimSpace(q) + "%"
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, symbol, name, sector, exchange, created_at
        FROM stocks
        WHERE symbol LIKE ? OR name LIKE ?
        ORDER BY symbol
        LIMIT ?`, strings.ToUpper(pattern), pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		st, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStock(row rowScanner) (Stock, error) {
	var st Stock
	err := row.Scan(&st.ID, &st.Symbol, &st.Name, &st.Sector, &st.Exchange, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Stock{}, ErrStockNotFound
	}
	if err != nil {
		return Stock{}, err
	}
	return st, nil
}
