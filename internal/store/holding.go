package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"portfoliotracker/internal/valuation"
)

type Holding struct {
	ID            int64           `json:"id"`
	PortfolioID   int64           `json:"portfolioId"`
	StockID       int64           `json:"stockId"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

// AddHolding records a purchase. A second purchase of the same stock merges
// into the existing row via weighted-average cost; there is never more than
// one holding per (portfolio, stock) pair.
func (s *Store) AddHolding(ctx context.Context, portfolioID, stockID int64, quantity, price decimal.Decimal) (Holding, error) {
	if !quantity.IsPositive() {
		return Holding{}, validationErrorf("quantity must be positive")
	}
	if price.IsNegative() {
		return Holding{}, validationErrorf("purchasePrice must be non-negative")
	}

	var out Holding
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
            SELECT id, quantity, purchase_price FROM holdings
            WHERE portfolio_id = ? AND stock_id = ?`, portfolioID, stockID)

		var id int64
		var qtyStr, priceStr string
		err := row.Scan(&id, &qtyStr, &priceStr)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
                INSERT INTO holdings (portfolio_id, stock_id, quantity, purchase_price)
                VALUES (?, ?, ?, ?)`,
				portfolioID, stockID, quantity.String(), price.String())
			if err != nil {
				return err
			}
			newID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			out = Holding{ID: newID, PortfolioID: portfolioID, StockID: stockID, Quantity: quantity, PurchasePrice: price}
			return nil

		case err != nil:
			return err
		}

		oldQty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return fmt.Errorf("holding %d quantity: %w", id, err)
		}
		oldPrice, err := decimal.NewFromString(priceStr)
		if err != nil {
			return fmt.Errorf("holding %d purchase_price: %w", id, err)
		}

		newQty := oldQty.Add(quantity)
		avgPrice := weightedAvg(oldPrice, oldQty, price, quantity)

		if _, err := tx.ExecContext(ctx, `
            UPDATE holdings SET quantity = ?, purchase_price = ? WHERE id = ?`,
			newQty.String(), avgPrice.String(), id); err != nil {
			return err
		}
		out = Holding{ID: id, PortfolioID: portfolioID, StockID: stockID, Quantity: newQty, PurchasePrice: avgPrice}
		return nil
	})
	return out, err
}

func weightedAvg(existingPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}

// UpdateHolding overwrites quantity and/or purchase price. Nil leaves a field
// unchanged; at least one must be provided.
func (s *Store) UpdateHolding(ctx context.Context, portfolioID, holdingID int64, quantity, price *decimal.Decimal) (Holding, error) {
	if quantity == nil && price == nil {
		return Holding{}, validationErrorf("provide quantity and/or purchasePrice to update")
	}
	if quantity != nil && !quantity.IsPositive() {
		return Holding{}, validationErrorf("quantity must be positive")
	}
	if price != nil && price.IsNegative() {
		return Holding{}, validationErrorf("purchasePrice must be non-negative")
	}

	var out Holding
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := scanHoldingRow(tx.QueryRowContext(ctx, `
            SELECT id, portfolio_id, stock_id, quantity, purchase_price
            FROM holdings WHERE id = ? AND portfolio_id = ?`, holdingID, portfolioID))
		if err != nil {
			return err
		}
		if quantity != nil {
			cur.Quantity = *quantity
		}
		if price != nil {
			cur.PurchasePrice = *price
		}
		if _, err := tx.ExecContext(ctx, `
            UPDATE holdings SET quantity = ?, purchase_price = ? WHERE id = ?`,
			cur.Quantity.String(), cur.PurchasePrice.String(), cur.ID); err != nil {
			return err
		}
		out = cur
		return nil
	})
	return out, err
}

// DeleteHolding removes a holding scoped to the portfolio.
func (s *Store) DeleteHolding(ctx context.Context, portfolioID, holdingID int64) error {
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM holdings WHERE id = ? AND portfolio_id = ?`, holdingID, portfolioID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrHoldingNotFound
	}
	return nil
}

// SymbolsForPortfolio returns the symbols held in a portfolio, for deriving a
// refresh set.
func (s *Store) SymbolsForPortfolio(ctx context.Context, portfolioID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT st.symbol
        FROM holdings h JOIN stocks st ON st.id = h.stock_id
        WHERE h.portfolio_id = ?
        ORDER BY st.symbol`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ListHoldingsDetail joins holdings with their stock and cached quote in the
// valuation engine's input shape. Holdings without a cache row get a nil
// Cache.
func (s *Store) ListHoldingsDetail(ctx context.Context, portfolioID int64) ([]valuation.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT h.id, h.stock_id, st.symbol, st.name, st.sector, st.exchange,
               h.quantity, h.purchase_price,
               qc.cmp, qc.pe_ratio, qc.latest_earning, qc.last_error, qc.updated_at
        FROM holdings h
        JOIN stocks st ON st.id = h.stock_id
        LEFT JOIN quote_cache qc ON qc.stock_id = h.stock_id
        WHERE h.portfolio_id = ?
        ORDER BY st.symbol`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []valuation.Holding
	for rows.Next() {
		var (
			h             valuation.Holding
			qtyStr        string
			priceStr      string
			cmpStr        sql.NullString
			peRatio       sql.NullFloat64
			latestEarning sql.NullString
			lastError     sql.NullString
			updatedAt     sql.NullTime
		)
		if err := rows.Scan(&h.ID, &h.StockID, &h.Symbol, &h.Name, &h.Sector, &h.Exchange,
			&qtyStr, &priceStr, &cmpStr, &peRatio, &latestEarning, &lastError, &updatedAt); err != nil {
			return nil, err
		}
		if h.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("holding %d quantity: %w", h.ID, err)
		}
		if h.PurchasePrice, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("holding %d purchase_price: %w", h.ID, err)
		}
		if cmpStr.Valid {
			cmp, err := decimal.NewFromString(cmpStr.String)
			if err != nil {
				return nil, fmt.Errorf("stock %d cmp: %w", h.StockID, err)
			}
			cache := &valuation.CachedQuote{CMP: cmp}
			if peRatio.Valid {
				v := peRatio.Float64
				cache.PERatio = &v
			}
			if latestEarning.Valid {
				v := latestEarning.String
				cache.LatestEarning = &v
			}
			if lastError.Valid {
				v := lastError.String
				cache.LastError = &v
			}
			if updatedAt.Valid {
				cache.UpdatedAt = updatedAt.Time
			}
			h.Cache = cache
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHoldingRow(row *sql.Row) (Holding, error) {
	var h Holding
	var qtyStr, priceStr string
	err := row.Scan(&h.ID, &h.PortfolioID, &h.StockID, &qtyStr, &priceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Holding{}, ErrHoldingNotFound
	}
	if err != nil {
		return Holding{}, err
	}
	if h.Quantity, err = decimal.NewFromString(qtyStr); err != nil {
		return Holding{}, fmt.Errorf("holding %d quantity: %w", h.ID, err)
	}
	if h.PurchasePrice, err = decimal.NewFromString(priceStr); err != nil {
		return Holding{}, fmt.Errorf("holding %d purchase_price: %w", h.ID, err)
	}
	return h, nil
}
