package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type Portfolio struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// EnsurePortfolio returns the user's portfolio, creating it on first use.
// Exactly one portfolio exists per user.
func (s *Store) EnsurePortfolio(ctx context.Context, userID, name string) (Portfolio, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Portfolio{}, validationErrorf("user is required")
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "My Portfolio"
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO portfolios (user_id, name)
        VALUES (?, ?)
        ON CONFLICT (user_id) DO NOTHING`, userID, name)
	if err != nil {
		return Portfolio{}, err
	}
	return s.FindPortfolioByUser(ctx, userID)
}

func (s *Store) FindPortfolioByUser(ctx context.Context, userID string) (Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, user_id, name, created_at
        FROM portfolios WHERE user_id = ?`, strings.TrimSpace(userID))
	var p Portfolio
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, ErrPortfolioNotFound
	}
	if err != nil {
		return Portfolio{}, err
	}
	return p, nil
}

// RenamePortfolio updates the display name.
func (s *Store) RenamePortfolio(ctx context.Context, portfolioID int64, name string) error {
	if name = strings.TrimSpace(name); name == "" {
		return validationErrorf("name is required")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE portfolios SET name = ? WHERE id = ?`, name, portfolioID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPortfolioNotFound
	}
	return nil
}
