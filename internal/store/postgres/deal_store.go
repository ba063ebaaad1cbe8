package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

// DealStore implements the append-only domain.DealStore on PostgreSQL.
type DealStore struct {
	pool *pgxpool.Pool
}

// NewDealStore creates a DealStore backed by the given connection pool.
func NewDealStore(pool *pgxpool.Pool) *DealStore {
	return &DealStore{pool: pool}
}

// Append inserts one realized deal.
func (s *DealStore) Append(ctx context.Context, deal domain.Deal) error {
	const query = `
		INSERT INTO deals (id, instrument, quantity, sell_price, profit, total_profit, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		deal.ID, deal.Instrument, deal.Quantity, deal.SellPrice,
		deal.Profit, deal.TotalProfit, deal.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append deal %s: %w", deal.ID, err)
	}
	return nil
}

// Last returns the most recently closed deal, or nil when the history is
// empty.
func (s *DealStore) Last(ctx context.Context) (*domain.Deal, error) {
	row := s.pool.QueryRow(ctx, selectDeals+" ORDER BY closed_at DESC LIMIT 1")
	deal, err := scanDeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: last deal: %w", err)
	}
	return &deal, nil
}

// ListSince returns the deals closed at or after the given time, oldest
// first.
func (s *DealStore) ListSince(ctx context.Context, since time.Time) ([]domain.Deal, error) {
	rows, err := s.pool.Query(ctx, selectDeals+" WHERE closed_at >= $1 ORDER BY closed_at", since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deals: %w", err)
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan deal: %w", err)
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}

const selectDeals = `
	SELECT id, instrument, quantity, sell_price, profit, total_profit, closed_at
	FROM deals`

func scanDeal(scanner interface{ Scan(dest ...any) error }) (domain.Deal, error) {
	var deal domain.Deal
	err := scanner.Scan(
		&deal.ID, &deal.Instrument, &deal.Quantity, &deal.SellPrice,
		&deal.Profit, &deal.TotalProfit, &deal.ClosedAt,
	)
	return deal, err
}
