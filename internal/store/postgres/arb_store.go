package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// ArbStore implements domain.ArbHistoryStore using PostgreSQL.
type ArbStore struct {
	pool *pgxpool.Pool
}

// NewArbStore creates a new ArbStore backed by the given connection pool.
func NewArbStore(pool *pgxpool.Pool) *ArbStore {
	return &ArbStore{pool: pool}
}

const arbSelectCols = `id, route, pm_market_id, pm_title, op_market_id, op_title,
	similarity, size, max_size, cost, profit_percent, price_breakdown, detected_at`

// Insert stores one detected arbitrage opportunity.
func (s *ArbStore) Insert(ctx context.Context, opp domain.ArbOpportunity) error {
	const query = `
		INSERT INTO arb_history (
			id, route, pm_market_id, pm_title, op_market_id, op_title,
			similarity, size, max_size, cost, profit_percent, price_breakdown,
			detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Route,
		opp.Pair.Polymarket.ID, opp.Pair.Polymarket.Title,
		opp.Pair.Opinion.ID, opp.Pair.Opinion.Title,
		opp.Pair.Similarity, opp.Size, opp.MaxSize,
		opp.Cost, opp.ProfitPercent, opp.PriceBreakdown,
		opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert arb opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListBefore returns opportunities detected before the cutoff, oldest first.
func (s *ArbStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ArbOpportunity, error) {
	query := `SELECT ` + arbSelectCols + ` FROM arb_history WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list arbs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var opps []domain.ArbOpportunity
	for rows.Next() {
		var opp domain.ArbOpportunity
		if err := rows.Scan(
			&opp.ID, &opp.Route,
			&opp.Pair.Polymarket.ID, &opp.Pair.Polymarket.Title,
			&opp.Pair.Opinion.ID, &opp.Pair.Opinion.Title,
			&opp.Pair.Similarity, &opp.Size, &opp.MaxSize,
			&opp.Cost, &opp.ProfitPercent, &opp.PriceBreakdown,
			&opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan arb: %w", err)
		}
		opp.Pair.Polymarket.Platform = domain.PlatformPolymarket
		opp.Pair.Opinion.Platform = domain.PlatformOpinion
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list arbs rows: %w", err)
	}
	return opps, nil
}

// DeleteBefore removes opportunities detected before the cutoff and returns
// the number of rows deleted.
func (s *ArbStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arb_history WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete arbs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
