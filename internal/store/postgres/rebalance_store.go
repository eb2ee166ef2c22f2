package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// RebalanceStore implements domain.RebalanceHistoryStore using PostgreSQL.
type RebalanceStore struct {
	pool *pgxpool.Pool
}

// NewRebalanceStore creates a new RebalanceStore backed by the given pool.
func NewRebalanceStore(pool *pgxpool.Pool) *RebalanceStore {
	return &RebalanceStore{pool: pool}
}

const rebalanceSelectCols = `id, condition_id, market_id, title, direction,
	current_yes, baseline_yes, delta, trade_notional,
	window_seconds, reason, detected_at`

// Insert stores one rebalance signal.
func (s *RebalanceStore) Insert(ctx context.Context, sig domain.RebalanceSignal) error {
	const query = `
		INSERT INTO rebalance_history (
			id, condition_id, market_id, title, direction,
			current_yes, baseline_yes, delta, trade_notional,
			window_seconds, reason, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12
		)`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Market.ConditionID, sig.Market.ID, sig.Market.Title, sig.Direction,
		sig.CurrentYes, sig.BaselineYes, sig.Delta, sig.TradeNotional,
		sig.WindowSeconds, sig.Reason, sig.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert rebalance signal %s: %w", sig.ID, err)
	}
	return nil
}

// ListBefore returns signals detected before the cutoff, oldest first.
func (s *RebalanceStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.RebalanceSignal, error) {
	query := `SELECT ` + rebalanceSelectCols + ` FROM rebalance_history WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rebalance signals before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var signals []domain.RebalanceSignal
	for rows.Next() {
		var sig domain.RebalanceSignal
		if err := rows.Scan(
			&sig.ID, &sig.Market.ConditionID, &sig.Market.ID, &sig.Market.Title, &sig.Direction,
			&sig.CurrentYes, &sig.BaselineYes, &sig.Delta, &sig.TradeNotional,
			&sig.WindowSeconds, &sig.Reason, &sig.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan rebalance signal: %w", err)
		}
		sig.Market.Platform = domain.PlatformPolymarket
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rebalance signals rows: %w", err)
	}
	return signals, nil
}

// DeleteBefore removes signals detected before the cutoff and returns the
// number of rows deleted.
func (s *RebalanceStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rebalance_history WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete rebalance signals before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
