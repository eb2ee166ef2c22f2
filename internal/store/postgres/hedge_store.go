package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyscan/internal/domain"
)

// HedgeStore implements domain.HedgeHistoryStore using PostgreSQL.
type HedgeStore struct {
	pool *pgxpool.Pool
}

// NewHedgeStore creates a new HedgeStore backed by the given connection pool.
func NewHedgeStore(pool *pgxpool.Pool) *HedgeStore {
	return &HedgeStore{pool: pool}
}

const hedgeSelectCols = `id, market_id, title, underlying_symbol,
	venue_yes, venue_no, implied_yes, edge_percent,
	underlying_price, strike, expiry, funding_rate,
	note, prob_source, barrier_direction, detected_at`

// Insert stores one hedge-edge observation.
func (s *HedgeStore) Insert(ctx context.Context, opp domain.HedgeOpportunity) error {
	const query = `
		INSERT INTO hedge_history (
			id, market_id, title, underlying_symbol,
			venue_yes, venue_no, implied_yes, edge_percent,
			underlying_price, strike, expiry, funding_rate,
			note, prob_source, barrier_direction, detected_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Market.ID, opp.Market.Title, opp.UnderlyingSymbol,
		opp.VenueYes, opp.VenueNo, opp.ImpliedYes, opp.EdgePercent,
		opp.UnderlyingPrice, opp.Strike, opp.Expiry, opp.FundingRate,
		opp.Note, opp.ProbSource, opp.BarrierDirection, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert hedge opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListBefore returns observations detected before the cutoff, oldest first.
func (s *HedgeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.HedgeOpportunity, error) {
	query := `SELECT ` + hedgeSelectCols + ` FROM hedge_history WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list hedges before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var opps []domain.HedgeOpportunity
	for rows.Next() {
		var opp domain.HedgeOpportunity
		if err := rows.Scan(
			&opp.ID, &opp.Market.ID, &opp.Market.Title, &opp.UnderlyingSymbol,
			&opp.VenueYes, &opp.VenueNo, &opp.ImpliedYes, &opp.EdgePercent,
			&opp.UnderlyingPrice, &opp.Strike, &opp.Expiry, &opp.FundingRate,
			&opp.Note, &opp.ProbSource, &opp.BarrierDirection, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan hedge: %w", err)
		}
		opp.Market.Platform = domain.PlatformPolymarket
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list hedges rows: %w", err)
	}
	return opps, nil
}

// DeleteBefore removes observations detected before the cutoff and returns
// the number of rows deleted.
func (s *HedgeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM hedge_history WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete hedges before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
