package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/insiderbot/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository on Postgres
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Insert stores a generated signal and its contributing transaction ids
func (r *SignalRepository) Insert(ctx context.Context, signal *contracts.Signal) error {
	query := `
		INSERT INTO trading.signals
			(id, ticker, generated_at, conviction_score, contributing_tx_ids, strength_tier, recommended_action, cluster_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		signal.ID, signal.Ticker, signal.GeneratedAt, signal.ConvictionScore,
		signal.ContributingTxIDs, string(signal.StrengthTier), string(signal.RecommendedAction),
		signal.ClusterSize,
	)
	return err
}

// ListRecent retrieves the most recently generated signals, newest first
func (r *SignalRepository) ListRecent(ctx context.Context, limit int) ([]*contracts.Signal, error) {
	query := `
		SELECT id, ticker, generated_at, conviction_score, contributing_tx_ids, strength_tier, recommended_action, cluster_size
		FROM trading.signals
		ORDER BY generated_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*contracts.Signal
	for rows.Next() {
		var s contracts.Signal
		var tier, action string
		if err := rows.Scan(&s.ID, &s.Ticker, &s.GeneratedAt, &s.ConvictionScore,
			&s.ContributingTxIDs, &tier, &action, &s.ClusterSize); err != nil {
			return nil, err
		}
		s.StrengthTier = contracts.StrengthTier(tier)
		s.RecommendedAction = contracts.Action(action)
		signals = append(signals, &s)
	}
	return signals, rows.Err()
}
