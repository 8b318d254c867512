package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/insiderbot/internal/contracts"
)

// PositionRepository implements contracts.PositionRepository on Postgres.
// Closed positions form the append-only trade history; Save upserts so
// the lifecycle manager can persist every state transition.
type PositionRepository struct {
	pool *pgxpool.Pool
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(pool *pgxpool.Pool) *PositionRepository {
	return &PositionRepository{pool: pool}
}

// Save inserts or updates a position by id
func (r *PositionRepository) Save(ctx context.Context, p *contracts.Position) error {
	query := `
		INSERT INTO trading.positions
			(id, ticker, signal_id, entry_price, entry_time, quantity,
			 stop_loss_price, profit_target_price, max_hold_until, state,
			 placed_at, reserved, exit_price, exit_time, exit_reason, realized_pnl)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			entry_price = EXCLUDED.entry_price,
			entry_time = EXCLUDED.entry_time,
			quantity = EXCLUDED.quantity,
			state = EXCLUDED.state,
			reserved = EXCLUDED.reserved,
			exit_price = EXCLUDED.exit_price,
			exit_time = EXCLUDED.exit_time,
			exit_reason = EXCLUDED.exit_reason,
			realized_pnl = EXCLUDED.realized_pnl
	`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Ticker, p.SignalID, p.EntryPrice, p.EntryTime, p.Quantity,
		p.StopLossPrice, p.ProfitTargetPrice, p.MaxHoldUntil, string(p.State),
		p.PlacedAt, p.Reserved, p.ExitPrice, p.ExitTime, string(p.ExitReason), p.RealizedPnL,
	)
	return err
}

// ListOpen retrieves PENDING and OPEN positions ordered by ticker
func (r *PositionRepository) ListOpen(ctx context.Context) ([]*contracts.Position, error) {
	query := `
		SELECT id, ticker, signal_id, entry_price, entry_time, quantity,
			stop_loss_price, profit_target_price, max_hold_until, state,
			placed_at, reserved, exit_price, exit_time, exit_reason, realized_pnl
		FROM trading.positions
		WHERE state <> 'CLOSED'
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListClosed retrieves closed positions, most recent exit first
func (r *PositionRepository) ListClosed(ctx context.Context, limit int) ([]*contracts.Position, error) {
	query := `
		SELECT id, ticker, signal_id, entry_price, entry_time, quantity,
			stop_loss_price, profit_target_price, max_hold_until, state,
			placed_at, reserved, exit_price, exit_time, exit_reason, realized_pnl
		FROM trading.positions
		WHERE state = 'CLOSED'
		ORDER BY exit_time DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

type positionRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPositions(rows positionRows) ([]*contracts.Position, error) {
	var positions []*contracts.Position
	for rows.Next() {
		var p contracts.Position
		var state, exitReason string
		if err := rows.Scan(&p.ID, &p.Ticker, &p.SignalID, &p.EntryPrice, &p.EntryTime, &p.Quantity,
			&p.StopLossPrice, &p.ProfitTargetPrice, &p.MaxHoldUntil, &state,
			&p.PlacedAt, &p.Reserved, &p.ExitPrice, &p.ExitTime, &exitReason, &p.RealizedPnL); err != nil {
			return nil, err
		}
		p.State = contracts.PositionState(state)
		p.ExitReason = contracts.ExitReason(exitReason)
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}
