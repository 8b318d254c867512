package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/logger"
)

// placeOrderAttempts bounds the retry loop for transient broker
// failures. Permanent failures surface immediately.
const placeOrderAttempts = 3

// Manager owns every position transition and the portfolio state.
// All mutation happens under one mutex, and each transition persists
// the position and applies the portfolio delta together: a failed save
// leaves both untouched.
type Manager struct {
	mu        sync.Mutex
	portfolio *contracts.PortfolioState

	positions contracts.PositionRepository
	prices    contracts.PriceProvider
	broker    contracts.Broker
	exits     *strategy.Exits
	costs     *strategy.Backtest
	log       *logger.Logger

	now          func() time.Time
	retryBackoff time.Duration
}

// NewManager creates a lifecycle manager over starting cash
func NewManager(
	cash float64,
	positions contracts.PositionRepository,
	prices contracts.PriceProvider,
	broker contracts.Broker,
	cfg *strategy.Config,
	log *logger.Logger,
) *Manager {
	return &Manager{
		portfolio:    contracts.NewPortfolioState(cash),
		positions:    positions,
		prices:       prices,
		broker:       broker,
		exits:        &cfg.Exits,
		costs:        &cfg.Backtest,
		log:          log,
		now:          time.Now,
		retryBackoff: time.Second,
	}
}

// WithClock replaces the manager's wall clock. The backtest simulator
// pins it to the simulated day.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithRetryBackoff overrides the transient-failure backoff base
func (m *Manager) WithRetryBackoff(d time.Duration) *Manager {
	m.retryBackoff = d
	return m
}

// Restore reloads live positions from the store after a restart. The
// starting cash passed to NewManager is free cash; reservations held by
// restored PENDING positions are re-registered on top of it.
func (m *Manager) Restore(ctx context.Context) error {
	open, err := m.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("restore positions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range open {
		m.portfolio.Positions[p.Ticker] = p
		if p.State == contracts.PositionPending {
			m.portfolio.Reserved += p.Reserved
		}
	}

	if len(open) > 0 {
		m.log.WithField("count", len(open)).Info("restored live positions")
	}
	return nil
}

// Portfolio returns a read-only snapshot of the portfolio state
func (m *Manager) Portfolio() *contracts.PortfolioState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portfolio.Clone()
}

// =============================================================================
// Entry path: proposal -> PENDING -> OPEN
// =============================================================================

// PlaceOrder reserves cash, records a PENDING position, and routes the
// proposal to the broker. A confirmed fill immediately opens the
// position; a placement failure leaves it PENDING for the fill-timeout
// sweep to close.
func (m *Manager) PlaceOrder(ctx context.Context, proposal *contracts.OrderProposal) (*contracts.Position, error) {
	position, err := m.reservePending(ctx, proposal)
	if err != nil {
		return nil, err
	}

	fill, err := m.placeWithRetry(ctx, proposal)
	if err != nil {
		m.log.WithError(err).WithField("ticker", proposal.Ticker).Warn("order placement failed, position stays pending")
		return position, err
	}

	return m.ConfirmFill(ctx, position.ID, fill)
}

// reservePending creates the PENDING position and holds back the
// reservation from cash.
func (m *Manager) reservePending(ctx context.Context, proposal *contracts.OrderProposal) (*contracts.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portfolio.HasTicker(proposal.Ticker) {
		return nil, fmt.Errorf("ticker %s already has a live position", proposal.Ticker)
	}

	reservation := float64(proposal.Quantity) * proposal.ReferencePrice
	if reservation > m.portfolio.Cash {
		return nil, fmt.Errorf("insufficient cash: need %.2f, have %.2f", reservation, m.portfolio.Cash)
	}

	now := m.now()
	position := &contracts.Position{
		ID:       uuid.NewString(),
		Ticker:   proposal.Ticker,
		SignalID: proposal.SignalID,
		Quantity: proposal.Quantity,
		State:    contracts.PositionPending,
		PlacedAt: now,
		Reserved: reservation,
	}

	if err := m.positions.Save(ctx, position); err != nil {
		return nil, fmt.Errorf("persist pending position: %w", err)
	}

	m.portfolio.Cash -= reservation
	m.portfolio.Reserved += reservation
	m.portfolio.Positions[position.Ticker] = position

	m.log.WithFields(map[string]interface{}{
		"ticker":   position.Ticker,
		"quantity": position.Quantity,
		"reserved": reservation,
	}).Info("position pending")

	return position, nil
}

// placeWithRetry retries transient broker failures with backoff.
// Anything non-transient surfaces on the first occurrence.
func (m *Manager) placeWithRetry(ctx context.Context, proposal *contracts.OrderProposal) (*contracts.Fill, error) {
	var lastErr error
	for attempt := 1; attempt <= placeOrderAttempts; attempt++ {
		fill, err := m.broker.PlaceOrder(ctx, proposal)
		if err == nil {
			return fill, nil
		}
		lastErr = err

		var execErr *contracts.ExecutionFailure
		if !errors.As(err, &execErr) || !execErr.Transient {
			return nil, err
		}
		if attempt == placeOrderAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.retryBackoff * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

// ConfirmFill transitions PENDING -> OPEN. The reservation is released
// and the actual fill cost, plus commission, leaves cash. Entry-derived
// exit levels are fixed here and never move.
func (m *Manager) ConfirmFill(ctx context.Context, positionID string, fill *contracts.Fill) (*contracts.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position := m.findLive(positionID)
	if position == nil {
		return nil, fmt.Errorf("no live position %s", positionID)
	}
	if position.State != contracts.PositionPending {
		return nil, fmt.Errorf("position %s is %s, not PENDING", positionID, position.State)
	}

	cost := float64(fill.Quantity)*fill.Price + m.commission(float64(fill.Quantity)*fill.Price)

	updated := *position
	updated.State = contracts.PositionOpen
	updated.Quantity = fill.Quantity
	updated.EntryPrice = fill.Price
	updated.EntryTime = fill.FilledAt
	updated.StopLossPrice = fill.Price * (1 - m.exits.StopLossPct)
	updated.ProfitTargetPrice = fill.Price * (1 + m.exits.ProfitTargetPct)
	updated.MaxHoldUntil = fill.FilledAt.AddDate(0, 0, m.exits.MaxHoldDays)
	updated.Reserved = 0

	if err := m.positions.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persist open position: %w", err)
	}

	m.portfolio.Cash += position.Reserved - cost
	m.portfolio.Reserved -= position.Reserved
	*position = updated

	m.log.WithFields(map[string]interface{}{
		"ticker":   position.Ticker,
		"quantity": position.Quantity,
		"entry":    position.EntryPrice,
		"stop":     position.StopLossPrice,
		"target":   position.ProfitTargetPrice,
	}).Info("position open")

	return position, nil
}

// =============================================================================
// Exit path: OPEN -> CLOSED, PENDING -> CLOSED
// =============================================================================

// EvaluateExits runs one monitoring tick over every live position, in
// ticker order. Stale PENDING positions close with FILL_TIMEOUT; OPEN
// positions are checked against the exit rules at the current price.
// A ticker whose price is unavailable is deferred to the next tick.
func (m *Manager) EvaluateExits(ctx context.Context) ([]*contracts.Position, error) {
	now := m.now()
	var closed []*contracts.Position

	for _, position := range m.livePositions() {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		switch position.State {
		case contracts.PositionPending:
			if now.Sub(position.PlacedAt) >= m.exits.FillTimeout.Std() {
				p, err := m.closeTimedOut(ctx, position.ID, now)
				if err != nil {
					return closed, err
				}
				closed = append(closed, p)
			}

		case contracts.PositionOpen:
			price, err := m.prices.Price(ctx, position.Ticker, now)
			if err != nil {
				if contracts.IsDataUnavailable(err) {
					m.log.WithField("ticker", position.Ticker).Warn("price unavailable, exit check deferred")
					continue
				}
				return closed, err
			}

			reason := exitReason(position, price, now)
			if reason == "" {
				continue
			}

			p, err := m.exitPosition(ctx, position, price, reason)
			if err != nil {
				return closed, err
			}
			closed = append(closed, p)
		}
	}

	return closed, nil
}

// Liquidate closes the ticker's OPEN position at the current market
// price, recording an explicit liquidation.
func (m *Manager) Liquidate(ctx context.Context, ticker string) (*contracts.Position, error) {
	price, err := m.prices.Price(ctx, ticker, m.now())
	if err != nil {
		return nil, err
	}
	return m.LiquidateAt(ctx, ticker, price)
}

// LiquidateAt closes the ticker's OPEN position using a caller-supplied
// reference price. The backtester uses it to unwind the book at the end
// of a window where the final day may have no bar.
func (m *Manager) LiquidateAt(ctx context.Context, ticker string, refPrice float64) (*contracts.Position, error) {
	m.mu.Lock()
	position, ok := m.portfolio.Positions[ticker]
	m.mu.Unlock()

	if !ok || position.State != contracts.PositionOpen {
		return nil, fmt.Errorf("no open position for %s", ticker)
	}

	return m.exitPosition(ctx, position, refPrice, contracts.ExitLiquidation)
}

// exitPosition routes the exit through the broker and applies the
// CLOSED transition with the broker's fill price.
func (m *Manager) exitPosition(ctx context.Context, position *contracts.Position, refPrice float64, reason contracts.ExitReason) (*contracts.Position, error) {
	fill, err := m.broker.Liquidate(ctx, position, refPrice)
	if err != nil {
		return nil, err
	}
	return m.applyClose(ctx, position.ID, fill, reason)
}

// applyClose transitions OPEN -> CLOSED: proceeds return to cash, net
// of commission, and the realized PnL is recorded after round-trip
// costs.
func (m *Manager) applyClose(ctx context.Context, positionID string, fill *contracts.Fill, reason contracts.ExitReason) (*contracts.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position := m.findLive(positionID)
	if position == nil {
		return nil, fmt.Errorf("no live position %s", positionID)
	}
	if position.State != contracts.PositionOpen {
		return nil, fmt.Errorf("position %s is %s, not OPEN", positionID, position.State)
	}

	gross := float64(position.Quantity) * fill.Price
	entryNotional := float64(position.Quantity) * position.EntryPrice
	proceeds := gross - m.commission(gross)

	updated := *position
	updated.State = contracts.PositionClosed
	updated.ExitPrice = fill.Price
	updated.ExitTime = fill.FilledAt
	updated.ExitReason = reason
	updated.RealizedPnL = gross - entryNotional - m.commission(gross) - m.commission(entryNotional)

	if err := m.positions.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persist closed position: %w", err)
	}

	m.portfolio.Cash += proceeds
	delete(m.portfolio.Positions, position.Ticker)

	m.log.WithFields(map[string]interface{}{
		"ticker": updated.Ticker,
		"reason": reason,
		"exit":   fill.Price,
		"pnl":    updated.RealizedPnL,
	}).Info("position closed")

	return &updated, nil
}

// closeTimedOut transitions PENDING -> CLOSED with FILL_TIMEOUT. The
// only portfolio mutation is releasing the reservation.
func (m *Manager) closeTimedOut(ctx context.Context, positionID string, now time.Time) (*contracts.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position := m.findLive(positionID)
	if position == nil {
		return nil, fmt.Errorf("no live position %s", positionID)
	}
	if position.State != contracts.PositionPending {
		return nil, fmt.Errorf("position %s is %s, not PENDING", positionID, position.State)
	}

	updated := *position
	updated.State = contracts.PositionClosed
	updated.ExitReason = contracts.ExitFillTimeout
	updated.ExitTime = now
	updated.Reserved = 0

	if err := m.positions.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("persist timed-out position: %w", err)
	}

	m.portfolio.Cash += position.Reserved
	m.portfolio.Reserved -= position.Reserved
	delete(m.portfolio.Positions, position.Ticker)

	m.log.WithField("ticker", updated.Ticker).Warn("pending fill timed out")

	return &updated, nil
}

// =============================================================================
// Helpers
// =============================================================================

// exitReason applies the exit rules in fixed priority order:
// stop-loss, then profit-target, then time-based. Explicit liquidation
// is requested by the caller and never inferred here.
func exitReason(p *contracts.Position, price float64, now time.Time) contracts.ExitReason {
	switch {
	case price <= p.StopLossPrice:
		return contracts.ExitStopLoss
	case price >= p.ProfitTargetPrice:
		return contracts.ExitProfitTarget
	case !now.Before(p.MaxHoldUntil):
		return contracts.ExitTimeBased
	default:
		return ""
	}
}

func (m *Manager) commission(notional float64) float64 {
	return notional * m.costs.CommissionRate
}

// livePositions snapshots the non-CLOSED positions in ticker order
func (m *Manager) livePositions() []*contracts.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*contracts.Position, 0, len(m.portfolio.Positions))
	for _, p := range m.portfolio.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// findLive returns the tracked position with the id, or nil
func (m *Manager) findLive(positionID string) *contracts.Position {
	for _, p := range m.portfolio.Positions {
		if p.ID == positionID {
			return p
		}
	}
	return nil
}
