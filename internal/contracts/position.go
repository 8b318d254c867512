package contracts

import "time"

// PositionState is the lifecycle state of a position
type PositionState string

const (
	PositionPending PositionState = "PENDING" // order placed, fill not yet confirmed
	PositionOpen    PositionState = "OPEN"    // fill confirmed, under monitoring
	PositionClosed  PositionState = "CLOSED"  // terminal; append-only history
)

// ExitReason records why a position left the OPEN (or PENDING) state.
// When several exit conditions are true on the same tick, exactly one
// reason is recorded following the fixed priority
// stop-loss > profit-target > time-based > liquidation.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitTimeBased    ExitReason = "TIME_BASED"
	ExitLiquidation  ExitReason = "LIQUIDATION"
	ExitFillTimeout  ExitReason = "FILL_TIMEOUT" // PENDING never confirmed
)

// Position tracks a single entry originated by a signal.
// Owned exclusively by the lifecycle manager; all mutation goes through
// its transition functions.
type Position struct {
	ID                string        `json:"id"`
	Ticker            string        `json:"ticker"`
	SignalID          string        `json:"originating_signal_id"`
	EntryPrice        float64       `json:"entry_price"`
	EntryTime         time.Time     `json:"entry_time"`
	Quantity          int64         `json:"quantity"`
	StopLossPrice     float64       `json:"stop_loss_price"`
	ProfitTargetPrice float64       `json:"profit_target_price"`
	MaxHoldUntil      time.Time     `json:"max_hold_until"`
	State             PositionState `json:"state"`

	// Pending bookkeeping
	PlacedAt time.Time `json:"placed_at"`
	Reserved float64   `json:"reserved"` // cash reserved while PENDING

	// Exit bookkeeping (set on CLOSED)
	ExitPrice   float64    `json:"exit_price,omitempty"`
	ExitTime    time.Time  `json:"exit_time,omitzero"`
	ExitReason  ExitReason `json:"exit_reason,omitempty"`
	RealizedPnL float64    `json:"realized_pnl,omitempty"`
}

// Notional returns the position's cost-basis market exposure
func (p *Position) Notional() float64 {
	return float64(p.Quantity) * p.EntryPrice
}

// IsTerminal reports whether the position can no longer transition
func (p *Position) IsTerminal() bool {
	return p.State == PositionClosed
}

// OrderProposal is the risk policy's sized order for an approved signal
type OrderProposal struct {
	SignalID       string  `json:"signal_id"`
	Ticker         string  `json:"ticker"`
	Quantity       int64   `json:"quantity"`
	ReferencePrice float64 `json:"reference_price"` // decision-time price, not the fill price
	AllocationPct  float64 `json:"allocation_pct"`
}

// Fill is a confirmed execution reported by the broker or the
// backtest simulator.
type Fill struct {
	Ticker   string    `json:"ticker"`
	Quantity int64     `json:"quantity"`
	Price    float64   `json:"price"`
	FilledAt time.Time `json:"filled_at"`
}
