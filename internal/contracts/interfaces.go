package contracts

import (
	"context"
	"time"
)

// =============================================================================
// Repository interfaces
// Implementations: internal/store (postgres + in-memory)
// =============================================================================

// TransactionRepository stores canonical transactions keyed by
// fingerprint. Insert must fail atomically on a fingerprint collision:
// either the transaction and its fingerprint are both recorded, or
// neither is.
type TransactionRepository interface {
	Insert(ctx context.Context, tx *Transaction) error
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
	ListByTickerSince(ctx context.Context, ticker string, since time.Time) ([]*Transaction, error)
	ListTickersSince(ctx context.Context, since time.Time) ([]string, error)
}

// SignalRepository stores generated signals
type SignalRepository interface {
	Insert(ctx context.Context, signal *Signal) error
	ListRecent(ctx context.Context, limit int) ([]*Signal, error)
}

// PositionRepository stores positions, including closed history
type PositionRepository interface {
	Save(ctx context.Context, position *Position) error
	ListOpen(ctx context.Context) ([]*Position, error)
	ListClosed(ctx context.Context, limit int) ([]*Position, error)
}

// =============================================================================
// Collaborator interfaces
// =============================================================================

// PricePoint is one bar of a daily price series
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceProvider answers price queries. Price returns DataUnavailable
// when it cannot answer; callers defer, never assume.
type PriceProvider interface {
	Price(ctx context.Context, ticker string, at time.Time) (float64, error)
	HistoricalSeries(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error)
}

// DisclosureSource yields raw insider purchase records. May deliver
// duplicates; the normalizer tolerates them.
type DisclosureSource interface {
	FetchRecent(ctx context.Context, lookback time.Duration) ([]*RawRecord, error)
}

// Broker is the execution provider contract required by the lifecycle
// manager in live and paper modes. The backtest simulator substitutes
// its own fill resolution and never touches a Broker.
type Broker interface {
	PlaceOrder(ctx context.Context, proposal *OrderProposal) (*Fill, error)
	Liquidate(ctx context.Context, position *Position, refPrice float64) (*Fill, error)
}
