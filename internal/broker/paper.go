package broker

import (
	"context"
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/pkg/logger"
)

// Paper is the paper-trading execution provider. Orders fill instantly
// at the reference price plus a configurable slippage haircut, so paper
// fills behave like mildly pessimistic market orders. Implements
// contracts.Broker.
type Paper struct {
	slippageRate float64
	log          *logger.Logger
	now          func() time.Time
}

// NewPaper creates a paper broker with the given slippage rate
func NewPaper(slippageRate float64, log *logger.Logger) *Paper {
	return &Paper{
		slippageRate: slippageRate,
		log:          log,
		now:          time.Now,
	}
}

// WithClock replaces the broker's wall clock
func (b *Paper) WithClock(now func() time.Time) *Paper {
	b.now = now
	return b
}

// PlaceOrder fills the proposal at the reference price plus slippage
func (b *Paper) PlaceOrder(ctx context.Context, proposal *contracts.OrderProposal) (*contracts.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, &contracts.ExecutionFailure{Op: "place_order", Transient: true, Err: err}
	}

	fill := &contracts.Fill{
		Ticker:   proposal.Ticker,
		Quantity: proposal.Quantity,
		Price:    proposal.ReferencePrice * (1 + b.slippageRate),
		FilledAt: b.now(),
	}

	b.log.WithFields(map[string]interface{}{
		"ticker":   fill.Ticker,
		"quantity": fill.Quantity,
		"price":    fill.Price,
	}).Info("paper order filled")

	return fill, nil
}

// Liquidate fills the exit at the reference price minus slippage
func (b *Paper) Liquidate(ctx context.Context, position *contracts.Position, refPrice float64) (*contracts.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, &contracts.ExecutionFailure{Op: "liquidate", Transient: true, Err: err}
	}

	fill := &contracts.Fill{
		Ticker:   position.Ticker,
		Quantity: position.Quantity,
		Price:    refPrice * (1 - b.slippageRate),
		FilledAt: b.now(),
	}

	b.log.WithFields(map[string]interface{}{
		"ticker":   fill.Ticker,
		"quantity": fill.Quantity,
		"price":    fill.Price,
	}).Info("paper position liquidated")

	return fill, nil
}
