package policy

import (
	"fmt"
	"math"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/strategy"
)

// Policy is the risk and sizing gate between scored signals and order
// placement. Evaluate is a pure function of its inputs: no I/O, no
// clock, no hidden state. The live pipeline and the backtester call
// the exact same code path.
type Policy struct {
	cfg *strategy.Sizing
}

// New creates a new Policy
func New(cfg *strategy.Sizing) *Policy {
	return &Policy{cfg: cfg}
}

// Evaluate sizes an order for the signal against the portfolio, or
// returns a PolicyRejection with a structured reason. refPrice is the
// decision-time reference price used for sizing only; the eventual
// fill price comes from the execution path.
func (p *Policy) Evaluate(signal *contracts.Signal, portfolio *contracts.PortfolioState, refPrice float64) (*contracts.OrderProposal, error) {
	if !signal.IsBuy() {
		return nil, &contracts.PolicyRejection{Reason: contracts.RejectActionNotBuy}
	}

	if portfolio.HasTicker(signal.Ticker) {
		return nil, &contracts.PolicyRejection{
			Reason: contracts.RejectTickerAlreadyOpen,
			Detail: signal.Ticker,
		}
	}

	if portfolio.OpenCount() >= p.cfg.MaxPositions {
		return nil, &contracts.PolicyRejection{
			Reason: contracts.RejectMaxPositions,
			Detail: fmt.Sprintf("limit %d", p.cfg.MaxPositions),
		}
	}

	value := portfolio.Value()
	allocation := value * p.cfg.BaseAllocationPct * p.cfg.TierMultiplier(signal.StrengthTier)

	if portfolio.Exposure()+allocation > value*p.cfg.MaxExposurePct {
		return nil, &contracts.PolicyRejection{
			Reason: contracts.RejectExposureLimit,
			Detail: fmt.Sprintf("exposure %.2f + allocation %.2f exceeds %.0f%% of %.2f",
				portfolio.Exposure(), allocation, p.cfg.MaxExposurePct*100, value),
		}
	}

	quantity := int64(math.Floor(allocation / refPrice))
	if quantity <= 0 {
		return nil, &contracts.PolicyRejection{
			Reason: contracts.RejectAllocationTooSmall,
			Detail: fmt.Sprintf("allocation %.2f at price %.2f", allocation, refPrice),
		}
	}

	return &contracts.OrderProposal{
		SignalID:       signal.ID,
		Ticker:         signal.Ticker,
		Quantity:       quantity,
		ReferencePrice: refPrice,
		AllocationPct:  p.cfg.BaseAllocationPct * p.cfg.TierMultiplier(signal.StrengthTier),
	}, nil
}
