package policy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/strategy"
)

func newPolicy() *Policy {
	cfg := strategy.Default()
	return New(&cfg.Sizing)
}

func buySignal(ticker string, tier contracts.StrengthTier) *contracts.Signal {
	return &contracts.Signal{
		ID:                "sig-" + ticker,
		Ticker:            ticker,
		GeneratedAt:       time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
		ConvictionScore:   55,
		StrengthTier:      tier,
		RecommendedAction: contracts.ActionBuy,
	}
}

func openPosition(ticker string, notional float64) *contracts.Position {
	return &contracts.Position{
		ID:         "pos-" + ticker,
		Ticker:     ticker,
		EntryPrice: notional / 10,
		Quantity:   10,
		State:      contracts.PositionOpen,
	}
}

func TestEvaluateSizesMediumTierOrder(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(100_000)

	proposal, err := p.Evaluate(buySignal("XYZ", contracts.TierMedium), portfolio, 50)
	require.NoError(t, err)

	// 100k * 2% * 0.6 = 1200 -> 24 shares at 50
	assert.Equal(t, int64(24), proposal.Quantity)
	assert.Equal(t, 50.0, proposal.ReferencePrice)
	assert.InDelta(t, 0.012, proposal.AllocationPct, 1e-9)
}

func TestEvaluateHighTierGetsFullBase(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(100_000)

	proposal, err := p.Evaluate(buySignal("XYZ", contracts.TierHigh), portfolio, 50)
	require.NoError(t, err)

	// 100k * 2% * 1.0 = 2000 -> 40 shares at 50
	assert.Equal(t, int64(40), proposal.Quantity)
}

func TestEvaluateRejectsNonBuy(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(100_000)

	signal := buySignal("XYZ", contracts.TierMedium)
	signal.RecommendedAction = contracts.ActionSkip

	_, err := p.Evaluate(signal, portfolio, 50)
	rejection, ok := contracts.AsPolicyRejection(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RejectActionNotBuy, rejection.Reason)
}

func TestEvaluateRejectsTickerAlreadyOpen(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(100_000)
	portfolio.Positions["XYZ"] = openPosition("XYZ", 1000)

	_, err := p.Evaluate(buySignal("XYZ", contracts.TierHigh), portfolio, 50)
	rejection, ok := contracts.AsPolicyRejection(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RejectTickerAlreadyOpen, rejection.Reason)
}

func TestEvaluateRejectsAtMaxPositions(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(100_000)
	for i := 0; i < 10; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		portfolio.Positions[ticker] = openPosition(ticker, 1000)
	}

	_, err := p.Evaluate(buySignal("XYZ", contracts.TierHigh), portfolio, 50)
	rejection, ok := contracts.AsPolicyRejection(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RejectMaxPositions, rejection.Reason)
}

func TestEvaluateRejectsExposureLimit(t *testing.T) {
	p := newPolicy()

	// 19.5k of the 20k exposure cap is deployed; a 2k HIGH order breaches it
	portfolio := contracts.NewPortfolioState(80_500)
	portfolio.Positions["AAA"] = openPosition("AAA", 19_500)

	_, err := p.Evaluate(buySignal("XYZ", contracts.TierHigh), portfolio, 50)
	rejection, ok := contracts.AsPolicyRejection(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RejectExposureLimit, rejection.Reason)
}

func TestEvaluateRejectsAllocationTooSmall(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(1_000)

	// 1000 * 2% * 0.6 = 12, below one share at 50
	_, err := p.Evaluate(buySignal("XYZ", contracts.TierMedium), portfolio, 50)
	rejection, ok := contracts.AsPolicyRejection(err)
	require.True(t, ok)
	assert.Equal(t, contracts.RejectAllocationTooSmall, rejection.Reason)
}

func TestEvaluateIsPure(t *testing.T) {
	p := newPolicy()
	portfolio := contracts.NewPortfolioState(100_000)
	portfolio.Positions["AAA"] = openPosition("AAA", 2000)

	before := portfolio.Clone()

	_, err := p.Evaluate(buySignal("XYZ", contracts.TierHigh), portfolio, 50)
	require.NoError(t, err)

	assert.Equal(t, before.Cash, portfolio.Cash)
	assert.Equal(t, before.Reserved, portfolio.Reserved)
	assert.Equal(t, before.OpenCount(), portfolio.OpenCount())
}
