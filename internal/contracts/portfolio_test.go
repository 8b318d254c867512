package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortfolioState_Exposure(t *testing.T) {
	ps := NewPortfolioState(100_000)
	ps.Reserved = 2_000
	ps.Positions["XYZ"] = &Position{
		Ticker:     "XYZ",
		State:      PositionOpen,
		Quantity:   100,
		EntryPrice: 50,
	}
	ps.Positions["ABC"] = &Position{
		Ticker:   "ABC",
		State:    PositionPending,
		Reserved: 2_000,
	}

	// Pending positions count through the reservation, not notional
	assert.InDelta(t, 2_000+100*50.0, ps.Exposure(), 1e-9)
	assert.InDelta(t, 100_000+2_000+5_000, ps.Value(), 1e-9)
	assert.Equal(t, 2, ps.OpenCount())
	assert.True(t, ps.HasTicker("XYZ"))
	assert.False(t, ps.HasTicker("QQQ"))
}

func TestPortfolioState_CloneIsDeep(t *testing.T) {
	ps := NewPortfolioState(1_000)
	ps.Positions["XYZ"] = &Position{Ticker: "XYZ", State: PositionOpen, Quantity: 10, EntryPrice: 5}

	cp := ps.Clone()
	cp.Cash = 0
	cp.Positions["XYZ"].Quantity = 999

	assert.Equal(t, float64(1_000), ps.Cash)
	assert.Equal(t, int64(10), ps.Positions["XYZ"].Quantity)
}
