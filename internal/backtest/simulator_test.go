package backtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/logger"
)

var simStart = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

// flatThenStep builds a daily series holding flat at base until
// stepDay (0-indexed from start), then holding at stepped.
func flatThenStep(start time.Time, days int, base, stepped float64, stepDay int) []contracts.PricePoint {
	points := make([]contracts.PricePoint, days)
	for i := 0; i < days; i++ {
		price := base
		if i >= stepDay {
			price = stepped
		}
		points[i] = contracts.PricePoint{Date: start.AddDate(0, 0, i), Price: price}
	}
	return points
}

func ceoRecord(ticker string, value float64, filed time.Time) *contracts.RawRecord {
	return &contracts.RawRecord{
		Ticker:          ticker,
		InsiderName:     "Jane Smith",
		InsiderRoleText: "CEO",
		Value:           value,
		Shares:          value / 50,
		PricePerShare:   50,
		TradeDate:       filed.AddDate(0, 0, -1),
		FilingDate:      filed,
	}
}

func simConfig() *strategy.Config {
	cfg := strategy.Default()
	cfg.Backtest.SlippageRate = 0.001
	cfg.Backtest.CommissionRate = 0.001
	return cfg
}

func TestRunProfitTargetRoundTrip(t *testing.T) {
	cfg := simConfig()
	end := simStart.AddDate(0, 0, 20)

	input := &Input{
		Records: []*contracts.RawRecord{
			ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
		},
		Prices: map[string][]contracts.PricePoint{
			// flat at 50 through the fill, stepped to 60 on day 10
			"XYZ": flatThenStep(simStart, 21, 50, 60, 10),
			"SPY": flatThenStep(simStart, 21, 100, 105, 10),
		},
		Start: simStart,
		End:   end,
	}

	report, err := NewEngine(cfg, logger.NewNop()).Run(context.Background(), input)
	require.NoError(t, err)

	require.NotEmpty(t, report.Trades)
	first := report.Trades[0]
	assert.Equal(t, "XYZ", first.Ticker)
	assert.Equal(t, contracts.ExitProfitTarget, first.ExitReason)

	// decision on day 1, fill against day 2's bar with entry slippage
	assert.Equal(t, simStart.AddDate(0, 0, 2), first.EntryDate)
	assert.InDelta(t, 50*1.001, first.EntryPrice, 1e-9)

	// exit against the stepped bar with exit slippage
	assert.InDelta(t, 60*(1-0.001), first.ExitPrice, 1e-9)
	assert.Greater(t, first.NetPnL, 0.0)

	assert.Greater(t, report.TotalReturn, 0.0)
	assert.InDelta(t, 0.05, report.BenchmarkReturn, 1e-9)
	assert.InDelta(t, report.TotalReturn-0.05, report.Alpha, 1e-9)
	assert.Greater(t, report.TotalCommission, 0.0)
	assert.Greater(t, report.TotalSlippage, 0.0)
	assert.Len(t, report.EquityCurve, 21)
}

func TestRunStopLossRoundTrip(t *testing.T) {
	cfg := simConfig()
	end := simStart.AddDate(0, 0, 20)

	input := &Input{
		Records: []*contracts.RawRecord{
			ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
		},
		Prices: map[string][]contracts.PricePoint{
			// drops well through the 3% stop on day 6
			"XYZ": flatThenStep(simStart, 21, 50, 45, 6),
			"SPY": flatThenStep(simStart, 21, 100, 100, 0),
		},
		Start: simStart,
		End:   end,
	}

	report, err := NewEngine(cfg, logger.NewNop()).Run(context.Background(), input)
	require.NoError(t, err)

	require.NotEmpty(t, report.Trades)
	first := report.Trades[0]
	assert.Equal(t, contracts.ExitStopLoss, first.ExitReason)
	assert.Less(t, first.NetPnL, 0.0)
	assert.Greater(t, report.MaxDrawdown, 0.0)
}

func TestRunNoLookAheadOnEntry(t *testing.T) {
	cfg := simConfig()
	cfg.Backtest.SlippageRate = 0

	input := &Input{
		Records: []*contracts.RawRecord{
			ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
		},
		Prices: map[string][]contracts.PricePoint{
			// decision bar 50, next bar gaps to 55: the fill must pay 55
			"XYZ": flatThenStep(simStart, 15, 50, 55, 2),
			"SPY": flatThenStep(simStart, 15, 100, 100, 0),
		},
		Start: simStart,
		End:   simStart.AddDate(0, 0, 14),
	}

	report, err := NewEngine(cfg, logger.NewNop()).Run(context.Background(), input)
	require.NoError(t, err)

	require.NotEmpty(t, report.Trades)
	assert.InDelta(t, 55.0, report.Trades[0].EntryPrice, 1e-9)
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := simConfig()
	end := simStart.AddDate(0, 0, 30)

	build := func() *Input {
		return &Input{
			Records: []*contracts.RawRecord{
				ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
				ceoRecord("ABC", 180000, simStart.AddDate(0, 0, 3)),
				{
					Ticker: "XYZ", InsiderName: "John Doe", InsiderRoleText: "CFO",
					Value: 150000, Shares: 3000, PricePerShare: 50,
					TradeDate:  simStart.AddDate(0, 0, 4),
					FilingDate: simStart.AddDate(0, 0, 5),
				},
			},
			Prices: map[string][]contracts.PricePoint{
				"XYZ": flatThenStep(simStart, 31, 50, 56, 12),
				"ABC": flatThenStep(simStart, 31, 20, 19, 15),
				"SPY": flatThenStep(simStart, 31, 100, 103, 20),
			},
			Start: simStart,
			End:   end,
		}
	}

	run := func() []byte {
		report, err := NewEngine(cfg, logger.NewNop()).Run(context.Background(), build())
		require.NoError(t, err)
		// ids are random but never enter the report; the serialized
		// form must match byte for byte
		data, err := json.Marshal(report)
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run())
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := simConfig()

	input := &Input{
		Records: []*contracts.RawRecord{
			ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
		},
		Prices: map[string][]contracts.PricePoint{
			"XYZ": flatThenStep(simStart, 30, 50, 50, 0),
		},
		Start: simStart,
		End:   simStart.AddDate(0, 0, 29),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewEngine(cfg, logger.NewNop()).Run(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func TestRunUnwindsBookAtWindowEnd(t *testing.T) {
	cfg := simConfig()

	input := &Input{
		Records: []*contracts.RawRecord{
			ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
		},
		Prices: map[string][]contracts.PricePoint{
			// flat forever: neither stop nor target fires inside a
			// short window and the hold limit is not reached
			"XYZ": flatThenStep(simStart, 8, 50, 50, 0),
			"SPY": flatThenStep(simStart, 8, 100, 100, 0),
		},
		Start: simStart,
		End:   simStart.AddDate(0, 0, 7),
	}

	report, err := NewEngine(cfg, logger.NewNop()).Run(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, report.Trades, 1)
	assert.Equal(t, contracts.ExitLiquidation, report.Trades[0].ExitReason)
}

func TestWalkForwardProducesSeparateReports(t *testing.T) {
	cfg := simConfig()
	end := simStart.AddDate(0, 0, 59)
	split := simStart.AddDate(0, 0, 30)

	input := &Input{
		Records: []*contracts.RawRecord{
			ceoRecord("XYZ", 250000, simStart.AddDate(0, 0, 1)),
			ceoRecord("ABC", 200000, split.AddDate(0, 0, 2)),
		},
		Prices: map[string][]contracts.PricePoint{
			"XYZ": flatThenStep(simStart, 60, 50, 55, 10),
			"ABC": flatThenStep(simStart, 60, 20, 22, 40),
			"SPY": flatThenStep(simStart, 60, 100, 102, 30),
		},
		Start: simStart,
		End:   end,
	}

	report, err := WalkForward(context.Background(), cfg, input, split, logger.NewNop())
	require.NoError(t, err)

	require.NotNil(t, report.InSample)
	require.NotNil(t, report.OutOfSample)
	assert.Equal(t, split, report.SplitDate)
	assert.Contains(t, report.TunedParams, "action_threshold")
	assert.Contains(t, report.TunedParams, "cluster_bonus")

	// windows do not overlap
	assert.True(t, report.InSample.EndDate.Before(report.OutOfSample.StartDate))
}

func TestWalkForwardRejectsBadSplit(t *testing.T) {
	cfg := simConfig()
	input := &Input{
		Prices: map[string][]contracts.PricePoint{},
		Start:  simStart,
		End:    simStart.AddDate(0, 0, 10),
	}

	_, err := WalkForward(context.Background(), cfg, input, simStart, logger.NewNop())
	assert.Error(t, err)
}

func TestMaxDrawdown(t *testing.T) {
	curve := []contracts.EquityPoint{
		{Equity: 100}, {Equity: 110}, {Equity: 99}, {Equity: 104}, {Equity: 120},
	}
	assert.InDelta(t, 0.1, maxDrawdown(curve), 1e-9) // 110 -> 99
}

func TestSharpeRatioFlatCurveIsZero(t *testing.T) {
	curve := []contracts.EquityPoint{{Equity: 100}, {Equity: 100}, {Equity: 100}}
	assert.Zero(t, sharpeRatio(curve, 0))
}
