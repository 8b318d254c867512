package backtest

import (
	"math"
	"sort"

	"github.com/wonny/insiderbot/internal/contracts"
)

// tradingDaysPerYear annualizes the daily sharpe ratio
const tradingDaysPerYear = 252

// buildReport condenses the closed positions and the equity curve into
// the final performance report.
func (e *Engine) buildReport(
	input *Input,
	capital float64,
	closed []*contracts.Position,
	equity []contracts.EquityPoint,
	provider *SeriesProvider,
) *contracts.PerformanceReport {
	report := &contracts.PerformanceReport{
		StartDate:       startOfDay(input.Start),
		EndDate:         startOfDay(input.End),
		InitialCapital:  capital,
		BenchmarkSymbol: e.cfg.Backtest.BenchmarkSymbol,
		EquityCurve:     equity,
	}

	if len(equity) > 0 {
		report.FinalEquity = equity[len(equity)-1].Equity
		report.TotalReturn = report.FinalEquity/capital - 1
	} else {
		report.FinalEquity = capital
	}

	report.Trades = tradeRecords(closed, e.cfg.Backtest.CommissionRate)
	for _, trade := range report.Trades {
		report.TotalTrades++
		if trade.NetPnL > 0 {
			report.WinningTrades++
		} else {
			report.LosingTrades++
		}
		report.AvgReturnPerTrade += trade.ReturnPct

		entryNotional := float64(trade.Quantity) * trade.EntryPrice
		exitNotional := float64(trade.Quantity) * trade.ExitPrice
		report.TotalCommission += e.cfg.Backtest.CommissionRate * (entryNotional + exitNotional)

		// fill prices embed slippage: entry paid raw*(1+s), exit
		// received raw*(1-s); recover the raw notionals to cost it
		s := e.cfg.Backtest.SlippageRate
		if s > 0 {
			report.TotalSlippage += entryNotional * s / (1 + s)
			report.TotalSlippage += exitNotional * s / (1 - s)
		}
	}
	if report.TotalTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.TotalTrades)
		report.AvgReturnPerTrade /= float64(report.TotalTrades)
	}

	report.MaxDrawdown = maxDrawdown(equity)
	report.SharpeRatio = sharpeRatio(equity, e.cfg.Backtest.RiskFreeRate)

	report.BenchmarkReturn = benchmarkReturn(provider, e.cfg.Backtest.BenchmarkSymbol, input)
	report.Alpha = report.TotalReturn - report.BenchmarkReturn

	return report
}

// tradeRecords converts closed positions into round-trip records,
// ordered by exit date then ticker. FILL_TIMEOUT closes were never
// trades and are excluded.
func tradeRecords(closed []*contracts.Position, commissionRate float64) []contracts.TradeRecord {
	var trades []contracts.TradeRecord
	for _, p := range closed {
		if p.ExitReason == contracts.ExitFillTimeout {
			continue
		}
		record := contracts.TradeRecord{
			Ticker:      p.Ticker,
			EntryDate:   p.EntryTime,
			EntryPrice:  p.EntryPrice,
			ExitDate:    p.ExitTime,
			ExitPrice:   p.ExitPrice,
			Quantity:    p.Quantity,
			ExitReason:  p.ExitReason,
			NetPnL:      p.RealizedPnL,
			HoldingDays: int(p.ExitTime.Sub(p.EntryTime).Hours() / 24),
		}
		if basis := float64(p.Quantity) * p.EntryPrice; basis > 0 {
			record.ReturnPct = p.RealizedPnL / basis
		}
		trades = append(trades, record)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].ExitDate.Equal(trades[j].ExitDate) {
			return trades[i].ExitDate.Before(trades[j].ExitDate)
		}
		return trades[i].Ticker < trades[j].Ticker
	})
	return trades
}

// maxDrawdown returns the deepest peak-to-trough decline as a positive
// fraction of the peak.
func maxDrawdown(equity []contracts.EquityPoint) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			if dd := (peak - point.Equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpeRatio computes the annualized sharpe of the curve's daily
// returns against the annual risk-free rate. Fewer than two returns, or
// a flat curve, yields zero.
func sharpeRatio(equity []contracts.EquityPoint, riskFreeRate float64) float64 {
	if len(equity) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			return 0
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}

	dailyRiskFree := riskFreeRate / tradingDaysPerYear

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return (mean - dailyRiskFree) / std * math.Sqrt(tradingDaysPerYear)
}

// benchmarkReturn is the buy-and-hold return of the benchmark symbol
// over the window. A missing benchmark series yields zero.
func benchmarkReturn(provider *SeriesProvider, symbol string, input *Input) float64 {
	series, ok := provider.series[symbol]
	if !ok || len(series) == 0 {
		return 0
	}

	var first, last float64
	found := false
	for _, point := range series {
		if point.Date.Before(startOfDay(input.Start)) || point.Date.After(endOfDay(input.End)) {
			continue
		}
		if !found {
			first = point.Price
			found = true
		}
		last = point.Price
	}
	if !found || first == 0 {
		return 0
	}
	return last/first - 1
}
