package contracts

import "time"

// TradeRecord is one completed round trip in a backtest
type TradeRecord struct {
	Ticker      string     `json:"ticker"`
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	Quantity    int64      `json:"quantity"`
	ExitReason  ExitReason `json:"exit_reason"`
	NetPnL      float64    `json:"net_pnl"`
	ReturnPct   float64    `json:"return_pct"`
	HoldingDays int        `json:"holding_days"`
}

// EquityPoint is one day of the backtest equity curve
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// PerformanceReport summarizes a completed backtest window.
// Deterministic: identical inputs must produce identical reports.
type PerformanceReport struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`

	TotalReturn       float64 `json:"total_return"`
	WinRate           float64 `json:"win_rate"`
	AvgReturnPerTrade float64 `json:"average_return_per_trade"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	SharpeRatio       float64 `json:"sharpe_ratio"`

	BenchmarkSymbol string  `json:"benchmark_symbol"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	Alpha           float64 `json:"alpha"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	TotalCommission float64 `json:"total_commission"`
	TotalSlippage   float64 `json:"total_slippage"`

	Trades      []TradeRecord `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// WalkForwardReport pairs the in-sample tuning window with the frozen
// out-of-sample evaluation. The two are surfaced separately and never
// blended into one report.
type WalkForwardReport struct {
	SplitDate   time.Time          `json:"split_date"`
	TunedParams map[string]float64 `json:"tuned_params"`
	InSample    *PerformanceReport `json:"in_sample"`
	OutOfSample *PerformanceReport `json:"out_of_sample"`
}
