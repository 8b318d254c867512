package strategy

import (
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
)

// Config is the full strategy parameter set. Loaded from YAML; the
// same frozen struct drives the live pipeline and the backtester so a
// backtest always evaluates exactly what production would trade.
type Config struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Scoring  Scoring  `yaml:"scoring" json:"scoring"`
	Sizing   Sizing   `yaml:"sizing" json:"sizing"`
	Exits    Exits    `yaml:"exits" json:"exits"`
	Backtest Backtest `yaml:"backtest" json:"backtest"`
}

// Meta identifies the strategy revision
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Scoring drives the signal scorer's declarative weight table.
// Monetary thresholds are unit-agnostic numbers; the currency belongs
// to deployment configuration, not the strategy.
type Scoring struct {
	MinTransactionValue float64 `yaml:"min_transaction_value" json:"min_transaction_value"`
	LookbackWindowDays  int     `yaml:"lookback_window_days" json:"lookback_window_days"`

	// Value component: value_log_scale * ln(1 + total/min), capped
	ValueLogScale float64 `yaml:"value_log_scale" json:"value_log_scale"`
	ValueScoreCap float64 `yaml:"value_score_cap" json:"value_score_cap"`

	// Seniority weights, ordinal: CEO > CFO > Director > Other
	Seniority SeniorityWeights `yaml:"seniority" json:"seniority"`

	// Recency bonus for filings inside recency_days of scoring time
	RecencyDays  int     `yaml:"recency_days" json:"recency_days"`
	RecencyBonus float64 `yaml:"recency_bonus" json:"recency_bonus"`

	// Multiplicative bonus when >=2 distinct insiders file actionable
	// purchases inside the lookback window
	ClusterBonus float64 `yaml:"cluster_bonus" json:"cluster_bonus"`

	// Minimum conviction for a BUY recommendation
	ActionThreshold float64 `yaml:"action_threshold" json:"action_threshold"`
}

// SeniorityWeights are the fixed ordinal role weights
type SeniorityWeights struct {
	CEO      float64 `yaml:"ceo" json:"ceo"`
	CFO      float64 `yaml:"cfo" json:"cfo"`
	Director float64 `yaml:"director" json:"director"`
	Other    float64 `yaml:"other" json:"other"`
}

// Weight returns the configured weight for a role
func (w SeniorityWeights) Weight(role contracts.InsiderRole) float64 {
	switch role {
	case contracts.RoleCEO:
		return w.CEO
	case contracts.RoleCFO:
		return w.CFO
	case contracts.RoleDirector:
		return w.Director
	default:
		return w.Other
	}
}

// Sizing drives the risk & sizing policy
type Sizing struct {
	BaseAllocationPct float64 `yaml:"base_allocation_pct" json:"base_allocation_pct"`

	// Per-tier scaling of the base allocation
	HighMultiplier   float64 `yaml:"high_multiplier" json:"high_multiplier"`
	MediumMultiplier float64 `yaml:"medium_multiplier" json:"medium_multiplier"`
	LowMultiplier    float64 `yaml:"low_multiplier" json:"low_multiplier"`

	MaxPositions   int     `yaml:"max_positions" json:"max_positions"`
	MaxExposurePct float64 `yaml:"max_exposure_pct" json:"max_exposure_pct"`
}

// TierMultiplier returns the allocation scaling for a strength tier
func (s Sizing) TierMultiplier(tier contracts.StrengthTier) float64 {
	switch tier {
	case contracts.TierHigh:
		return s.HighMultiplier
	case contracts.TierMedium:
		return s.MediumMultiplier
	default:
		return s.LowMultiplier
	}
}

// Exits drives the position lifecycle manager
type Exits struct {
	StopLossPct     float64  `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	ProfitTargetPct float64  `yaml:"profit_target_pct" json:"profit_target_pct"`
	MaxHoldDays     int      `yaml:"max_hold_days" json:"max_hold_days"`
	FillTimeout     Duration `yaml:"fill_timeout" json:"fill_timeout"`
}

// Backtest drives the historical replay engine
type Backtest struct {
	InitialCapital  float64 `yaml:"initial_capital" json:"initial_capital"`
	CommissionRate  float64 `yaml:"commission_rate" json:"commission_rate"`
	SlippageRate    float64 `yaml:"slippage_rate" json:"slippage_rate"`
	BenchmarkSymbol string  `yaml:"benchmark_symbol" json:"benchmark_symbol"`
	RiskFreeRate    float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
}

// Default returns the baseline parameter set. Matches the values the
// strategy was originally tuned with.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "insider_cluster_v1",
			Version:    "1.0.0",
		},
		Scoring: Scoring{
			MinTransactionValue: 100_000,
			LookbackWindowDays:  30,

			ValueLogScale: 20.0,
			ValueScoreCap: 40.0,

			Seniority: SeniorityWeights{
				CEO:      20.0,
				CFO:      16.0,
				Director: 10.0,
				Other:    5.0,
			},

			RecencyDays:  3,
			RecencyBonus: 10.0,

			ClusterBonus: 1.25,

			ActionThreshold: 40.0, // MEDIUM or higher
		},
		Sizing: Sizing{
			BaseAllocationPct: 0.02,
			HighMultiplier:    1.0,
			MediumMultiplier:  0.6,
			LowMultiplier:     0.0,
			MaxPositions:      10,
			MaxExposurePct:    0.20,
		},
		Exits: Exits{
			StopLossPct:     0.03,
			ProfitTargetPct: 0.06,
			MaxHoldDays:     10,
			FillTimeout:     Duration(time.Hour),
		},
		Backtest: Backtest{
			InitialCapital:  100_000,
			CommissionRate:  0.001,
			SlippageRate:    0.001,
			BenchmarkSymbol: "SPY",
			RiskFreeRate:    0.0,
		},
	}
}
