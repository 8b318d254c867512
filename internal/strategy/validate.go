package strategy

import "fmt"

// ValidationError is a strategy config constraint violation. Fatal at
// startup: a process must not trade on a malformed parameter set.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints on a strategy config
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Scoring ===
	if cfg.Scoring.MinTransactionValue <= 0 {
		return ValidationError{"scoring.min_transaction_value", "must be > 0"}
	}
	if cfg.Scoring.LookbackWindowDays <= 0 {
		return ValidationError{"scoring.lookback_window_days", "must be > 0"}
	}
	if cfg.Scoring.ClusterBonus < 1.0 {
		return ValidationError{"scoring.cluster_bonus", "must be >= 1.0"}
	}
	if cfg.Scoring.ActionThreshold < 0 || cfg.Scoring.ActionThreshold > 100 {
		return ValidationError{"scoring.action_threshold", "must be in [0, 100]"}
	}

	// Seniority must preserve the ordinal CEO > CFO > Director > Other
	w := cfg.Scoring.Seniority
	if !(w.CEO > w.CFO && w.CFO > w.Director && w.Director > w.Other) {
		return ValidationError{"scoring.seniority", "weights must satisfy ceo > cfo > director > other"}
	}
	if w.Other < 0 {
		return ValidationError{"scoring.seniority.other", "must be >= 0"}
	}

	// === Sizing ===
	if cfg.Sizing.BaseAllocationPct <= 0 || cfg.Sizing.BaseAllocationPct > 1 {
		return ValidationError{"sizing.base_allocation_pct", "must be in (0, 1]"}
	}
	if cfg.Sizing.MaxPositions <= 0 {
		return ValidationError{"sizing.max_positions", "must be > 0"}
	}
	if cfg.Sizing.MaxExposurePct <= 0 || cfg.Sizing.MaxExposurePct > 1 {
		return ValidationError{"sizing.max_exposure_pct", "must be in (0, 1]"}
	}
	if cfg.Sizing.HighMultiplier < cfg.Sizing.MediumMultiplier {
		return ValidationError{"sizing", "high_multiplier must be >= medium_multiplier"}
	}

	// === Exits ===
	if cfg.Exits.StopLossPct <= 0 || cfg.Exits.StopLossPct >= 1 {
		return ValidationError{"exits.stop_loss_pct", "must be in (0, 1)"}
	}
	if cfg.Exits.ProfitTargetPct <= 0 {
		return ValidationError{"exits.profit_target_pct", "must be > 0"}
	}
	if cfg.Exits.MaxHoldDays <= 0 {
		return ValidationError{"exits.max_hold_days", "must be > 0"}
	}
	if cfg.Exits.FillTimeout <= 0 {
		return ValidationError{"exits.fill_timeout", "must be > 0"}
	}

	// === Backtest ===
	if cfg.Backtest.InitialCapital <= 0 {
		return ValidationError{"backtest.initial_capital", "must be > 0"}
	}
	if cfg.Backtest.CommissionRate < 0 || cfg.Backtest.SlippageRate < 0 {
		return ValidationError{"backtest", "commission_rate and slippage_rate must be >= 0"}
	}
	if cfg.Backtest.BenchmarkSymbol == "" {
		return ValidationError{"backtest.benchmark_symbol", "required"}
	}

	return nil
}
