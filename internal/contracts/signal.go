package contracts

import "time"

// StrengthTier buckets conviction scores into coarse signal strength
type StrengthTier string

const (
	TierLow    StrengthTier = "LOW"
	TierMedium StrengthTier = "MEDIUM"
	TierHigh   StrengthTier = "HIGH"
)

// Action is the scorer's recommendation for a signal
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSkip Action = "SKIP"
)

// Signal is a scored, actionable view over one or more clustered insider
// transactions for a single ticker.
// Never mutated after creation; a new Signal supersedes it when further
// transactions arrive for the ticker.
type Signal struct {
	ID                string       `json:"id"`
	Ticker            string       `json:"ticker"`
	GeneratedAt       time.Time    `json:"generated_at"`
	ConvictionScore   float64      `json:"conviction_score"` // 0-100
	ContributingTxIDs []string     `json:"contributing_transactions"`
	StrengthTier      StrengthTier `json:"strength_tier"`
	RecommendedAction Action       `json:"recommended_action"`
	ClusterSize       int          `json:"cluster_size"` // distinct insiders behind the signal
}

// IsBuy reports whether the scorer recommends entering a position
func (s *Signal) IsBuy() bool {
	return s.RecommendedAction == ActionBuy
}
