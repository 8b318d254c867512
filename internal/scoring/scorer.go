package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/logger"
)

// Scorer condenses a ticker's insider purchase window into a single
// conviction-scored signal.
//
// Score components:
//   - value: log-shaped score of total actionable value relative to the
//     minimum threshold, capped
//   - seniority: weight of the most senior contributing insider
//   - recency: flat bonus when any contributing filing is fresh
//   - cluster: multiplicative bonus when at least two distinct insiders
//     contribute within the window
//
// The final score is clamped to [0, 100].
type Scorer struct {
	cfg *strategy.Scoring
	log *logger.Logger

	// now is swappable for tests and the backtest clock
	now func() time.Time
}

// NewScorer creates a new Scorer
func NewScorer(cfg *strategy.Scoring, log *logger.Logger) *Scorer {
	return &Scorer{cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the scorer's wall clock. The backtest simulator
// pins it to the simulated day.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Score evaluates a ticker's transaction window and returns a Signal,
// or nil when the window holds no actionable transaction. All
// qualifying transactions of the cycle attach to the one signal; a
// ticker never produces two concurrent signals.
//
// hasOpenPosition suppresses the BUY recommendation: the signal is
// still produced and recorded, but the action downgrades to SKIP.
func (s *Scorer) Score(ticker string, window []*contracts.Transaction, hasOpenPosition bool) *contracts.Signal {
	actionable := s.filterActionable(window)
	if len(actionable) == 0 {
		return nil
	}

	asOf := s.now()

	totalValue := 0.0
	insiders := make(map[string]struct{})
	maxSeniority := 0.0
	recent := false

	recencyCutoff := asOf.AddDate(0, 0, -s.cfg.RecencyDays)

	for _, tx := range actionable {
		totalValue += tx.TransactionValue
		insiders[tx.InsiderName] = struct{}{}

		if w := s.cfg.Seniority.Weight(tx.InsiderRole); w > maxSeniority {
			maxSeniority = w
		}
		if !tx.FilingDate.Before(recencyCutoff) {
			recent = true
		}
	}

	valueScore := math.Min(s.cfg.ValueScoreCap,
		s.cfg.ValueLogScale*math.Log1p(totalValue/s.cfg.MinTransactionValue))

	recencyScore := 0.0
	if recent {
		recencyScore = s.cfg.RecencyBonus
	}

	clusterMultiplier := 1.0
	if len(insiders) >= 2 {
		clusterMultiplier = s.cfg.ClusterBonus
	}

	score := clamp((valueScore+maxSeniority+recencyScore)*clusterMultiplier, 0, 100)

	action := contracts.ActionSkip
	if score >= s.cfg.ActionThreshold && !hasOpenPosition {
		action = contracts.ActionBuy
	}

	signal := &contracts.Signal{
		ID:                uuid.NewString(),
		Ticker:            ticker,
		GeneratedAt:       asOf,
		ConvictionScore:   score,
		ContributingTxIDs: contributingIDs(actionable),
		StrengthTier:      tierFor(score),
		RecommendedAction: action,
		ClusterSize:       len(insiders),
	}

	s.log.WithFields(map[string]interface{}{
		"ticker":  ticker,
		"score":   score,
		"tier":    signal.StrengthTier,
		"action":  action,
		"cluster": signal.ClusterSize,
	}).Debug("signal scored")

	return signal
}

// filterActionable keeps transactions whose value meets the minimum
// threshold. Below-threshold purchases contribute nothing, including to
// clustering.
func (s *Scorer) filterActionable(window []*contracts.Transaction) []*contracts.Transaction {
	var out []*contracts.Transaction
	for _, tx := range window {
		if tx.TransactionValue >= s.cfg.MinTransactionValue {
			out = append(out, tx)
		}
	}
	return out
}

// contributingIDs orders contributing transaction ids by trade date,
// then fingerprint, so a signal's evidence list is reproducible.
func contributingIDs(txs []*contracts.Transaction) []string {
	sorted := make([]*contracts.Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].TradeDate.Equal(sorted[j].TradeDate) {
			return sorted[i].TradeDate.Before(sorted[j].TradeDate)
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})

	ids := make([]string, len(sorted))
	for i, tx := range sorted {
		ids[i] = tx.SourceID
	}
	return ids
}

func tierFor(score float64) contracts.StrengthTier {
	switch {
	case score >= 70:
		return contracts.TierHigh
	case score >= 40:
		return contracts.TierMedium
	default:
		return contracts.TierLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
