package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/ingest"
	"github.com/wonny/insiderbot/internal/lifecycle"
	"github.com/wonny/insiderbot/internal/policy"
	"github.com/wonny/insiderbot/internal/scoring"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/logger"
)

// ErrCycleInFlight is returned when a cycle is requested while the
// previous one is still running. Cycles never overlap.
var ErrCycleInFlight = errors.New("trading cycle already in flight")

// Pipeline runs the full trading cycle:
// ingestion -> scoring -> policy -> lifecycle, one batch per trigger.
// A single-flight guard rejects overlapping triggers; aside from that
// the pipeline holds no state of its own.
type Pipeline struct {
	source       contracts.DisclosureSource
	normalizer   *ingest.Normalizer
	transactions contracts.TransactionRepository
	signals      contracts.SignalRepository
	scorer       *scoring.Scorer
	policy       *policy.Policy
	manager      *lifecycle.Manager
	prices       contracts.PriceProvider
	cfg          *strategy.Config
	log          *logger.Logger

	running atomic.Bool
	now     func() time.Time
}

// New creates a new Pipeline
func New(
	source contracts.DisclosureSource,
	normalizer *ingest.Normalizer,
	transactions contracts.TransactionRepository,
	signals contracts.SignalRepository,
	scorer *scoring.Scorer,
	pol *policy.Policy,
	manager *lifecycle.Manager,
	prices contracts.PriceProvider,
	cfg *strategy.Config,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		source:       source,
		normalizer:   normalizer,
		transactions: transactions,
		signals:      signals,
		scorer:       scorer,
		policy:       pol,
		manager:      manager,
		prices:       prices,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// WithClock replaces the pipeline's wall clock
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// CycleResult summarizes one completed cycle
type CycleResult struct {
	Started    time.Time                 `json:"started"`
	Duration   time.Duration             `json:"duration"`
	Ingested   int                       `json:"ingested"`
	Duplicates int                       `json:"duplicates"`
	Invalid    int                       `json:"invalid"`
	Signals    []*contracts.Signal       `json:"signals"`
	Opened     []*contracts.Position     `json:"opened"`
	Closed     []*contracts.Position     `json:"closed"`
	Rejections map[string]string         `json:"rejections"` // ticker -> reason
	Deferred   []string                  `json:"deferred"`   // tickers without price data
	Portfolio  *contracts.PortfolioState `json:"portfolio"`
}

// RunCycle executes one full cycle. Returns ErrCycleInFlight if a
// previous cycle has not finished. Any systemic error aborts the cycle;
// per-record problems are absorbed and counted.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer p.running.Store(false)

	started := p.now()
	result := &CycleResult{
		Started:    started,
		Rejections: make(map[string]string),
	}

	if err := p.ingestPhase(ctx, result); err != nil {
		return nil, err
	}
	if err := p.signalPhase(ctx, result); err != nil {
		return nil, err
	}

	closed, err := p.manager.EvaluateExits(ctx)
	if err != nil {
		return nil, err
	}
	result.Closed = closed

	result.Portfolio = p.manager.Portfolio()
	result.Duration = p.now().Sub(started)

	p.log.WithFields(map[string]interface{}{
		"ingested": result.Ingested,
		"signals":  len(result.Signals),
		"opened":   len(result.Opened),
		"closed":   len(result.Closed),
		"duration": result.Duration.String(),
	}).Info("cycle complete")

	return result, nil
}

// ingestPhase pulls fresh disclosures and normalizes them into the store
func (p *Pipeline) ingestPhase(ctx context.Context, result *CycleResult) error {
	lookback := time.Duration(p.cfg.Scoring.LookbackWindowDays) * 24 * time.Hour

	raws, err := p.source.FetchRecent(ctx, lookback)
	if err != nil {
		return err
	}

	batch, err := p.normalizer.IngestBatch(ctx, raws)
	if err != nil {
		return err
	}

	result.Ingested = len(batch.Ingested)
	result.Duplicates = batch.Duplicates
	result.Invalid = batch.Invalid
	return nil
}

// signalPhase scores every ticker with recent activity and routes BUY
// signals through the policy into the lifecycle manager.
func (p *Pipeline) signalPhase(ctx context.Context, result *CycleResult) error {
	since := p.now().AddDate(0, 0, -p.cfg.Scoring.LookbackWindowDays)

	tickers, err := p.transactions.ListTickersSince(ctx, since)
	if err != nil {
		return err
	}

	portfolio := p.manager.Portfolio()

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return err
		}

		window, err := p.transactions.ListByTickerSince(ctx, ticker, since)
		if err != nil {
			return err
		}

		signal := p.scorer.Score(ticker, window, portfolio.HasTicker(ticker))
		if signal == nil {
			continue
		}

		if err := p.signals.Insert(ctx, signal); err != nil {
			return err
		}
		result.Signals = append(result.Signals, signal)

		if !signal.IsBuy() {
			continue
		}

		refPrice, err := p.prices.Price(ctx, ticker, p.now())
		if err != nil {
			if contracts.IsDataUnavailable(err) {
				result.Deferred = append(result.Deferred, ticker)
				p.log.WithField("ticker", ticker).Warn("price unavailable, signal deferred")
				continue
			}
			return err
		}

		proposal, err := p.policy.Evaluate(signal, portfolio, refPrice)
		if err != nil {
			if rejection, ok := contracts.AsPolicyRejection(err); ok {
				result.Rejections[ticker] = string(rejection.Reason)
				p.log.WithFields(map[string]interface{}{
					"ticker": ticker,
					"reason": rejection.Reason,
				}).Info("signal rejected by policy")
				continue
			}
			return err
		}

		position, err := p.manager.PlaceOrder(ctx, proposal)
		if err != nil {
			p.log.WithError(err).WithField("ticker", ticker).Warn("order placement failed")
			continue
		}
		result.Opened = append(result.Opened, position)

		// keep the policy view current for the rest of the scan
		portfolio = p.manager.Portfolio()
	}

	return nil
}
