package backtest

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/ingest"
	"github.com/wonny/insiderbot/internal/lifecycle"
	"github.com/wonny/insiderbot/internal/policy"
	"github.com/wonny/insiderbot/internal/scoring"
	"github.com/wonny/insiderbot/internal/store"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/logger"
)

// errDeferredFill signals that a simulated order was queued for the
// next bar rather than filled. The engine resolves it the following
// day; the position stays PENDING overnight exactly as a live order
// awaiting confirmation would.
var errDeferredFill = errors.New("fill deferred to next bar")

// Input is one backtest run: an insider purchase timeline, daily price
// series per ticker (including the benchmark symbol), and the window.
type Input struct {
	Records        []*contracts.RawRecord
	Prices         map[string][]contracts.PricePoint
	Start          time.Time
	End            time.Time
	InitialCapital float64 // 0 means the configured default
}

// Engine replays history through the exact scorer, policy, and
// lifecycle components the live pipeline uses. Decisions on day D are
// made at D's bar; entry fills resolve against D+1's bar with slippage,
// so no trade ever uses the same bar for decision and fill.
//
// Runs are deterministic: identical inputs produce identical reports.
type Engine struct {
	cfg *strategy.Config
	log *logger.Logger
}

// NewEngine creates a backtest engine over a frozen strategy config
func NewEngine(cfg *strategy.Config, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// simBroker queues entries for next-bar resolution and fills exits at
// the reference price less slippage.
type simBroker struct {
	slippageRate float64
	now          func() time.Time
}

func (b *simBroker) PlaceOrder(ctx context.Context, proposal *contracts.OrderProposal) (*contracts.Fill, error) {
	return nil, errDeferredFill
}

func (b *simBroker) Liquidate(ctx context.Context, position *contracts.Position, refPrice float64) (*contracts.Fill, error) {
	return &contracts.Fill{
		Ticker:   position.Ticker,
		Quantity: position.Quantity,
		Price:    refPrice * (1 - b.slippageRate),
		FilledAt: b.now(),
	}, nil
}

// Run replays the window day by day and returns the performance
// report. Cancellation is honored at day boundaries; a cancelled run
// returns the context error and no report.
func (e *Engine) Run(ctx context.Context, input *Input) (*contracts.PerformanceReport, error) {
	capital := input.InitialCapital
	if capital <= 0 {
		capital = e.cfg.Backtest.InitialCapital
	}

	provider := NewSeriesProvider(input.Prices)

	current := input.Start
	clock := func() time.Time { return current }

	log := e.log
	broker := &simBroker{slippageRate: e.cfg.Backtest.SlippageRate, now: clock}

	txRepo := store.NewMemoryTransactionRepository()
	posRepo := store.NewMemoryPositionRepository()

	normalizer := ingest.NewNormalizer(txRepo, log)
	scorer := scoring.NewScorer(&e.cfg.Scoring, log).WithClock(clock)
	pol := policy.New(&e.cfg.Sizing)
	manager := lifecycle.NewManager(capital, posRepo, provider, broker, e.cfg, log).WithClock(clock)

	timeline := orderTimeline(input.Records)
	cursor := 0

	var equity []contracts.EquityPoint
	var closedAll []*contracts.Position

	for day := startOfDay(input.Start); !day.After(input.End); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current = day

		// 1. resolve entries queued on earlier bars
		if err := e.resolvePendingFills(ctx, manager, provider, day); err != nil {
			return nil, err
		}

		// 2. exits at today's bar
		closed, err := manager.EvaluateExits(ctx)
		if err != nil {
			return nil, err
		}
		closedAll = append(closedAll, closed...)

		// 3. disclosures filed by today enter the store
		for cursor < len(timeline) && !timeline[cursor].FilingDate.After(endOfDay(day)) {
			if _, err := normalizer.Ingest(ctx, timeline[cursor]); err != nil &&
				!contracts.IsDuplicate(err) && !contracts.IsValidation(err) {
				return nil, err
			}
			cursor++
		}

		// 4. score and place new orders at today's bar
		if err := e.scoreAndPlace(ctx, manager, txRepo, scorer, pol, provider, day); err != nil {
			return nil, err
		}

		equity = append(equity, contracts.EquityPoint{
			Date:   day,
			Equity: markToMarket(manager.Portfolio(), provider, day),
		})
	}

	// unwind the book at the end of the window
	final, err := e.unwind(ctx, manager, provider, input.End)
	if err != nil {
		return nil, err
	}
	closedAll = append(closedAll, final...)

	if len(equity) > 0 {
		equity[len(equity)-1].Equity = markToMarket(manager.Portfolio(), provider, input.End)
	}

	return e.buildReport(input, capital, closedAll, equity, provider), nil
}

// resolvePendingFills confirms queued entries against today's bar with
// entry slippage. Tickers without a bar today stay pending.
func (e *Engine) resolvePendingFills(ctx context.Context, manager *lifecycle.Manager, provider *SeriesProvider, day time.Time) error {
	for _, position := range openPositionsSorted(manager) {
		if position.State != contracts.PositionPending {
			continue
		}

		price, err := provider.Price(ctx, position.Ticker, day)
		if err != nil {
			continue // no bar today; the fill-timeout sweep handles stale orders
		}

		fill := &contracts.Fill{
			Ticker:   position.Ticker,
			Quantity: position.Quantity,
			Price:    price * (1 + e.cfg.Backtest.SlippageRate),
			FilledAt: day,
		}
		if _, err := manager.ConfirmFill(ctx, position.ID, fill); err != nil {
			return err
		}
	}
	return nil
}

// scoreAndPlace runs the scoring and policy path for every ticker with
// activity in the lookback window and queues approved orders.
func (e *Engine) scoreAndPlace(
	ctx context.Context,
	manager *lifecycle.Manager,
	txRepo contracts.TransactionRepository,
	scorer *scoring.Scorer,
	pol *policy.Policy,
	provider *SeriesProvider,
	day time.Time,
) error {
	since := day.AddDate(0, 0, -e.cfg.Scoring.LookbackWindowDays)

	tickers, err := txRepo.ListTickersSince(ctx, since)
	if err != nil {
		return err
	}

	portfolio := manager.Portfolio()

	for _, ticker := range tickers {
		window, err := txRepo.ListByTickerSince(ctx, ticker, since)
		if err != nil {
			return err
		}

		signal := scorer.Score(ticker, window, portfolio.HasTicker(ticker))
		if signal == nil || !signal.IsBuy() {
			continue
		}

		refPrice, err := provider.Price(ctx, ticker, day)
		if err != nil {
			continue // no bar today, defer
		}

		proposal, err := pol.Evaluate(signal, portfolio, refPrice)
		if err != nil {
			if _, ok := contracts.AsPolicyRejection(err); ok {
				continue
			}
			return err
		}

		if _, err := manager.PlaceOrder(ctx, proposal); err != nil && !errors.Is(err, errDeferredFill) {
			return err
		}

		portfolio = manager.Portfolio()
	}

	return nil
}

// unwind liquidates whatever is still on the book at the end of the
// window so the report accounts for every entry.
func (e *Engine) unwind(ctx context.Context, manager *lifecycle.Manager, provider *SeriesProvider, end time.Time) ([]*contracts.Position, error) {
	var closed []*contracts.Position

	for _, position := range openPositionsSorted(manager) {
		switch position.State {
		case contracts.PositionOpen:
			price, ok := provider.lastPriceOnOrBefore(position.Ticker, end)
			if !ok {
				price = position.EntryPrice
			}
			p, err := manager.LiquidateAt(ctx, position.Ticker, price)
			if err != nil {
				return nil, err
			}
			closed = append(closed, p)

		case contracts.PositionPending:
			// force the timeout sweep for never-filled orders
			if _, err := manager.EvaluateExits(ctx); err != nil {
				return nil, err
			}
		}
	}

	return closed, nil
}

// markToMarket values the portfolio at the day's bars, carrying the
// last known price over gaps.
func markToMarket(pf *contracts.PortfolioState, provider *SeriesProvider, day time.Time) float64 {
	total := pf.Cash + pf.Reserved
	for _, position := range pf.Positions {
		if position.State != contracts.PositionOpen {
			continue
		}
		price, ok := provider.lastPriceOnOrBefore(position.Ticker, day)
		if !ok {
			price = position.EntryPrice
		}
		total += float64(position.Quantity) * price
	}
	return total
}

// orderTimeline sorts raw records by filing date, breaking ties on
// content, so replay order never depends on input order.
func orderTimeline(records []*contracts.RawRecord) []*contracts.RawRecord {
	out := make([]*contracts.RawRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FilingDate.Equal(out[j].FilingDate) {
			return out[i].FilingDate.Before(out[j].FilingDate)
		}
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].InsiderName < out[j].InsiderName
	})
	return out
}

func openPositionsSorted(manager *lifecycle.Manager) []*contracts.Position {
	pf := manager.Portfolio()
	out := make([]*contracts.Position, 0, len(pf.Positions))
	for _, p := range pf.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
