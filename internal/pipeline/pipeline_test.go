package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/ingest"
	"github.com/wonny/insiderbot/internal/lifecycle"
	"github.com/wonny/insiderbot/internal/policy"
	"github.com/wonny/insiderbot/internal/scoring"
	"github.com/wonny/insiderbot/internal/store"
	"github.com/wonny/insiderbot/internal/strategy"
	"github.com/wonny/insiderbot/pkg/logger"
)

var cycleTime = time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

// fakeSource serves a scripted batch of raw records
type fakeSource struct {
	mu      sync.Mutex
	records []*contracts.RawRecord
	block   chan struct{} // when set, FetchRecent waits until closed
	entered chan struct{} // signalled once a fetch has started
}

func (f *fakeSource) FetchRecent(ctx context.Context, lookback time.Duration) ([]*contracts.RawRecord, error) {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

type fakePrices struct {
	prices map[string]float64
}

func (f *fakePrices) Price(ctx context.Context, ticker string, at time.Time) (float64, error) {
	price, ok := f.prices[ticker]
	if !ok {
		return 0, &contracts.DataUnavailable{Ticker: ticker, At: at}
	}
	return price, nil
}

func (f *fakePrices) HistoricalSeries(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error) {
	return nil, &contracts.DataUnavailable{Ticker: ticker, At: from}
}

type fakeBroker struct{}

func (f *fakeBroker) PlaceOrder(ctx context.Context, proposal *contracts.OrderProposal) (*contracts.Fill, error) {
	return &contracts.Fill{
		Ticker:   proposal.Ticker,
		Quantity: proposal.Quantity,
		Price:    proposal.ReferencePrice,
		FilledAt: cycleTime,
	}, nil
}

func (f *fakeBroker) Liquidate(ctx context.Context, position *contracts.Position, refPrice float64) (*contracts.Fill, error) {
	return &contracts.Fill{
		Ticker:   position.Ticker,
		Quantity: position.Quantity,
		Price:    refPrice,
		FilledAt: cycleTime,
	}, nil
}

func rawPurchase(ticker, insider, role string, value float64, daysAgo int) *contracts.RawRecord {
	trade := cycleTime.AddDate(0, 0, -daysAgo)
	return &contracts.RawRecord{
		Ticker:          ticker,
		InsiderName:     insider,
		InsiderRoleText: role,
		Value:           value,
		Shares:          value / 50,
		PricePerShare:   50,
		TradeDate:       trade,
		FilingDate:      trade,
	}
}

func newPipeline(source *fakeSource, prices *fakePrices) *Pipeline {
	cfg := strategy.Default()
	cfg.Backtest.CommissionRate = 0
	log := logger.NewNop()

	txRepo := store.NewMemoryTransactionRepository()
	sigRepo := store.NewMemorySignalRepository()
	posRepo := store.NewMemoryPositionRepository()

	clock := func() time.Time { return cycleTime }

	normalizer := ingest.NewNormalizer(txRepo, log)
	scorer := scoring.NewScorer(&cfg.Scoring, log).WithClock(clock)
	pol := policy.New(&cfg.Sizing)
	manager := lifecycle.NewManager(100_000, posRepo, prices, &fakeBroker{}, cfg, log).WithClock(clock)

	return New(source, normalizer, txRepo, sigRepo, scorer, pol, manager, prices, cfg, log).WithClock(clock)
}

func TestRunCycleOpensPositionFromStrongSignal(t *testing.T) {
	source := &fakeSource{records: []*contracts.RawRecord{
		rawPurchase("XYZ", "Jane Smith", "CEO", 250000, 2),
	}}
	prices := &fakePrices{prices: map[string]float64{"XYZ": 50}}
	p := newPipeline(source, prices)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Ingested)
	require.Len(t, result.Signals, 1)
	assert.Equal(t, contracts.ActionBuy, result.Signals[0].RecommendedAction)
	require.Len(t, result.Opened, 1)
	assert.Equal(t, "XYZ", result.Opened[0].Ticker)
	assert.Equal(t, contracts.PositionOpen, result.Opened[0].State)
	assert.True(t, result.Portfolio.HasTicker("XYZ"))
}

func TestRunCycleIsIdempotentAcrossRedelivery(t *testing.T) {
	source := &fakeSource{records: []*contracts.RawRecord{
		rawPurchase("XYZ", "Jane Smith", "CEO", 250000, 2),
	}}
	prices := &fakePrices{prices: map[string]float64{"XYZ": 50}}
	p := newPipeline(source, prices)
	ctx := context.Background()

	first, err := p.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, first.Opened, 1)

	// same records delivered again: duplicate ingest, open ticker skipped
	second, err := p.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Ingested)
	assert.Equal(t, 1, second.Duplicates)
	assert.Empty(t, second.Opened)
	require.Len(t, second.Signals, 1)
	assert.Equal(t, contracts.ActionSkip, second.Signals[0].RecommendedAction)
	assert.Equal(t, 1, second.Portfolio.OpenCount())
}

func TestRunCycleDefersTickerWithoutPrice(t *testing.T) {
	source := &fakeSource{records: []*contracts.RawRecord{
		rawPurchase("XYZ", "Jane Smith", "CEO", 250000, 2),
	}}
	prices := &fakePrices{prices: map[string]float64{}}
	p := newPipeline(source, prices)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"XYZ"}, result.Deferred)
	assert.Empty(t, result.Opened)
}

func TestRunCycleRecordsPolicyRejections(t *testing.T) {
	// low-value purchase scores below HIGH but above the action
	// threshold; shrink the portfolio so sizing rounds down to zero
	source := &fakeSource{records: []*contracts.RawRecord{
		rawPurchase("XYZ", "Jane Smith", "CEO", 150000, 2),
	}}
	prices := &fakePrices{prices: map[string]float64{"XYZ": 5000}}
	p := newPipeline(source, prices)

	result, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Opened)
	assert.Equal(t, string(contracts.RejectAllocationTooSmall), result.Rejections["XYZ"])
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{}, 1)
	source := &fakeSource{block: block, entered: entered}
	prices := &fakePrices{prices: map[string]float64{}}
	p := newPipeline(source, prices)

	firstDone := make(chan error, 1)
	go func() {
		_, err := p.RunCycle(context.Background())
		firstDone <- err
	}()

	// second trigger while the first is blocked in ingestion
	<-entered
	_, err := p.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)

	close(block)
	require.NoError(t, <-firstDone)

	// guard released after completion
	_, err = p.RunCycle(context.Background())
	assert.NoError(t, err)
}

func TestRunCycleAbortsOnCancel(t *testing.T) {
	source := &fakeSource{records: []*contracts.RawRecord{
		rawPurchase("XYZ", "Jane Smith", "CEO", 250000, 2),
	}}
	prices := &fakePrices{prices: map[string]float64{"XYZ": 50}}
	p := newPipeline(source, prices)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
