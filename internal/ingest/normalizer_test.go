package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/internal/store"
	"github.com/wonny/insiderbot/pkg/logger"
)

func validRaw() *contracts.RawRecord {
	return &contracts.RawRecord{
		Ticker:          "acme",
		InsiderName:     "Jane Smith",
		InsiderRoleText: "Chief Executive Officer",
		Value:           250000,
		Shares:          5000,
		PricePerShare:   50,
		TradeDate:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		FilingDate:      time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func newNormalizer() (*Normalizer, *store.MemoryTransactionRepository) {
	repo := store.NewMemoryTransactionRepository()
	return NewNormalizer(repo, logger.NewNop()), repo
}

func TestIngestValidRecord(t *testing.T) {
	n, _ := newNormalizer()

	tx, err := n.Ingest(context.Background(), validRaw())
	require.NoError(t, err)

	assert.Equal(t, "ACME", tx.Ticker)
	assert.Equal(t, contracts.RoleCEO, tx.InsiderRole)
	assert.Equal(t, 250000.0, tx.TransactionValue)
	assert.NotEmpty(t, tx.SourceID)
}

func TestIngestNormalizesTickerCase(t *testing.T) {
	n, _ := newNormalizer()

	raw := validRaw()
	raw.Ticker = "  acme "
	tx, err := n.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "ACME", tx.Ticker)
}

func TestIngestDerivesPricePerShare(t *testing.T) {
	n, _ := newNormalizer()

	raw := validRaw()
	raw.PricePerShare = 0
	tx, err := n.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, tx.PricePerShare, 1e-9)
}

func TestIngestRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*contracts.RawRecord)
	}{
		{"bad ticker", func(r *contracts.RawRecord) { r.Ticker = "not a ticker!" }},
		{"empty insider", func(r *contracts.RawRecord) { r.InsiderName = "  " }},
		{"zero value", func(r *contracts.RawRecord) { r.Value = 0 }},
		{"negative value", func(r *contracts.RawRecord) { r.Value = -100 }},
		{"zero shares", func(r *contracts.RawRecord) { r.Shares = 0 }},
		{"missing trade date", func(r *contracts.RawRecord) { r.TradeDate = time.Time{} }},
		{"missing filing date", func(r *contracts.RawRecord) { r.FilingDate = time.Time{} }},
		{"filing before trade", func(r *contracts.RawRecord) {
			r.FilingDate = r.TradeDate.AddDate(0, 0, -1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, repo := newNormalizer()

			raw := validRaw()
			tt.mutate(raw)

			_, err := n.Ingest(context.Background(), raw)
			require.Error(t, err)
			assert.True(t, contracts.IsValidation(err))

			// rejected record must not touch the store
			tickers, err := repo.ListTickersSince(context.Background(), time.Time{})
			require.NoError(t, err)
			assert.Empty(t, tickers)
		})
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	n, repo := newNormalizer()
	ctx := context.Background()

	_, err := n.Ingest(ctx, validRaw())
	require.NoError(t, err)

	// same purchase re-delivered
	_, err = n.Ingest(ctx, validRaw())
	require.Error(t, err)
	assert.True(t, contracts.IsDuplicate(err))

	txs, err := repo.ListByTickerSince(ctx, "ACME", time.Time{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestIngestConcurrentDuplicatesLandOnce(t *testing.T) {
	n, repo := newNormalizer()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ingested := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := n.Ingest(ctx, validRaw()); err == nil {
				mu.Lock()
				ingested++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ingested)

	txs, err := repo.ListByTickerSince(ctx, "ACME", time.Time{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestIngestBatchCountsOutcomes(t *testing.T) {
	n, _ := newNormalizer()
	ctx := context.Background()

	other := validRaw()
	other.InsiderName = "John Doe"
	other.InsiderRoleText = "Director"

	bad := validRaw()
	bad.Value = -1

	result, err := n.IngestBatch(ctx, []*contracts.RawRecord{
		validRaw(), validRaw(), other, bad,
	})
	require.NoError(t, err)

	assert.Len(t, result.Ingested, 2)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Invalid)
}

func TestIngestBatchStopsOnCancel(t *testing.T) {
	n, _ := newNormalizer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.IngestBatch(ctx, []*contracts.RawRecord{validRaw()})
	assert.ErrorIs(t, err, context.Canceled)
}
