package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/insiderbot/internal/contracts"
)

// =============================================================================
// In-memory repositories
// Used by tests and by the backtest engine, which replays history
// without touching the durable store.
// =============================================================================

// MemoryTransactionRepository keeps transactions and their fingerprint
// set in memory. Insert is atomic under the repository mutex: the
// transaction and its fingerprint are registered together or not at all.
type MemoryTransactionRepository struct {
	mu           sync.RWMutex
	transactions []*contracts.Transaction
	fingerprints map[string]struct{}
}

// NewMemoryTransactionRepository creates an empty transaction repository
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		fingerprints: make(map[string]struct{}),
	}
}

// Insert appends a transaction, rejecting fingerprint collisions
func (r *MemoryTransactionRepository) Insert(ctx context.Context, tx *contracts.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fingerprints[tx.SourceID]; exists {
		return &contracts.DuplicateError{Fingerprint: tx.SourceID}
	}

	r.fingerprints[tx.SourceID] = struct{}{}
	r.transactions = append(r.transactions, tx)
	return nil
}

// HasFingerprint reports whether the fingerprint is already stored
func (r *MemoryTransactionRepository) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.fingerprints[fingerprint]
	return exists, nil
}

// ListByTickerSince returns the ticker's transactions with trade date
// at or after since, ordered by trade date then fingerprint.
func (r *MemoryTransactionRepository) ListByTickerSince(ctx context.Context, ticker string, since time.Time) ([]*contracts.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*contracts.Transaction
	for _, tx := range r.transactions {
		if tx.Ticker == ticker && !tx.TradeDate.Before(since) {
			out = append(out, tx)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].TradeDate.Equal(out[j].TradeDate) {
			return out[i].TradeDate.Before(out[j].TradeDate)
		}
		return out[i].SourceID < out[j].SourceID
	})

	return out, nil
}

// ListTickersSince returns the distinct tickers with activity since the
// given time, sorted for deterministic iteration.
func (r *MemoryTransactionRepository) ListTickersSince(ctx context.Context, since time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tx := range r.transactions {
		if !tx.TradeDate.Before(since) {
			seen[tx.Ticker] = struct{}{}
		}
	}

	tickers := make([]string, 0, len(seen))
	for ticker := range seen {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	return tickers, nil
}

// MemorySignalRepository keeps signals in memory
type MemorySignalRepository struct {
	mu      sync.RWMutex
	signals []*contracts.Signal
}

// NewMemorySignalRepository creates an empty signal repository
func NewMemorySignalRepository() *MemorySignalRepository {
	return &MemorySignalRepository{}
}

// Insert appends a signal
func (r *MemorySignalRepository) Insert(ctx context.Context, signal *contracts.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.signals = append(r.signals, signal)
	return nil
}

// ListRecent returns the most recently generated signals, newest first
func (r *MemorySignalRepository) ListRecent(ctx context.Context, limit int) ([]*contracts.Signal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.signals)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*contracts.Signal, limit)
	for i := 0; i < limit; i++ {
		out[i] = r.signals[n-1-i]
	}
	return out, nil
}

// MemoryPositionRepository keeps positions in memory
type MemoryPositionRepository struct {
	mu        sync.RWMutex
	positions map[string]*contracts.Position // by position id
}

// NewMemoryPositionRepository creates an empty position repository
func NewMemoryPositionRepository() *MemoryPositionRepository {
	return &MemoryPositionRepository{
		positions: make(map[string]*contracts.Position),
	}
}

// Save inserts or updates a position by id
func (r *MemoryPositionRepository) Save(ctx context.Context, position *contracts.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := *position
	r.positions[position.ID] = &p
	return nil
}

// ListOpen returns non-CLOSED positions sorted by ticker
func (r *MemoryPositionRepository) ListOpen(ctx context.Context) ([]*contracts.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*contracts.Position
	for _, p := range r.positions {
		if !p.IsTerminal() {
			cp := *p
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

// ListClosed returns closed positions, most recent exit first
func (r *MemoryPositionRepository) ListClosed(ctx context.Context, limit int) ([]*contracts.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*contracts.Position
	for _, p := range r.positions {
		if p.IsTerminal() {
			cp := *p
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExitTime.After(out[j].ExitTime) })

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
