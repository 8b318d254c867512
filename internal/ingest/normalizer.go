package ingest

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/wonny/insiderbot/internal/contracts"
	"github.com/wonny/insiderbot/pkg/logger"
)

var tickerPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// Normalizer validates raw disclosure records into canonical
// transactions and deduplicates them by content fingerprint.
// Safe for concurrent use: ingestion of the same fingerprint is
// serialized, so a record re-delivered in parallel still lands exactly
// once.
type Normalizer struct {
	repo contracts.TransactionRepository
	log  *logger.Logger

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(repo contracts.TransactionRepository, log *logger.Logger) *Normalizer {
	return &Normalizer{
		repo:     repo,
		log:      log,
		inFlight: make(map[string]*sync.Mutex),
	}
}

// Ingest validates and stores a raw record. Returns the canonical
// transaction, or a ValidationError for a malformed record, or a
// DuplicateError when the record was already ingested. Both error kinds
// leave the store untouched.
func (n *Normalizer) Ingest(ctx context.Context, raw *contracts.RawRecord) (*contracts.Transaction, error) {
	tx, err := n.normalize(raw)
	if err != nil {
		return nil, err
	}

	lock := n.fingerprintLock(tx.SourceID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := n.repo.HasFingerprint(ctx, tx.SourceID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &contracts.DuplicateError{Fingerprint: tx.SourceID}
	}

	if err := n.repo.Insert(ctx, tx); err != nil {
		return nil, err
	}

	n.log.WithFields(map[string]interface{}{
		"ticker":      tx.Ticker,
		"insider":     tx.InsiderName,
		"role":        tx.InsiderRole,
		"value":       tx.TransactionValue,
		"fingerprint": tx.SourceID[:12],
	}).Debug("transaction ingested")

	return tx, nil
}

// IngestBatch runs Ingest over a slice of raw records. Malformed and
// duplicate records are counted and skipped; any other error aborts.
func (n *Normalizer) IngestBatch(ctx context.Context, raws []*contracts.RawRecord) (*BatchResult, error) {
	result := &BatchResult{}

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tx, err := n.Ingest(ctx, raw)
		switch {
		case err == nil:
			result.Ingested = append(result.Ingested, tx)
		case contracts.IsDuplicate(err):
			result.Duplicates++
		case contracts.IsValidation(err):
			result.Invalid++
			n.log.WithError(err).WithField("ticker", raw.Ticker).Warn("record failed validation")
		default:
			return result, err
		}
	}

	return result, nil
}

// BatchResult summarizes one ingestion pass
type BatchResult struct {
	Ingested   []*contracts.Transaction
	Duplicates int
	Invalid    int
}

// normalize validates a raw record and builds the canonical transaction
func (n *Normalizer) normalize(raw *contracts.RawRecord) (*contracts.Transaction, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw.Ticker))
	if !tickerPattern.MatchString(ticker) {
		return nil, &contracts.ValidationError{Field: "ticker", Reason: "not a recognized symbol"}
	}

	insider := strings.TrimSpace(raw.InsiderName)
	if insider == "" {
		return nil, &contracts.ValidationError{Field: "insider_name", Reason: "empty"}
	}

	if raw.Value <= 0 {
		return nil, &contracts.ValidationError{Field: "value", Reason: "must be positive"}
	}
	if raw.Shares <= 0 {
		return nil, &contracts.ValidationError{Field: "shares", Reason: "must be positive"}
	}

	if raw.TradeDate.IsZero() {
		return nil, &contracts.ValidationError{Field: "trade_date", Reason: "missing"}
	}
	if raw.FilingDate.IsZero() {
		return nil, &contracts.ValidationError{Field: "filing_date", Reason: "missing"}
	}
	if raw.FilingDate.Before(raw.TradeDate) {
		return nil, &contracts.ValidationError{Field: "filing_date", Reason: "precedes trade date"}
	}

	price := raw.PricePerShare
	if price <= 0 {
		price = raw.Value / raw.Shares
	}

	return &contracts.Transaction{
		SourceID:         contracts.Fingerprint(ticker, insider, raw.TradeDate, raw.Shares, raw.Value),
		Ticker:           ticker,
		InsiderName:      insider,
		InsiderRole:      contracts.ParseInsiderRole(raw.InsiderRoleText),
		TransactionValue: raw.Value,
		Shares:           raw.Shares,
		PricePerShare:    price,
		FilingDate:       raw.FilingDate,
		TradeDate:        raw.TradeDate,
	}, nil
}

// fingerprintLock returns the mutex serializing ingestion of one
// fingerprint. Locks are kept for the process lifetime; the set of
// distinct fingerprints per run is small.
func (n *Normalizer) fingerprintLock(fingerprint string) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()

	lock, ok := n.inFlight[fingerprint]
	if !ok {
		lock = &sync.Mutex{}
		n.inFlight[fingerprint] = lock
	}
	return lock
}
