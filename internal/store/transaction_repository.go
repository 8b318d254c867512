package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/insiderbot/internal/contracts"
)

// TransactionRepository implements contracts.TransactionRepository on
// Postgres. The fingerprint uniqueness constraint on the table is the
// final dedup authority; concurrent ingesters racing on the same record
// both hit the same constraint and only one insert lands.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Insert stores a transaction. A fingerprint collision returns
// contracts.DuplicateError.
func (r *TransactionRepository) Insert(ctx context.Context, tx *contracts.Transaction) error {
	query := `
		INSERT INTO trading.transactions
			(fingerprint, ticker, insider_name, insider_role, transaction_value, shares, price_per_share, filing_date, trade_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		tx.SourceID, tx.Ticker, tx.InsiderName, string(tx.InsiderRole),
		tx.TransactionValue, tx.Shares, tx.PricePerShare,
		tx.FilingDate, tx.TradeDate,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &contracts.DuplicateError{Fingerprint: tx.SourceID}
		}
		return err
	}
	return nil
}

// HasFingerprint reports whether a transaction with the fingerprint exists
func (r *TransactionRepository) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trading.transactions WHERE fingerprint = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, fingerprint).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListByTickerSince retrieves a ticker's transactions from the given
// trade date forward, oldest first.
func (r *TransactionRepository) ListByTickerSince(ctx context.Context, ticker string, since time.Time) ([]*contracts.Transaction, error) {
	query := `
		SELECT fingerprint, ticker, insider_name, insider_role, transaction_value, shares, price_per_share, filing_date, trade_date
		FROM trading.transactions
		WHERE ticker = $1 AND trade_date >= $2
		ORDER BY trade_date ASC, fingerprint ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*contracts.Transaction
	for rows.Next() {
		var tx contracts.Transaction
		var role string
		if err := rows.Scan(&tx.SourceID, &tx.Ticker, &tx.InsiderName, &role,
			&tx.TransactionValue, &tx.Shares, &tx.PricePerShare, &tx.FilingDate, &tx.TradeDate); err != nil {
			return nil, err
		}
		tx.InsiderRole = contracts.InsiderRole(role)
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}

// ListTickersSince retrieves the distinct tickers with purchases since
// the given trade date, sorted for deterministic scan order.
func (r *TransactionRepository) ListTickersSince(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT ticker
		FROM trading.transactions
		WHERE trade_date >= $1
		ORDER BY ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		tickers = append(tickers, ticker)
	}
	return tickers, rows.Err()
}
