package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InsiderRole classifies the seniority of the filing insider
type InsiderRole string

const (
	RoleCEO      InsiderRole = "CEO"
	RoleCFO      InsiderRole = "CFO"
	RoleDirector InsiderRole = "Director"
	RoleOther    InsiderRole = "Other"
)

// ParseInsiderRole maps free-form title text from the disclosure source
// onto the recognized role enum. Anything unrecognized becomes Other.
func ParseInsiderRole(title string) InsiderRole {
	t := strings.ToLower(title)

	switch {
	case strings.Contains(t, "ceo") || strings.Contains(t, "chief executive"):
		return RoleCEO
	case strings.Contains(t, "cfo") || strings.Contains(t, "chief financial"):
		return RoleCFO
	case strings.Contains(t, "dir"):
		return RoleDirector
	default:
		return RoleOther
	}
}

// RawRecord is the loosely-typed shape delivered by the disclosure
// source. It is validated into a Transaction at the ingest boundary and
// never propagates further.
type RawRecord struct {
	Ticker          string    `json:"ticker"`
	InsiderName     string    `json:"insider_name"`
	InsiderRoleText string    `json:"insider_role_text"`
	Value           float64   `json:"value"`
	Shares          float64   `json:"shares"`
	PricePerShare   float64   `json:"price_per_share"`
	TradeDate       time.Time `json:"trade_date"`
	FilingDate      time.Time `json:"filing_date"`
}

// Transaction is a canonical insider purchase record.
// Immutable once recorded; identified by its content fingerprint.
type Transaction struct {
	SourceID         string      `json:"source_id"` // content fingerprint
	Ticker           string      `json:"ticker"`
	InsiderName      string      `json:"insider_name"`
	InsiderRole      InsiderRole `json:"insider_role"`
	TransactionValue float64     `json:"transaction_value"`
	Shares           float64     `json:"shares"`
	PricePerShare    float64     `json:"price_per_share"`
	FilingDate       time.Time   `json:"filing_date"`
	TradeDate        time.Time   `json:"trade_date"`
}

// Fingerprint computes the stable content hash used for deduplication.
// Two raw records describing the same purchase always hash identically,
// regardless of when or how often the source re-delivers them.
func Fingerprint(ticker, insiderName string, tradeDate time.Time, shares, value float64) string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s",
		strings.ToUpper(strings.TrimSpace(ticker)),
		strings.ToLower(strings.TrimSpace(insiderName)),
		tradeDate.UTC().Format("2006-01-02"),
		strconv.FormatFloat(shares, 'f', -1, 64),
		strconv.FormatFloat(value, 'f', -1, 64),
	)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
