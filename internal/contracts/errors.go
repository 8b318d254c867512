package contracts

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Error taxonomy
//
// ValidationError:  malformed input record, logged and skipped
// DuplicateError:   idempotent re-ingestion, no-op, not a failure
// PolicyRejection:  structured reason code, surfaced, never retried
// ExecutionFailure: broker failure, bounded retry for transient causes
// DataUnavailable:  price provider cannot answer, defer to next cycle
// =============================================================================

// ValidationError marks a raw record that failed validation at the
// ingest boundary. The cycle continues; the record is dropped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DuplicateError marks re-ingestion of an already-stored transaction
type DuplicateError struct {
	Fingerprint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate transaction: %s", e.Fingerprint)
}

// IsDuplicate reports whether err is a DuplicateError
func IsDuplicate(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}

// RejectReason is a structured policy rejection code
type RejectReason string

const (
	RejectActionNotBuy       RejectReason = "ACTION_NOT_BUY"
	RejectTickerAlreadyOpen  RejectReason = "TICKER_ALREADY_OPEN"
	RejectMaxPositions       RejectReason = "MAX_POSITIONS_REACHED"
	RejectExposureLimit      RejectReason = "EXPOSURE_LIMIT_EXCEEDED"
	RejectAllocationTooSmall RejectReason = "ALLOCATION_TOO_SMALL"
)

// PolicyRejection is returned when the risk policy declines a signal
type PolicyRejection struct {
	Reason RejectReason
	Detail string
}

func (e *PolicyRejection) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("policy rejection: %s", e.Reason)
	}
	return fmt.Sprintf("policy rejection: %s (%s)", e.Reason, e.Detail)
}

// AsPolicyRejection extracts a PolicyRejection from err, if any
func AsPolicyRejection(err error) (*PolicyRejection, bool) {
	var pr *PolicyRejection
	ok := errors.As(err, &pr)
	return pr, ok
}

// ExecutionFailure wraps a broker error. Transient failures (network
// timeouts, rate limits) are retried a bounded number of times with
// backoff; everything else is surfaced immediately and the position
// stays PENDING until the fill timeout closes it.
type ExecutionFailure struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("execution failure in %s: %v", e.Op, e.Err)
}

func (e *ExecutionFailure) Unwrap() error {
	return e.Err
}

// DataUnavailable marks a price lookup the provider could not answer.
// The affected ticker's evaluation is deferred to the next cycle.
type DataUnavailable struct {
	Ticker string
	At     time.Time
}

func (e *DataUnavailable) Error() string {
	return fmt.Sprintf("price not available: %s at %s", e.Ticker, e.At.Format("2006-01-02"))
}

// IsDataUnavailable reports whether err is a DataUnavailable
func IsDataUnavailable(err error) bool {
	var du *DataUnavailable
	return errors.As(err, &du)
}
