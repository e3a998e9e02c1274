package core

import "errors"

// Ledger error taxonomy. A *LedgerError always unwraps to one of these kinds
// plus its underlying cause, so errors.Is works against both.
var (
	ErrLedgerNotFound        = errors.New("ledger not found")
	ErrBatchWriteFailed      = errors.New("batch write failed")
	ErrInvalidPeriodCount    = errors.New("invalid installment period count")
	ErrStaleRateTable        = errors.New("rate table stale or unavailable")
	ErrEntryNotFound         = errors.New("entry not found")
	ErrRuleNotFound          = errors.New("recurring rule not found")
	ErrCursorConflict        = errors.New("recurring cursor moved concurrently")
	ErrLedgerExists          = errors.New("ledger already exists")
	ErrBaseCurrencyImmutable = errors.New("ledger base currency cannot change")
)

type LedgerError struct {
	Op        string // e.g. "split", "tick", "delete-group"
	Key       string // ledger key or rule id, when one is involved
	Kind      error
	Retryable bool
	Err       error
}

func (e *LedgerError) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// BatchFailed wraps a rejected multi-document commit. Nothing from the batch
// was applied, so the caller may retry the whole operation.
func BatchFailed(op, key string, err error) *LedgerError {
	return &LedgerError{Op: op, Key: key, Kind: ErrBatchWriteFailed, Retryable: true, Err: err}
}

func NotFound(op, key string, kind error) *LedgerError {
	return &LedgerError{Op: op, Key: key, Kind: kind}
}

// IsRetryable reports whether err is a LedgerError the caller may safely retry.
func IsRetryable(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.Retryable
}
