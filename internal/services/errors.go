package services

import (
	"errors"

	"bilancio/internal/core"
)

var validationErrors = []error{
	core.ErrInvalidStatus,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrInvalidCurrency,
	core.ErrInvalidEntry,
	core.ErrInvalidLedgerKey,
	core.ErrBaseCurrencyImmutable,
}

// isValidation reports whether a batch was rejected for its content; such a
// batch fails the same way on every retry.
func isValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// batchError classifies a failed Batch. Missing documents are reported as
// not-found, a moved cursor as a retryable conflict, and everything else as
// a retryable BatchWriteFailed since nothing from the batch was applied.
// Invalid content is returned unchanged.
func batchError(op, key string, err error) error {
	switch {
	case errors.Is(err, core.ErrLedgerNotFound):
		return core.NotFound(op, key, core.ErrLedgerNotFound)
	case errors.Is(err, core.ErrEntryNotFound):
		return core.NotFound(op, key, core.ErrEntryNotFound)
	case errors.Is(err, core.ErrRuleNotFound):
		return core.NotFound(op, key, core.ErrRuleNotFound)
	case errors.Is(err, core.ErrCursorConflict):
		return &core.LedgerError{Op: op, Key: key, Kind: core.ErrCursorConflict, Retryable: true, Err: err}
	case isValidation(err):
		return err
	}
	return core.BatchFailed(op, key, err)
}
