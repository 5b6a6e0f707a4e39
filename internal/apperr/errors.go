// Package apperr defines the error taxonomy shared by services and the HTTP
// layer. Services wrap these sentinels with fmt.Errorf("...: %w", ...);
// callers classify with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation rejects malformed or out-of-range input before any side effect.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientFunds rejects an operation the cash ledger cannot cover.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientMargin rejects a trade whose margin exceeds available cash.
	ErrInsufficientMargin = errors.New("insufficient margin")

	// ErrStateConflict means the entity is not in the state the transition requires,
	// e.g. closing a trade that is not open.
	ErrStateConflict = errors.New("state conflict")

	// ErrExternalUnavailable marks a failed or timed-out oracle/ledger call.
	// Background flows skip the entity for the tick; synchronous flows surface
	// it as retryable.
	ErrExternalUnavailable = errors.New("external dependency unavailable")

	ErrNotFound = errors.New("not found")
)

func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalUnavailable)
}
