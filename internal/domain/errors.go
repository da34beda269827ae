package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means the market data gateway returned fewer
	// candles than the ATR window needs. Recoverable: callers may retry
	// later or abstain from trading.
	ErrInsufficientData = errors.New("insufficient candle data")

	// ErrInvalidResult means a volatility computation produced a
	// non-finite or non-positive value.
	ErrInvalidResult = errors.New("invalid volatility result")

	// ErrDuplicatePosition means an active position already exists for the
	// (symbol, side) pair. No state is mutated.
	ErrDuplicatePosition = errors.New("duplicate active position")

	// ErrRateLimited marks an exchange rejection caused by request
	// throttling. The execution engine cools down and retries once before
	// falling back to the standard retry policy.
	ErrRateLimited = errors.New("exchange rate limit")
)

// ConfigError is fatal at construction: a scaling or volatility parameter
// is outside its recognized range.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// SubmitError surfaces after the order submission retry policy is
// exhausted. The affected level is marked failed; the ladder itself is not
// retried.
type SubmitError struct {
	Symbol   string
	Attempts int
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("order submission failed for %s after %d attempts: %v", e.Symbol, e.Attempts, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
