package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ProviderError represents a failed call to an external quote provider.
// Transient failures (network, timeouts, 5xx) are retriable and trigger
// the fallback provider; malformed payloads and auth errors are not.
type ProviderError struct {
	Provider  string // Provider name (e.g. "coingecko")
	Op        string // Operation that failed (e.g. "prices", "series")
	Err       error  // Underlying error
	Retriable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + " " + e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) IsRetriable() bool {
	return e.Retriable
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PersistenceError represents a failed atomic write. The store rolls
// back any partial state before this surfaces, so the caller may safely
// retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence error [" + e.Op + "]: " + e.Err.Error()
}

func (e *PersistenceError) IsRetriable() bool {
	return true
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

var (
	// ErrMarketUnavailable is returned when both providers failed and no
	// cached snapshot exists. Soft failure: callers render "no data".
	ErrMarketUnavailable = errors.New("market data unavailable")

	// ErrAssetNotFound is returned when an order names a symbol absent
	// from the current market snapshot.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInsufficientFunds rejects a buy whose cost exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings rejects a sell exceeding the net holding.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrInvalidOrder rejects a non-positive quantity or unknown side.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrStaleBalance is returned by a conditional balance update whose
	// expected prior value no longer matches.
	ErrStaleBalance = errors.New("balance changed concurrently")
)
