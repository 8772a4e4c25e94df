package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteProvider defines the interface for external price sources. Both
// calls must bound their wait with a fixed timeout and return a
// ProviderError on failure.
type QuoteProvider interface {
	Name() string
	FetchPrices(ctx context.Context, symbols []string) (map[string]Quote, error)
	FetchSeries(ctx context.Context, symbol string, window time.Duration) ([]PricePoint, error)
}

// Store defines how the core persists accounts, assets and the trade
// ledger. Lookups return (nil, nil) when the record does not exist.
type Store interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	CreateAccount(ctx context.Context, acct *Account) error

	// UpdateBalance is conditional on the previously read balance and
	// returns ErrStaleBalance when a concurrent writer got there first.
	UpdateBalance(ctx context.Context, id string, prev, next decimal.Decimal) error

	AppendTransaction(ctx context.Context, rec *Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]Transaction, error)

	GetAsset(ctx context.Context, symbol string) (*Asset, error)
	UpsertAsset(ctx context.Context, asset *Asset) error

	// WithinTx runs fn against a transactional view of the store. Any
	// error rolls back every write made inside fn.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
