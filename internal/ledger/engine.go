package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptosim/internal/domain"
	"cryptosim/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MarketSource is the slice of the market cache the engine depends on.
type MarketSource interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Engine validates and atomically executes buy/sell orders. Orders on
// the same account serialize through a per-account mutex; orders on
// different accounts proceed independently.
type Engine struct {
	store   domain.Store
	market  MarketSource
	ledger  *Ledger
	fees    FeeStrategy
	opening decimal.Decimal
	now     func() time.Time
	log     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFees sets the fee strategy. Defaults to NoFee.
func WithFees(fees FeeStrategy) EngineOption {
	return func(e *Engine) { e.fees = fees }
}

// WithOpeningBalance sets the balance given to lazily created accounts.
func WithOpeningBalance(balance decimal.Decimal) EngineOption {
	return func(e *Engine) { e.opening = balance }
}

// WithClock injects the time source for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates a transaction engine.
func NewEngine(store domain.Store, market MarketSource, ledger *Ledger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		market:  market,
		ledger:  ledger,
		fees:    NoFee{},
		opening: decimal.Zero,
		now:     time.Now,
		log:     slog.Default().With("module", "transaction_engine"),
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is returned to the caller after a successful execution.
type Result struct {
	Balance     decimal.Decimal
	Transaction *domain.Transaction
}

// Execute validates and executes one order. The unit price is the
// asset's cached price at the moment of execution. The balance update
// and the ledger append commit together or not at all.
func (e *Engine) Execute(ctx context.Context, accountID, symbol string, quantity decimal.Decimal, side domain.Side) (*Result, error) {
	if err := domain.ValidateOrder(quantity, side); err != nil {
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, err
	}

	// Price comes from the cache before the account lock is taken, so
	// the lock is never held across provider I/O.
	snap, err := e.market.Snapshot(ctx)
	if err != nil {
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, err
	}
	quote, ok := snap.Quote(symbol)
	if !ok {
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, fmt.Errorf("%w: %s", domain.ErrAssetNotFound, symbol)
	}

	unlock := e.lockAccount(accountID)
	defer unlock()

	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get account", Err: err}
	}
	if acct == nil {
		acct = &domain.Account{ID: accountID, Balance: e.opening, CreatedAt: e.now()}
		if err := e.store.CreateAccount(ctx, acct); err != nil {
			return nil, &domain.PersistenceError{Op: "create account", Err: err}
		}
	}

	gross := quantity.Mul(quote.Price)
	fee := e.fees.Fee(gross)

	var newBalance decimal.Decimal
	switch side {
	case domain.SideBuy:
		cost := gross.Add(fee)
		if cost.GreaterThan(acct.Balance) {
			infra.GlobalMetrics.RecordOrderRejected()
			return nil, fmt.Errorf("%w: cost %s exceeds balance %s",
				domain.ErrInsufficientFunds, cost, acct.Balance)
		}
		newBalance = acct.Balance.Sub(cost)
	case domain.SideSell:
		holdings, err := e.ledger.HoldingsFor(ctx, accountID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "list transactions", Err: err}
		}
		held := holdings[symbol]
		if quantity.GreaterThan(held) {
			infra.GlobalMetrics.RecordOrderRejected()
			return nil, fmt.Errorf("%w: selling %s %s, holding %s",
				domain.ErrInsufficientHoldings, quantity, symbol, held)
		}
		newBalance = acct.Balance.Add(gross.Sub(fee))
	}

	rec := &domain.Transaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		UnitPrice: quote.Price,
		Fee:       fee,
		CreatedAt: e.now(),
	}

	// A begun commit must finish even if the caller disconnects.
	commitCtx := context.WithoutCancel(ctx)
	err = e.store.WithinTx(commitCtx, func(s domain.Store) error {
		if err := s.UpdateBalance(commitCtx, accountID, acct.Balance, newBalance); err != nil {
			return err
		}
		return s.AppendTransaction(commitCtx, rec)
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleBalance) {
			return nil, &domain.PersistenceError{Op: "update balance", Err: err}
		}
		return nil, &domain.PersistenceError{Op: "commit trade", Err: err}
	}

	infra.GlobalMetrics.RecordOrderExecuted()
	e.log.Info("order executed",
		slog.String("account", accountID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("quantity", quantity.String()),
		slog.String("price", quote.Price.String()),
		slog.String("balance", newBalance.String()),
	)

	return &Result{Balance: newBalance, Transaction: rec}, nil
}

// lockAccount acquires the mutex for one account, creating it on first
// use, and returns the release func.
func (e *Engine) lockAccount(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
