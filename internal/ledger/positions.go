package ledger

import (
	"context"

	"cryptosim/internal/domain"

	"github.com/shopspring/decimal"
)

// Ledger derives current holdings from the append-only transaction
// history. Read-only: it never writes.
type Ledger struct {
	store domain.Store
}

// NewLedger creates a position ledger over a store.
func NewLedger(store domain.Store) *Ledger {
	return &Ledger{store: store}
}

// HoldingsFor returns the net quantity held per asset, computed as the
// signed sum of the account's transactions (buy +, sell -). An account
// with no transactions yields an empty map. Assets netted down to zero
// are dropped.
func (l *Ledger) HoldingsFor(ctx context.Context, accountID string) (map[string]decimal.Decimal, error) {
	txs, err := l.store.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	holdings := make(map[string]decimal.Decimal, len(txs))
	for _, tx := range txs {
		switch tx.Side {
		case domain.SideBuy:
			holdings[tx.Symbol] = holdings[tx.Symbol].Add(tx.Quantity)
		case domain.SideSell:
			holdings[tx.Symbol] = holdings[tx.Symbol].Sub(tx.Quantity)
		}
	}

	for sym, qty := range holdings {
		if qty.IsZero() {
			delete(holdings, sym)
		}
	}
	return holdings, nil
}

// Position is one held asset for display.
type Position struct {
	Symbol   string
	Quantity decimal.Decimal
}

// Positions returns non-zero holdings ordered by first acquisition,
// which keeps audit display stable across calls.
func (l *Ledger) Positions(ctx context.Context, accountID string) ([]Position, error) {
	txs, err := l.store.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(txs))
	net := make(map[string]decimal.Decimal, len(txs))
	for _, tx := range txs {
		if _, seen := net[tx.Symbol]; !seen {
			order = append(order, tx.Symbol)
		}
		switch tx.Side {
		case domain.SideBuy:
			net[tx.Symbol] = net[tx.Symbol].Add(tx.Quantity)
		case domain.SideSell:
			net[tx.Symbol] = net[tx.Symbol].Sub(tx.Quantity)
		}
	}

	positions := make([]Position, 0, len(order))
	for _, sym := range order {
		if net[sym].IsZero() {
			continue
		}
		positions = append(positions, Position{Symbol: sym, Quantity: net[sym]})
	}
	return positions, nil
}
