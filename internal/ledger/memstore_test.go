package ledger

import (
	"context"
	"errors"
	"sync"

	"cryptosim/internal/domain"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory domain.Store for ledger tests. WithinTx
// snapshots the state up front and restores it when fn fails, matching
// the rollback semantics of the real store.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	txs      []domain.Transaction

	failAppend  error // fault injection for AppendTransaction
	failBalance error // fault injection for UpdateBalance
}

var _ domain.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]domain.Account)}
}

func (m *memStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := acct
	return &copied, nil
}

func (m *memStore) CreateAccount(ctx context.Context, acct *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.ID]; ok {
		return errors.New("account already exists")
	}
	m.accounts[acct.ID] = *acct
	return nil
}

func (m *memStore) UpdateBalance(ctx context.Context, id string, prev, next decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failBalance != nil {
		return m.failBalance
	}
	acct, ok := m.accounts[id]
	if !ok || !acct.Balance.Equal(prev) {
		return domain.ErrStaleBalance
	}
	acct.Balance = next
	m.accounts[id] = acct
	return nil
}

func (m *memStore) AppendTransaction(ctx context.Context, rec *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	m.txs = append(m.txs, *rec)
	return nil
}

func (m *memStore) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range m.txs {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	return nil, nil
}

func (m *memStore) UpsertAsset(ctx context.Context, asset *domain.Asset) error {
	return nil
}

func (m *memStore) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	m.mu.Lock()
	backupAccounts := make(map[string]domain.Account, len(m.accounts))
	for id, acct := range m.accounts {
		backupAccounts[id] = acct
	}
	backupTxs := make([]domain.Transaction, len(m.txs))
	copy(backupTxs, m.txs)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.accounts = backupAccounts
		m.txs = backupTxs
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) balance(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

func (m *memStore) txCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}

func (m *memStore) seed(id string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = domain.Account{ID: id, Balance: decimal.NewFromInt(balance)}
}
