package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cryptosim/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists accounts, assets and the trade ledger in SQLite.
type Store struct {
	db *gorm.DB
}

var _ domain.Store = (*Store)(nil)

// New opens (or creates) the SQLite database at path and migrates the
// schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Pure Go SQLite, no cgo
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Asset{}, &domain.Account{}, &domain.Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// ======================================================================================
// Account Operations
// ======================================================================================

// GetAccount retrieves an account by id. Not found is not an error.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var acct domain.Account
	err := s.db.WithContext(ctx).First(&acct, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, acct *domain.Account) error {
	return s.db.WithContext(ctx).Create(acct).Error
}

// UpdateBalance sets the account balance conditional on the previously
// read value, so a concurrent writer is detected instead of silently
// overwritten.
func (s *Store) UpdateBalance(ctx context.Context, id string, prev, next decimal.Decimal) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ? AND balance = ?", id, prev).
		Update("balance", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStaleBalance
	}
	return nil
}

// ======================================================================================
// Ledger Operations
// ======================================================================================

// AppendTransaction inserts a ledger row. The ledger is append-only:
// there is deliberately no update or delete API for transactions.
func (s *Store) AppendTransaction(ctx context.Context, rec *domain.Transaction) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// ListTransactions returns the account's ledger in insertion order.
func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at, id").
		Find(&txs).Error
	return txs, err
}

// ======================================================================================
// Asset Operations
// ======================================================================================

// GetAsset retrieves asset metadata by symbol. Not found is not an error.
func (s *Store) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	var asset domain.Asset
	err := s.db.WithContext(ctx).First(&asset, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// UpsertAsset creates or updates an asset row.
func (s *Store) UpsertAsset(ctx context.Context, asset *domain.Asset) error {
	return s.db.WithContext(ctx).Save(asset).Error
}

// ListAssets returns all tracked assets ordered by symbol.
func (s *Store) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := s.db.WithContext(ctx).Order("symbol").Find(&assets).Error
	return assets, err
}

// ======================================================================================
// Transactions
// ======================================================================================

// WithinTx runs fn against a transactional store. Any error rolls back
// every write made inside fn.
func (s *Store) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
