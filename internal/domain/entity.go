package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset represents a tracked cryptocurrency and its last known price.
// Rows are written only by the market cache after a successful refresh
// and are never deleted while transactions reference them.
type Asset struct {
	Symbol       string          `gorm:"primaryKey" json:"symbol"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric" json:"current_price"`
	Change24h    decimal.Decimal `gorm:"type:numeric" json:"change_24h"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Account holds a user's cash balance. One row per user, created lazily
// on the first trade. The balance is mutated only by the transaction
// engine under an atomic update and never goes negative.
type Account struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	Balance   decimal.Decimal `gorm:"type:numeric" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is one executed trade. Rows are append-only: once
// committed they are never updated or deleted, and together they form
// the source of truth for derived holdings.
type Transaction struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	AccountID string          `gorm:"index" json:"account_id"`
	Symbol    string          `gorm:"index" json:"symbol"`
	Side      Side            `gorm:"type:text" json:"side"`
	Quantity  decimal.Decimal `gorm:"type:numeric" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric" json:"unit_price"`
	Fee       decimal.Decimal `gorm:"type:numeric" json:"fee"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

// GrossValue returns quantity times the execution price, before fees.
func (t *Transaction) GrossValue() decimal.Decimal {
	return t.Quantity.Mul(t.UnitPrice)
}
