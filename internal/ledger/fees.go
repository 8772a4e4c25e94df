package ledger

import "github.com/shopspring/decimal"

// FeeStrategy prices the commission charged on a trade. Buys pay the
// fee on top of the gross cost, sells have it deducted from proceeds.
type FeeStrategy interface {
	Fee(gross decimal.Decimal) decimal.Decimal
}

// NoFee charges nothing. The default.
type NoFee struct{}

func (NoFee) Fee(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// PercentageFee charges a fixed fraction of the gross trade value.
type PercentageFee struct {
	Rate decimal.Decimal // e.g. 0.005 for 0.5%
}

func (f PercentageFee) Fee(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(f.Rate)
}

// FlatFee charges the same commission regardless of trade size.
type FlatFee struct {
	Amount decimal.Decimal
}

func (f FlatFee) Fee(decimal.Decimal) decimal.Decimal {
	return f.Amount
}
