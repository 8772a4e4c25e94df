package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes a user-supplied side string.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
}

// ValidateOrder checks the preconditions shared by every order entry
// point: a known side and a strictly positive quantity.
func ValidateOrder(quantity decimal.Decimal, side Side) error {
	if side != SideBuy && side != SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, string(side))
	}
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOrder, quantity)
	}
	return nil
}
