package cli

import (
	"errors"
	"fmt"

	"cryptosim/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var buyCmd = &cobra.Command{
	Use:   "buy ACCOUNT SYMBOL QUANTITY",
	Short: "Buy an asset at the current cached price",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd, args, domain.SideBuy)
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell ACCOUNT SYMBOL QUANTITY",
	Short: "Sell a held asset at the current cached price",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrade(cmd, args, domain.SideSell)
	},
}

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)
}

func runTrade(cmd *cobra.Command, args []string, side domain.Side) error {
	accountID, symbol := args[0], args[1]

	quantity, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", args[2], err)
	}

	res, err := boot.Engine.Execute(cmd.Context(), accountID, symbol, quantity, side)
	if err != nil {
		if rejected(err) {
			fmt.Printf("order rejected: %v\n", err)
			return nil
		}
		return err
	}

	tx := res.Transaction
	fmt.Printf("%s %s %s @ %s", tx.Side, tx.Quantity, tx.Symbol, tx.UnitPrice.StringFixed(2))
	if !tx.Fee.IsZero() {
		fmt.Printf(" (fee %s)", tx.Fee.StringFixed(2))
	}
	fmt.Printf("\nnew balance: %s\n", res.Balance.StringFixed(2))
	return nil
}

// rejected reports whether the error is a rejected-order response
// rather than a system failure.
func rejected(err error) bool {
	return errors.Is(err, domain.ErrInvalidOrder) ||
		errors.Is(err, domain.ErrAssetNotFound) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrInsufficientHoldings)
}
