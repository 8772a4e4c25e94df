package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio ACCOUNT",
	Short: "Show an account's cash balance and holdings",
	Args:  cobra.ExactArgs(1),
	RunE:  runPortfolio,
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountID := args[0]

	acct, err := boot.Store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acct == nil {
		fmt.Printf("account %s has no activity yet\n", accountID)
		return nil
	}

	positions, err := boot.Ledger.Positions(ctx, accountID)
	if err != nil {
		return err
	}

	fmt.Printf("account:  %s\n", acct.ID)
	fmt.Printf("balance:  %s\n", acct.Balance.StringFixed(2))
	if len(positions) == 0 {
		fmt.Println("holdings: none")
		return nil
	}

	fmt.Println("holdings:")
	for _, p := range positions {
		fmt.Printf("  %-8s %s\n", p.Symbol, p.Quantity.String())
	}
	return nil
}
