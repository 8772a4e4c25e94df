package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history ACCOUNT",
	Short: "Show an account's transaction history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	txs, err := boot.Store.ListTransactions(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("no transactions")
		return nil
	}

	fmt.Printf("%-20s %-5s %-8s %14s %14s %10s\n",
		"DATE", "SIDE", "SYMBOL", "QUANTITY", "PRICE", "FEE")
	for _, tx := range txs {
		fmt.Printf("%-20s %-5s %-8s %14s %14s %10s\n",
			tx.CreatedAt.Format("2006-01-02 15:04:05"),
			tx.Side,
			tx.Symbol,
			tx.Quantity.String(),
			tx.UnitPrice.StringFixed(2),
			tx.Fee.StringFixed(2),
		)
	}
	return nil
}
