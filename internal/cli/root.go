package cli

import (
	"cryptosim/internal/app"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	boot    *app.Bootstrap
)

var rootCmd = &cobra.Command{
	Use:   "cryptosim",
	Short: "A simulated crypto trading backend",
	Long: `Cryptosim is a crypto-trading simulation backend.

It tracks live market prices from CoinGecko (with Binance as fallback),
keeps per-user cash balances, and executes simulated buy/sell orders
against an append-only transaction ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		boot = app.NewBootstrap()
		return boot.Initialize(cfgPath)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to config file")
}
