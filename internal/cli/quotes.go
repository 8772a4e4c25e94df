package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Show current market prices",
	Long: `Show the cached market snapshot for all tracked assets.

Within the cache TTL this performs no network calls; a stale cache
triggers one refresh against the providers.`,
	RunE: runQuotes,
}

func init() {
	rootCmd.AddCommand(quotesCmd)
}

func runQuotes(cmd *cobra.Command, args []string) error {
	snap, err := boot.Market.Snapshot(cmd.Context())
	if err != nil {
		// Soft failure: fall back to the last persisted prices.
		return printPersistedAssets(cmd.Context())
	}

	fmt.Printf("Market snapshot (source: %s, fetched: %s)\n\n",
		snap.Source, snap.FetchedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("%-8s %16s %10s %8s\n", "SYMBOL", "PRICE (USD)", "24H %", "POINTS")
	for _, sym := range snap.Symbols() {
		q := snap.Quotes[sym]
		fmt.Printf("%-8s %16s %10s %8d\n",
			sym,
			q.Price.StringFixed(2),
			q.Change24h.StringFixed(2),
			len(snap.Series[sym]),
		)
	}
	return nil
}

// printPersistedAssets renders the asset rows persisted on earlier
// refreshes, so an outage still shows the last known prices.
func printPersistedAssets(ctx context.Context) error {
	assets, err := boot.Store.ListAssets(ctx)
	if err != nil || len(assets) == 0 {
		fmt.Println("market data unavailable, try again later")
		return nil
	}

	fmt.Println("market data unavailable, showing last persisted prices")
	fmt.Printf("%-8s %-16s %16s %10s %20s\n", "SYMBOL", "NAME", "PRICE (USD)", "24H %", "UPDATED")
	for _, a := range assets {
		fmt.Printf("%-8s %-16s %16s %10s %20s\n",
			a.Symbol,
			a.Name,
			a.CurrentPrice.StringFixed(2),
			a.Change24h.StringFixed(2),
			a.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}
