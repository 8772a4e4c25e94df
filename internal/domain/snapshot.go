package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price for one asset.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"`
}

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// Snapshot is the full cached market view: current quotes plus the 24h
// series for every tracked asset. A snapshot is immutable once
// published and is always sourced from a single provider per fill.
type Snapshot struct {
	Quotes    map[string]Quote        `json:"quotes"`
	Series    map[string][]PricePoint `json:"series"`
	FetchedAt time.Time               `json:"fetched_at"`
	Source    string                  `json:"source"`
}

// Quote returns the quote for a symbol, if present.
func (s *Snapshot) Quote(symbol string) (Quote, bool) {
	q, ok := s.Quotes[symbol]
	return q, ok
}

// Symbols returns the quoted symbols in sorted order for consistent
// display.
func (s *Snapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Quotes))
	for sym := range s.Quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
