package app

import (
	"log/slog"
	"time"

	"cryptosim/internal/infra"
	"cryptosim/internal/infra/binance"
	"cryptosim/internal/infra/coingecko"
	"cryptosim/internal/infra/storage"
	"cryptosim/internal/ledger"
	"cryptosim/internal/market"
)

// Bootstrap orchestrates the application startup sequence and holds the
// wired core components for the CLI layer.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store
	Market *market.Cache
	Ledger *ledger.Ledger
	Engine *ledger.Engine
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires providers, cache, storage
// and the transaction engine.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("database initialized", slog.String("path", cfg.Database.Path))

	// 4. Provider adapters: CoinGecko primary, Binance fallback
	symbols := make([]string, 0, len(cfg.Market.Symbols))
	names := make(map[string]string, len(cfg.Market.Symbols))
	geckoIDs := make(map[string]string, len(cfg.Market.Symbols))
	pairs := make(map[string]string, len(cfg.Market.Symbols))
	for _, s := range cfg.Market.Symbols {
		symbols = append(symbols, s.Symbol)
		names[s.Symbol] = s.Name
		geckoIDs[s.Symbol] = s.CoinGeckoID
		pairs[s.Symbol] = s.BinancePair
	}

	primary := coingecko.New(
		cfg.API.CoinGecko.BaseURL,
		cfg.API.CoinGecko.APIKey,
		geckoIDs,
		time.Duration(cfg.API.CoinGecko.TimeoutSec)*time.Second,
	)
	fallback := binance.New(
		cfg.API.Binance.BaseURL,
		pairs,
		time.Duration(cfg.API.Binance.TimeoutSec)*time.Second,
	)

	// 5. Market cache
	b.Market = market.New(primary, fallback, market.Config{
		Symbols:     symbols,
		Names:       names,
		PriceTTL:    time.Duration(cfg.Market.PriceTTLSec) * time.Second,
		ChartTTL:    time.Duration(cfg.Market.ChartTTLSec) * time.Second,
		ChartWindow: time.Duration(cfg.Market.ChartWindowHours) * time.Hour,
	}, market.WithAssetWriter(store))

	// 6. Ledger and engine
	b.Ledger = ledger.NewLedger(store)
	b.Engine = ledger.NewEngine(store, b.Market, b.Ledger,
		ledger.WithFees(feeStrategy(cfg)),
		ledger.WithOpeningBalance(cfg.Trading.OpeningBalance),
	)

	slog.Info("core initialized",
		slog.Int("symbols", len(symbols)),
		slog.String("fee_mode", cfg.Trading.FeeMode),
	)
	return nil
}

func feeStrategy(cfg *infra.Config) ledger.FeeStrategy {
	switch cfg.Trading.FeeMode {
	case infra.FeeModePercent:
		return ledger.PercentageFee{Rate: cfg.Trading.FeePercent}
	case infra.FeeModeFlat:
		return ledger.FlatFee{Amount: cfg.Trading.FeeFlat}
	default:
		return ledger.NoFee{}
	}
}
