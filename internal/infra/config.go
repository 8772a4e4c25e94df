package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fee modes accepted by trading.fee_mode.
const (
	FeeModeNone    = "none"
	FeeModePercent = "percent"
	FeeModeFlat    = "flat"
)

// SymbolConfig maps one tracked asset to its identifier at each
// provider: CoinGecko addresses coins by id, Binance by trading pair.
type SymbolConfig struct {
	Symbol      string `yaml:"symbol"`
	Name        string `yaml:"name"`
	CoinGeckoID string `yaml:"coingecko_id"`
	BinancePair string `yaml:"binance_pair"`
}

// Config holds the full application configuration. Sensitive values can
// be overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Symbols          []SymbolConfig `yaml:"symbols"`
		PriceTTLSec      int            `yaml:"price_ttl_sec"`
		ChartTTLSec      int            `yaml:"chart_ttl_sec"`
		ChartWindowHours int            `yaml:"chart_window_hours"`
	} `yaml:"market"`

	API struct {
		CoinGecko struct {
			BaseURL    string `yaml:"base_url"`
			APIKey     string `yaml:"api_key"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"coingecko"`
		Binance struct {
			BaseURL    string `yaml:"base_url"`
			TimeoutSec int    `yaml:"timeout_sec"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Trading struct {
		FeeMode        string          `yaml:"fee_mode"`
		FeePercent     decimal.Decimal `yaml:"fee_percent"`
		FeeFlat        decimal.Decimal `yaml:"fee_flat"`
		OpeningBalance decimal.Decimal `yaml:"opening_balance"`
	} `yaml:"trading"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies defaults
// and environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Market.PriceTTLSec == 0 {
		c.Market.PriceTTLSec = 60
	}
	if c.Market.ChartTTLSec == 0 {
		c.Market.ChartTTLSec = 300
	}
	if c.Market.ChartWindowHours == 0 {
		c.Market.ChartWindowHours = 24
	}
	if c.API.CoinGecko.BaseURL == "" {
		c.API.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.API.CoinGecko.TimeoutSec == 0 {
		c.API.CoinGecko.TimeoutSec = 10
	}
	if c.API.Binance.BaseURL == "" {
		c.API.Binance.BaseURL = "https://api.binance.com"
	}
	if c.API.Binance.TimeoutSec == 0 {
		c.API.Binance.TimeoutSec = 10
	}
	if c.Trading.FeeMode == "" {
		c.Trading.FeeMode = FeeModeNone
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/cryptosim.db"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("at least one market symbol is required")
	}
	for _, s := range c.Market.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("market symbol entry is missing a symbol")
		}
		if s.CoinGeckoID == "" {
			return fmt.Errorf("symbol %s is missing coingecko_id", s.Symbol)
		}
		if s.BinancePair == "" {
			return fmt.Errorf("symbol %s is missing binance_pair", s.Symbol)
		}
	}

	if c.Market.PriceTTLSec <= 0 || c.Market.ChartTTLSec <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if !strings.HasPrefix(c.API.CoinGecko.BaseURL, "http") {
		return fmt.Errorf("invalid CoinGecko base URL: %s", c.API.CoinGecko.BaseURL)
	}
	if !strings.HasPrefix(c.API.Binance.BaseURL, "http") {
		return fmt.Errorf("invalid Binance base URL: %s", c.API.Binance.BaseURL)
	}

	switch c.Trading.FeeMode {
	case FeeModeNone, FeeModePercent, FeeModeFlat:
	default:
		return fmt.Errorf("unknown fee mode: %s", c.Trading.FeeMode)
	}
	if c.Trading.FeePercent.IsNegative() || c.Trading.FeeFlat.IsNegative() {
		return fmt.Errorf("fees must be non-negative")
	}
	if c.Trading.OpeningBalance.IsNegative() {
		return fmt.Errorf("opening balance must be non-negative")
	}

	return nil
}

// overrideWithEnv applies environment overrides for sensitive values.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("CG_DEMO_API_KEY"); key != "" {
		cfg.API.CoinGecko.APIKey = key
	}
	if path := os.Getenv("CRYPTOSIM_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
}
