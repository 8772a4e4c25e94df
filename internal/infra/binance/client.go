package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptosim/internal/domain"
	"cryptosim/internal/infra"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the public Binance spot API. No key required.
	DefaultBaseURL = "https://api.binance.com"

	providerName = "binance"
)

// ticker24hResponse is the subset of the 24hr ticker payload we use.
// Binance encodes numeric fields as JSON strings.
type ticker24hResponse struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// Client is the Binance REST adapter (fallback provider). Markets are
// addressed by trading pair, so the client carries a symbol-to-pair map.
type Client struct {
	baseURL    string
	pairs      map[string]string // display symbol -> trading pair (e.g. BTC -> BTCUSDT)
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Binance client.
func New(baseURL string, pairs map[string]string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		pairs:   pairs,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: slog.Default().With("module", "binance_client"),
	}
}

// Name implements domain.QuoteProvider.
func (c *Client) Name() string {
	return providerName
}

// FetchPrices fetches the 24hr ticker for each symbol's trading pair.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	quotes := make(map[string]domain.Quote, len(symbols))
	for _, sym := range symbols {
		pair, ok := c.pairs[sym]
		if !ok {
			return nil, &domain.ProviderError{
				Provider:  providerName,
				Op:        "prices",
				Err:       fmt.Errorf("no trading pair mapped for symbol %s", sym),
				Retriable: false,
			}
		}

		params := url.Values{}
		params.Set("symbol", pair)
		body, err := c.get(ctx, "prices", c.baseURL+"/api/v3/ticker/24hr?"+params.Encode())
		if err != nil {
			return nil, err
		}

		var ticker ticker24hResponse
		if err := json.Unmarshal(body, &ticker); err != nil {
			return nil, c.malformed("prices", err)
		}

		price, err := decimal.NewFromString(ticker.LastPrice)
		if err != nil {
			return nil, c.malformed("prices", fmt.Errorf("bad lastPrice %q: %w", ticker.LastPrice, err))
		}
		change, err := decimal.NewFromString(ticker.PriceChangePercent)
		if err != nil {
			return nil, c.malformed("prices", fmt.Errorf("bad priceChangePercent %q: %w", ticker.PriceChangePercent, err))
		}

		quotes[sym] = domain.Quote{Price: price, Change24h: change}
	}
	return quotes, nil
}

// FetchSeries fetches hourly klines for one symbol, returning the close
// time and close price of each candle.
func (c *Client) FetchSeries(ctx context.Context, symbol string, window time.Duration) ([]domain.PricePoint, error) {
	pair, ok := c.pairs[symbol]
	if !ok {
		return nil, &domain.ProviderError{
			Provider:  providerName,
			Op:        "series",
			Err:       fmt.Errorf("no trading pair mapped for symbol %s", symbol),
			Retriable: false,
		}
	}

	limit := int(window / time.Hour)
	if limit < 1 {
		limit = 24
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", "1h")
	params.Set("limit", fmt.Sprintf("%d", limit))

	body, err := c.get(ctx, "series", c.baseURL+"/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, err
	}

	// Each kline mixes numbers and strings:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var klines [][]json.RawMessage
	if err := json.Unmarshal(body, &klines); err != nil {
		return nil, c.malformed("series", err)
	}

	points := make([]domain.PricePoint, 0, len(klines))
	for _, k := range klines {
		if len(k) < 7 {
			return nil, c.malformed("series", fmt.Errorf("kline has %d fields, want at least 7", len(k)))
		}

		var closeTime int64
		if err := json.Unmarshal(k[6], &closeTime); err != nil {
			return nil, c.malformed("series", fmt.Errorf("bad close time: %w", err))
		}
		var closeStr string
		if err := json.Unmarshal(k[4], &closeStr); err != nil {
			return nil, c.malformed("series", fmt.Errorf("bad close price: %w", err))
		}
		closePrice, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, c.malformed("series", fmt.Errorf("bad close price %q: %w", closeStr, err))
		}

		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(closeTime),
			Price: closePrice,
		})
	}
	return points, nil
}

func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err, Retriable: false}
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err, Retriable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider:  providerName,
			Op:        op,
			Err:       fmt.Errorf("unexpected status code: %d", resp.StatusCode),
			Retriable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: providerName, Op: op, Err: err, Retriable: true}
	}
	return body, nil
}

func (c *Client) malformed(op string, err error) error {
	return &domain.ProviderError{Provider: providerName, Op: op, Err: err, Retriable: false}
}
