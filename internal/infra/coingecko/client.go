package coingecko

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
	// DefaultBaseURL is the public CoinGecko v3 API.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	providerName = "coingecko"
)

// Client is the CoinGecko REST adapter (primary provider). Coins are
// addressed by CoinGecko id, so the client carries a symbol-to-id map.
type Client struct {
	baseURL    string
	apiKey     string
	ids        map[string]string // display symbol -> coingecko id
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a CoinGecko client. apiKey is the optional demo key.
func New(baseURL, apiKey string, ids map[string]string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		ids:     ids,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: slog.Default().With("module", "coingecko_client"),
	}
}

// Name implements domain.QuoteProvider.
func (c *Client) Name() string {
	return providerName
}

// FetchPrices fetches current USD prices with 24h change for the given
// symbols in a single simple/price call.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	ids := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		id, ok := c.ids[sym]
		if !ok {
			return nil, &domain.ProviderError{
				Provider:  providerName,
				Op:        "prices",
				Err:       fmt.Errorf("no coingecko id mapped for symbol %s", sym),
				Retriable: false,
			}
		}
		ids = append(ids, id)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")

	body, err := c.get(ctx, "prices", c.baseURL+"/simple/price?"+params.Encode())
	if err != nil {
		return nil, err
	}

	// Response shape: { "bitcoin": { "usd": 56000, "usd_24h_change": -1.2 }, ... }
	var payload map[string]map[string]float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.malformed("prices", err)
	}

	quotes := make(map[string]domain.Quote, len(symbols))
	for _, sym := range symbols {
		entry, ok := payload[c.ids[sym]]
		if !ok {
			return nil, c.malformed("prices", fmt.Errorf("response is missing %s", c.ids[sym]))
		}
		price, ok := entry["usd"]
		if !ok {
			return nil, c.malformed("prices", fmt.Errorf("no usd price for %s", sym))
		}
		quotes[sym] = domain.Quote{
			Price:     decimal.NewFromFloat(price),
			Change24h: decimal.NewFromFloat(entry["usd_24h_change"]),
		}
	}
	return quotes, nil
}

// FetchSeries fetches the hourly market chart for one symbol.
func (c *Client) FetchSeries(ctx context.Context, symbol string, window time.Duration) ([]domain.PricePoint, error) {
	id, ok := c.ids[symbol]
	if !ok {
		return nil, &domain.ProviderError{
			Provider:  providerName,
			Op:        "series",
			Err:       fmt.Errorf("no coingecko id mapped for symbol %s", symbol),
			Retriable: false,
		}
	}

	days := int(window / (24 * time.Hour))
	if days < 1 {
		days = 1
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", fmt.Sprintf("%d", days))
	params.Set("interval", "hourly")

	body, err := c.get(ctx, "series", c.baseURL+"/coins/"+id+"/market_chart?"+params.Encode())
	if err != nil {
		return nil, err
	}

	// Response shape: { "prices": [ [ts_ms, price], ... ], ... }
	var payload struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, c.malformed("series", err)
	}

	points := make([]domain.PricePoint, 0, len(payload.Prices))
	for _, p := range payload.Prices {
		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(int64(p[0])),
			Price: decimal.NewFromFloat(p[1]),
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
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

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
