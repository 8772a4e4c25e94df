package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cryptosim/internal/domain"
	"cryptosim/internal/infra"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Point prices move every tick; chart series are expensive to fetch
// and change slowly, so they live longer in the cache.
const (
	DefaultPriceTTL    = 60 * time.Second
	DefaultChartTTL    = 5 * time.Minute
	DefaultChartWindow = 24 * time.Hour
)

// Config describes which assets the cache tracks and how long each
// snapshot component may be served before a refresh.
type Config struct {
	Symbols     []string
	Names       map[string]string // display names, keyed by symbol
	PriceTTL    time.Duration
	ChartTTL    time.Duration
	ChartWindow time.Duration
}

// AssetWriter receives refreshed asset rows for persistence.
type AssetWriter interface {
	UpsertAsset(ctx context.Context, asset *domain.Asset) error
}

// Cache serves a bounded-staleness view of market prices and series.
// It sources full snapshots from the primary provider, falls back to
// the secondary on any primary failure, and coalesces concurrent
// cache-miss callers into a single in-flight refresh.
type Cache struct {
	primary  domain.QuoteProvider
	fallback domain.QuoteProvider
	cfg      Config
	now      func() time.Time
	assets   AssetWriter
	log      *slog.Logger

	mu       sync.RWMutex
	snap     *domain.Snapshot
	pricesAt time.Time
	chartsAt time.Time

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects the time source, so tests can expire TTLs without
// real waiting.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithAssetWriter persists refreshed quotes as asset rows.
func WithAssetWriter(w AssetWriter) Option {
	return func(c *Cache) { c.assets = w }
}

// WithLogger sets the cache logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a market cache over a primary and a fallback provider.
func New(primary, fallback domain.QuoteProvider, cfg Config, opts ...Option) *Cache {
	if cfg.PriceTTL <= 0 {
		cfg.PriceTTL = DefaultPriceTTL
	}
	if cfg.ChartTTL <= 0 {
		cfg.ChartTTL = DefaultChartTTL
	}
	if cfg.ChartWindow <= 0 {
		cfg.ChartWindow = DefaultChartWindow
	}

	c := &Cache{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		now:      time.Now,
		log:      slog.Default().With("module", "market_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current market snapshot. If both components are
// within TTL it performs zero provider calls. On a stale cache it
// triggers at most one coalesced refresh; if the refresh fails and a
// prior snapshot exists, the stale snapshot is served instead of an
// error.
func (c *Cache) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	if snap, ok := c.fresh(); ok {
		infra.GlobalMetrics.RecordCacheHit()
		return snap, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		if snap := c.current(); snap != nil {
			c.log.Warn("refresh failed, serving stale snapshot",
				slog.Time("fetched_at", snap.FetchedAt),
				slog.Any("error", err),
			)
			return snap, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMarketUnavailable, err)
	}
	return v.(*domain.Snapshot), nil
}

// fresh returns the snapshot when both TTLs still hold.
func (c *Cache) fresh() (*domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil {
		return nil, false
	}
	now := c.now()
	if now.Sub(c.pricesAt) < c.cfg.PriceTTL && now.Sub(c.chartsAt) < c.cfg.ChartTTL {
		return c.snap, true
	}
	return nil, false
}

func (c *Cache) current() *domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// refresh rebuilds the stale snapshot components. Runs inside the
// singleflight group, so at most one refresh is in flight at a time.
func (c *Cache) refresh(ctx context.Context) (*domain.Snapshot, error) {
	// A caller that queued behind a completed refresh lands here with a
	// fresh cache; don't fetch again.
	if snap, ok := c.fresh(); ok {
		infra.GlobalMetrics.RecordCacheHit()
		return snap, nil
	}

	c.mu.RLock()
	prev := c.snap
	now := c.now()
	needPrices := prev == nil || now.Sub(c.pricesAt) >= c.cfg.PriceTTL
	needCharts := prev == nil || now.Sub(c.chartsAt) >= c.cfg.ChartTTL
	c.mu.RUnlock()

	// Fresh components are reused only when they came from the primary;
	// a fill never mixes data from both providers.
	if prev != nil && prev.Source != c.primary.Name() {
		needPrices, needCharts = true, true
	}

	snap, err := c.fill(ctx, c.primary, prev, needPrices, needCharts)
	if err != nil {
		infra.GlobalMetrics.RecordProviderError()
		c.log.Warn("primary provider failed, using fallback",
			slog.String("provider", c.primary.Name()),
			slog.Any("error", err),
		)

		// The fallback rebuilds the entire snapshot so the pricing basis
		// stays consistent across quotes and series.
		needPrices, needCharts = true, true
		snap, err = c.fill(ctx, c.fallback, nil, true, true)
		if err != nil {
			infra.GlobalMetrics.RecordProviderError()
			return nil, err
		}
		infra.GlobalMetrics.RecordFallbackFill()
	}

	c.publish(snap, needPrices, needCharts)
	infra.GlobalMetrics.RecordRefresh()
	c.persistAssets(ctx, snap)
	return snap, nil
}

// fill builds a snapshot from one provider, fetching the requested
// components in parallel and reusing the rest from prev.
func (c *Cache) fill(ctx context.Context, p domain.QuoteProvider, prev *domain.Snapshot, fetchPrices, fetchCharts bool) (*domain.Snapshot, error) {
	quotes := make(map[string]domain.Quote, len(c.cfg.Symbols))
	series := make(map[string][]domain.PricePoint, len(c.cfg.Symbols))
	if prev != nil {
		if !fetchPrices {
			for sym, q := range prev.Quotes {
				quotes[sym] = q
			}
		}
		if !fetchCharts {
			for sym, pts := range prev.Series {
				series[sym] = pts
			}
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	if fetchPrices {
		g.Go(func() error {
			fetched, err := p.FetchPrices(gctx, c.cfg.Symbols)
			if err != nil {
				return err
			}
			mu.Lock()
			for sym, q := range fetched {
				quotes[sym] = q
			}
			mu.Unlock()
			return nil
		})
	}
	if fetchCharts {
		for _, sym := range c.cfg.Symbols {
			sym := sym
			g.Go(func() error {
				pts, err := p.FetchSeries(gctx, sym, c.cfg.ChartWindow)
				if err != nil {
					return err
				}
				mu.Lock()
				series[sym] = pts
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Snapshot{
		Quotes:    quotes,
		Series:    series,
		FetchedAt: c.now(),
		Source:    p.Name(),
	}, nil
}

// publish atomically replaces the cached snapshot. Readers never see a
// half-written snapshot, and FetchedAt never moves backwards.
func (c *Cache) publish(snap *domain.Snapshot, refreshedPrices, refreshedCharts bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && snap.FetchedAt.Before(c.snap.FetchedAt) {
		snap.FetchedAt = c.snap.FetchedAt
	}
	c.snap = snap

	now := c.now()
	if refreshedPrices {
		c.pricesAt = now
	}
	if refreshedCharts {
		c.chartsAt = now
	}
}

// persistAssets mirrors refreshed quotes into asset rows. Best effort:
// a storage failure must not fail the market read that triggered it.
func (c *Cache) persistAssets(ctx context.Context, snap *domain.Snapshot) {
	if c.assets == nil {
		return
	}
	for sym, q := range snap.Quotes {
		name := c.cfg.Names[sym]
		if name == "" {
			name = sym
		}
		asset := &domain.Asset{
			Symbol:       sym,
			Name:         name,
			CurrentPrice: q.Price,
			Change24h:    q.Change24h,
			UpdatedAt:    snap.FetchedAt,
		}
		if err := c.assets.UpsertAsset(ctx, asset); err != nil {
			c.log.Warn("failed to persist asset",
				slog.String("symbol", sym),
				slog.Any("error", err),
			)
		}
	}
}
