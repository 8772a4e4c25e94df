package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cryptosim/internal/domain"

	"github.com/shopspring/decimal"
)

// fakeProvider is a controllable in-memory quote source.
type fakeProvider struct {
	name  string
	delay time.Duration

	mu     sync.Mutex
	prices map[string]domain.Quote
	series map[string][]domain.PricePoint
	err    error

	priceCalls  atomic.Int64
	seriesCalls atomic.Int64
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchPrices(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	p.priceCalls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]domain.Quote, len(symbols))
	for _, sym := range symbols {
		out[sym] = p.prices[sym]
	}
	return out, nil
}

func (p *fakeProvider) FetchSeries(ctx context.Context, symbol string, window time.Duration) ([]domain.PricePoint, error) {
	p.seriesCalls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.series[symbol], nil
}

func (p *fakeProvider) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProvider) setPrice(symbol string, price int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = domain.Quote{Price: decimal.NewFromInt(price)}
}

// fakeClock lets tests expire TTLs without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newFakeProvider(name string, btcPrice, ethPrice int64) *fakeProvider {
	point := domain.PricePoint{Time: time.Unix(1700000000, 0), Price: decimal.NewFromInt(btcPrice)}
	return &fakeProvider{
		name: name,
		prices: map[string]domain.Quote{
			"BTC": {Price: decimal.NewFromInt(btcPrice), Change24h: decimal.NewFromInt(1)},
			"ETH": {Price: decimal.NewFromInt(ethPrice), Change24h: decimal.NewFromInt(-2)},
		},
		series: map[string][]domain.PricePoint{
			"BTC": {point},
			"ETH": {point},
		},
	}
}

func newTestCache(primary, fallback domain.QuoteProvider, clock *fakeClock, opts ...Option) *Cache {
	cfg := Config{
		Symbols:  []string{"BTC", "ETH"},
		PriceTTL: 60 * time.Second,
		ChartTTL: 5 * time.Minute,
	}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(primary, fallback, cfg, opts...)
}

func TestCache_FreshCachePerformsNoFetch(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	ctx := context.Background()
	first, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("first snapshot failed: %v", err)
	}

	second, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second snapshot failed: %v", err)
	}

	if primary.priceCalls.Load() != 1 {
		t.Errorf("price calls = %d, want 1", primary.priceCalls.Load())
	}
	if primary.seriesCalls.Load() != 2 {
		t.Errorf("series calls = %d, want 2 (one per symbol)", primary.seriesCalls.Load())
	}
	if first != second {
		t.Error("expected identical snapshot within TTL window")
	}
	if fallback.priceCalls.Load() != 0 {
		t.Error("fallback should not have been called")
	}
}

func TestCache_PriceTTLExpiryRefreshesPricesOnly(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	ctx := context.Background()
	if _, err := cache.Snapshot(ctx); err != nil {
		t.Fatalf("initial fill failed: %v", err)
	}

	primary.setPrice("BTC", 110)
	clock.Advance(61 * time.Second) // past price TTL, within chart TTL

	snap, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot after expiry failed: %v", err)
	}

	if primary.priceCalls.Load() != 2 {
		t.Errorf("price calls = %d, want 2", primary.priceCalls.Load())
	}
	if primary.seriesCalls.Load() != 2 {
		t.Errorf("series calls = %d, want 2 (charts still fresh)", primary.seriesCalls.Load())
	}
	if q, _ := snap.Quote("BTC"); !q.Price.Equal(decimal.NewFromInt(110)) {
		t.Errorf("BTC price = %s, want refreshed 110", q.Price)
	}
	if len(snap.Series["BTC"]) == 0 {
		t.Error("chart series should be carried over from the fresh cache")
	}
}

func TestCache_FallbackFillsEntireSnapshot(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)
	primary.setErr(errors.New("rate limited"))

	snap, err := cache.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if snap.Source != "fallback" {
		t.Errorf("source = %q, want fallback", snap.Source)
	}
	for _, sym := range []string{"BTC", "ETH"} {
		q, ok := snap.Quote(sym)
		if !ok {
			t.Fatalf("missing quote for %s", sym)
		}
		fb := fallback.prices[sym]
		if !q.Price.Equal(fb.Price) {
			t.Errorf("%s price = %s, want fallback price %s", sym, q.Price, fb.Price)
		}
	}
	if fallback.seriesCalls.Load() != 2 {
		t.Errorf("fallback series calls = %d, want 2", fallback.seriesCalls.Load())
	}
}

func TestCache_FallbackNeverMixesWithFreshPrimaryData(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	ctx := context.Background()
	if _, err := cache.Snapshot(ctx); err != nil {
		t.Fatalf("initial fill failed: %v", err)
	}

	// Prices expire, charts stay fresh. The primary now fails, so the
	// fallback must rebuild everything including the still-fresh charts.
	primary.setErr(errors.New("timeout"))
	clock.Advance(61 * time.Second)

	snap, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if snap.Source != "fallback" {
		t.Errorf("source = %q, want fallback", snap.Source)
	}
	if fallback.seriesCalls.Load() != 2 {
		t.Errorf("fallback series calls = %d, want 2 (whole snapshot refetched)", fallback.seriesCalls.Load())
	}
	if q, _ := snap.Quote("BTC"); !q.Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("BTC price = %s, want fallback price 99", q.Price)
	}
}

func TestCache_ServesStaleSnapshotWhenAllProvidersFail(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	ctx := context.Background()
	first, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("initial fill failed: %v", err)
	}

	primary.setErr(errors.New("down"))
	fallback.setErr(errors.New("down too"))
	clock.Advance(10 * time.Minute)

	snap, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("expected stale snapshot, got error: %v", err)
	}
	if snap != first {
		t.Error("expected the prior snapshot to be served")
	}
}

func TestCache_MarketUnavailableWithoutPriorSnapshot(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	primary.setErr(errors.New("down"))
	fallback.setErr(errors.New("down too"))

	_, err := cache.Snapshot(context.Background())
	if !errors.Is(err, domain.ErrMarketUnavailable) {
		t.Errorf("expected ErrMarketUnavailable, got %v", err)
	}
}

func TestCache_ConcurrentMissesCoalesceIntoOneRefresh(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	primary.delay = 50 * time.Millisecond
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Snapshot(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent snapshot failed: %v", err)
		}
	}
	if got := primary.priceCalls.Load(); got != 1 {
		t.Errorf("price calls = %d, want exactly 1", got)
	}
	if got := primary.seriesCalls.Load(); got != 2 {
		t.Errorf("series calls = %d, want exactly 2", got)
	}
}

func TestCache_MonotonicFetchedAt(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cache := newTestCache(primary, fallback, clock)

	ctx := context.Background()
	first, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("initial fill failed: %v", err)
	}

	clock.Advance(2 * time.Minute)
	second, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second fill failed: %v", err)
	}

	if second.FetchedAt.Before(first.FetchedAt) {
		t.Errorf("FetchedAt went backwards: %s then %s", first.FetchedAt, second.FetchedAt)
	}
}

// assetRecorder captures asset upserts from the cache.
type assetRecorder struct {
	mu     sync.Mutex
	assets map[string]*domain.Asset
}

func (r *assetRecorder) UpsertAsset(ctx context.Context, asset *domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assets == nil {
		r.assets = make(map[string]*domain.Asset)
	}
	r.assets[asset.Symbol] = asset
	return nil
}

func TestCache_RefreshPersistsAssets(t *testing.T) {
	primary := newFakeProvider("primary", 100, 10)
	fallback := newFakeProvider("fallback", 99, 9)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	rec := &assetRecorder{}

	cfg := Config{
		Symbols:  []string{"BTC", "ETH"},
		Names:    map[string]string{"BTC": "Bitcoin"},
		PriceTTL: time.Minute,
		ChartTTL: 5 * time.Minute,
	}
	cache := New(primary, fallback, cfg, WithClock(clock.Now), WithAssetWriter(rec))

	if _, err := cache.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	btc := rec.assets["BTC"]
	if btc == nil {
		t.Fatal("BTC asset was not persisted")
	}
	if btc.Name != "Bitcoin" {
		t.Errorf("BTC name = %q, want Bitcoin", btc.Name)
	}
	if !btc.CurrentPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("BTC price = %s, want 100", btc.CurrentPrice)
	}
	if rec.assets["ETH"].Name != "ETH" {
		t.Errorf("ETH should fall back to the symbol as name, got %q", rec.assets["ETH"].Name)
	}
}
