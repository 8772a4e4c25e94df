package infra

import (
	"sync/atomic"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Market cache
	cacheHits      atomic.Uint64
	refreshes      atomic.Uint64
	fallbackFills  atomic.Uint64
	providerErrors atomic.Uint64

	// Transaction engine
	ordersExecuted atomic.Uint64
	ordersRejected atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCacheHit records a snapshot served without provider I/O.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordRefresh records a completed snapshot refresh.
func (m *Metrics) RecordRefresh() {
	m.refreshes.Add(1)
}

// RecordFallbackFill records a snapshot filled by the fallback provider.
func (m *Metrics) RecordFallbackFill() {
	m.fallbackFills.Add(1)
}

// RecordProviderError records a failed provider fetch.
func (m *Metrics) RecordProviderError() {
	m.providerErrors.Add(1)
}

// RecordOrderExecuted records a committed trade.
func (m *Metrics) RecordOrderExecuted() {
	m.ordersExecuted.Add(1)
}

// RecordOrderRejected records an order rejected by validation.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// Stats is a point-in-time copy of all counters.
type Stats struct {
	CacheHits      uint64
	Refreshes      uint64
	FallbackFills  uint64
	ProviderErrors uint64
	OrdersExecuted uint64
	OrdersRejected uint64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Stats {
	return Stats{
		CacheHits:      m.cacheHits.Load(),
		Refreshes:      m.refreshes.Load(),
		FallbackFills:  m.fallbackFills.Load(),
		ProviderErrors: m.providerErrors.Load(),
		OrdersExecuted: m.ordersExecuted.Load(),
		OrdersRejected: m.ordersRejected.Load(),
	}
}
