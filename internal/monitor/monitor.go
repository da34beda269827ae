// Package monitor samples engine health (latency, cache efficiency, load)
// and emits advisory actions. It never mutates trading state: every
// corrective action is advisory and logged.
package monitor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

const (
	// latencySampleCap bounds each latency ring buffer.
	latencySampleCap = 1000

	// Load score caps: counts at or above these saturate their component.
	loadPositionsCap = 25
	loadOrdersCap    = 25
	loadMemoryCapMB  = 512
)

// LoadSource supplies the live counts the load score needs. Implemented by
// the position book.
type LoadSource interface {
	CountActive() int
	CountActiveOrders() int
}

// Monitor owns the process-wide performance statistics and periodic health
// sampling.
type Monitor struct {
	src           LoadSource
	loadThreshold float64

	statsMu sync.Mutex
	stats   domain.PerformanceStats

	orderLatency *ringBuffer // milliseconds
	volLatency   *ringBuffer // milliseconds

	// lastExported holds the counter values already pushed to Prometheus
	// so each sample only adds deltas.
	lastExported domain.PerformanceStats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor. loadThreshold is the 0-100 score above
// which advisory warnings are emitted.
func NewMonitor(src LoadSource, loadThreshold float64) *Monitor {
	return &Monitor{
		src:           src,
		loadThreshold: loadThreshold,
		orderLatency:  newRingBuffer(latencySampleCap),
		volLatency:    newRingBuffer(latencySampleCap),
	}
}

// Start launches the background sampling ticker. Must be paired with Stop
// so repeated construction in tests does not leak timers.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
}

// Stop halts the sampling ticker and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// sample takes one health reading, exports it, and logs advice when the
// load score crosses the threshold.
func (m *Monitor) sample() {
	score := m.LoadScore()
	stats := m.Stats()

	publishMetrics(m.src, stats, m.lastExported, score, m.orderLatency.avg(), m.volLatency.avg())
	m.lastExported = stats

	if score > m.loadThreshold {
		for _, advice := range m.Advice(score) {
			slog.Warn("Load advisory", slog.Float64("score", score), slog.String("advice", advice))
		}
	}
}

// LoadScore combines active positions (40%), working orders (30%) and
// memory usage (30%), each capped, into a 0-100 scale.
func (m *Monitor) LoadScore() float64 {
	positions := capped(float64(m.src.CountActive()), loadPositionsCap)
	orders := capped(float64(m.src.CountActiveOrders()), loadOrdersCap)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	memMB := capped(float64(ms.HeapAlloc)/(1024*1024), loadMemoryCapMB)

	return positions*40 + orders*30 + memMB*30
}

// Advice lists advisory actions for the current load. Purely informational.
func (m *Monitor) Advice(score float64) []string {
	var out []string
	if m.src.CountActive() >= loadPositionsCap {
		out = append(out, "active position count at cap; consider shrinking completed-position retention")
	}
	if m.src.CountActiveOrders() >= loadOrdersCap {
		out = append(out, "too many concurrent working orders")
	}
	if len(out) == 0 {
		out = append(out, "load elevated; monitor memory usage")
	}
	return out
}

// capped normalizes v into [0,1] against cap.
func capped(v, cap float64) float64 {
	if v >= cap {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v / cap
}

// RecordOrderLatency adds one order round-trip sample.
func (m *Monitor) RecordOrderLatency(d time.Duration) {
	m.orderLatency.add(float64(d.Milliseconds()))
}

// RecordVolatilityLatency adds one ATR computation sample.
func (m *Monitor) RecordVolatilityLatency(d time.Duration) {
	m.volLatency.add(float64(d.Milliseconds()))
}

// AvgOrderLatencyMs returns the rolling average order latency.
func (m *Monitor) AvgOrderLatencyMs() float64 { return m.orderLatency.avg() }

// AvgVolatilityLatencyMs returns the rolling average ATR latency.
func (m *Monitor) AvgVolatilityLatencyMs() float64 { return m.volLatency.avg() }

// Counter updates. These implement the Recorder interfaces of the
// volatility and execution packages.

func (m *Monitor) RecordCacheHit()  { m.bump(func(s *domain.PerformanceStats) { s.CacheHits++ }) }
func (m *Monitor) RecordCacheMiss() { m.bump(func(s *domain.PerformanceStats) { s.CacheMisses++ }) }

func (m *Monitor) IncOrdersPlaced()    { m.bump(func(s *domain.PerformanceStats) { s.OrdersPlaced++ }) }
func (m *Monitor) IncOrdersFilled()    { m.bump(func(s *domain.PerformanceStats) { s.OrdersFilled++ }) }
func (m *Monitor) IncOrdersFailed()    { m.bump(func(s *domain.PerformanceStats) { s.OrdersFailed++ }) }
func (m *Monitor) IncOrdersCancelled() { m.bump(func(s *domain.PerformanceStats) { s.OrdersCancelled++ }) }

func (m *Monitor) IncPositionsStarted() {
	m.bump(func(s *domain.PerformanceStats) { s.PositionsStarted++ })
}

func (m *Monitor) IncPositionsCompleted() {
	m.bump(func(s *domain.PerformanceStats) { s.PositionsCompleted++ })
}

// MergeStats folds persisted counters in at startup.
func (m *Monitor) MergeStats(prior domain.PerformanceStats) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.stats.Merge(prior)
}

// ResetStats zeroes all counters. Explicit operator action only.
func (m *Monitor) ResetStats() {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.stats = domain.PerformanceStats{}
}

// Stats returns a copy of the current counters.
func (m *Monitor) Stats() domain.PerformanceStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Monitor) bump(fn func(*domain.PerformanceStats)) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	fn(&m.stats)
}
