package volatility

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

// CandleSource supplies OHLC history. Implemented by the exchange gateway.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
}

// Recorder receives cache and latency samples. Implemented by the health
// monitor; a nil Recorder disables sampling.
type Recorder interface {
	RecordVolatilityLatency(d time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
}

// Params selects the ATR variant to compute.
type Params struct {
	Timeframe string
	Length    int
}

// validate fails fast on unrecognized parameters.
func (p Params) validate() error {
	if !domain.ValidTimeframe(p.Timeframe) {
		return &domain.ConfigError{Field: "timeframe", Reason: fmt.Sprintf("unrecognized %q", p.Timeframe)}
	}
	if p.Length < 1 || p.Length > 100 {
		return &domain.ConfigError{Field: "length", Reason: fmt.Sprintf("%d outside [1,100]", p.Length)}
	}
	return nil
}

// Engine computes Average True Range values with Wilder smoothing and
// caches them per symbol/timeframe/length for CacheTTL.
type Engine struct {
	candles  CandleSource
	cache    *cache
	recorder Recorder

	// now is injectable for TTL tests.
	now func() time.Time
}

// NewEngine creates an ATR engine on top of the given candle source.
func NewEngine(candles CandleSource, recorder Recorder) *Engine {
	return &Engine{
		candles:  candles,
		cache:    newCache(),
		recorder: recorder,
		now:      time.Now,
	}
}

// Calculate returns the current ATR for symbol. A cache hit younger than
// the TTL is returned without recomputation; an older entry is evicted and
// recomputed. Fewer than Length+1 candles is a recoverable
// domain.ErrInsufficientData.
func (e *Engine) Calculate(ctx context.Context, symbol string, p Params) (float64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}

	key := cacheKey(symbol, p.Timeframe, p.Length)
	now := e.now()

	if entry, ok := e.cache.get(key, now); ok {
		if e.recorder != nil {
			e.recorder.RecordCacheHit()
		}
		return entry.Value, nil
	}
	if e.recorder != nil {
		e.recorder.RecordCacheMiss()
	}

	started := now
	candles, err := e.candles.GetCandles(ctx, symbol, p.Timeframe, p.Length+1)
	if err != nil {
		return 0, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	if len(candles) < p.Length+1 {
		return 0, fmt.Errorf("%w: need %d candles for %s, got %d",
			domain.ErrInsufficientData, p.Length+1, symbol, len(candles))
	}

	value := WilderATR(candles, p.Length)
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, fmt.Errorf("%w: %s atr=%v", domain.ErrInvalidResult, symbol, value)
	}

	e.cache.put(CacheEntry{Key: key, Value: value, TsUnix: e.now().Unix()})

	if e.recorder != nil {
		e.recorder.RecordVolatilityLatency(e.now().Sub(started))
	}

	slog.Debug("ATR computed",
		slog.String("symbol", symbol),
		slog.String("timeframe", p.Timeframe),
		slog.Int("length", p.Length),
		slog.Float64("atr", value))

	return value, nil
}

// WilderATR computes the Average True Range over candles c0..cN
// (chronological) with period smoothing:
//
//	TRi  = max(high-low, |high-prevClose|, |low-prevClose|)
//	ATR1 = TR1
//	ATRi = (ATR(i-1)*(period-1) + TRi) / period
//
// The slice must hold at least period+1 candles; the caller checks that.
func WilderATR(candles []domain.Candle, period int) float64 {
	atr := 0.0
	for i := 1; i < len(candles); i++ {
		cur := candles[i]
		prevClose := candles[i-1].Close

		tr := cur.High - cur.Low
		if hc := math.Abs(cur.High - prevClose); hc > tr {
			tr = hc
		}
		if lc := math.Abs(cur.Low - prevClose); lc > tr {
			tr = lc
		}

		if i == 1 {
			atr = tr
		} else {
			atr = (atr*float64(period-1) + tr) / float64(period)
		}
	}
	return atr
}

// CacheSnapshot exposes live cache entries for the persistence gateway.
func (e *Engine) CacheSnapshot() map[string]CacheEntry {
	return e.cache.snapshot(e.now())
}

// LoadCache seeds the cache from persisted entries, dropping expired ones.
func (e *Engine) LoadCache(entries map[string]CacheEntry) {
	e.cache.load(entries, e.now())
}
