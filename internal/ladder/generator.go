// Package ladder turns a base entry and a volatility measure into a
// deterministic sequence of scaled limit-order levels.
package ladder

import (
	"math"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

// ScalingConfig are the geometric scaling knobs of the ladder.
type ScalingConfig struct {
	ATRDeviation float64 // first-level deviation in ATR multiples
	StepScale    float64 // per-level deviation growth factor
	VolumeScale  float64 // per-level size growth factor
	NumOrders    int
}

// Generate builds the ordered ladder for a position. Pure function: no I/O,
// reproducible for identical inputs.
//
//	deviation(i) = atrDeviation * stepScale^(i-1) * volatility
//	price(i)     = basePrice -/+ deviation(i)   (long/short)
//	size(i)      = baseSize * volumeScale^i
//
// The size exponent starts at 1: the base entry itself carries factor 1,
// every ladder rung is scaled up from it.
func Generate(side domain.Side, basePrice, baseSize, volatility float64, cfg ScalingConfig) []domain.Level {
	levels := make([]domain.Level, 0, cfg.NumOrders)

	for i := 1; i <= cfg.NumOrders; i++ {
		stepFactor := math.Pow(cfg.StepScale, float64(i-1))
		volumeFactor := math.Pow(cfg.VolumeScale, float64(i))

		deviation := cfg.ATRDeviation * stepFactor * volatility

		price := basePrice - deviation
		if side == domain.SideShort {
			price = basePrice + deviation
		}

		levels = append(levels, domain.Level{
			Ordinal:      i,
			OrderPrice:   price,
			OrderSize:    baseSize * volumeFactor,
			Deviation:    deviation,
			DeviationPct: deviation / basePrice * 100,
			VolumeFactor: volumeFactor,
			Status:       domain.LevelPending,
		})
	}

	return levels
}
