package execution

import (
	"math"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultConstraints is the conservative fallback when neither the live
// instrument query nor the cached snapshot is available.
var DefaultConstraints = domain.InstrumentConstraints{
	MinOrderSize: 0.001,
	StepSize:     0.001,
	TickSize:     0.01,
}

// NormalizeQty enforces the minimum order size and rounds UP to the nearest
// step multiple, returning the exchange string with step-derived precision.
// Rounding up rather than down guarantees the ladder never submits below
// the instrument minimum after scaling.
func NormalizeQty(qty float64, c domain.InstrumentConstraints) string {
	stepSize := c.StepSize
	if stepSize <= 0 {
		stepSize = DefaultConstraints.StepSize
	}
	step := decimal.NewFromFloat(stepSize)

	d := decimal.NewFromFloat(qty)
	min := decimal.NewFromFloat(c.MinOrderSize)
	if d.LessThan(min) {
		d = min
	}

	d = d.Div(step).Ceil().Mul(step)
	return d.StringFixed(precisionFromStep(stepSize))
}

// NormalizePrice rounds the price to the nearest tick.
func NormalizePrice(price float64, c domain.InstrumentConstraints) string {
	tickSize := c.TickSize
	if tickSize <= 0 {
		tickSize = DefaultConstraints.TickSize
	}
	tick := decimal.NewFromFloat(tickSize)

	d := decimal.NewFromFloat(price)
	d = d.Div(tick).Round(0).Mul(tick)
	return d.StringFixed(precisionFromStep(tickSize))
}

// precisionFromStep derives the string formatting precision from a step or
// tick size: -log10(step), clamped to [0,8].
func precisionFromStep(step float64) int32 {
	if step <= 0 {
		return 8
	}
	p := int32(math.Round(-math.Log10(step)))
	if p < 0 {
		p = 0
	}
	if p > 8 {
		p = 8
	}
	return p
}
