package domain

import "time"

// LevelStatus is the lifecycle state of a single ladder level.
type LevelStatus string

const (
	LevelPending      LevelStatus = "pending"
	LevelActive       LevelStatus = "active"
	LevelFilled       LevelStatus = "filled"
	LevelCancelled    LevelStatus = "cancelled"
	LevelCancelFailed LevelStatus = "cancel_failed"
	LevelFailed       LevelStatus = "failed"
)

// IsTerminal reports whether the level can no longer transition.
func (s LevelStatus) IsTerminal() bool {
	switch s {
	case LevelFilled, LevelCancelled, LevelCancelFailed, LevelFailed:
		return true
	default:
		return false
	}
}

// Level is one rung of a DCA ladder: a single planned limit order with its
// own price, size and lifecycle status. Ordinal is immutable after creation;
// every other field is mutated only by the position book or the order
// execution engine in response to exchange events.
type Level struct {
	Ordinal      int         `json:"ordinal"` // 1..N
	OrderPrice   float64     `json:"order_price"`
	OrderSize    float64     `json:"order_size"`
	Deviation    float64     `json:"deviation"`     // absolute price deviation from base
	DeviationPct float64     `json:"deviation_pct"` // deviation / basePrice * 100
	VolumeFactor float64     `json:"volume_factor"` // volumeScale^ordinal
	Status       LevelStatus `json:"status"`
	OrderID      string      `json:"order_id,omitempty"`
	PlacedAtUnix int64       `json:"placed_at_unix,omitempty"`
	FilledAtUnix int64       `json:"filled_at_unix,omitempty"`
	FillPrice    float64     `json:"fill_price,omitempty"`
	FilledQty    float64     `json:"filled_qty,omitempty"`
}

// MarkPlaced records a successful order submission.
func (l *Level) MarkPlaced(orderID string, now time.Time) {
	l.Status = LevelActive
	l.OrderID = orderID
	l.PlacedAtUnix = now.Unix()
}

// MarkFilled records an exchange fill report.
func (l *Level) MarkFilled(fillPrice, filledQty float64, now time.Time) {
	l.Status = LevelFilled
	l.FillPrice = fillPrice
	l.FilledQty = filledQty
	l.FilledAtUnix = now.Unix()
}
