package domain

// Side is the direction of a DCA ladder.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid reports whether the side is a recognized value.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// PositionStatus is the lifecycle state of a DCA position.
type PositionStatus string

const (
	PositionActive    PositionStatus = "active"
	PositionCompleted PositionStatus = "completed"
)

// PositionState is the full state of one scaled DCA position.
// The position book is the single writer; everything handed out to other
// components is a deep copy obtained via Clone.
type PositionState struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	BasePrice  float64 `json:"base_price"`
	BaseSize   float64 `json:"base_size"`
	Volatility float64 `json:"volatility"`
	Levels     []Level `json:"levels"`

	// ExecutedOrdinals lists filled level ordinals in fill order.
	ExecutedOrdinals []int `json:"executed_ordinals"`

	// ActiveOrderID is the exchange order id of the one currently working
	// level, empty when no level is active. The sequential-ladder invariant
	// allows at most one active level per position.
	ActiveOrderID string `json:"active_order_id,omitempty"`

	StartedAtUnix   int64          `json:"started_at_unix"`
	CompletedAtUnix int64          `json:"completed_at_unix,omitempty"`
	TotalAllocated  float64        `json:"total_allocated"`
	AvgEntryPrice   float64        `json:"avg_entry_price"`
	Status          PositionStatus `json:"status"`
}

// Key returns the uniqueness key for duplicate detection. At most one
// active position may exist per (symbol, side) pair.
func (p *PositionState) Key() string {
	return p.Symbol + "|" + string(p.Side)
}

// IsActive reports whether the position is still laddering.
func (p *PositionState) IsActive() bool {
	return p.Status == PositionActive
}

// ActiveLevel returns the currently working level, or nil.
func (p *PositionState) ActiveLevel() *Level {
	for i := range p.Levels {
		if p.Levels[i].Status == LevelActive {
			return &p.Levels[i]
		}
	}
	return nil
}

// NextPendingLevel returns the lowest-ordinal pending level, or nil.
func (p *PositionState) NextPendingLevel() *Level {
	for i := range p.Levels {
		if p.Levels[i].Status == LevelPending {
			return &p.Levels[i]
		}
	}
	return nil
}

// LevelByOrderID returns the level tracking the given exchange order id.
func (p *PositionState) LevelByOrderID(orderID string) *Level {
	if orderID == "" {
		return nil
	}
	for i := range p.Levels {
		if p.Levels[i].OrderID == orderID {
			return &p.Levels[i]
		}
	}
	return nil
}

// RecomputeAvgEntry recalculates the size-weighted mean entry over the base
// fill and every filled level.
func (p *PositionState) RecomputeAvgEntry() {
	notional := p.BasePrice * p.BaseSize
	qty := p.BaseSize
	for i := range p.Levels {
		l := &p.Levels[i]
		if l.Status == LevelFilled {
			notional += l.FillPrice * l.FilledQty
			qty += l.FilledQty
		}
	}
	if qty > 0 {
		p.AvgEntryPrice = notional / qty
	}
}

// Clone returns a deep copy safe to hand to readers.
func (p *PositionState) Clone() *PositionState {
	cp := *p
	cp.Levels = make([]Level, len(p.Levels))
	copy(cp.Levels, p.Levels)
	cp.ExecutedOrdinals = make([]int, len(p.ExecutedOrdinals))
	copy(cp.ExecutedOrdinals, p.ExecutedOrdinals)
	return &cp
}
