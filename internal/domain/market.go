package domain

// Candle is one OHLC bar, chronologically ordered oldest-first when returned
// in a slice from the market data gateway.
type Candle struct {
	OpenUnix int64   `json:"open_unix"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

// InstrumentConstraints are the exchange-imposed rounding rules for one
// instrument. Orders must be normalized against these before submission.
type InstrumentConstraints struct {
	Symbol       string  `json:"symbol"`
	MinOrderSize float64 `json:"min_order_size"`
	StepSize     float64 `json:"step_size"` // minimum quantity increment
	TickSize     float64 `json:"tick_size"` // minimum price increment
}

// OrderUpdateKind discriminates order events reported by the exchange.
type OrderUpdateKind string

const (
	OrderUpdateFill   OrderUpdateKind = "fill"
	OrderUpdateCancel OrderUpdateKind = "cancel"
)

// OrderUpdate is an order event consumed from the exchange order stream.
type OrderUpdate struct {
	Kind      OrderUpdateKind `json:"kind"`
	OrderID   string          `json:"order_id"`
	Symbol    string          `json:"symbol"`
	FillPrice float64         `json:"fill_price,omitempty"`
	FilledQty float64         `json:"filled_qty,omitempty"`
	TsUnix    int64           `json:"ts_unix"`
}
