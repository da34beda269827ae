package domain

import "fmt"

// Timeframes recognized by the volatility engine.
var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "4h": true, "1d": true, "1w": true,
}

// ValidTimeframe reports whether tf is a recognized candle timeframe.
func ValidTimeframe(tf string) bool {
	return validTimeframes[tf]
}

// DCAConfig holds every tunable of the scaled ATR DCA engine.
// Validate is called eagerly at construction; an out-of-range value is a
// fatal ConfigError, never a silent clamp.
type DCAConfig struct {
	Timeframe    string  `yaml:"timeframe" json:"timeframe"`
	ATRLength    int     `yaml:"atr_length" json:"atr_length"`
	ATRDeviation float64 `yaml:"atr_deviation" json:"atr_deviation"`
	NumOrders    int     `yaml:"num_orders" json:"num_orders"`
	VolumeScale  float64 `yaml:"volume_scale" json:"volume_scale"`
	StepScale    float64 `yaml:"step_scale" json:"step_scale"`

	// MaxTotalAllocationPct caps the capital a single ladder may commit,
	// as a percentage of account equity.
	MaxTotalAllocationPct float64 `yaml:"max_total_allocation_pct" json:"max_total_allocation_pct"`

	// RetentionMinutes keeps completed positions in memory for reporting
	// before they are purged.
	RetentionMinutes int `yaml:"retention_minutes" json:"retention_minutes"`

	// FillTimeoutMinutes bounds how long a placed level may stay active
	// before the expiry sweep cancels it. 0 disables the sweep.
	FillTimeoutMinutes int `yaml:"fill_timeout_minutes" json:"fill_timeout_minutes"`
}

// DefaultDCAConfig returns conservative defaults.
func DefaultDCAConfig() DCAConfig {
	return DCAConfig{
		Timeframe:             "1h",
		ATRLength:             14,
		ATRDeviation:          0.5,
		NumOrders:             5,
		VolumeScale:           1.5,
		StepScale:             1.2,
		MaxTotalAllocationPct: 50,
		RetentionMinutes:      60,
		FillTimeoutMinutes:    0,
	}
}

// Validate checks every field against its recognized range.
func (c *DCAConfig) Validate() error {
	if !ValidTimeframe(c.Timeframe) {
		return &ConfigError{Field: "timeframe", Reason: fmt.Sprintf("unrecognized %q", c.Timeframe)}
	}
	if c.ATRLength < 1 || c.ATRLength > 100 {
		return &ConfigError{Field: "atr_length", Reason: fmt.Sprintf("%d outside [1,100]", c.ATRLength)}
	}
	if c.ATRDeviation <= 0 {
		return &ConfigError{Field: "atr_deviation", Reason: "must be positive"}
	}
	if c.NumOrders < 1 || c.NumOrders > 20 {
		return &ConfigError{Field: "num_orders", Reason: fmt.Sprintf("%d outside [1,20]", c.NumOrders)}
	}
	if c.VolumeScale < 1.0 || c.VolumeScale > 5.0 {
		return &ConfigError{Field: "volume_scale", Reason: fmt.Sprintf("%g outside [1.0,5.0]", c.VolumeScale)}
	}
	if c.StepScale < 1.0 || c.StepScale > 3.0 {
		return &ConfigError{Field: "step_scale", Reason: fmt.Sprintf("%g outside [1.0,3.0]", c.StepScale)}
	}
	if c.MaxTotalAllocationPct < 1 || c.MaxTotalAllocationPct > 100 {
		return &ConfigError{Field: "max_total_allocation_pct", Reason: fmt.Sprintf("%g outside [1,100]", c.MaxTotalAllocationPct)}
	}
	if c.RetentionMinutes < 0 {
		return &ConfigError{Field: "retention_minutes", Reason: "must not be negative"}
	}
	if c.FillTimeoutMinutes < 0 {
		return &ConfigError{Field: "fill_timeout_minutes", Reason: "must not be negative"}
	}
	return nil
}
