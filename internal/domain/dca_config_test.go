package domain

import (
	"errors"
	"testing"
)

func TestDCAConfigValidate(t *testing.T) {
	valid := DefaultDCAConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name      string
		mutate    func(*DCAConfig)
		wantField string
	}{
		{"Unknown Timeframe", func(c *DCAConfig) { c.Timeframe = "2h" }, "timeframe"},
		{"Empty Timeframe", func(c *DCAConfig) { c.Timeframe = "" }, "timeframe"},
		{"ATR Length Zero", func(c *DCAConfig) { c.ATRLength = 0 }, "atr_length"},
		{"ATR Length Too Large", func(c *DCAConfig) { c.ATRLength = 101 }, "atr_length"},
		{"ATR Deviation Zero", func(c *DCAConfig) { c.ATRDeviation = 0 }, "atr_deviation"},
		{"Num Orders Zero", func(c *DCAConfig) { c.NumOrders = 0 }, "num_orders"},
		{"Num Orders Too Large", func(c *DCAConfig) { c.NumOrders = 21 }, "num_orders"},
		{"Volume Scale Too Small", func(c *DCAConfig) { c.VolumeScale = 0.9 }, "volume_scale"},
		{"Volume Scale Too Large", func(c *DCAConfig) { c.VolumeScale = 5.1 }, "volume_scale"},
		{"Step Scale Too Small", func(c *DCAConfig) { c.StepScale = 0.99 }, "step_scale"},
		{"Step Scale Too Large", func(c *DCAConfig) { c.StepScale = 3.01 }, "step_scale"},
		{"Allocation Below Range", func(c *DCAConfig) { c.MaxTotalAllocationPct = 0.5 }, "max_total_allocation_pct"},
		{"Allocation Above Range", func(c *DCAConfig) { c.MaxTotalAllocationPct = 101 }, "max_total_allocation_pct"},
		{"Negative Retention", func(c *DCAConfig) { c.RetentionMinutes = -1 }, "retention_minutes"},
		{"Negative Fill Timeout", func(c *DCAConfig) { c.FillTimeoutMinutes = -1 }, "fill_timeout_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDCAConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("field = %s, want %s", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestDCAConfigBoundariesValid(t *testing.T) {
	// Range edges are inclusive.
	cfg := DefaultDCAConfig()
	cfg.ATRLength = 100
	cfg.NumOrders = 20
	cfg.VolumeScale = 5.0
	cfg.StepScale = 3.0
	cfg.MaxTotalAllocationPct = 100

	if err := cfg.Validate(); err != nil {
		t.Errorf("boundary config rejected: %v", err)
	}

	cfg.ATRLength = 1
	cfg.NumOrders = 1
	cfg.VolumeScale = 1.0
	cfg.StepScale = 1.0
	cfg.MaxTotalAllocationPct = 1

	if err := cfg.Validate(); err != nil {
		t.Errorf("lower boundary config rejected: %v", err)
	}
}

func TestValidTimeframe(t *testing.T) {
	for _, tf := range []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w"} {
		if !ValidTimeframe(tf) {
			t.Errorf("%s rejected", tf)
		}
	}
	for _, tf := range []string{"2h", "1M", "", "60"} {
		if ValidTimeframe(tf) {
			t.Errorf("%s accepted", tf)
		}
	}
}
