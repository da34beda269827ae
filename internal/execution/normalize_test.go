package execution

import (
	"testing"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

func TestNormalizeQty(t *testing.T) {
	btc := domain.InstrumentConstraints{MinOrderSize: 0.001, StepSize: 0.001, TickSize: 0.1}
	whole := domain.InstrumentConstraints{MinOrderSize: 1, StepSize: 1, TickSize: 0.0001}

	tests := []struct {
		name string
		qty  float64
		cons domain.InstrumentConstraints
		want string
	}{
		{"Exact Step Multiple", 0.015, btc, "0.015"},
		{"Rounds Up To Step", 0.0151, btc, "0.016"},
		{"Below Minimum", 0.0001, btc, "0.001"},
		{"Whole Unit Step", 12.3, whole, "13"},
		{"Whole Unit Minimum", 0.4, whole, "1"},
		{"Zero Step Falls Back", 0.0154, domain.InstrumentConstraints{}, "0.016"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeQty(tt.qty, tt.cons); got != tt.want {
				t.Errorf("NormalizeQty(%v) = %s, want %s", tt.qty, got, tt.want)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		tick  float64
		want  string
	}{
		{"Exact Tick", 99.5, 0.1, "99.5"},
		{"Rounds To Tick", 99.54, 0.1, "99.5"},
		{"Rounds Up", 99.56, 0.1, "99.6"},
		{"Fine Tick", 27123.4567, 0.01, "27123.46"},
		{"Zero Tick Falls Back", 99.567, 0, "99.57"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cons := domain.InstrumentConstraints{TickSize: tt.tick}
			if got := NormalizePrice(tt.price, cons); got != tt.want {
				t.Errorf("NormalizePrice(%v) = %s, want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestPrecisionFromStep(t *testing.T) {
	tests := []struct {
		step float64
		want int32
	}{
		{1, 0},
		{0.1, 1},
		{0.001, 3},
		{0.00000001, 8},
		{0.0000000001, 8}, // clamped
		{10, 0},           // clamped
		{0, 8},            // unknown step keeps full precision
	}

	for _, tt := range tests {
		if got := precisionFromStep(tt.step); got != tt.want {
			t.Errorf("precisionFromStep(%v) = %d, want %d", tt.step, got, tt.want)
		}
	}
}
