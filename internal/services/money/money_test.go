package money

import (
	"testing"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{9.00, 900},
		{0.01, 1},
		{18.00, 1800},
		{19.99, 1999},
		{0, 0},
		// 29.35 is not exactly representable as a float64; the decimal
		// conversion must still land on 2935, not 2934.
		{29.35, 2935},
	}

	for _, tt := range tests {
		if got := ToMinorUnits(tt.amount); got != tt.want {
			t.Errorf("ToMinorUnits(%v) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	tests := []struct {
		amount int64
		want   float64
	}{
		{900, 9.00},
		{1, 0.01},
		{2000, 20.00},
		{0, 0},
	}

	for _, tt := range tests {
		if got := FromMinorUnits(tt.amount); got != tt.want {
			t.Errorf("FromMinorUnits(%d) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestLoyaltyPoints(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{2000, 2},   // 20.00 earns 2 points
		{1800, 1},   // 18.00 floors to 1
		{999, 0},    // 9.99 floors to 0
		{1000, 1},   // 10.00 earns exactly 1
		{0, 0},
		{12550, 12}, // 125.50 floors to 12
	}

	for _, tt := range tests {
		if got := LoyaltyPoints(tt.total); got != tt.want {
			t.Errorf("LoyaltyPoints(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}
