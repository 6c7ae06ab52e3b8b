package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, unit := range ValidUnits {
		if !IsValid(unit) {
			t.Errorf("expected %q to be valid", unit)
		}
	}

	invalid := []string{"", "knots", "KMPH", "m/s"}
	for _, unit := range invalid {
		if IsValid(unit) {
			t.Errorf("expected %q to be invalid", unit)
		}
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		units string
		want  float64
	}{
		{"kmph passthrough", 60, KMPH, 60},
		{"kph passthrough", 60, KPH, 60},
		{"kmph to mph", 100, MPH, 62.1371},
		{"kmph to mps", 36, MPS, 10},
		{"unknown unit defaults to kmph", 42, "furlongs", 42},
		{"zero speed", 0, MPH, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertSpeed(tt.speed, tt.units)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("ConvertSpeed(%v, %q) = %v, want %v", tt.speed, tt.units, got, tt.want)
			}
		})
	}
}
