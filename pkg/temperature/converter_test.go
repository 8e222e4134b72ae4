package temperature

import (
	"testing"
)

func TestFromHundredths(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"exact value", 2150, 21.5},
		{"rounds half up", 2155, 21.6},
		{"rounds down", 2154, 21.5},
		{"rounds up", 2156, 21.6},
		{"zero", 0, 0},
		{"negative rounds half away from zero", -2155, -21.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromHundredths(tt.input)
			if got != tt.expected {
				t.Errorf("FromHundredths(%v) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToHundredths(t *testing.T) {
	tests := []struct {
		input    float64
		expected int
	}{
		{21.5, 2150},
		{18.0, 1800},
		{21.55, 2155},
	}

	for _, tt := range tests {
		got := ToHundredths(tt.input)
		if got != tt.expected {
			t.Errorf("ToHundredths(%v) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

func TestSnapToHalf(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{21.4, 21.5},
		{21.2, 21.0},
		{21.25, 21.5},
		{21.75, 22.0},
		{18.0, 18.0},
	}

	for _, tt := range tests {
		got := SnapToHalf(tt.input)
		if got != tt.expected {
			t.Errorf("SnapToHalf(%v) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
