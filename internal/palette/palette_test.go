package palette_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/pgdot/internal/palette"
)

func TestCostColor(t *testing.T) {
	tests := []struct {
		name     string
		percent  float64
		expected string
	}{
		{"zero is green", 0, "#0ac20a"},
		{"full is red", 1, "#c20a0a"},
		{"half is yellow", 0.5, "#c2c20a"},
		{"negative clamps to zero", -3, "#0ac20a"},
		{"above one clamps to one", 7, "#c20a0a"},
		{"nan clamps to zero", math.NaN(), "#0ac20a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, palette.CostColor(tt.percent))
		})
	}
	assert.NotEqual(t, palette.CostColor(0), palette.CostColor(1))
}

func TestDurationColor(t *testing.T) {
	tests := []struct {
		percent  float64
		expected string
	}{
		{100, palette.DurationCritical},
		{91, palette.DurationCritical},
		{90, palette.DurationHigh},
		{41, palette.DurationHigh},
		{40, palette.DurationMedium},
		{11, palette.DurationMedium},
		{10, palette.DurationLow},
		{0, palette.DurationLow},
		{-5, palette.DurationLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, palette.DurationColor(tt.percent), "percent %v", tt.percent)
	}
	assert.Equal(t, "#880000", palette.DurationCritical)
}

func TestANSI(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"#880000", "\x1b[38;2;136;0;0m"},
		{"#fddb61", "\x1b[38;2;253;219;97m"},
		{"#f00", "\x1b[38;2;255;0;0m"},
		{palette.CostColor(1), "\x1b[38;2;194;10;10m"},
		{"white", ""},
		{"#zzzzzz", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, palette.ANSI(tt.in), "input %q", tt.in)
	}
}
