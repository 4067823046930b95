// Package palette maps normalized plan statistics to colors.
package palette

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Duration band colors, hottest first.
const (
	DurationCritical = "#880000"
	DurationHigh     = "#ee8800"
	DurationMedium   = "#fddb61"
	DurationLow      = "white"
)

const (
	costSaturation = 0.9
	costLightness  = 0.4
)

// CostColor returns the #rrggbb color for a share of the maximum cost in [0, 1].
// Values outside the range are clamped. Low shares are green, high shares are red.
func CostColor(percent float64) string {
	if math.IsNaN(percent) || percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}
	hue := (100 - percent*100) * 1.2
	return colorful.Hsl(hue, costSaturation, costLightness).Hex()
}

// DurationColor returns the band color for a share of the root time in [0, 100].
func DurationColor(percent float64) string {
	switch {
	case percent > 90:
		return DurationCritical
	case percent > 40:
		return DurationHigh
	case percent > 10:
		return DurationMedium
	default:
		return DurationLow
	}
}

// ANSI returns the 24-bit foreground escape sequence for a #rrggbb or #rgb color.
// Named colors and malformed input yield an empty string.
func ANSI(hex string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return ""
	}
	r, g, b := c.RGB255()
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)
}
