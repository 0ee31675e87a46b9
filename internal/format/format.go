package format

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// GaugeWidth is the number of cells in a dashboard gauge.
const GaugeWidth = 10

// FormatDuration formats a duration readably.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s > 0 {
			return fmt.Sprintf("%dm%ds", m, s)
		}
		return fmt.Sprintf("%dm", m)
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh%dm", h, m)
	}
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	return fmt.Sprintf("%dd%dh", days, h)
}

// FormatBytes formats a byte count using binary units.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	mb := float64(bytes) / unit / unit
	if mb < 1 {
		return fmt.Sprintf("%.0fK", float64(bytes)/unit)
	}
	if mb < unit {
		return fmt.Sprintf("%.1fM", mb)
	}
	return fmt.Sprintf("%.1fG", mb/unit)
}

// Truncate truncates a string to max bytes, cutting on a rune boundary.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return "~"
	}
	cut := max - 1
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "~"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// Gauge renders a fixed-width bar whose filled part is proportional to percent.
// The percentage is clamped to [0,100]; NaN renders as empty.
func Gauge(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := GaugeFilled(percent, width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("─", width-filled) + "]"
}

// GaugeFilled returns how many of width cells a gauge for percent fills.
func GaugeFilled(percent float64, width int) int {
	if width <= 0 || math.IsNaN(percent) {
		return 0
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return filled
}
