// Package timeutil provides time formatting utilities.
package timeutil

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// FormatDuration formats a duration into a human-readable string.
// It rounds to the nearest second.
//
// Examples:
//   - 2h 5m for durations >= 1 hour
//   - 1m 23s for durations >= 1 minute
//   - 45s for durations < 1 minute
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	seconds := (d % time.Minute) / time.Second

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatAge describes how long ago t was relative to now, for example
// "3d" or "2h 5m". Times in the future read as "0s".
func FormatAge(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	if d >= day {
		return fmt.Sprintf("%dd", d/day)
	}
	return FormatDuration(d)
}
