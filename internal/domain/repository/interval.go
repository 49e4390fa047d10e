package repository

// Interval is a kline bar resolution.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	switch iv {
	case Interval5m, Interval15m, Interval1h, Interval4h, Interval1d:
		return true
	default:
		return false
	}
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval1h }

// Minutes is the bar length in minutes, 60 for unknown intervals.
func (iv Interval) Minutes() int {
	switch iv {
	case Interval5m:
		return 5
	case Interval15m:
		return 15
	case Interval4h:
		return 240
	case Interval1d:
		return 1440
	default:
		return 60
	}
}
