package models

import "time"

// AlertLevel is the watchlist-wide flag state of a cycle.
type AlertLevel string

const (
	AlertNone    AlertLevel = "none"
	AlertStress  AlertLevel = "stress"
	AlertExtreme AlertLevel = "extreme"
)

// RankedSnapshot is a successful instrument of a cycle with its CLP rank (1 = highest).
type RankedSnapshot struct {
	Rank int `json:"rank"`
	Snapshot
}

// InstrumentFailure is a labeled absence of one instrument in a cycle.
type InstrumentFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// Alerts lists instruments above their own thresholds.
type Alerts struct {
	Level   AlertLevel `json:"level"`
	Extreme []string   `json:"extreme,omitempty"`
	Stress  []string   `json:"stress,omitempty"`
}

// CycleReport is the cross-asset view of one refresh cycle.
type CycleReport struct {
	ID            string              `json:"id"`
	Timestamp     time.Time           `json:"timestamp"`
	Interval      string              `json:"interval"`
	NoValidData   bool                `json:"no_valid_data"`
	Ranked        []RankedSnapshot    `json:"ranked"`
	Failures      []InstrumentFailure `json:"failures,omitempty"`
	MarketAvgCLP  Float               `json:"market_avg_clp"`
	CrowdingIndex Float               `json:"crowding_index"`
	Alerts        Alerts              `json:"alerts"`
	Flips         []FlipEvent         `json:"flips,omitempty"`
}
