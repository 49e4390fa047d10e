package models

import "time"

// Snapshot is the per-instrument summary of one scoring run, the row appended
// to the history log.
type Snapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	Symbol       string    `json:"symbol"`
	Price        float64   `json:"price"`
	Funding      Float     `json:"funding"`
	OpenInterest Float     `json:"oi"`
	CLP          float64   `json:"clp"`
	Regime       Regime    `json:"regime"`
	StressThr    float64   `json:"stress_thr"`
	ExtremeThr   float64   `json:"extreme_thr"`
}

// FlipEvent records a regime change of one instrument between two cycles.
type FlipEvent struct {
	Time   time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	From   Regime    `json:"from"`
	To     Regime    `json:"to"`
}

func (f FlipEvent) String() string {
	return f.Symbol + ": " + f.From.String() + " → " + f.To.String()
}

// Streak is the run length of the most recent regime.
type Streak struct {
	Regime  Regime `json:"current_regime"`
	Bars    int    `json:"streak_bars"`
	Minutes int    `json:"approx_minutes"`
}

// ShareRow is one row of the regime time-share table.
type ShareRow struct {
	Regime Regime  `json:"regime"`
	Count  int     `json:"count"`
	Pct    float64 `json:"pct"`
}

// Contribution is one weighted CLP component at the latest observation.
type Contribution struct {
	Component    string  `json:"component"`
	Contribution float64 `json:"contribution"`
	ZValue       float64 `json:"z_value"`
}
