package models

import "time"

// Observation is one aligned time step of one instrument. Raw inputs come from
// ingestion; derived fields are filled by the scoring stages.
type Observation struct {
	Time         time.Time `json:"time"`
	Close        float64   `json:"close"`
	FundingRate  Float     `json:"funding_rate"`
	OpenInterest Float     `json:"open_interest"`

	Return      Float `json:"ret"`
	AbsReturn   Float `json:"abs_ret"`
	OIChangePct Float `json:"oi_chg_pct"`

	ZFunding   Float `json:"z_funding"`
	ZOI        Float `json:"z_oi"`
	ZAbsReturn Float `json:"z_absret"`

	CLP    Float  `json:"clp"`
	Regime Regime `json:"regime"`
}

// Series is the time-ordered observation window of one instrument.
type Series struct {
	Symbol       string        `json:"symbol"`
	Interval     string        `json:"interval"`
	Observations []Observation `json:"observations"`
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Observations) }

// Last returns the most recent observation.
func (s *Series) Last() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// Closes returns the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.Close
	}
	return out
}

// Column extracts a Float column with get.
func (s *Series) Column(get func(Observation) Float) []Float {
	out := make([]Float, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = get(o)
	}
	return out
}

// Regimes returns the regime column.
func (s *Series) Regimes() []Regime {
	out := make([]Regime, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.Regime
	}
	return out
}

// Scored returns a copy of the series holding only rows with a defined CLP.
func (s *Series) Scored() Series {
	out := Series{Symbol: s.Symbol, Interval: s.Interval, Observations: make([]Observation, 0, len(s.Observations))}
	for _, o := range s.Observations {
		if o.CLP.Valid {
			out.Observations = append(out.Observations, o)
		}
	}
	return out
}

// Tail returns the last n observations (all when n <= 0 or n >= Len).
func (s *Series) Tail(n int) []Observation {
	if n <= 0 || n >= len(s.Observations) {
		return s.Observations
	}
	return s.Observations[len(s.Observations)-n:]
}
