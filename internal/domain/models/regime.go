package models

import (
	"encoding/json"
	"fmt"
)

// Regime is the market stress label of one observation. Ordered Normal < Stress < Extreme.
type Regime uint8

const (
	RegimeNone Regime = iota // no score, not classified
	RegimeNormal
	RegimeStress
	RegimeExtreme
)

func (r Regime) String() string {
	switch r {
	case RegimeNormal:
		return "Normal"
	case RegimeStress:
		return "Stress"
	case RegimeExtreme:
		return "Extreme"
	default:
		return "NA"
	}
}

// Level is the numeric gauge value used by metrics: Normal=0, Stress=1, Extreme=2, none=-1.
func (r Regime) Level() float64 {
	if r == RegimeNone {
		return -1
	}
	return float64(r - RegimeNormal)
}

// ParseRegime parses a label written by String. "NA" and "" map to RegimeNone.
func ParseRegime(s string) (Regime, error) {
	switch s {
	case "Normal":
		return RegimeNormal, nil
	case "Stress":
		return RegimeStress, nil
	case "Extreme":
		return RegimeExtreme, nil
	case "", "NA":
		return RegimeNone, nil
	default:
		return RegimeNone, fmt.Errorf("unknown regime %q", s)
	}
}

func (r Regime) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

func (r *Regime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseRegime(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Thresholds are the CLP cut points of one scoring run.
type Thresholds struct {
	Stress  float64 `json:"stress"`
	Extreme float64 `json:"extreme"`
}
