package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Float is a real value that may be undefined. The zero value is undefined.
type Float struct {
	V     float64
	Valid bool
}

// Undefined is the undefined Float.
var Undefined = Float{}

// Some wraps a defined value. NaN and ±Inf collapse to Undefined.
func Some(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	return Float{V: v, Valid: true}
}

// Get returns the value and whether it is defined.
func (f Float) Get() (float64, bool) { return f.V, f.Valid }

// Or returns the value, or def when undefined.
func (f Float) Or(def float64) float64 {
	if !f.Valid {
		return def
	}
	return f.V
}

func (f Float) String() string {
	if !f.Valid {
		return "NA"
	}
	return strconv.FormatFloat(f.V, 'f', -1, 64)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.V)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}

// Defined returns the defined values of xs in order.
func Defined(xs []Float) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x.Valid {
			out = append(out, x.V)
		}
	}
	return out
}
