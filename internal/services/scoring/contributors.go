package scoring

import (
	"math"

	"ClpWatch/internal/domain/models"
)

// Component labels used in contribution breakdowns.
const (
	ComponentFunding   = "Funding"
	ComponentOI        = "Open Interest Δ%"
	ComponentAbsReturn = "|Return|"
)

// Contributions breaks the CLP of o into its weighted components. An undefined
// z value contributes zero.
func Contributions(o models.Observation, w Weights) []models.Contribution {
	parts := []struct {
		name string
		w    float64
		z    models.Float
	}{
		{ComponentFunding, w.Funding, o.ZFunding},
		{ComponentOI, w.OI, o.ZOI},
		{ComponentAbsReturn, w.AbsReturn, o.ZAbsReturn},
	}
	out := make([]models.Contribution, 0, len(parts))
	for _, p := range parts {
		z := p.z.Or(0)
		out = append(out, models.Contribution{Component: p.name, Contribution: p.w * z, ZValue: z})
	}
	return out
}

// TopContributor returns the component with the largest absolute contribution.
// Ties go to the earlier component.
func TopContributor(cs []models.Contribution) (models.Contribution, bool) {
	if len(cs) == 0 {
		return models.Contribution{}, false
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if math.Abs(c.Contribution) > math.Abs(best.Contribution) {
			best = c
		}
	}
	return best, true
}
