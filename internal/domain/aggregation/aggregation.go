// Package aggregation computes overall and summary star ratings as the
// weighted average of measure stars.
//
// The result is an approximation of the published rating: CMS additionally
// applies a reward factor and the Categorical Adjustment Index, which are not
// modelled here, so computed and published stars can differ.
package aggregation

import (
	"fmt"
	"math"

	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/internal/domain/types"
)

// Disclaimer accompanies every computed star shown to analysts.
const Disclaimer = "Computed stars omit the CMS reward factor and Categorical Adjustment Index and can differ from the published rating."

// Result is a computed star rating.
type Result struct {
	StarType StarType `json:"star_type"`
	Raw      float64  `json:"raw"`
	Rounded  float64  `json:"rounded"`
	// Measures is the number of starred rows that contributed.
	Measures int `json:"measures"`
}

// ComputeStar filters rows by the star type's category rule, drops rows
// without a star and returns the weighted average of the remaining stars
// together with its value rounded to the nearest half star.
// It fails with types.ErrInsufficientData when nothing is left to average.
func ComputeStar(rows []measure.Row, t StarType) (Result, error) {
	const op = "aggregation.compute_star"
	if !t.Valid() {
		return Result{}, types.NewKind(op, types.ErrInvalidStarType)
	}

	var (
		sum, weights float64
		n            int
	)
	for _, r := range rows {
		if !t.Includes(r) || r.Star == nil {
			continue
		}
		sum += *r.Star * float64(r.Weight)
		weights += float64(r.Weight)
		n++
	}
	if n == 0 || weights <= 0 {
		return Result{}, types.WrapKind(op, types.ErrInsufficientData, fmt.Errorf("no starred %s measures", t))
	}

	raw := sum / weights
	return Result{StarType: t, Raw: raw, Rounded: RoundHalf(raw), Measures: n}, nil
}

// RoundHalf rounds to the nearest multiple of 0.5, with ties going up
// (3.25 becomes 3.5).
func RoundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// Comparison places a simulated star next to the published one.
type Comparison struct {
	StarType StarType `json:"star_type"`
	Label    string   `json:"label"`
	Rounded  float64  `json:"rounded"`
	Raw      float64  `json:"raw"`
	Actual   float64  `json:"actual"`
}

// Simulate applies overlay to rows and computes every star type for which
// the contract has a published star, in the order Part C, Part D, overall.
// A contract with no published star yields types.ErrInsufficientData.
func Simulate(rows []measure.Row, overlay *simulation.Overlay, c measure.Contract) ([]Comparison, error) {
	const op = "aggregation.simulate"
	simulated := overlay.Apply(rows)

	candidates := []struct {
		t      StarType
		actual *float64
	}{
		{PartC, c.PartCStar},
		{PartD, c.PartDStar},
		{Overall, c.OverallStar},
	}

	var out []Comparison
	for _, cand := range candidates {
		if cand.actual == nil {
			continue
		}
		res, err := ComputeStar(simulated, cand.t)
		if err != nil {
			return nil, err
		}
		out = append(out, Comparison{
			StarType: cand.t,
			Label:    cand.t.Label(),
			Rounded:  res.Rounded,
			Raw:      res.Raw,
			Actual:   *cand.actual,
		})
	}
	if len(out) == 0 {
		return nil, types.WrapKind(op, types.ErrInsufficientData,
			fmt.Errorf("%s has no overall or summary star", c.ContractID))
	}
	return out, nil
}
