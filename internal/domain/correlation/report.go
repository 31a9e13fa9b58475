package correlation

import (
	"math"
	"sort"
)

// Report is the correlation of one named predictor with the target series.
type Report struct {
	Predictor string `json:"predictor"`
	Result
	// Err is set when the predictor could not be correlated; Result is zero.
	Err error `json:"-"`
	// Error mirrors Err for JSON encoding.
	Error string `json:"error,omitempty"`
}

// CorrelateAll correlates target with every predictor. Predictors that fail
// are reported with their error rather than aborting the run. Successful
// reports come first, ordered by descending |PearsonR|, then failures, each
// group tie-broken by predictor name.
func CorrelateAll(target []*float64, predictors map[string][]*float64) []Report {
	out := make([]Report, 0, len(predictors))
	for name, series := range predictors {
		res, err := Correlate(target, series)
		rep := Report{Predictor: name, Result: res, Err: err}
		if err != nil {
			rep.Error = err.Error()
		}
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if ai, bi := math.Abs(a.PearsonR), math.Abs(b.PearsonR); ai != bi {
			return ai > bi
		}
		return a.Predictor < b.Predictor
	})
	return out
}
