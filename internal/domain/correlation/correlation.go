// Package correlation measures how a measure's scores move with an external
// predictor series.
package correlation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/okian/starsim/internal/domain/types"
)

const minPairs = 2

// Result holds Pearson and Spearman coefficients with two-sided p-values.
type Result struct {
	PearsonR  float64 `json:"pearson_r"`
	PearsonP  float64 `json:"pearson_p"`
	SpearmanR float64 `json:"spearman_r"`
	SpearmanP float64 `json:"spearman_p"`
	// N is the number of complete pairs used by both coefficients.
	N int `json:"n"`
}

// Correlate computes Pearson and Spearman correlation between x and y.
// Position i of x is paired with position i of y; a pair is dropped when
// either side is nil or NaN, and both coefficients use the same remaining
// pairs. Fewer than two pairs, or a constant series, fails with
// types.ErrInsufficientData.
func Correlate(x, y []*float64) (Result, error) {
	const op = "correlation.correlate"
	if len(x) != len(y) {
		return Result{}, types.WrapKind(op, types.ErrLengthMismatch, fmt.Errorf("len(x)=%d len(y)=%d", len(x), len(y)))
	}
	xs, ys := completePairs(x, y)
	n := len(xs)
	if n < minPairs {
		return Result{}, types.WrapKind(op, types.ErrInsufficientData, fmt.Errorf("%d complete pairs, need %d", n, minPairs))
	}
	if constant(xs) || constant(ys) {
		return Result{}, types.WrapKind(op, types.ErrInsufficientData, fmt.Errorf("constant series over %d pairs", n))
	}

	pr := clampUnit(stat.Correlation(xs, ys, nil))
	sr := clampUnit(stat.Correlation(Ranks(xs), Ranks(ys), nil))
	return Result{
		PearsonR:  pr,
		PearsonP:  pValue(pr, n),
		SpearmanR: sr,
		SpearmanP: pValue(sr, n),
		N:         n,
	}, nil
}

// Ranks returns the 1-based ranks of values, giving tied values the mean of
// the ranks they span.
func Ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		// positions i..j-1 share ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// pValue is the two-sided p-value of r under the null of no correlation,
// from Student's t with n-2 degrees of freedom.
func pValue(r float64, n int) float64 {
	df := float64(n - 2)
	if df <= 0 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*dist.Survival(math.Abs(t)))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func completePairs(x, y []*float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if x[i] == nil || y[i] == nil || !finite(*x[i]) || !finite(*y[i]) {
			continue
		}
		xs = append(xs, *x[i])
		ys = append(ys, *y[i])
	}
	return xs, ys
}

func constant(v []float64) bool {
	for _, e := range v[1:] {
		if e != v[0] {
			return false
		}
	}
	return true
}

func clampUnit(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}
