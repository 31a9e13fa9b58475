package measure

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/starsim/internal/domain/types"
)

// Quartile selects contracts by enrollment size quartile.
type Quartile int

// Quartile selections. The numeric value of the four bins is the bin label.
const (
	QuartileBottom Quartile = iota // bottom 25%
	QuartileLower                  // 25-50%
	QuartileUpper                  // 50-75%
	QuartileTop                    // top 25%
	QuartileAll
)

// ParseQuartile accepts "top", "50-75", "25-50", "bottom" and "all". The empty
// string means all.
func ParseQuartile(s string) (Quartile, error) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimSuffix(s, "%"))) {
	case "", "all":
		return QuartileAll, nil
	case "top", "top 25":
		return QuartileTop, nil
	case "50-75":
		return QuartileUpper, nil
	case "25-50":
		return QuartileLower, nil
	case "bottom", "bottom 25":
		return QuartileBottom, nil
	}
	return QuartileAll, types.WrapKind("measure.parse_quartile", types.ErrInvalidInput, fmt.Errorf("unknown quartile %q", s))
}

// Filter narrows the contract list shown by the explorer.
type Filter struct {
	Year     int
	PlanType PlanType
	Parent   string   // empty means all parent organisations
	State    string   // empty means all states; otherwise enrollment in the state must be > 0
	Quartile Quartile // QuartileAll disables the enrollment filter
}

// FilterContracts applies f to contracts. Enrollment quartiles are computed
// over the contracts left after the year, plan type, parent and state
// filters, using the state's enrollment when a state is selected. Contracts
// with zero enrollment never appear in the result.
func FilterContracts(contracts []Contract, f Filter) ([]Contract, error) {
	var pool []Contract
	for _, c := range contracts {
		if f.Year != 0 && c.Year != f.Year {
			continue
		}
		if !f.PlanType.Matches(c) {
			continue
		}
		if f.Parent != "" && c.ParentOrgName != f.Parent {
			continue
		}
		if f.State != "" && c.Enrollment(f.State) <= 0 {
			continue
		}
		pool = append(pool, c)
	}

	if f.Quartile != QuartileAll && len(pool) > 0 {
		sizes := make([]float64, len(pool))
		for i, c := range pool {
			sizes[i] = float64(c.Enrollment(f.State))
		}
		bins, err := QuartileBins(sizes)
		if err != nil {
			return nil, err
		}
		kept := pool[:0]
		for i, c := range pool {
			if bins[i] == int(f.Quartile) {
				kept = append(kept, c)
			}
		}
		pool = kept
	}

	out := make([]Contract, 0, len(pool))
	for _, c := range pool {
		if c.Enrollment(f.State) != 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

// QuartileBins assigns each value to a bin 0..3 delimited by the 0, 25, 50, 75
// and 100th percentiles (linear interpolation between closest ranks). Bins are
// closed on the right; the first bin also includes the minimum. Duplicate
// edges are rejected because they make bins ambiguous.
func QuartileBins(values []float64) ([]int, error) {
	const op = "measure.quartile_bins"
	if len(values) == 0 {
		return nil, nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, 5)
	for i := range edges {
		edges[i] = linearQuantile(sorted, float64(i)/4)
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] == edges[i-1] {
			return nil, types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("duplicate quartile edge %v", edges[i]))
		}
	}

	bins := make([]int, len(values))
	for i, v := range values {
		bins[i] = 3
		for b := 0; b < 4; b++ {
			if v <= edges[b+1] {
				bins[i] = b
				break
			}
		}
	}
	return bins, nil
}

// linearQuantile returns the p-quantile of sorted data, interpolating at
// position p*(n-1).
func linearQuantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	frac := pos - lo
	return sorted[int(lo)] + frac*(sorted[int(hi)]-sorted[int(lo)])
}
