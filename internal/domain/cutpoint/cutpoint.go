// Package cutpoint holds CMS-published score thresholds per measure star and
// computes how far a score has travelled through its star's band.
package cutpoint

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/types"
)

// CutPoint bounds the scores that earn Star for a measure in a year.
type CutPoint struct {
	Measure        string  `json:"measure" yaml:"measure"`
	Year           int     `json:"year" yaml:"year"`
	IsPDP          bool    `json:"is_pdp" yaml:"is_pdp"`
	Star           int     `json:"star" yaml:"star"`
	Lower          float64 `json:"lower" yaml:"lower"`
	Upper          float64 `json:"upper" yaml:"upper"`
	HigherIsBetter bool    `json:"higher_is_better" yaml:"higher_is_better"`
}

// Validate checks star range and band orientation.
func (c CutPoint) Validate() error {
	const op = "cutpoint.validate"
	switch {
	case strings.TrimSpace(c.Measure) == "":
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("missing measure"))
	case c.Star < measure.MinStar || c.Star > measure.MaxStar:
		return types.WrapKind(op, types.ErrInvalidStar, fmt.Errorf("star %d for %q", c.Star, c.Measure))
	case math.IsNaN(c.Lower) || math.IsNaN(c.Upper) || math.IsInf(c.Lower, 0) || math.IsInf(c.Upper, 0) || c.Lower > c.Upper:
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("band [%v, %v] for %q star %d", c.Lower, c.Upper, c.Measure, c.Star))
	}
	return nil
}

type bandKey struct {
	measure string
	year    int
	isPDP   bool
	star    int
}

// Table indexes cut points by measure, year, plan type and star.
type Table struct {
	points []CutPoint
	index  map[bandKey]int
}

// NewTable validates cut points and builds a table. A band defined twice is
// rejected.
func NewTable(points []CutPoint) (*Table, error) {
	t := &Table{
		points: make([]CutPoint, 0, len(points)),
		index:  make(map[bandKey]int, len(points)),
	}
	for _, cp := range points {
		if err := cp.Validate(); err != nil {
			return nil, err
		}
		k := bandKey{measure: cp.Measure, year: cp.Year, isPDP: cp.IsPDP, star: cp.Star}
		if _, dup := t.index[k]; dup {
			return nil, types.WrapKind("cutpoint.new_table", types.ErrInvalidInput,
				fmt.Errorf("duplicate band %q/%d/pdp=%t/star=%d", cp.Measure, cp.Year, cp.IsPDP, cp.Star))
		}
		t.index[k] = len(t.points)
		t.points = append(t.points, cp)
	}
	return t, nil
}

// Len returns the number of bands.
func (t *Table) Len() int { return len(t.points) }

// Points returns a copy of all bands.
func (t *Table) Points() []CutPoint {
	return append([]CutPoint(nil), t.points...)
}

// Band returns the band for a measure's star in a year.
func (t *Table) Band(measureName string, year int, isPDP bool, star int) (CutPoint, bool) {
	i, ok := t.index[bandKey{measure: measureName, year: year, isPDP: isPDP, star: star}]
	if !ok {
		return CutPoint{}, false
	}
	return t.points[i], true
}

// Penetration returns the score's position within band as a percentage:
// (score-lower)/(upper-lower)*100 when higher is better, and
// (upper-score)/(upper-lower)*100 otherwise. Scores whose star also depends on
// significance testing may legitimately fall outside [0, 100].
func Penetration(score float64, band CutPoint) (float64, error) {
	width := band.Upper - band.Lower
	if width == 0 {
		return 0, types.WrapKind("cutpoint.penetration", types.ErrDegenerateBand,
			fmt.Errorf("%q star %d has upper == lower == %v", band.Measure, band.Star, band.Upper))
	}
	if band.HigherIsBetter {
		return (score - band.Lower) / width * 100, nil
	}
	return (band.Upper - score) / width * 100, nil
}

// Enriched is a measure row joined with the band of its current star.
// Lower, Upper and Penetration are nil when no band applies; Penetration is
// also nil when the band is degenerate.
type Enriched struct {
	measure.Row
	Lower       *float64 `json:"lower"`
	Upper       *float64 `json:"upper"`
	Penetration *float64 `json:"penetration"`
}

// Enrich joins rows with the bands for their current star. Rows without a
// score, without a whole-number star, or without a matching band come back
// with absent penetration; no row is dropped.
func (t *Table) Enrich(rows []measure.Row, isPDP bool) []Enriched {
	out := make([]Enriched, len(rows))
	for i, r := range rows {
		e := Enriched{Row: r.Clone()}
		out[i] = e
		if !r.Starred() || *r.Star != math.Trunc(*r.Star) {
			continue
		}
		band, ok := t.Band(r.Measure, r.Year, isPDP, int(*r.Star))
		if !ok {
			continue
		}
		e.Lower = measure.Float(band.Lower)
		e.Upper = measure.Float(band.Upper)
		if r.Scored() {
			if p, err := Penetration(*r.Score, band); err == nil {
				e.Penetration = measure.Float(p)
			}
		}
		out[i] = e
	}
	return out
}

// TrendPoint is one year's upper bound for a star.
type TrendPoint struct {
	Year  int     `json:"year"`
	Upper float64 `json:"upper"`
}

// StarTrend is the history of one star's upper bound.
type StarTrend struct {
	Star   int          `json:"star"`
	Points []TrendPoint `json:"points"`
}

// Trend returns the upper-bound history per star for a measure and plan
// type. Stars run 1..4 for higher-is-better measures and 5..2 otherwise,
// which is the order in which the bands stack along the score axis.
func (t *Table) Trend(measureName string, isPDP bool) ([]StarTrend, error) {
	var (
		matched []CutPoint
		higher  bool
	)
	for _, cp := range t.points {
		if cp.Measure == measureName && cp.IsPDP == isPDP {
			if len(matched) == 0 {
				higher = cp.HigherIsBetter
			}
			matched = append(matched, cp)
		}
	}
	if len(matched) == 0 {
		return nil, types.WrapKind("cutpoint.trend", types.ErrNotFound,
			fmt.Errorf("no cut points for %q pdp=%t", measureName, isPDP))
	}

	order := []int{1, 2, 3, 4}
	if !higher {
		order = []int{5, 4, 3, 2}
	}
	out := make([]StarTrend, 0, len(order))
	for _, star := range order {
		st := StarTrend{Star: star, Points: []TrendPoint{}}
		for _, cp := range matched {
			if cp.Star == star {
				st.Points = append(st.Points, TrendPoint{Year: cp.Year, Upper: cp.Upper})
			}
		}
		sort.Slice(st.Points, func(i, j int) bool { return st.Points[i].Year < st.Points[j].Year })
		out = append(out, st)
	}
	return out, nil
}
