// Package recommend ranks the measures a contract should work on first.
package recommend

import (
	"sort"

	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
)

// Rank drops rows that cannot or need not improve and orders the rest by
// impact. Rows without a score are dropped because their headroom is unknown;
// rows without a star or already at five stars are dropped because there is
// no next star to reach. The remainder is ordered by weight, then by
// penetration, both descending; rows with absent penetration come last within
// their weight and ties keep their input order.
func Rank(rows []cutpoint.Enriched) []cutpoint.Enriched {
	out := make([]cutpoint.Enriched, 0, len(rows))
	for _, r := range rows {
		if !r.Scored() || !r.Starred() || *r.Star >= measure.MaxStar {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		switch {
		case a.Penetration == nil:
			return false
		case b.Penetration == nil:
			return true
		}
		return *a.Penetration > *b.Penetration
	})
	return out
}

// Top returns at most n ranked rows. Non-positive n returns all of them.
func Top(rows []cutpoint.Enriched, n int) []cutpoint.Enriched {
	ranked := Rank(rows)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
