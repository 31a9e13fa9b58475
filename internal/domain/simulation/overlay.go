// Package simulation holds "what-if" measure star overrides and applies them
// to measure table snapshots.
package simulation

import (
	"fmt"
	"sort"

	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/types"
)

// Override is one simulated measure star.
type Override struct {
	Measure string `json:"measure"`
	Star    int    `json:"star"`
}

// Overlay maps measure names to overridden stars. The zero value is not
// usable; call NewOverlay. An Overlay is owned by one session and is not safe
// for concurrent mutation.
type Overlay struct {
	stars map[string]int
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{stars: make(map[string]int)}
}

// Set stores or replaces the override for measureName. Any measure name is
// accepted; names absent from a table are ignored when applied.
func (o *Overlay) Set(measureName string, star int) error {
	if star < measure.MinStar || star > measure.MaxStar {
		return types.WrapKind("simulation.set", types.ErrInvalidStar,
			fmt.Errorf("star %d for %q must be within %d..%d", star, measureName, measure.MinStar, measure.MaxStar))
	}
	o.stars[measureName] = star
	return nil
}

// Clear removes every override. Clearing an empty overlay is a no-op.
func (o *Overlay) Clear() {
	clear(o.stars)
}

// Len returns the number of overrides.
func (o *Overlay) Len() int {
	if o == nil {
		return 0
	}
	return len(o.stars)
}

// Star returns the override for measureName, if any.
func (o *Overlay) Star(measureName string) (int, bool) {
	if o == nil {
		return 0, false
	}
	s, ok := o.stars[measureName]
	return s, ok
}

// Overrides lists the overrides ordered by measure name.
func (o *Overlay) Overrides() []Override {
	if o == nil {
		return nil
	}
	out := make([]Override, 0, len(o.stars))
	for m, s := range o.stars {
		out = append(out, Override{Measure: m, Star: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Measure < out[j].Measure })
	return out
}

// Clone returns an independent copy.
func (o *Overlay) Clone() *Overlay {
	c := NewOverlay()
	if o == nil {
		return c
	}
	for m, s := range o.stars {
		c.stars[m] = s
	}
	return c
}

// Apply returns a copy of rows with overridden stars substituted. The input
// slice and its rows are not modified. A nil overlay applies nothing.
func (o *Overlay) Apply(rows []measure.Row) []measure.Row {
	out := make([]measure.Row, len(rows))
	for i, r := range rows {
		c := r.Clone()
		if s, ok := o.Star(r.Measure); ok {
			c.Star = measure.Float(float64(s))
		}
		out[i] = c
	}
	return out
}
