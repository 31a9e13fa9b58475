// Package measure holds the measure table: one scored quality measure per
// contract, year and measure name, plus the contract summaries it belongs to.
package measure

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/starsim/internal/domain/types"
)

// Star and weight bounds used by CMS.
const (
	MinStar   = 1
	MaxStar   = 5
	MinWeight = 1
	MaxWeight = 5
)

// Row is one scored measure for one contract-year.
// Score and Star are nil when the measure was not scored for the contract.
type Row struct {
	ContractID string   `json:"contract_id" yaml:"contract_id"`
	Year       int      `json:"year" yaml:"year"`
	Measure    string   `json:"measure" yaml:"measure"`
	DomainID   string   `json:"domain_id" yaml:"domain_id"`
	DomainName string   `json:"domain_name" yaml:"domain_name"`
	Score      *float64 `json:"score" yaml:"score"`
	Star       *float64 `json:"star" yaml:"star"`
	Weight     int      `json:"weight" yaml:"weight"`
	IsPartC    bool     `json:"is_part_c" yaml:"is_part_c"`
	IsPartD    bool     `json:"is_part_d" yaml:"is_part_d"`
}

// Key identifies a row within a measure table.
type Key struct {
	ContractID string
	Year       int
	Measure    string
}

// Key returns the row's unique key.
func (r Row) Key() Key {
	return Key{ContractID: r.ContractID, Year: r.Year, Measure: r.Measure}
}

// Scored reports whether the row carries a score.
func (r Row) Scored() bool { return r.Score != nil }

// Starred reports whether the row carries a star.
func (r Row) Starred() bool { return r.Star != nil }

// Validate checks the row's field ranges.
func (r Row) Validate() error {
	const op = "measure.validate"
	switch {
	case strings.TrimSpace(r.ContractID) == "":
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("missing contract_id"))
	case strings.TrimSpace(r.Measure) == "":
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("missing measure for %s/%d", r.ContractID, r.Year))
	case r.Weight < MinWeight || r.Weight > MaxWeight:
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("weight %d for %q out of range", r.Weight, r.Measure))
	}
	if r.Scored() && !finite(*r.Score) {
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("score %v for %q", *r.Score, r.Measure))
	}
	if r.Starred() && (!finite(*r.Star) || *r.Star < MinStar || *r.Star > MaxStar) {
		return types.WrapKind(op, types.ErrInvalidStar, fmt.Errorf("star %v for %q", *r.Star, r.Measure))
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Clone returns a copy of the row whose Score and Star pointers are not
// shared with the receiver.
func (r Row) Clone() Row {
	out := r
	if r.Score != nil {
		out.Score = Float(*r.Score)
	}
	if r.Star != nil {
		out.Star = Float(*r.Star)
	}
	return out
}

// Float returns a pointer to v, for populating nullable fields.
func Float(v float64) *float64 { return &v }
