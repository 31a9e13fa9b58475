// Package repository stores published star-rating snapshots: measure rows,
// contract summaries and cut points.
package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/types"
)

// Snapshot is one complete load of star-rating data.
type Snapshot struct {
	Contracts []measure.Contract  `json:"contracts" yaml:"contracts"`
	Rows      []measure.Row       `json:"rows" yaml:"rows"`
	CutPoints []cutpoint.CutPoint `json:"cut_points" yaml:"cut_points"`
}

// Counts reports how many records of each kind a store holds.
type Counts struct {
	Contracts int `json:"contracts"`
	Rows      int `json:"rows"`
	CutPoints int `json:"cut_points"`
}

// Store provides read access to the current snapshot and replaces it on Load.
type Store interface {
	// Load validates snap and replaces the stored data with it. On error the
	// previous data is kept.
	Load(ctx context.Context, snap Snapshot) error

	// Contracts returns contract summaries for year, or for every year when
	// year is zero, ordered by year then contract ID.
	Contracts(ctx context.Context, year int) ([]measure.Contract, error)

	// Contract returns one contract-year or an error matching types.ErrNotFound.
	Contract(ctx context.Context, contractID string, year int) (measure.Contract, error)

	// MeasureRows returns the measure rows of a contract-year in load order.
	// An unknown contract-year matches types.ErrNotFound.
	MeasureRows(ctx context.Context, contractID string, year int) ([]measure.Row, error)

	// MeasureHistory returns one contract's rows for a measure, oldest first.
	MeasureHistory(ctx context.Context, contractID, measureName string) ([]measure.Row, error)

	// CutPoints returns the cut-point table.
	CutPoints(ctx context.Context) (*cutpoint.Table, error)

	// Counts returns record counts.
	Counts(ctx context.Context) Counts

	Close() error
}

type contractKey struct {
	id   string
	year int
}

// state is a validated, immutable snapshot.
type state struct {
	rows      *measure.Table
	contracts map[contractKey]measure.Contract
	ordered   []measure.Contract
	cuts      *cutpoint.Table
}

func (s *state) counts() Counts {
	return Counts{Contracts: len(s.ordered), Rows: s.rows.Len(), CutPoints: s.cuts.Len()}
}

func emptyState() *state {
	rows, _ := measure.NewTable(nil)
	cuts, _ := cutpoint.NewTable(nil)
	return &state{rows: rows, contracts: map[contractKey]measure.Contract{}, cuts: cuts}
}

// build validates snap: rows, contracts and cut points individually, no
// duplicate contract-year, and every row belonging to a known contract-year.
func build(snap Snapshot) (*state, error) {
	const op = "repository.build"
	st := &state{contracts: make(map[contractKey]measure.Contract, len(snap.Contracts))}

	for _, c := range snap.Contracts {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		k := contractKey{c.ContractID, c.Year}
		if _, dup := st.contracts[k]; dup {
			return nil, types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("duplicate contract %s/%d", c.ContractID, c.Year))
		}
		st.contracts[k] = c
		st.ordered = append(st.ordered, c)
	}
	sortContracts(st.ordered)

	for _, r := range snap.Rows {
		if _, ok := st.contracts[contractKey{r.ContractID, r.Year}]; !ok {
			return nil, types.WrapKind(op, types.ErrInvalidInput,
				fmt.Errorf("row %q belongs to unknown contract %s/%d", r.Measure, r.ContractID, r.Year))
		}
	}
	rows, err := measure.NewTable(snap.Rows)
	if err != nil {
		return nil, err
	}
	st.rows = rows

	cuts, err := cutpoint.NewTable(snap.CutPoints)
	if err != nil {
		return nil, err
	}
	st.cuts = cuts
	return st, nil
}

func sortContracts(cs []measure.Contract) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Year != cs[j].Year {
			return cs[i].Year < cs[j].Year
		}
		return cs[i].ContractID < cs[j].ContractID
	})
}

func notFound(op, contractID string, year int) error {
	return types.WrapKind(op, types.ErrNotFound, fmt.Errorf("contract %s/%d", contractID, year))
}
