package measure

import (
	"fmt"
	"sort"

	"github.com/okian/starsim/internal/domain/types"
)

// Table is a read-only snapshot of measure rows, indexed by key.
type Table struct {
	rows  []Row
	index map[Key]int
}

// NewTable validates rows and builds a table. Duplicate keys are rejected.
func NewTable(rows []Row) (*Table, error) {
	const op = "measure.new_table"
	t := &Table{
		rows:  make([]Row, 0, len(rows)),
		index: make(map[Key]int, len(rows)),
	}
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		k := r.Key()
		if _, dup := t.index[k]; dup {
			return nil, types.WrapKind(op, types.ErrInvalidInput,
				fmt.Errorf("duplicate row %s/%d/%q", k.ContractID, k.Year, k.Measure))
		}
		t.index[k] = len(t.rows)
		t.rows = append(t.rows, r.Clone())
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of all rows in insertion order.
func (t *Table) Rows() []Row {
	return cloneRows(t.rows)
}

// Get returns the row for k.
func (t *Table) Get(k Key) (Row, bool) {
	i, ok := t.index[k]
	if !ok {
		return Row{}, false
	}
	return t.rows[i].Clone(), true
}

// ContractYear returns the rows of a single contract-year.
func (t *Table) ContractYear(contractID string, year int) []Row {
	var out []Row
	for _, r := range t.rows {
		if r.ContractID == contractID && r.Year == year {
			out = append(out, r.Clone())
		}
	}
	return out
}

// History returns one contract's rows for a measure across years, oldest first.
func (t *Table) History(contractID, measureName string) []Row {
	var out []Row
	for _, r := range t.rows {
		if r.ContractID == contractID && r.Measure == measureName {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Years returns the distinct years present, ascending.
func (t *Table) Years() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, r := range t.rows {
		if _, ok := seen[r.Year]; !ok {
			seen[r.Year] = struct{}{}
			out = append(out, r.Year)
		}
	}
	sort.Ints(out)
	return out
}

// DomainGroup is the rows of one measure domain, as shown per part.
type DomainGroup struct {
	DomainID   string `json:"domain_id"`
	DomainName string `json:"domain_name"`
	Rows       []Row  `json:"rows"`
}

// GroupByDomain groups rows by domain ID, ordered by domain ID. Row order
// within a domain is preserved.
func GroupByDomain(rows []Row) []DomainGroup {
	pos := make(map[string]int)
	var groups []DomainGroup
	for _, r := range rows {
		i, ok := pos[r.DomainID]
		if !ok {
			i = len(groups)
			pos[r.DomainID] = i
			groups = append(groups, DomainGroup{DomainID: r.DomainID, DomainName: r.DomainName})
		}
		groups[i].Rows = append(groups[i].Rows, r.Clone())
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].DomainID < groups[j].DomainID })
	return groups
}

// PartC returns the rows flagged as Part C measures.
func PartC(rows []Row) []Row {
	return filter(rows, func(r Row) bool { return r.IsPartC })
}

// PartD returns the rows flagged as Part D measures.
func PartD(rows []Row) []Row {
	return filter(rows, func(r Row) bool { return r.IsPartD })
}

// SelectableMeasures returns the distinct measure names a user may pick for
// the contract: Part C measures for MA-only contracts, Part D measures for
// PDPs, and everything otherwise.
func SelectableMeasures(rows []Row, c Contract) []string {
	pick := rows
	switch {
	case c.HasPartC && !c.HasPartD:
		pick = PartC(rows)
	case !c.HasPartC && c.HasPartD:
		pick = PartD(rows)
	}
	seen := make(map[string]struct{}, len(pick))
	var out []string
	for _, r := range pick {
		if _, ok := seen[r.Measure]; ok {
			continue
		}
		seen[r.Measure] = struct{}{}
		out = append(out, r.Measure)
	}
	return out
}

func filter(rows []Row, keep func(Row) bool) []Row {
	var out []Row
	for _, r := range rows {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
