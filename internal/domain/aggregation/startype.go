package aggregation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/types"
)

// Measures counted in the Part D summary that CMS leaves out of the overall
// blend so they are not counted twice.
const (
	MeasureDrugPlanDisenrollment = "D-Members Choosing to Leave the Plan"
	MeasureDrugPlanComplaints    = "D-Complaints about the Drug Plan"
)

// StarType selects which aggregate star is computed.
type StarType int

// Star types.
const (
	Overall StarType = iota + 1
	PartC
	PartD
)

// StarTypes lists every star type.
var StarTypes = []StarType{Overall, PartC, PartD}

func (t StarType) String() string {
	switch t {
	case Overall:
		return "overall"
	case PartC:
		return "part_c"
	case PartD:
		return "part_d"
	}
	return fmt.Sprintf("StarType(%d)", int(t))
}

// Label is the human-readable name used in result tables.
func (t StarType) Label() string {
	switch t {
	case Overall:
		return "Overall Star Rating"
	case PartC:
		return "Part C Summary Star Rating"
	case PartD:
		return "Part D Summary Star Rating"
	}
	return t.String()
}

// ParseStarType accepts "overall", "part_c" and "part_d" (case-insensitive).
func ParseStarType(s string) (StarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overall":
		return Overall, nil
	case "part_c", "partc", "c":
		return PartC, nil
	case "part_d", "partd", "d":
		return PartD, nil
	}
	return 0, types.WrapKind("aggregation.parse_star_type", types.ErrInvalidStarType, fmt.Errorf("%q", s))
}

// Valid reports whether t is one of the defined star types.
func (t StarType) Valid() bool {
	return t == Overall || t == PartC || t == PartD
}

// Includes is the category filter of the star type.
func (t StarType) Includes(r measure.Row) bool {
	switch t {
	case Overall:
		return r.Measure != MeasureDrugPlanDisenrollment && r.Measure != MeasureDrugPlanComplaints
	case PartC:
		return r.IsPartC
	case PartD:
		return r.IsPartD
	}
	return false
}

// MarshalJSON encodes the star type as its tag.
func (t StarType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, types.NewKind("aggregation.marshal_star_type", types.ErrInvalidStarType)
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a star type tag.
func (t *StarType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return types.WrapKind("aggregation.unmarshal_star_type", types.ErrInvalidStarType, err)
	}
	v, err := ParseStarType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}
