package measure

import (
	"fmt"
	"strings"

	"github.com/okian/starsim/internal/domain/types"
)

// Contract is the summary row of one contract-year.
type Contract struct {
	ContractID      string         `json:"contract_id" yaml:"contract_id"`
	Year            int            `json:"year" yaml:"year"`
	ContractName    string         `json:"contract_name" yaml:"contract_name"`
	MarketingName   string         `json:"marketing_name" yaml:"marketing_name"`
	ParentOrgName   string         `json:"parent_org_name" yaml:"parent_org_name"`
	OrgTypeName     string         `json:"org_type_name" yaml:"org_type_name"`
	HasPartC        bool           `json:"has_part_c" yaml:"has_part_c"`
	HasPartD        bool           `json:"has_part_d" yaml:"has_part_d"`
	OverallStar     *float64       `json:"overall_star" yaml:"overall_star"`
	PartCStar       *float64       `json:"part_c_star" yaml:"part_c_star"`
	PartDStar       *float64       `json:"part_d_star" yaml:"part_d_star"`
	TotalEnrollment int            `json:"total_enrollment" yaml:"total_enrollment"`
	StateEnrollment map[string]int `json:"state_enrollment,omitempty" yaml:"state_enrollment"`
	SNP             bool           `json:"snp" yaml:"snp"`
}

// Validate enforces that a contract without a part has no star for it.
func (c Contract) Validate() error {
	const op = "contract.validate"
	if strings.TrimSpace(c.ContractID) == "" {
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("missing contract_id"))
	}
	if !c.HasPartC && c.PartCStar != nil {
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("%s has a Part C star without Part C", c.ContractID))
	}
	if !c.HasPartD && c.PartDStar != nil {
		return types.WrapKind(op, types.ErrInvalidInput, fmt.Errorf("%s has a Part D star without Part D", c.ContractID))
	}
	return nil
}

// UsePDP reports whether the contract is scored against PDP cut points,
// which is the case for stand-alone drug plans.
func (c Contract) UsePDP() bool {
	return !c.HasPartC && c.HasPartD
}

// Rating returns the first available of the overall, Part C and Part D stars.
func (c Contract) Rating() *float64 {
	switch {
	case c.OverallStar != nil:
		return c.OverallStar
	case c.PartCStar != nil:
		return c.PartCStar
	default:
		return c.PartDStar
	}
}

// Enrollment returns total enrollment for state "" and the state's
// enrollment otherwise.
func (c Contract) Enrollment(state string) int {
	if state == "" {
		return c.TotalEnrollment
	}
	return c.StateEnrollment[state]
}

// PlanType classifies contracts by which parts they offer.
type PlanType int

// Plan types.
const (
	PlanAll PlanType = iota
	PlanMAPD
	PlanMAOnly
	PlanPDP
)

var planTypeNames = map[PlanType]string{
	PlanAll:    "All",
	PlanMAPD:   "MA-PD",
	PlanMAOnly: "MA only",
	PlanPDP:    "PDP",
}

func (p PlanType) String() string {
	if s, ok := planTypeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PlanType(%d)", int(p))
}

// ParsePlanType accepts "MA-PD", "MA only", "PDP" and "All" (case-insensitive).
// The empty string means All.
func ParsePlanType(s string) (PlanType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return PlanAll, nil
	}
	for p, name := range planTypeNames {
		if strings.ToLower(name) == norm {
			return p, nil
		}
	}
	switch norm {
	case "mapd", "ma_pd":
		return PlanMAPD, nil
	case "ma", "ma_only", "ma-only":
		return PlanMAOnly, nil
	}
	return PlanAll, types.WrapKind("measure.parse_plan_type", types.ErrInvalidInput, fmt.Errorf("unknown plan type %q", s))
}

// Matches reports whether contract c is of plan type p.
func (p PlanType) Matches(c Contract) bool {
	switch p {
	case PlanMAPD:
		return c.HasPartC && c.HasPartD
	case PlanMAOnly:
		return c.HasPartC && !c.HasPartD
	case PlanPDP:
		return !c.HasPartC && c.HasPartD
	default:
		return true
	}
}
