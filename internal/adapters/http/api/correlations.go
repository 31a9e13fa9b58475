package api

import (
	"fmt"
	"net/http"
)

// correlationRequest accepts one of three shapes:
//   - {x, y}: two aligned series
//   - {target, predictors}: one series against named series
//   - {year, measure, contract_predictors}: a measure's scores across
//     contracts against per-contract predictor values
//
// Nulls in series mark missing values.
type correlationRequest struct {
	X []*float64 `json:"x,omitempty"`
	Y []*float64 `json:"y,omitempty"`

	Target     []*float64            `json:"target,omitempty"`
	Predictors map[string][]*float64 `json:"predictors,omitempty"`

	Year               int                           `json:"year,omitempty"`
	Measure            string                        `json:"measure,omitempty"`
	ContractPredictors map[string]map[string]float64 `json:"contract_predictors,omitempty"`
}

// handleCorrelations handles POST /correlations.
func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	var req correlationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	switch {
	case req.Measure != "":
		reports, err := s.deps.MeasureCorrelations(r.Context(), req.Year, req.Measure, req.ContractPredictors)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	case req.Predictors != nil:
		reports := s.deps.CorrelateAll(r.Context(), req.Target, req.Predictors)
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	case req.X != nil || req.Y != nil:
		res, err := s.deps.Correlate(r.Context(), req.X, req.Y)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	default:
		s.fail(w, r, fmt.Errorf("%w: provide x and y, target and predictors, or measure", ErrBadRequest))
	}
}
