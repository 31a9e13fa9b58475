package api

import (
	"fmt"
	"net/http"

	"github.com/okian/starsim/internal/domain/aggregation"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/simulation"
)

// handleListContracts handles GET /contracts.
// Query: year, plan_type, parent, state, quartile; all optional.
func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := queryInt(r, "year", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := measure.ParsePlanType(q.Get("plan_type"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	quartile, err := measure.ParseQuartile(q.Get("quartile"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	contracts, err := s.deps.Contracts(r.Context(), measure.Filter{
		Year:     year,
		PlanType: plan,
		Parent:   q.Get("parent"),
		State:    q.Get("state"),
		Quartile: quartile,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": contracts})
}

// handleMeasures handles GET /contracts/{contractID}/{year}/measures.
func (s *Server) handleMeasures(w http.ResponseWriter, r *http.Request) {
	id, year, err := contractYear(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.deps.Measures(r.Context(), id, year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type starRequest struct {
	StarType  aggregation.StarType  `json:"star_type"`
	Overrides []simulation.Override `json:"overrides,omitempty"`
}

type starResponse struct {
	aggregation.Result
	Disclaimer string `json:"disclaimer"`
}

// handleComputeStar handles POST /contracts/{contractID}/{year}/stars.
func (s *Server) handleComputeStar(w http.ResponseWriter, r *http.Request) {
	id, year, err := contractYear(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req starRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !req.StarType.Valid() {
		s.fail(w, r, fmt.Errorf("%w: star_type required", ErrBadRequest))
		return
	}

	res, err := s.deps.ComputeStar(r.Context(), id, year, req.StarType, req.Overrides)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, starResponse{Result: res, Disclaimer: aggregation.Disclaimer})
}

// handleRecommendations handles GET /contracts/{contractID}/{year}/recommendations.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	id, year, err := contractYear(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recs, err := s.deps.Recommendations(r.Context(), id, year, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

// handleTrend handles GET /cutpoints/{measure}/trend?pdp=.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	name, err := measureParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pdp, err := queryBool(r, "pdp")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trend, err := s.deps.Trend(r.Context(), name, pdp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": trend})
}

// handleMeasureTrend handles GET /contracts/{contractID}/{year}/measures/{measure}/trend.
func (s *Server) handleMeasureTrend(w http.ResponseWriter, r *http.Request) {
	id, year, err := contractYear(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name, err := measureParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	trend, err := s.deps.MeasureTrend(r.Context(), id, year, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// handleBatchStars handles POST /batch/stars?year=.
func (s *Server) handleBatchStars(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if year == 0 {
		s.fail(w, r, fmt.Errorf("%w: year required", ErrBadRequest))
		return
	}
	results, err := s.deps.BatchStars(r.Context(), year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":       year,
		"results":    results,
		"disclaimer": aggregation.Disclaimer,
	})
}
