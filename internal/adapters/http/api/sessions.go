package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/starsim/internal/domain/aggregation"
	"github.com/okian/starsim/internal/domain/simulation"
)

// handleCreateSession handles POST /sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.deps.CreateSession(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// handleDropSession handles DELETE /sessions/{sessionID}.
func (s *Server) handleDropSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DropSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListOverrides handles GET /sessions/{sessionID}/overrides.
func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.Overrides(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if o == nil {
		o = []simulation.Override{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": o})
}

// handleSetOverride handles PUT /sessions/{sessionID}/overrides with a
// {measure, star} body.
func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req simulation.Override
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "sessionID")
	if err := s.deps.SetOverride(r.Context(), id, req.Measure, req.Star); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleClearOverrides handles DELETE /sessions/{sessionID}/overrides.
func (s *Server) handleClearOverrides(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ClearOverrides(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSimulate handles GET /sessions/{sessionID}/simulate/{contractID}/{year}.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	id, year, err := contractYear(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cmp, err := s.deps.Simulate(r.Context(), chi.URLParam(r, "sessionID"), id, year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comparisons": cmp,
		"disclaimer":  aggregation.Disclaimer,
	})
}
