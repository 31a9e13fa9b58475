package api

import (
	"net/http"

	"github.com/okian/starsim/internal/adapters/repository"
	"github.com/okian/starsim/pkg/logger"
)

// handleLoadSnapshot handles POST /admin/snapshots. The JSON body replaces
// every contract, measure row and cut point served.
func (s *Server) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap repository.Snapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.deps.LoadSnapshot(r.Context(), snap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info(r.Context(), "snapshot replaced",
		logger.Int("contracts", counts.Contracts),
		logger.Int("rows", counts.Rows),
		logger.Int("cutPoints", counts.CutPoints),
	)
	writeJSON(w, http.StatusOK, counts)
}
