package api

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Settings.Get())
}

// UpdateSettings replaces the whole settings document. Unknown keys are
// dropped; missing keys fall back to defaults in the parse step, so a
// partial document never bricks the planner.
func (s *Server) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	next := s.Settings.Get()
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("settings", "PUT", start, http.StatusBadRequest)
		return
	}

	if err := s.Settings.Update(next); err != nil {
		s.writeError(w, err)
		s.instrument("settings", "PUT", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Settings.Get())
	s.instrument("settings", "PUT", start, http.StatusOK)
}
