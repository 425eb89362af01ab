package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

func (s *Server) ListSpots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.GetSpotsByCampaign(mux.Vars(r)["id"]))
}

func (s *Server) CreateSpot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	campaignID := mux.Vars(r)["id"]
	parent := s.Store.GetCampaign(campaignID)
	if parent == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("spots", "POST", start, http.StatusNotFound)
		return
	}

	var sp models.Spot
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("spots", "POST", start, http.StatusBadRequest)
		return
	}
	sp.CampaignID = campaignID
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	if sp.Status == "" {
		sp.Status = models.SpotOK
	}
	if err := sp.Validate(parent); err != nil {
		s.writeError(w, err)
		s.instrument("spots", "POST", start, http.StatusBadRequest)
		return
	}
	now := time.Now().UTC()
	sp.CreatedAt = now
	sp.UpdatedAt = now

	if s.PG != nil {
		if err := s.PG.SaveSpot(r.Context(), &sp); err != nil {
			s.writeError(w, err)
			s.instrument("spots", "POST", start, http.StatusInternalServerError)
			return
		}
	}
	if err := s.Store.InsertSpot(&sp); err != nil {
		s.writeError(w, err)
		s.instrument("spots", "POST", start, http.StatusInternalServerError)
		return
	}

	s.Cache.InvalidateTimeline(r.Context(), campaignID)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sp)
	s.instrument("spots", "POST", start, http.StatusCreated)
}

func (s *Server) UpdateSpot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	parent := s.Store.GetCampaign(vars["id"])
	if parent == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("spots", "PUT", start, http.StatusNotFound)
		return
	}
	var sp models.Spot
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("spots", "PUT", start, http.StatusBadRequest)
		return
	}
	sp.ID = vars["spotID"]
	sp.CampaignID = vars["id"]
	if sp.Status == "" {
		sp.Status = models.SpotOK
	}
	if err := sp.Validate(parent); err != nil {
		s.writeError(w, err)
		s.instrument("spots", "PUT", start, http.StatusBadRequest)
		return
	}
	sp.UpdatedAt = time.Now().UTC()

	if err := s.Store.UpdateSpot(sp); err != nil {
		s.writeError(w, err)
		s.instrument("spots", "PUT", start, http.StatusNotFound)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveSpot(r.Context(), &sp); err != nil {
			s.Logger.Error("save spot to postgres", zap.Error(err))
		}
	}

	s.Cache.InvalidateTimeline(r.Context(), sp.CampaignID)
	writeJSON(w, sp)
	s.instrument("spots", "PUT", start, http.StatusOK)
}

func (s *Server) DeleteSpot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	sp := s.Store.GetSpot(vars["spotID"])

	if err := s.Store.DeleteSpot(vars["spotID"]); err != nil {
		s.writeError(w, err)
		s.instrument("spots", "DELETE", start, http.StatusNotFound)
		return
	}
	if s.PG != nil {
		if err := s.PG.DeleteSpot(r.Context(), vars["spotID"]); err != nil {
			s.Logger.Error("delete spot from postgres", zap.Error(err))
		}
	}
	if sp != nil && sp.FilePath != "" && s.Files != nil {
		if err := s.Files.Remove(sp.FilePath); err != nil {
			s.Logger.Warn("remove spot file", zap.String("path", sp.FilePath), zap.Error(err))
		}
	}

	s.Cache.InvalidateTimeline(r.Context(), vars["id"])
	w.WriteHeader(http.StatusNoContent)
	s.instrument("spots", "DELETE", start, http.StatusNoContent)
}

// UploadSpotFile stages the media file for a spot and stores its relative
// path on the spot record.
func (s *Server) UploadSpotFile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)

	if !s.Settings.Get().EnableSpotUploads {
		http.Error(w, "spot uploads disabled", http.StatusForbidden)
		s.instrument("spot_file", "POST", start, http.StatusForbidden)
		return
	}
	sp := s.Store.GetSpot(vars["spotID"])
	if sp == nil || sp.CampaignID != vars["id"] {
		http.Error(w, "spot not found", http.StatusNotFound)
		s.instrument("spot_file", "POST", start, http.StatusNotFound)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		s.instrument("spot_file", "POST", start, http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	rel, err := s.Files.SaveSpotFile(sp.CampaignID, header.Filename, file)
	if err != nil {
		s.writeError(w, err)
		s.instrument("spot_file", "POST", start, http.StatusBadRequest)
		return
	}

	// replace on a copy, the snapshot pointer is shared with readers
	old := sp.FilePath
	upd := *sp
	upd.FilePath = rel
	upd.UpdatedAt = time.Now().UTC()
	if err := s.Store.UpdateSpot(upd); err != nil {
		s.writeError(w, err)
		s.instrument("spot_file", "POST", start, http.StatusInternalServerError)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveSpot(r.Context(), &upd); err != nil {
			s.Logger.Error("save spot to postgres", zap.Error(err))
		}
	}
	if old != "" && old != rel {
		if err := s.Files.Remove(old); err != nil {
			s.Logger.Warn("remove replaced spot file", zap.String("path", old), zap.Error(err))
		}
	}

	writeJSON(w, map[string]string{"file_path": rel})
	s.instrument("spot_file", "POST", start, http.StatusOK)
}
