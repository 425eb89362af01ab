package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

func (s *Server) ListCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Cities.Names())
}

func (s *Server) GetCity(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Cities.Get(mux.Vars(r)["name"])
	if !ok {
		http.Error(w, "city not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (s *Server) UpsertCity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var p models.CityProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("cities", "PUT", start, http.StatusBadRequest)
		return
	}
	p.Name = mux.Vars(r)["name"]

	if err := s.Cities.Upsert(&p); err != nil {
		s.writeError(w, err)
		s.instrument("cities", "PUT", start, http.StatusBadRequest)
		return
	}
	if err := s.Cities.Save(); err != nil {
		s.writeError(w, err)
		s.instrument("cities", "PUT", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, p)
	s.instrument("cities", "PUT", start, http.StatusOK)
}

// SetCityRecord writes one quarterly snapshot into a city's history.
func (s *Server) SetCityRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	var rec models.CityRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("city_record", "PUT", start, http.StatusBadRequest)
		return
	}
	rec.LastUpdated = time.Now().UTC()
	if rec.Source == "" {
		rec.Source = "manual"
	}

	if err := s.Cities.SetRecord(vars["name"], vars["quarter"], rec); err != nil {
		s.writeError(w, err)
		s.instrument("city_record", "PUT", start, http.StatusBadRequest)
		return
	}
	if err := s.Cities.Save(); err != nil {
		s.writeError(w, err)
		s.instrument("city_record", "PUT", start, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	s.instrument("city_record", "PUT", start, http.StatusNoContent)
}

// ExtrapolateCity builds a synthetic record from known cities for a
// population passed as a query parameter.
func (s *Server) ExtrapolateCity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pop, err := strconv.Atoi(r.URL.Query().Get("population"))
	if err != nil || pop <= 0 {
		http.Error(w, "population must be a positive integer", http.StatusBadRequest)
		s.instrument("city_extrapolate", "GET", start, http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Cities.Extrapolate(pop))
	s.instrument("city_extrapolate", "GET", start, http.StatusOK)
}

// RefreshCity triggers a background fetch from the configured external
// sources. The response returns immediately; the profile updates when the
// fetch lands.
func (s *Server) RefreshCity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := mux.Vars(r)["name"]
	if s.CityFetch == nil {
		http.Error(w, "external sources not configured", http.StatusServiceUnavailable)
		s.instrument("city_refresh", "POST", start, http.StatusServiceUnavailable)
		return
	}

	s.CityFetch.RefreshAsync(s.Cities, name)
	s.Logger.Info("city refresh queued", zap.String("city", name))
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "queued"})
	s.instrument("city_refresh", "POST", start, http.StatusOK)
}

// ===== Special events =====

func (s *Server) ListCityEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Cities.Events(mux.Vars(r)["name"]))
}

func (s *Server) SetCityEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var evs []models.SpecialEvent
	if err := json.NewDecoder(r.Body).Decode(&evs); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("city_events", "PUT", start, http.StatusBadRequest)
		return
	}

	s.Cities.SetEvents(mux.Vars(r)["name"], evs)
	if err := s.Cities.Save(); err != nil {
		s.writeError(w, err)
		s.instrument("city_events", "PUT", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, evs)
	s.instrument("city_events", "PUT", start, http.StatusOK)
}
