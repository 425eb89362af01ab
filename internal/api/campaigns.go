package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/analytics"
	"github.com/avasilescu/mobiplan/internal/models"
)

// saveResponse carries the persisted campaign plus everything the planner
// should surface but not block on.
type saveResponse struct {
	Campaign         models.Campaign       `json:"campaign"`
	Warnings         []string              `json:"warnings,omitempty"`
	ConflictWarnings []models.ConflictItem `json:"conflict_warnings,omitempty"`
}

func (s *Server) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.GetAllCampaigns())
}

func (s *Server) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c := s.Store.GetCampaign(mux.Vars(r)["id"])
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		return
	}
	writeJSON(w, c)
}

// checkAndPersist runs the save gate (structural validation, then conflict
// detection) and writes the campaign through to Postgres. Blocking
// conflicts reject the save; warnings ride along in the response.
func (s *Server) checkAndPersist(ctx context.Context, c *models.Campaign, excludeID string) (*saveResponse, error) {
	warnings, err := c.Validate()
	if err != nil {
		return nil, err
	}

	report, err := s.Detector.Check(c, excludeID)
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if s.PG != nil {
		if err := s.PG.SaveCampaign(ctx, c); err != nil {
			return nil, err
		}
	}
	return &saveResponse{Campaign: *c, Warnings: warnings, ConflictWarnings: report.Warnings}, nil
}

func (s *Server) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("campaigns", "POST", start, http.StatusBadRequest)
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusDraft
	}

	resp, err := s.checkAndPersist(r.Context(), &c, "")
	if err != nil {
		s.writeError(w, err)
		s.instrument("campaigns", "POST", start, http.StatusConflict)
		return
	}
	if err := s.Store.InsertCampaign(&c); err != nil {
		s.writeError(w, err)
		s.instrument("campaigns", "POST", start, http.StatusInternalServerError)
		return
	}

	s.afterCampaignWrite(r.Context(), c.ID, "create")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, resp)
	s.instrument("campaigns", "POST", start, http.StatusCreated)
}

func (s *Server) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("campaigns", "PUT", start, http.StatusBadRequest)
		return
	}
	c.ID = id
	if existing := s.Store.GetCampaign(id); existing != nil {
		c.CreatedAt = existing.CreatedAt
	}

	resp, err := s.checkAndPersist(r.Context(), &c, id)
	if err != nil {
		s.writeError(w, err)
		s.instrument("campaigns", "PUT", start, http.StatusConflict)
		return
	}
	if err := s.Store.UpdateCampaign(c); err != nil {
		s.writeError(w, err)
		s.instrument("campaigns", "PUT", start, http.StatusNotFound)
		return
	}

	s.afterCampaignWrite(r.Context(), id, "update")
	writeJSON(w, resp)
	s.instrument("campaigns", "PUT", start, http.StatusOK)
}

func (s *Server) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]

	if err := s.Store.DeleteCampaign(id); err != nil {
		s.writeError(w, err)
		s.instrument("campaigns", "DELETE", start, http.StatusNotFound)
		return
	}
	if s.PG != nil {
		// spot rows go with the campaign via the FK cascade
		if err := s.PG.DeleteCampaign(r.Context(), id); err != nil && !errors.Is(err, models.ErrNotFound) {
			s.Logger.Error("delete campaign from postgres", zap.Error(err))
		}
	}

	s.afterCampaignWrite(r.Context(), id, "delete")
	w.WriteHeader(http.StatusNoContent)
	s.instrument("campaigns", "DELETE", start, http.StatusNoContent)
}

// afterCampaignWrite drops the cached timeline and records the planning
// event. Both are best-effort.
func (s *Server) afterCampaignWrite(ctx context.Context, id, action string) {
	s.Cache.InvalidateTimeline(ctx, id)
	if s.Analytics != nil {
		if err := s.Analytics.RecordEvent(ctx, analytics.EventCampaignSaved, id, "", map[string]string{"action": action}); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			s.Logger.Warn("record planning event", zap.Error(err))
		}
	}
}

// ConflictCheckHandler runs the detector against a candidate without
// persisting anything. The exclude query parameter names the stored copy
// to skip when re-checking an edit.
func (s *Server) ConflictCheckHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("conflicts", "POST", start, http.StatusBadRequest)
		return
	}

	report, err := s.Detector.Check(&c, r.URL.Query().Get("exclude"))
	if err != nil {
		s.writeError(w, err)
		s.instrument("conflicts", "POST", start, http.StatusInternalServerError)
		return
	}
	if s.Analytics != nil {
		_ = s.Analytics.RecordEvent(r.Context(), analytics.EventConflictCheck, c.ID, "", map[string]string{
			"blocking": strconv.Itoa(len(report.Blocking)),
			"warnings": strconv.Itoa(len(report.Warnings)),
		})
	}
	writeJSON(w, report)
	s.instrument("conflicts", "POST", start, http.StatusOK)
}

// TimelineHandler resolves a campaign into presence segments, serving
// from the Redis cache when the campaign has not changed since the last
// resolution.
func (s *Server) TimelineHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	c := s.Store.GetCampaign(id)
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("timeline", "GET", start, http.StatusNotFound)
		return
	}

	if segs, ok := s.Cache.GetTimeline(r.Context(), id); ok {
		writeJSON(w, map[string]any{"segments": segs, "cached": true})
		s.instrument("timeline", "GET", start, http.StatusOK)
		return
	}

	res, err := s.Resolver.Resolve(c)
	if err != nil {
		s.writeError(w, err)
		s.instrument("timeline", "GET", start, http.StatusInternalServerError)
		return
	}
	if err := s.Cache.SetTimeline(r.Context(), id, res.Segments); err != nil {
		s.Logger.Warn("cache timeline", zap.Error(err))
	}
	writeJSON(w, map[string]any{"segments": res.Segments, "warnings": res.Warnings})
	s.instrument("timeline", "GET", start, http.StatusOK)
}

// TransitPlanHandler proposes transit periods for the campaign's resolved
// timeline.
func (s *Server) TransitPlanHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c := s.Store.GetCampaign(mux.Vars(r)["id"])
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("transit", "GET", start, http.StatusNotFound)
		return
	}

	res, err := s.Resolver.Resolve(c)
	if err != nil {
		s.writeError(w, err)
		s.instrument("transit", "GET", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Inserter.PlanCampaign(c, res.Segments))
	s.instrument("transit", "GET", start, http.StatusOK)
}

// CampaignEventsHandler returns the ClickHouse planning-event history.
func (s *Server) CampaignEventsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]

	events, err := s.Analytics.GetEventsByCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, analytics.ErrUnavailable) {
			http.Error(w, "analytics unavailable", http.StatusServiceUnavailable)
			s.instrument("campaign_events", "GET", start, http.StatusServiceUnavailable)
			return
		}
		s.writeError(w, err)
		s.instrument("campaign_events", "GET", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
	s.instrument("campaign_events", "GET", start, http.StatusOK)
}
