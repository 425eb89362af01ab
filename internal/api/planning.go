package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/analytics"
)

// AudienceHandler estimates impressions, reach, and OTS for a campaign.
func (s *Server) AudienceHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c := s.Store.GetCampaign(mux.Vars(r)["id"])
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("audience", "GET", start, http.StatusNotFound)
		return
	}

	res, err := s.Resolver.Resolve(c)
	if err != nil {
		s.writeError(w, err)
		s.instrument("audience", "GET", start, http.StatusInternalServerError)
		return
	}
	distance, _ := s.Finance.Distance(c, res.Segments)
	writeJSON(w, s.Audience.Calculate(c, res.Segments, distance))
	s.instrument("audience", "GET", start, http.StatusOK)
}

// FinanceHandler computes cost, revenue, and ROI for a campaign.
func (s *Server) FinanceHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	c := s.Store.GetCampaign(mux.Vars(r)["id"])
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("finance", "GET", start, http.StatusNotFound)
		return
	}

	res, err := s.Resolver.Resolve(c)
	if err != nil {
		s.writeError(w, err)
		s.instrument("finance", "GET", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Finance.Calculate(c, res.Segments))
	s.instrument("finance", "GET", start, http.StatusOK)
}

// ReportHandler builds the full campaign report and persists it to the
// configured reports directory.
func (s *Server) ReportHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	c := s.Store.GetCampaign(id)
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("report", "POST", start, http.StatusNotFound)
		return
	}

	rep, err := s.Reporting.Build(c)
	if err != nil {
		s.writeError(w, err)
		s.instrument("report", "POST", start, http.StatusInternalServerError)
		return
	}
	path, err := s.Reporting.Write(rep)
	if err != nil {
		s.writeError(w, err)
		s.instrument("report", "POST", start, http.StatusInternalServerError)
		return
	}
	if s.Analytics != nil {
		_ = s.Analytics.RecordEvent(r.Context(), analytics.EventReportGenerated, id, "", map[string]string{"path": path})
	}

	writeJSON(w, map[string]any{"report": rep, "path": path})
	s.instrument("report", "POST", start, http.StatusOK)
}

// ExportMediaPlanHandler streams the spot-level media plan as CSV.
func (s *Server) ExportMediaPlanHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	c := s.Store.GetCampaign(id)
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("export_media_plan", "GET", start, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "media_plan_"+id+".csv"))
	if err := s.Exporter.MediaPlan(w, c, s.Store.GetSpotsByCampaign(id)); err != nil {
		s.Logger.Error("export media plan", zap.Error(err))
		s.instrument("export_media_plan", "GET", start, http.StatusInternalServerError)
		return
	}
	s.instrument("export_media_plan", "GET", start, http.StatusOK)
}

// ExportScheduleHandler streams the resolved day-by-day schedule as CSV.
func (s *Server) ExportScheduleHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]
	c := s.Store.GetCampaign(id)
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("export_schedule", "GET", start, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "schedule_"+id+".csv"))
	if err := s.Exporter.Schedule(w, c); err != nil {
		s.Logger.Error("export schedule", zap.Error(err))
		s.instrument("export_schedule", "GET", start, http.StatusInternalServerError)
		return
	}
	s.instrument("export_schedule", "GET", start, http.StatusOK)
}

// SpotTimelineHandler resolves a single spot's effective schedule.
func (s *Server) SpotTimelineHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	c := s.Store.GetCampaign(vars["id"])
	if c == nil {
		http.Error(w, "campaign not found", http.StatusNotFound)
		s.instrument("spot_timeline", "GET", start, http.StatusNotFound)
		return
	}
	sp := s.Store.GetSpot(vars["spotID"])
	if sp == nil || sp.CampaignID != c.ID {
		http.Error(w, "spot not found", http.StatusNotFound)
		s.instrument("spot_timeline", "GET", start, http.StatusNotFound)
		return
	}

	res, err := s.Resolver.ResolveSpot(c, sp)
	if err != nil {
		s.writeError(w, err)
		s.instrument("spot_timeline", "GET", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"segments": res.Segments, "warnings": res.Warnings})
	s.instrument("spot_timeline", "GET", start, http.StatusOK)
}

