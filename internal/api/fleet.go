package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/analytics"
	"github.com/avasilescu/mobiplan/internal/models"
)

// ===== Vehicles =====

func (s *Server) ListVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.GetAllVehicles())
}

func (s *Server) GetVehicle(w http.ResponseWriter, r *http.Request) {
	v := s.Store.GetVehicle(mux.Vars(r)["id"])
	if v == nil {
		http.Error(w, "vehicle not found", http.StatusNotFound)
		return
	}
	writeJSON(w, v)
}

func (s *Server) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var v models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("vehicles", "POST", start, http.StatusBadRequest)
		return
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = models.VehicleActive
	}

	if s.PG != nil {
		if err := s.PG.SaveVehicle(r.Context(), &v); err != nil {
			s.writeError(w, err)
			s.instrument("vehicles", "POST", start, http.StatusInternalServerError)
			return
		}
	}
	if err := s.Store.InsertVehicle(&v); err != nil {
		s.writeError(w, err)
		s.instrument("vehicles", "POST", start, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, v)
	s.instrument("vehicles", "POST", start, http.StatusCreated)
}

func (s *Server) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var v models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("vehicles", "PUT", start, http.StatusBadRequest)
		return
	}
	v.ID = mux.Vars(r)["id"]

	if err := s.Store.UpdateVehicle(v); err != nil {
		s.writeError(w, err)
		s.instrument("vehicles", "PUT", start, http.StatusNotFound)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveVehicle(r.Context(), &v); err != nil {
			s.Logger.Error("save vehicle to postgres", zap.Error(err))
		}
	}
	writeJSON(w, v)
	s.instrument("vehicles", "PUT", start, http.StatusOK)
}

// statusChangeRequest is shared by the vehicle and driver status
// endpoints.
type statusChangeRequest struct {
	Status    string `json:"status" validate:"required"`
	Effective string `json:"effective" validate:"required"`
	Note      string `json:"note"`
}

func (s *Server) VehicleStatusHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("vehicle_status", "POST", start, http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.instrument("vehicle_status", "POST", start, http.StatusBadRequest)
		return
	}
	effective, err := models.ParseDate(req.Effective)
	if err != nil {
		http.Error(w, "invalid effective date", http.StatusBadRequest)
		s.instrument("vehicle_status", "POST", start, http.StatusBadRequest)
		return
	}

	v, err := s.Registry.SetVehicleStatus(mux.Vars(r)["id"], models.VehicleStatus(req.Status), effective, req.Note)
	if err != nil {
		s.writeError(w, err)
		s.instrument("vehicle_status", "POST", start, http.StatusBadRequest)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveVehicle(r.Context(), v); err != nil {
			s.Logger.Error("save vehicle to postgres", zap.Error(err))
		}
	}
	writeJSON(w, v)
	s.instrument("vehicle_status", "POST", start, http.StatusOK)
}

// ===== Drivers =====

func (s *Server) ListDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.GetAllDrivers())
}

func (s *Server) CreateDriver(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("drivers", "POST", start, http.StatusBadRequest)
		return
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DriverActive
	}

	if s.PG != nil {
		if err := s.PG.SaveDriver(r.Context(), &d); err != nil {
			s.writeError(w, err)
			s.instrument("drivers", "POST", start, http.StatusInternalServerError)
			return
		}
	}
	if err := s.Store.InsertDriver(&d); err != nil {
		s.writeError(w, err)
		s.instrument("drivers", "POST", start, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, d)
	s.instrument("drivers", "POST", start, http.StatusCreated)
}

func (s *Server) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("drivers", "PUT", start, http.StatusBadRequest)
		return
	}
	d.ID = mux.Vars(r)["id"]

	if err := s.Store.UpdateDriver(d); err != nil {
		s.writeError(w, err)
		s.instrument("drivers", "PUT", start, http.StatusNotFound)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveDriver(r.Context(), &d); err != nil {
			s.Logger.Error("save driver to postgres", zap.Error(err))
		}
	}
	writeJSON(w, d)
	s.instrument("drivers", "PUT", start, http.StatusOK)
}

func (s *Server) DriverStatusHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("driver_status", "POST", start, http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.instrument("driver_status", "POST", start, http.StatusBadRequest)
		return
	}
	effective, err := models.ParseDate(req.Effective)
	if err != nil {
		http.Error(w, "invalid effective date", http.StatusBadRequest)
		s.instrument("driver_status", "POST", start, http.StatusBadRequest)
		return
	}

	d, err := s.Registry.SetDriverStatus(mux.Vars(r)["id"], models.DriverStatus(req.Status), effective, req.Note)
	if err != nil {
		s.writeError(w, err)
		s.instrument("driver_status", "POST", start, http.StatusBadRequest)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveDriver(r.Context(), d); err != nil {
			s.Logger.Error("save driver to postgres", zap.Error(err))
		}
	}
	writeJSON(w, d)
	s.instrument("driver_status", "POST", start, http.StatusOK)
}

// assignRequest pairs a driver with a vehicle from a given date.
type assignRequest struct {
	DriverID  string `json:"driver_id" validate:"required"`
	VehicleID string `json:"vehicle_id" validate:"required"`
	From      string `json:"from" validate:"required"`
}

func (s *Server) AssignDriverHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("assign_driver", "POST", start, http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.instrument("assign_driver", "POST", start, http.StatusBadRequest)
		return
	}
	from, err := models.ParseDate(req.From)
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		s.instrument("assign_driver", "POST", start, http.StatusBadRequest)
		return
	}

	if err := s.Registry.AssignDriver(req.DriverID, req.VehicleID, from); err != nil {
		s.writeError(w, err)
		s.instrument("assign_driver", "POST", start, http.StatusBadRequest)
		return
	}
	s.persistFleetPair(r, req.DriverID, req.VehicleID)
	w.WriteHeader(http.StatusNoContent)
	s.instrument("assign_driver", "POST", start, http.StatusNoContent)
}

func (s *Server) persistFleetPair(r *http.Request, driverID, vehicleID string) {
	if s.PG == nil {
		return
	}
	if d := s.Store.GetDriver(driverID); d != nil {
		if err := s.PG.SaveDriver(r.Context(), d); err != nil {
			s.Logger.Error("save driver to postgres", zap.Error(err))
		}
	}
	if v := s.Store.GetVehicle(vehicleID); v != nil {
		if err := s.PG.SaveVehicle(r.Context(), v); err != nil {
			s.Logger.Error("save vehicle to postgres", zap.Error(err))
		}
	}
}

// ===== Replacements =====

// replaceRequest swaps one resource for another across impacted campaigns
// from the effective date.
type replaceRequest struct {
	OldID     string `json:"old_id" validate:"required"`
	NewID     string `json:"new_id" validate:"required"`
	Effective string `json:"effective" validate:"required"`
}

func (s *Server) ReplaceVehicleHandler(w http.ResponseWriter, r *http.Request) {
	s.replaceResource(w, r, "vehicle")
}

func (s *Server) ReplaceDriverHandler(w http.ResponseWriter, r *http.Request) {
	s.replaceResource(w, r, "driver")
}

func (s *Server) replaceResource(w http.ResponseWriter, r *http.Request, resource string) {
	start := time.Now()
	endpoint := "replace_" + resource

	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument(endpoint, "POST", start, http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.instrument(endpoint, "POST", start, http.StatusBadRequest)
		return
	}
	effective, err := models.ParseDate(req.Effective)
	if err != nil {
		http.Error(w, "invalid effective date", http.StatusBadRequest)
		s.instrument(endpoint, "POST", start, http.StatusBadRequest)
		return
	}

	var touched []string
	if resource == "vehicle" {
		touched, err = s.Reconciler.ReplaceVehicle(req.OldID, req.NewID, effective)
	} else {
		touched, err = s.Reconciler.ReplaceDriver(req.OldID, req.NewID, effective)
	}
	if err != nil {
		s.writeError(w, err)
		s.instrument(endpoint, "POST", start, http.StatusBadRequest)
		return
	}

	// invalidate caches and persist the rewritten campaigns
	for _, id := range touched {
		s.Cache.InvalidateTimeline(r.Context(), id)
		if s.PG != nil {
			if c := s.Store.GetCampaign(id); c != nil {
				if err := s.PG.SaveCampaign(r.Context(), c); err != nil {
					s.Logger.Error("persist reconciled campaign", zap.String("campaign_id", id), zap.Error(err))
				}
			}
		}
		if s.Analytics != nil {
			_ = s.Analytics.RecordEvent(r.Context(), analytics.EventVehicleSwap, id, "", map[string]string{
				"resource": resource,
				"old":      req.OldID,
				"new":      req.NewID,
			})
		}
	}

	writeJSON(w, map[string]any{"campaigns": touched})
	s.instrument(endpoint, "POST", start, http.StatusOK)
}

// ===== Documents =====

func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerType := q.Get("owner_type")
	ownerID := q.Get("owner_id")
	if ownerType != "" && ownerID != "" {
		writeJSON(w, s.Store.GetDocumentsByOwner(models.OwnerType(ownerType), ownerID))
		return
	}
	writeJSON(w, s.Store.GetAllDocuments())
}

func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var doc models.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("documents", "POST", start, http.StatusBadRequest)
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if err := s.Store.InsertDocument(&doc); err != nil {
		s.writeError(w, err)
		s.instrument("documents", "POST", start, http.StatusInternalServerError)
		return
	}
	if err := s.Registry.MirrorDocumentExpiry(&doc); err != nil {
		s.Logger.Warn("mirror document expiry", zap.Error(err))
	}
	if s.PG != nil {
		if err := s.PG.SaveDocument(r.Context(), &doc); err != nil {
			s.Logger.Error("save document to postgres", zap.Error(err))
		}
		if doc.OwnerType == models.OwnerVehicle {
			if v := s.Store.GetVehicle(doc.OwnerID); v != nil {
				if err := s.PG.SaveVehicle(r.Context(), v); err != nil {
					s.Logger.Error("save vehicle to postgres", zap.Error(err))
				}
			}
		}
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, doc)
	s.instrument("documents", "POST", start, http.StatusCreated)
}

func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]

	if err := s.Store.DeleteDocument(id); err != nil {
		s.writeError(w, err)
		s.instrument("documents", "DELETE", start, http.StatusNotFound)
		return
	}
	if s.PG != nil {
		if err := s.PG.DeleteDocument(r.Context(), id); err != nil {
			s.Logger.Error("delete document from postgres", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
	s.instrument("documents", "DELETE", start, http.StatusNoContent)
}

// UploadDocumentFile stages a scanned document and stores its relative
// path on the document record.
func (s *Server) UploadDocumentFile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := mux.Vars(r)["id"]

	var doc *models.Document
	for _, d := range s.Store.GetAllDocuments() {
		if d.ID == id {
			found := d
			doc = &found
			break
		}
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		s.instrument("document_file", "POST", start, http.StatusNotFound)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		s.instrument("document_file", "POST", start, http.StatusBadRequest)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	rel, err := s.Files.SaveDocumentFile(doc.OwnerType, doc.OwnerID, doc.DocType, header.Filename, file)
	if err != nil {
		s.writeError(w, err)
		s.instrument("document_file", "POST", start, http.StatusBadRequest)
		return
	}

	doc.FilePath = rel
	if err := s.Store.UpdateDocument(*doc); err != nil {
		s.writeError(w, err)
		s.instrument("document_file", "POST", start, http.StatusInternalServerError)
		return
	}
	if s.PG != nil {
		if err := s.PG.SaveDocument(r.Context(), doc); err != nil {
			s.Logger.Error("save document to postgres", zap.Error(err))
		}
	}

	writeJSON(w, map[string]string{"file_path": rel})
	s.instrument("document_file", "POST", start, http.StatusOK)
}

// ===== Availability =====

func (s *Server) ListScheduleEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, s.Store.GetScheduleEntries(models.OwnerType(q.Get("owner_type")), q.Get("owner_id")))
}

func (s *Server) SetScheduleEntries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	ownerType := models.OwnerType(q.Get("owner_type"))
	ownerID := q.Get("owner_id")
	if ownerType == "" || ownerID == "" {
		http.Error(w, "owner_type and owner_id are required", http.StatusBadRequest)
		s.instrument("schedule_entries", "PUT", start, http.StatusBadRequest)
		return
	}

	var entries []models.ScheduleEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		s.instrument("schedule_entries", "PUT", start, http.StatusBadRequest)
		return
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	if err := s.Store.SetScheduleEntries(ownerType, ownerID, entries); err != nil {
		s.writeError(w, err)
		s.instrument("schedule_entries", "PUT", start, http.StatusInternalServerError)
		return
	}
	if s.PG != nil {
		for i := range entries {
			if err := s.PG.SaveScheduleEntry(r.Context(), ownerType, ownerID, &entries[i]); err != nil {
				s.Logger.Error("save schedule entry to postgres", zap.Error(err))
			}
		}
	}
	writeJSON(w, entries)
	s.instrument("schedule_entries", "PUT", start, http.StatusOK)
}
