package fleet

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

// Registry manages fleet state: vehicle and driver status transitions,
// driver assignments, and mirroring of document expiry dates into the
// vehicles' denormalized fields. Status histories are append-only.
type Registry struct {
	Store  models.PlanStore
	Logger *zap.Logger
}

// NewRegistry constructs a Registry.
func NewRegistry(store models.PlanStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{Store: store, Logger: logger}
}

// SetVehicleStatus records a status transition effective at a date and
// persists it. The caller decides whether to run the reconciler when the
// new status makes the vehicle unavailable.
func (r *Registry) SetVehicleStatus(id string, status models.VehicleStatus, effective time.Time, note string) (*models.Vehicle, error) {
	switch status {
	case models.VehicleActive, models.VehicleMaintenance, models.VehicleDefective, models.VehicleInactive:
	default:
		return nil, models.NewValidationError("status", "unknown vehicle status %q", status)
	}
	v := r.Store.GetVehicle(id)
	if v == nil {
		return nil, fmt.Errorf("vehicle %s: %w", id, models.ErrNotFound)
	}
	v = v.Clone()
	v.History = append(v.History, models.StatusChange{
		Status:    string(status),
		Effective: effective,
		Note:      note,
	})
	v.Status = status
	if err := r.Store.UpdateVehicle(*v); err != nil {
		return nil, err
	}
	r.Logger.Info("vehicle status changed",
		zap.String("vehicle_id", id),
		zap.String("status", string(status)),
		zap.Time("effective", effective),
	)
	return v, nil
}

// SetDriverStatus records a driver status transition.
func (r *Registry) SetDriverStatus(id string, status models.DriverStatus, effective time.Time, note string) (*models.Driver, error) {
	switch status {
	case models.DriverActive, models.DriverVacation, models.DriverMedical, models.DriverInactive:
	default:
		return nil, models.NewValidationError("status", "unknown driver status %q", status)
	}
	d := r.Store.GetDriver(id)
	if d == nil {
		return nil, fmt.Errorf("driver %s: %w", id, models.ErrNotFound)
	}
	d = d.Clone()
	d.History = append(d.History, models.StatusChange{
		Status:    string(status),
		Effective: effective,
		Note:      note,
	})
	d.Status = status
	if err := r.Store.UpdateDriver(*d); err != nil {
		return nil, err
	}
	r.Logger.Info("driver status changed",
		zap.String("driver_id", id),
		zap.String("status", string(status)),
	)
	return d, nil
}

// AssignDriver pairs a driver with a vehicle from a date on. The driver's
// previous assignment, if open, is closed at the same date; the history
// itself is never rewritten.
func (r *Registry) AssignDriver(driverID, vehicleID string, from time.Time) error {
	d := r.Store.GetDriver(driverID)
	if d == nil {
		return fmt.Errorf("driver %s: %w", driverID, models.ErrNotFound)
	}
	v := r.Store.GetVehicle(vehicleID)
	if v == nil {
		return fmt.Errorf("vehicle %s: %w", vehicleID, models.ErrNotFound)
	}
	d = d.Clone()
	v = v.Clone()

	if n := len(d.Assignments); n > 0 && d.Assignments[n-1].To.IsZero() {
		d.Assignments[n-1].To = from
	}
	d.Assignments = append(d.Assignments, models.Assignment{VehicleID: vehicleID, From: from})
	d.VehicleID = vehicleID
	if err := r.Store.UpdateDriver(*d); err != nil {
		return err
	}

	v.DriverID = driverID
	return r.Store.UpdateVehicle(*v)
}

// MirrorDocumentExpiry copies the expiry date of RCA/ITP/rovinieta/casco
// documents into the owning vehicle's denormalized field, so scans over
// the fleet need no document join.
func (r *Registry) MirrorDocumentExpiry(doc *models.Document) error {
	if doc.OwnerType != models.OwnerVehicle {
		return nil
	}
	v := r.Store.GetVehicle(doc.OwnerID)
	if v == nil {
		return fmt.Errorf("vehicle %s: %w", doc.OwnerID, models.ErrNotFound)
	}
	v = v.Clone()
	switch doc.DocType {
	case models.DocRCA:
		v.RCAExpiry = doc.Expiry
	case models.DocITP:
		v.ITPExpiry = doc.Expiry
	case models.DocRovinieta:
		v.RovinietaExpiry = doc.Expiry
	case models.DocCasco:
		v.CascoExpiry = doc.Expiry
	default:
		return nil
	}
	return r.Store.UpdateVehicle(*v)
}
