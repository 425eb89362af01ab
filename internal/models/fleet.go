package models

import "time"

// VehicleStatus is the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "active"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleDefective   VehicleStatus = "defective"
	VehicleInactive    VehicleStatus = "inactive"
)

// Available reports whether the vehicle can serve campaigns.
func (s VehicleStatus) Available() bool { return s == VehicleActive }

// DriverStatus is the availability state of a driver.
type DriverStatus string

const (
	DriverActive   DriverStatus = "active"
	DriverVacation DriverStatus = "vacation"
	DriverMedical  DriverStatus = "medical"
	DriverInactive DriverStatus = "inactive"
)

// Available reports whether the driver can be assigned.
func (s DriverStatus) Available() bool { return s == DriverActive }

// StatusChange is one entry in a resource's status history. Histories are
// append-only.
type StatusChange struct {
	Status    string    `json:"status"`
	Effective time.Time `json:"effective"`
	Note      string    `json:"note,omitempty"`
}

// Vehicle is a fleet unit carrying the broadcast equipment. The expiry
// fields are denormalized mirrors of the matching document rows so the
// Notification Scanner can run without joins.
type Vehicle struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Registration string        `json:"registration"`
	Status       VehicleStatus `json:"status"`
	History      []StatusChange `json:"history,omitempty"`

	RCAExpiry       *time.Time `json:"rca_expiry,omitempty"`
	ITPExpiry       *time.Time `json:"itp_expiry,omitempty"`
	RovinietaExpiry *time.Time `json:"rovinieta_expiry,omitempty"`
	CascoExpiry     *time.Time `json:"casco_expiry,omitempty"`

	MileageKm      float64 `json:"mileage_km"`
	GeneratorHours float64 `json:"generator_hours"`

	DriverID string `json:"driver_id,omitempty"`
}

// Clone returns a copy safe to mutate without touching the snapshot the
// receiver came from.
func (v *Vehicle) Clone() *Vehicle {
	out := *v
	out.History = append([]StatusChange(nil), v.History...)
	return &out
}

// Assignment is one historic pairing of a driver and a vehicle.
type Assignment struct {
	VehicleID string    `json:"vehicle_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to,omitempty"`
}

// Driver operates a vehicle. Assignment history is append-only.
type Driver struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Phone   string         `json:"phone,omitempty"`
	Email   string         `json:"email,omitempty"`
	Licence string         `json:"licence,omitempty"`
	Status  DriverStatus   `json:"status"`
	History []StatusChange `json:"history,omitempty"`

	VehicleID   string       `json:"vehicle_id,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`

	Leave []ScheduleEntry `json:"leave,omitempty"`
}

// Clone returns a copy safe to mutate, like Vehicle.Clone.
func (d *Driver) Clone() *Driver {
	out := *d
	out.History = append([]StatusChange(nil), d.History...)
	out.Assignments = append([]Assignment(nil), d.Assignments...)
	out.Leave = append([]ScheduleEntry(nil), d.Leave...)
	return &out
}

// OwnerType distinguishes what a document or maintenance record belongs
// to. Using a closed set rather than a free string keeps expiry mirroring
// exhaustive.
type OwnerType string

const (
	OwnerVehicle   OwnerType = "vehicle"
	OwnerDriver    OwnerType = "driver"
	OwnerGenerator OwnerType = "generator"
	OwnerEquipment OwnerType = "equipment"
)

// Document types whose expiry mirrors into the vehicle's denormalized
// fields.
const (
	DocRCA       = "RCA"
	DocITP       = "ITP"
	DocRovinieta = "rovinieta"
	DocCasco     = "casco"
)

// Document is a dated paper attached to a vehicle or driver.
type Document struct {
	ID        string     `json:"id"`
	OwnerType OwnerType  `json:"owner_type"`
	OwnerID   string     `json:"owner_id"`
	DocType   string     `json:"doc_type"`
	IssueDate *time.Time `json:"issue_date,omitempty"`
	Expiry    *time.Time `json:"expiry,omitempty"`
	FilePath  string     `json:"file_path,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// MaintenanceRecord tracks a service action on a vehicle, generator, or
// piece of equipment, with the condition under which it expires.
type MaintenanceRecord struct {
	ID          string     `json:"id"`
	OwnerType   OwnerType  `json:"owner_type"`
	OwnerID     string     `json:"owner_id"`
	ServiceType string     `json:"service_type"`
	AtKm        float64    `json:"at_km,omitempty"`
	AtHours     float64    `json:"at_hours,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	ExpiryKm    float64    `json:"expiry_km,omitempty"`
	ExpiryHours float64    `json:"expiry_hours,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ScheduleEntry blocks a vehicle or driver for an interval: leave,
// maintenance, or a standalone transit.
type ScheduleEntry struct {
	ID          string    `json:"id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	EventType   string    `json:"event_type"`
	Details     string    `json:"details,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

// Overlaps reports whether the entry intersects the [start, end] window.
func (s ScheduleEntry) Overlaps(start, end time.Time) bool {
	return !s.StartDate.After(end) && !s.EndDate.Before(start)
}
