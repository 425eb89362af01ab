package models

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// PlanStore provides thread-safe access to planning data without global
// variables. Reads serve the hot path (resolver, conflict detector,
// notification scanner); writes happen on the reload path after Postgres
// commits and swap a full snapshot atomically.
type PlanStore interface {
	// Read operations
	GetCampaign(id string) *Campaign
	GetAllCampaigns() []Campaign
	GetCampaignsByVehicle(vehicleID string) []Campaign
	GetSpot(id string) *Spot
	GetSpotsByCampaign(campaignID string) []Spot
	GetVehicle(id string) *Vehicle
	GetAllVehicles() []Vehicle
	GetDriver(id string) *Driver
	GetAllDrivers() []Driver
	GetDocumentsByOwner(ownerType OwnerType, ownerID string) []Document
	GetAllDocuments() []Document
	GetMaintenanceByOwner(ownerType OwnerType, ownerID string) []MaintenanceRecord
	GetScheduleEntries(ownerType OwnerType, ownerID string) []ScheduleEntry

	// Bulk replace operations (reload path)
	SetCampaigns(campaigns []Campaign) error
	SetSpots(spots []Spot) error
	SetVehicles(vehicles []Vehicle) error
	SetDrivers(drivers []Driver) error
	SetDocuments(docs []Document) error
	SetMaintenance(records []MaintenanceRecord) error
	SetScheduleEntries(ownerType OwnerType, ownerID string, entries []ScheduleEntry) error
	ReloadAll(campaigns []Campaign, spots []Spot, vehicles []Vehicle, drivers []Driver, docs []Document, maint []MaintenanceRecord) error

	// CRUD operations for real-time updates
	InsertCampaign(c *Campaign) error
	UpdateCampaign(c Campaign) error
	DeleteCampaign(id string) error

	InsertSpot(s *Spot) error
	UpdateSpot(s Spot) error
	DeleteSpot(id string) error

	InsertVehicle(v *Vehicle) error
	UpdateVehicle(v Vehicle) error
	DeleteVehicle(id string) error

	InsertDriver(d *Driver) error
	UpdateDriver(d Driver) error
	DeleteDriver(id string) error

	InsertDocument(d *Document) error
	UpdateDocument(d Document) error
	DeleteDocument(id string) error
}

type scheduleKey struct {
	ownerType OwnerType
	ownerID   string
}

// planSnapshot is an immutable snapshot of all planning data.
type planSnapshot struct {
	campaigns     []Campaign
	campaignIndex map[string]*Campaign
	vehicleIndex  map[string][]string // vehicle -> campaign ids

	spots             []Spot
	spotIndex         map[string]*Spot
	spotsByCampaign   map[string][]Spot

	vehicles      []Vehicle
	vehicleByID   map[string]*Vehicle
	drivers       []Driver
	driverByID    map[string]*Driver

	documents    []Document
	docsByOwner  map[scheduleKey][]Document
	maintenance  []MaintenanceRecord
	maintByOwner map[scheduleKey][]MaintenanceRecord
	schedules    map[scheduleKey][]ScheduleEntry
}

// InMemoryPlanStore implements PlanStore with atomic snapshot updates.
type InMemoryPlanStore struct {
	data atomic.Pointer[planSnapshot]
}

// NewInMemoryPlanStore creates an empty PlanStore.
func NewInMemoryPlanStore() *InMemoryPlanStore {
	store := &InMemoryPlanStore{}
	store.data.Store(emptySnapshot())
	return store
}

func emptySnapshot() *planSnapshot {
	return &planSnapshot{
		campaigns:       make([]Campaign, 0),
		campaignIndex:   make(map[string]*Campaign),
		vehicleIndex:    make(map[string][]string),
		spots:           make([]Spot, 0),
		spotIndex:       make(map[string]*Spot),
		spotsByCampaign: make(map[string][]Spot),
		vehicles:        make([]Vehicle, 0),
		vehicleByID:     make(map[string]*Vehicle),
		drivers:         make([]Driver, 0),
		driverByID:      make(map[string]*Driver),
		documents:       make([]Document, 0),
		docsByOwner:     make(map[scheduleKey][]Document),
		maintenance:     make([]MaintenanceRecord, 0),
		maintByOwner:    make(map[scheduleKey][]MaintenanceRecord),
		schedules:       make(map[scheduleKey][]ScheduleEntry),
	}
}

// clone copies the snapshot shallowly; the caller replaces the sections it
// mutates before storing.
func (p *planSnapshot) clone() *planSnapshot {
	cp := *p
	return &cp
}

func buildCampaignIndexes(campaigns []Campaign) (map[string]*Campaign, map[string][]string) {
	index := make(map[string]*Campaign, len(campaigns))
	byVehicle := make(map[string][]string)
	for i := range campaigns {
		c := &campaigns[i]
		index[c.ID] = c
		seen := map[string]struct{}{}
		for _, v := range c.Vehicles {
			seen[v] = struct{}{}
		}
		for _, e := range c.VehicleTimeline {
			seen[e.ResourceID] = struct{}{}
		}
		for v := range seen {
			byVehicle[v] = append(byVehicle[v], c.ID)
		}
	}
	for v := range byVehicle {
		sort.Strings(byVehicle[v])
	}
	return index, byVehicle
}

func buildSpotIndexes(spots []Spot) (map[string]*Spot, map[string][]Spot) {
	index := make(map[string]*Spot, len(spots))
	byCampaign := make(map[string][]Spot)
	for i := range spots {
		s := &spots[i]
		index[s.ID] = s
		byCampaign[s.CampaignID] = append(byCampaign[s.CampaignID], *s)
	}
	for id := range byCampaign {
		group := byCampaign[id]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Index < group[j].Index })
		byCampaign[id] = group
	}
	return index, byCampaign
}

func buildDocIndex(docs []Document) map[scheduleKey][]Document {
	byOwner := make(map[scheduleKey][]Document)
	for _, d := range docs {
		k := scheduleKey{d.OwnerType, d.OwnerID}
		byOwner[k] = append(byOwner[k], d)
	}
	return byOwner
}

func buildMaintIndex(records []MaintenanceRecord) map[scheduleKey][]MaintenanceRecord {
	byOwner := make(map[scheduleKey][]MaintenanceRecord)
	for _, m := range records {
		k := scheduleKey{m.OwnerType, m.OwnerID}
		byOwner[k] = append(byOwner[k], m)
	}
	return byOwner
}

// GetCampaign retrieves a campaign by ID, or nil.
func (s *InMemoryPlanStore) GetCampaign(id string) *Campaign {
	return s.data.Load().campaignIndex[id]
}

// GetAllCampaigns returns a copy of all campaigns.
func (s *InMemoryPlanStore) GetAllCampaigns() []Campaign {
	data := s.data.Load()
	result := make([]Campaign, len(data.campaigns))
	copy(result, data.campaigns)
	return result
}

// GetCampaignsByVehicle returns all campaigns the vehicle serves, either
// as a direct assignment or through a timeline segment.
func (s *InMemoryPlanStore) GetCampaignsByVehicle(vehicleID string) []Campaign {
	data := s.data.Load()
	ids := data.vehicleIndex[vehicleID]
	result := make([]Campaign, 0, len(ids))
	for _, id := range ids {
		if c, ok := data.campaignIndex[id]; ok {
			result = append(result, *c)
		}
	}
	return result
}

// GetSpot retrieves a spot by ID, or nil.
func (s *InMemoryPlanStore) GetSpot(id string) *Spot {
	return s.data.Load().spotIndex[id]
}

// GetSpotsByCampaign returns the campaign's spots ordered by index.
func (s *InMemoryPlanStore) GetSpotsByCampaign(campaignID string) []Spot {
	data := s.data.Load()
	group := data.spotsByCampaign[campaignID]
	result := make([]Spot, len(group))
	copy(result, group)
	return result
}

// GetVehicle retrieves a vehicle by ID, or nil.
func (s *InMemoryPlanStore) GetVehicle(id string) *Vehicle {
	return s.data.Load().vehicleByID[id]
}

// GetAllVehicles returns a copy of all vehicles.
func (s *InMemoryPlanStore) GetAllVehicles() []Vehicle {
	data := s.data.Load()
	result := make([]Vehicle, len(data.vehicles))
	copy(result, data.vehicles)
	return result
}

// GetDriver retrieves a driver by ID, or nil.
func (s *InMemoryPlanStore) GetDriver(id string) *Driver {
	return s.data.Load().driverByID[id]
}

// GetAllDrivers returns a copy of all drivers.
func (s *InMemoryPlanStore) GetAllDrivers() []Driver {
	data := s.data.Load()
	result := make([]Driver, len(data.drivers))
	copy(result, data.drivers)
	return result
}

// GetDocumentsByOwner returns the documents attached to one owner.
func (s *InMemoryPlanStore) GetDocumentsByOwner(ownerType OwnerType, ownerID string) []Document {
	data := s.data.Load()
	group := data.docsByOwner[scheduleKey{ownerType, ownerID}]
	result := make([]Document, len(group))
	copy(result, group)
	return result
}

// GetAllDocuments returns a copy of all documents.
func (s *InMemoryPlanStore) GetAllDocuments() []Document {
	data := s.data.Load()
	result := make([]Document, len(data.documents))
	copy(result, data.documents)
	return result
}

// GetMaintenanceByOwner returns the maintenance records for one owner.
func (s *InMemoryPlanStore) GetMaintenanceByOwner(ownerType OwnerType, ownerID string) []MaintenanceRecord {
	data := s.data.Load()
	group := data.maintByOwner[scheduleKey{ownerType, ownerID}]
	result := make([]MaintenanceRecord, len(group))
	copy(result, group)
	return result
}

// GetScheduleEntries returns availability overrides for one resource.
func (s *InMemoryPlanStore) GetScheduleEntries(ownerType OwnerType, ownerID string) []ScheduleEntry {
	data := s.data.Load()
	group := data.schedules[scheduleKey{ownerType, ownerID}]
	result := make([]ScheduleEntry, len(group))
	copy(result, group)
	return result
}

// SetCampaigns replaces all campaigns and rebuilds indexes.
func (s *InMemoryPlanStore) SetCampaigns(campaigns []Campaign) error {
	newData := s.data.Load().clone()
	newData.campaigns = campaigns
	newData.campaignIndex, newData.vehicleIndex = buildCampaignIndexes(campaigns)
	s.data.Store(newData)
	return nil
}

// SetSpots replaces all spots and rebuilds indexes.
func (s *InMemoryPlanStore) SetSpots(spots []Spot) error {
	newData := s.data.Load().clone()
	newData.spots = spots
	newData.spotIndex, newData.spotsByCampaign = buildSpotIndexes(spots)
	s.data.Store(newData)
	return nil
}

// SetVehicles replaces all vehicles and rebuilds the index.
func (s *InMemoryPlanStore) SetVehicles(vehicles []Vehicle) error {
	newData := s.data.Load().clone()
	newData.vehicles = vehicles
	newData.vehicleByID = make(map[string]*Vehicle, len(vehicles))
	for i := range vehicles {
		newData.vehicleByID[vehicles[i].ID] = &vehicles[i]
	}
	s.data.Store(newData)
	return nil
}

// SetDrivers replaces all drivers and rebuilds the index.
func (s *InMemoryPlanStore) SetDrivers(drivers []Driver) error {
	newData := s.data.Load().clone()
	newData.drivers = drivers
	newData.driverByID = make(map[string]*Driver, len(drivers))
	for i := range drivers {
		newData.driverByID[drivers[i].ID] = &drivers[i]
	}
	s.data.Store(newData)
	return nil
}

// SetDocuments replaces all documents and rebuilds the owner index.
func (s *InMemoryPlanStore) SetDocuments(docs []Document) error {
	newData := s.data.Load().clone()
	newData.documents = docs
	newData.docsByOwner = buildDocIndex(docs)
	s.data.Store(newData)
	return nil
}

// SetMaintenance replaces all maintenance records.
func (s *InMemoryPlanStore) SetMaintenance(records []MaintenanceRecord) error {
	newData := s.data.Load().clone()
	newData.maintenance = records
	newData.maintByOwner = buildMaintIndex(records)
	s.data.Store(newData)
	return nil
}

// SetScheduleEntries replaces the availability overrides for one resource.
func (s *InMemoryPlanStore) SetScheduleEntries(ownerType OwnerType, ownerID string, entries []ScheduleEntry) error {
	newData := s.data.Load().clone()
	schedules := make(map[scheduleKey][]ScheduleEntry, len(newData.schedules)+1)
	for k, v := range newData.schedules {
		schedules[k] = v
	}
	schedules[scheduleKey{ownerType, ownerID}] = entries
	newData.schedules = schedules
	s.data.Store(newData)
	return nil
}

// ReloadAll swaps every section of the store in a single snapshot update.
func (s *InMemoryPlanStore) ReloadAll(campaigns []Campaign, spots []Spot, vehicles []Vehicle, drivers []Driver, docs []Document, maint []MaintenanceRecord) error {
	newData := emptySnapshot()
	newData.campaigns = campaigns
	newData.campaignIndex, newData.vehicleIndex = buildCampaignIndexes(campaigns)
	newData.spots = spots
	newData.spotIndex, newData.spotsByCampaign = buildSpotIndexes(spots)
	newData.vehicles = vehicles
	for i := range vehicles {
		newData.vehicleByID[vehicles[i].ID] = &vehicles[i]
	}
	newData.drivers = drivers
	for i := range drivers {
		newData.driverByID[drivers[i].ID] = &drivers[i]
	}
	newData.documents = docs
	newData.docsByOwner = buildDocIndex(docs)
	newData.maintenance = maint
	newData.maintByOwner = buildMaintIndex(maint)
	newData.schedules = s.data.Load().schedules
	s.data.Store(newData)
	return nil
}

// InsertCampaign appends a campaign to the store.
func (s *InMemoryPlanStore) InsertCampaign(c *Campaign) error {
	data := s.data.Load()
	if _, exists := data.campaignIndex[c.ID]; exists {
		return &IntegrityError{Op: "insert campaign", Err: fmt.Errorf("duplicate id %s", c.ID)}
	}
	campaigns := make([]Campaign, 0, len(data.campaigns)+1)
	campaigns = append(campaigns, data.campaigns...)
	campaigns = append(campaigns, *c)
	return s.SetCampaigns(campaigns)
}

// UpdateCampaign replaces a campaign in place.
func (s *InMemoryPlanStore) UpdateCampaign(c Campaign) error {
	data := s.data.Load()
	if _, exists := data.campaignIndex[c.ID]; !exists {
		return ErrNotFound
	}
	campaigns := make([]Campaign, len(data.campaigns))
	copy(campaigns, data.campaigns)
	for i := range campaigns {
		if campaigns[i].ID == c.ID {
			campaigns[i] = c
			break
		}
	}
	return s.SetCampaigns(campaigns)
}

// DeleteCampaign removes a campaign and cascades to its spots, mirroring
// the relational FK cascade.
func (s *InMemoryPlanStore) DeleteCampaign(id string) error {
	data := s.data.Load()
	if _, exists := data.campaignIndex[id]; !exists {
		return ErrNotFound
	}
	campaigns := make([]Campaign, 0, len(data.campaigns))
	for _, c := range data.campaigns {
		if c.ID != id {
			campaigns = append(campaigns, c)
		}
	}
	spots := make([]Spot, 0, len(data.spots))
	for _, sp := range data.spots {
		if sp.CampaignID != id {
			spots = append(spots, sp)
		}
	}
	if err := s.SetCampaigns(campaigns); err != nil {
		return err
	}
	return s.SetSpots(spots)
}

// InsertSpot appends a spot.
func (s *InMemoryPlanStore) InsertSpot(sp *Spot) error {
	data := s.data.Load()
	spots := make([]Spot, 0, len(data.spots)+1)
	spots = append(spots, data.spots...)
	spots = append(spots, *sp)
	return s.SetSpots(spots)
}

// UpdateSpot replaces a spot in place.
func (s *InMemoryPlanStore) UpdateSpot(sp Spot) error {
	data := s.data.Load()
	if _, exists := data.spotIndex[sp.ID]; !exists {
		return ErrNotFound
	}
	spots := make([]Spot, len(data.spots))
	copy(spots, data.spots)
	for i := range spots {
		if spots[i].ID == sp.ID {
			spots[i] = sp
			break
		}
	}
	return s.SetSpots(spots)
}

// DeleteSpot removes a spot.
func (s *InMemoryPlanStore) DeleteSpot(id string) error {
	data := s.data.Load()
	if _, exists := data.spotIndex[id]; !exists {
		return ErrNotFound
	}
	spots := make([]Spot, 0, len(data.spots))
	for _, sp := range data.spots {
		if sp.ID != id {
			spots = append(spots, sp)
		}
	}
	return s.SetSpots(spots)
}

// InsertVehicle appends a vehicle.
func (s *InMemoryPlanStore) InsertVehicle(v *Vehicle) error {
	data := s.data.Load()
	vehicles := make([]Vehicle, 0, len(data.vehicles)+1)
	vehicles = append(vehicles, data.vehicles...)
	vehicles = append(vehicles, *v)
	return s.SetVehicles(vehicles)
}

// UpdateVehicle replaces a vehicle in place.
func (s *InMemoryPlanStore) UpdateVehicle(v Vehicle) error {
	data := s.data.Load()
	if _, exists := data.vehicleByID[v.ID]; !exists {
		return ErrNotFound
	}
	vehicles := make([]Vehicle, len(data.vehicles))
	copy(vehicles, data.vehicles)
	for i := range vehicles {
		if vehicles[i].ID == v.ID {
			vehicles[i] = v
			break
		}
	}
	return s.SetVehicles(vehicles)
}

// DeleteVehicle removes a vehicle.
func (s *InMemoryPlanStore) DeleteVehicle(id string) error {
	data := s.data.Load()
	if _, exists := data.vehicleByID[id]; !exists {
		return ErrNotFound
	}
	vehicles := make([]Vehicle, 0, len(data.vehicles))
	for _, v := range data.vehicles {
		if v.ID != id {
			vehicles = append(vehicles, v)
		}
	}
	return s.SetVehicles(vehicles)
}

// InsertDriver appends a driver.
func (s *InMemoryPlanStore) InsertDriver(d *Driver) error {
	data := s.data.Load()
	drivers := make([]Driver, 0, len(data.drivers)+1)
	drivers = append(drivers, data.drivers...)
	drivers = append(drivers, *d)
	return s.SetDrivers(drivers)
}

// UpdateDriver replaces a driver in place.
func (s *InMemoryPlanStore) UpdateDriver(d Driver) error {
	data := s.data.Load()
	if _, exists := data.driverByID[d.ID]; !exists {
		return ErrNotFound
	}
	drivers := make([]Driver, len(data.drivers))
	copy(drivers, data.drivers)
	for i := range drivers {
		if drivers[i].ID == d.ID {
			drivers[i] = d
			break
		}
	}
	return s.SetDrivers(drivers)
}

// DeleteDriver removes a driver.
func (s *InMemoryPlanStore) DeleteDriver(id string) error {
	data := s.data.Load()
	if _, exists := data.driverByID[id]; !exists {
		return ErrNotFound
	}
	drivers := make([]Driver, 0, len(data.drivers))
	for _, d := range data.drivers {
		if d.ID != id {
			drivers = append(drivers, d)
		}
	}
	return s.SetDrivers(drivers)
}

// InsertDocument appends a document.
func (s *InMemoryPlanStore) InsertDocument(d *Document) error {
	data := s.data.Load()
	docs := make([]Document, 0, len(data.documents)+1)
	docs = append(docs, data.documents...)
	docs = append(docs, *d)
	return s.SetDocuments(docs)
}

// UpdateDocument replaces a document in place.
func (s *InMemoryPlanStore) UpdateDocument(d Document) error {
	data := s.data.Load()
	docs := make([]Document, len(data.documents))
	copy(docs, data.documents)
	found := false
	for i := range docs {
		if docs[i].ID == d.ID {
			docs[i] = d
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	return s.SetDocuments(docs)
}

// DeleteDocument removes a document.
func (s *InMemoryPlanStore) DeleteDocument(id string) error {
	data := s.data.Load()
	docs := make([]Document, 0, len(data.documents))
	found := false
	for _, d := range data.documents {
		if d.ID == id {
			found = true
			continue
		}
		docs = append(docs, d)
	}
	if !found {
		return ErrNotFound
	}
	return s.SetDocuments(docs)
}
