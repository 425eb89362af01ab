package cities

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

// Store holds city profiles and special events, backed by two JSON files.
// Lookups are case-insensitive; writes rewrite the whole file.
type Store struct {
	mu          sync.RWMutex
	profiles    map[string]*models.CityProfile // key: lowercased name
	events      map[string][]models.SpecialEvent
	profilePath string
	eventsPath  string
	logger      *zap.Logger
}

// NewStore constructs an empty Store persisting to the given paths.
func NewStore(profilePath, eventsPath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		profiles:    make(map[string]*models.CityProfile),
		events:      make(map[string][]models.SpecialEvent),
		profilePath: profilePath,
		eventsPath:  eventsPath,
		logger:      logger,
	}
}

// Load reads both files. Missing files leave the store empty; a malformed
// file is an error because silently dropping city history would corrupt
// every downstream estimate.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.profilePath)
	switch {
	case os.IsNotExist(err):
		s.logger.Info("city profile file missing, starting empty", zap.String("path", s.profilePath))
	case err != nil:
		return &models.FileIOError{Path: s.profilePath, Err: err}
	default:
		byName := make(map[string]*models.CityProfile)
		if err := json.Unmarshal(raw, &byName); err != nil {
			return fmt.Errorf("parsing city profiles %s: %w", s.profilePath, err)
		}
		s.profiles = make(map[string]*models.CityProfile, len(byName))
		for name, p := range byName {
			if p.Name == "" {
				p.Name = name
			}
			s.profiles[strings.ToLower(name)] = p
		}
	}

	raw, err = os.ReadFile(s.eventsPath)
	switch {
	case os.IsNotExist(err):
		// No events is the common case.
	case err != nil:
		return &models.FileIOError{Path: s.eventsPath, Err: err}
	default:
		byName := make(map[string][]models.SpecialEvent)
		if err := json.Unmarshal(raw, &byName); err != nil {
			return fmt.Errorf("parsing city events %s: %w", s.eventsPath, err)
		}
		s.events = make(map[string][]models.SpecialEvent, len(byName))
		for name, evs := range byName {
			s.events[strings.ToLower(name)] = evs
		}
	}

	s.logger.Info("city data loaded",
		zap.Int("cities", len(s.profiles)),
		zap.Int("cities_with_events", len(s.events)),
	)
	return nil
}

// Save rewrites both JSON files in full, preserving non-ASCII city names.
func (s *Store) Save() error {
	s.mu.RLock()
	byName := make(map[string]*models.CityProfile, len(s.profiles))
	for _, p := range s.profiles {
		byName[p.Name] = p
	}
	evByName := make(map[string][]models.SpecialEvent, len(s.events))
	for key, evs := range s.events {
		name := key
		if p, ok := s.profiles[key]; ok {
			name = p.Name
		}
		evByName[name] = evs
	}
	s.mu.RUnlock()

	if err := writeJSONFile(s.profilePath, byName); err != nil {
		return err
	}
	return writeJSONFile(s.eventsPath, evByName)
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &models.FileIOError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &models.FileIOError{Path: path, Err: err}
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return &models.FileIOError{Path: path, Err: err}
	}
	return nil
}

// Get returns the profile for a city, matched case-insensitively.
func (s *Store) Get(city string) (*models.CityProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[strings.ToLower(city)]
	return p, ok
}

// Names returns all known city names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Upsert stores a profile under its name.
func (s *Store) Upsert(p *models.CityProfile) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return models.NewValidationError("name", "city profile needs a name")
	}
	s.mu.Lock()
	s.profiles[strings.ToLower(p.Name)] = p
	s.mu.Unlock()
	return nil
}

// SetRecord inserts one quarterly record and advances the current pointer
// when the new quarter is the latest known.
func (s *Store) SetRecord(city, quarter string, rec models.CityRecord) error {
	if !validQuarterKey(quarter) {
		return models.NewValidationError("quarter", "%q is not a YYYY-Qn key", quarter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(city)
	p, ok := s.profiles[key]
	if !ok {
		p = &models.CityProfile{Name: city, Records: make(map[string]models.CityRecord)}
		s.profiles[key] = p
	}
	if p.Records == nil {
		p.Records = make(map[string]models.CityRecord)
	}
	p.Records[quarter] = rec
	if p.Current == "" || quarter > p.Current {
		p.Current = quarter
	}
	return nil
}

// EffectiveRecord selects the record in force on a date: the exact quarter
// if present, otherwise the most recent earlier quarter, otherwise the
// oldest record known. Returns false only when the city has no records at
// all.
func (s *Store) EffectiveRecord(city string, date time.Time) (models.CityRecord, bool) {
	p, ok := s.Get(city)
	if !ok || len(p.Records) == 0 {
		return models.CityRecord{}, false
	}
	target := models.QuarterKey(date)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := p.Records[target]; ok {
		return rec, true
	}
	keys := make([]string, 0, len(p.Records))
	for k := range p.Records {
		keys = append(keys, k)
	}
	// "YYYY-Qn" keys order chronologically as plain strings.
	sort.Strings(keys)
	chosen := keys[0]
	for _, k := range keys {
		if k > target {
			break
		}
		chosen = k
	}
	return p.Records[chosen], true
}

// CurrentRecord returns the record the profile's current pointer names,
// falling back to the newest record.
func (s *Store) CurrentRecord(city string) (models.CityRecord, bool) {
	p, ok := s.Get(city)
	if !ok || len(p.Records) == 0 {
		return models.CityRecord{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := p.Records[p.Current]; ok {
		return rec, true
	}
	keys := make([]string, 0, len(p.Records))
	for k := range p.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return p.Records[keys[len(keys)-1]], true
}

// Events returns the special events registered for a city.
func (s *Store) Events(city string) []models.SpecialEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events[strings.ToLower(city)]
}

// SetEvents replaces a city's event list.
func (s *Store) SetEvents(city string, evs []models.SpecialEvent) {
	s.mu.Lock()
	s.events[strings.ToLower(city)] = evs
	s.mu.Unlock()
}

// EventMultipliers returns the traffic and pedestrian multipliers for a
// date. Overlapping events apply first-match; no event means (1, 1).
func (s *Store) EventMultipliers(city string, date time.Time) (float64, float64) {
	for _, e := range s.Events(city) {
		if e.Covers(date) {
			return e.TrafficMultiplier, e.PedestrianMultiplier
		}
	}
	return 1.0, 1.0
}

func validQuarterKey(k string) bool {
	if len(k) != 7 || k[4] != '-' || k[5] != 'Q' {
		return false
	}
	for _, c := range k[:4] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return k[6] >= '1' && k[6] <= '4'
}
