package config

import (
	"encoding/json"
	"sync"
)

// Settings is the operator-editable key-value document persisted alongside
// planning data. It complements the env Config: Config covers deployment
// wiring, Settings covers planner behavior an operator may change at
// runtime.
type Settings struct {
	ReportsOutputPath      string            `json:"reports_output_path"`
	NotificationExpiryDays int               `json:"notification_expiry_days"`
	DebugMode              bool              `json:"debug_mode"`
	EnableSpotUploads      bool              `json:"enable_spot_uploads"`
	DefaultCityUpdateMode  string            `json:"default_city_update_mode"`
	TimelineColors         map[string]string `json:"timeline_colors,omitempty"`
	Language               string            `json:"language"`

	SMTPHost string `json:"smtp_host,omitempty"`
	SMTPPort string `json:"smtp_port,omitempty"`
	SMTPUser string `json:"smtp_user,omitempty"`
	SMTPFrom string `json:"smtp_from,omitempty"`
	SMTPTo   string `json:"smtp_to,omitempty"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		ReportsOutputPath:      "reports",
		NotificationExpiryDays: 7,
		DebugMode:              false,
		EnableSpotUploads:      true,
		DefaultCityUpdateMode:  "public",
		Language:               "ro",
		TimelineColors: map[string]string{
			"confirmed": "#2e7d32",
			"pending":   "#f9a825",
			"draft":     "#9e9e9e",
			"transit":   "#1565c0",
			"conflict":  "#c62828",
		},
	}
}

// SettingsStore caches the settings document in-process and persists
// through a pluggable backend. Reads are frequent (every notification
// scan); writes are rare operator actions.
type SettingsStore struct {
	mu      sync.RWMutex
	current Settings
	save    func(Settings) error
}

// NewSettingsStore builds a store seeded with the given settings. The save
// callback persists a new document; nil makes the store memory-only.
func NewSettingsStore(initial Settings, save func(Settings) error) *SettingsStore {
	return &SettingsStore{current: initial, save: save}
}

// Get returns the current settings snapshot.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates, persists, and installs a new settings document.
func (s *SettingsStore) Update(next Settings) error {
	if next.NotificationExpiryDays <= 0 {
		next.NotificationExpiryDays = DefaultSettings().NotificationExpiryDays
	}
	if next.ReportsOutputPath == "" {
		next.ReportsOutputPath = DefaultSettings().ReportsOutputPath
	}
	switch next.Language {
	case "ro", "en":
	default:
		next.Language = DefaultSettings().Language
	}
	switch next.DefaultCityUpdateMode {
	case "public", "ins", "brat", "manual":
	default:
		next.DefaultCityUpdateMode = DefaultSettings().DefaultCityUpdateMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.save != nil {
		if err := s.save(next); err != nil {
			return err
		}
	}
	s.current = next
	return nil
}

// ParseSettings decodes a settings document, falling back to defaults for
// a malformed or empty payload so legacy rows never break startup.
func ParseSettings(raw []byte) Settings {
	settings := DefaultSettings()
	if len(raw) == 0 {
		return settings
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return DefaultSettings()
	}
	if settings.NotificationExpiryDays <= 0 {
		settings.NotificationExpiryDays = DefaultSettings().NotificationExpiryDays
	}
	if settings.ReportsOutputPath == "" {
		settings.ReportsOutputPath = DefaultSettings().ReportsOutputPath
	}
	return settings
}
