// Package transit plans road movement between a vehicle's consecutive
// city legs: distances come from a JSON road matrix, and the inserter
// either schedules a feasible relocation window or flags the legs as
// conflicting when the gap is too short to drive.
package transit

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Distance is one road matrix cell.
type Distance struct {
	Km    float64 `json:"km"`
	Hours float64 `json:"hours"`
}

// Matrix is the symmetric city-to-city road distance table. Keys are
// "CityA-CityB"; lookups try both orderings, case-insensitively. A miss
// returns the zero distance, which downstream suppresses auto-transit.
type Matrix struct {
	mu      sync.RWMutex
	entries map[string]Distance
	path    string
}

// NewMatrix returns an empty matrix that persists to path.
func NewMatrix(path string) *Matrix {
	return &Matrix{entries: make(map[string]Distance), path: path}
}

// LoadMatrix reads the matrix file. A missing file yields an empty matrix
// rather than an error; planning works without road data, just without
// auto-transit.
func LoadMatrix(path string) (*Matrix, error) {
	m := NewMatrix(path)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read distance matrix: %w", err)
	}
	var entries map[string]Distance
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse distance matrix: %w", err)
	}
	normalized := make(map[string]Distance, len(entries))
	for k, v := range entries {
		normalized[strings.ToLower(k)] = v
	}
	m.entries = normalized
	return m, nil
}

// Lookup returns the road distance between two cities. The boolean
// reports whether the pair is known.
func (m *Matrix) Lookup(cityA, cityB string) (Distance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := strings.ToLower(strings.TrimSpace(cityA))
	b := strings.ToLower(strings.TrimSpace(cityB))
	if d, ok := m.entries[a+"-"+b]; ok {
		return d, true
	}
	if d, ok := m.entries[b+"-"+a]; ok {
		return d, true
	}
	return Distance{}, false
}

// Set records a distance for a city pair.
func (m *Matrix) Set(cityA, cityB string, d Distance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := strings.ToLower(strings.TrimSpace(cityA))
	b := strings.ToLower(strings.TrimSpace(cityB))
	m.entries[a+"-"+b] = d
}

// Save rewrites the matrix file in full.
func (m *Matrix) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.path == "" {
		return nil
	}
	out, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, out, 0o644)
}
