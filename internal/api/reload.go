package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Reload re-reads all planning data from Postgres and swaps it into the
// in-memory store in one atomic step. Also refreshes the city profiles
// from disk so manual edits to the data files are picked up.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}

	campaigns, err := s.PG.LoadCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("load campaigns: %w", err)
	}
	spots, err := s.PG.LoadSpots(ctx)
	if err != nil {
		return fmt.Errorf("load spots: %w", err)
	}
	vehicles, err := s.PG.LoadVehicles(ctx)
	if err != nil {
		return fmt.Errorf("load vehicles: %w", err)
	}
	drivers, err := s.PG.LoadDrivers(ctx)
	if err != nil {
		return fmt.Errorf("load drivers: %w", err)
	}
	docs, err := s.PG.LoadDocuments(ctx)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	maint, err := s.PG.LoadMaintenance(ctx)
	if err != nil {
		return fmt.Errorf("load maintenance: %w", err)
	}

	if err := s.Store.ReloadAll(campaigns, spots, vehicles, drivers, docs, maint); err != nil {
		return fmt.Errorf("swap plan store: %w", err)
	}

	if s.Cities != nil {
		if err := s.Cities.Load(); err != nil {
			s.Logger.Warn("reload city profiles", zap.Error(err))
		}
	}

	s.Logger.Info("plan data reloaded",
		zap.Int("campaigns", len(campaigns)),
		zap.Int("spots", len(spots)),
		zap.Int("vehicles", len(vehicles)),
		zap.Int("drivers", len(drivers)))
	return nil
}

// ReloadHandler triggers a manual reload.
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "reloaded"})
}
