package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/analytics"
	"github.com/avasilescu/mobiplan/internal/audience"
	"github.com/avasilescu/mobiplan/internal/cities"
	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/conflicts"
	"github.com/avasilescu/mobiplan/internal/db"
	"github.com/avasilescu/mobiplan/internal/export"
	"github.com/avasilescu/mobiplan/internal/files"
	"github.com/avasilescu/mobiplan/internal/finance"
	"github.com/avasilescu/mobiplan/internal/fleet"
	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/notify"
	"github.com/avasilescu/mobiplan/internal/observability"
	"github.com/avasilescu/mobiplan/internal/reporting"
	"github.com/avasilescu/mobiplan/internal/schedule"
	"github.com/avasilescu/mobiplan/internal/transit"
)

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger    *zap.Logger
	Store     models.PlanStore
	PG        *db.Postgres
	Cache     *db.RedisStore
	Analytics analytics.AnalyticsService

	Resolver   *schedule.Resolver
	Detector   *conflicts.Detector
	Inserter   *transit.Inserter
	Audience   *audience.Calculator
	Finance    *finance.Calculator
	Reporting  *reporting.Builder
	Exporter   *export.Exporter
	Cities     *cities.Store
	CityFetch  *cities.Fetcher
	Registry   *fleet.Registry
	Reconciler *fleet.Reconciler
	Scanner    *notify.Scanner
	Acks       *notify.AckStore
	Mailer     *notify.Mailer
	Files      *files.Manager
	Settings   *config.SettingsStore
	Metrics    observability.MetricsRegistry
	Config     config.Config

	validate *validator.Validate
	reloadMu sync.Mutex
}

// Deps carries the constructed services into NewServer.
type Deps struct {
	Logger    *zap.Logger
	Store     models.PlanStore
	PG        *db.Postgres
	Cache     *db.RedisStore
	Analytics analytics.AnalyticsService

	Resolver   *schedule.Resolver
	Detector   *conflicts.Detector
	Inserter   *transit.Inserter
	Audience   *audience.Calculator
	Finance    *finance.Calculator
	Reporting  *reporting.Builder
	Exporter   *export.Exporter
	Cities     *cities.Store
	CityFetch  *cities.Fetcher
	Registry   *fleet.Registry
	Reconciler *fleet.Reconciler
	Scanner    *notify.Scanner
	Acks       *notify.AckStore
	Mailer     *notify.Mailer
	Files      *files.Manager
	Settings   *config.SettingsStore
	Metrics    observability.MetricsRegistry
	Config     config.Config
}

// NewServer constructs a Server.
func NewServer(d Deps) *Server {
	return &Server{
		Logger:     d.Logger,
		Store:      d.Store,
		PG:         d.PG,
		Cache:      d.Cache,
		Analytics:  d.Analytics,
		Resolver:   d.Resolver,
		Detector:   d.Detector,
		Inserter:   d.Inserter,
		Audience:   d.Audience,
		Finance:    d.Finance,
		Reporting:  d.Reporting,
		Exporter:   d.Exporter,
		Cities:     d.Cities,
		CityFetch:  d.CityFetch,
		Registry:   d.Registry,
		Reconciler: d.Reconciler,
		Scanner:    d.Scanner,
		Acks:       d.Acks,
		Mailer:     d.Mailer,
		Files:      d.Files,
		Settings:   d.Settings,
		Metrics:    d.Metrics,
		Config:     d.Config,
		validate:   validator.New(),
	}
}

// helper function to write JSON response
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Validation errors
// and conflict rejections carry structured bodies so the planning UI can
// show field-level messages.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	var cerr *models.ConflictError
	var ierr *models.IntegrityError
	switch {
	case errors.As(err, &verr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "validation",
			"field": verr.Field,
			"msg":   verr.Msg,
		})
	case errors.As(err, &cerr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":    "conflict",
			"blocking": cerr.Blocking,
			"warnings": cerr.Warnings,
		})
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.As(err, &ierr):
		s.Logger.Error("persistence rejected write", zap.Error(err))
		http.Error(w, "persistence error", http.StatusInternalServerError)
	default:
		s.Logger.Error("handler error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// instrument records request count and latency for an endpoint.
func (s *Server) instrument(endpoint, method string, start time.Time, status int) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.IncrementRequests(endpoint, method, httpStatusLabel(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

func httpStatusLabel(code int) string {
	switch code {
	case http.StatusOK:
		return "200"
	case http.StatusCreated:
		return "201"
	case http.StatusNoContent:
		return "204"
	case http.StatusBadRequest:
		return "400"
	case http.StatusNotFound:
		return "404"
	case http.StatusConflict:
		return "409"
	default:
		return "500"
	}
}
