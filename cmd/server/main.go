package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/analytics"
	"github.com/avasilescu/mobiplan/internal/api"
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

// resolved timelines are cached until the campaign changes or the TTL
// lapses
const timelineCacheTTL = 15 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.OTLPEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	cache, err := db.InitRedis(cfg.RedisAddr, timelineCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer cache.Close()

	metricsRegistry := observability.NewPrometheusRegistry()

	analyticsSvc, err := analytics.InitClickHouse(cfg.ClickHouseDSN)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer analyticsSvc.Close()

	// Settings live in Postgres, cached in-process.
	initialSettings, err := pg.LoadSettings(ctx)
	if err != nil {
		logger.Warn("load settings, using defaults", zap.Error(err))
	}
	settings := config.NewSettingsStore(initialSettings, func(next config.Settings) error {
		return pg.SaveSettings(context.Background(), next)
	})

	// City profiles and the road distance matrix come from data files.
	cityStore := cities.NewStore(cfg.CityDataPath, cfg.CityEventsPath, logger)
	if err := cityStore.Load(); err != nil {
		return fmt.Errorf("load city profiles: %w", err)
	}
	matrix, err := transit.LoadMatrix(cfg.DistanceMatrixPath)
	if err != nil {
		return fmt.Errorf("load distance matrix: %w", err)
	}

	pref := models.UpdatePreference(settings.Get().DefaultCityUpdateMode)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	var public, ins, brat cities.DataSource
	if u := os.Getenv("CITY_PUBLIC_URL"); u != "" {
		public = cities.NewPublicSource(u, httpClient)
	}
	if u := os.Getenv("CITY_INS_URL"); u != "" {
		ins = cities.NewINSSource(u, httpClient)
	}
	if u := os.Getenv("CITY_BRAT_URL"); u != "" {
		brat = cities.NewBRATSource(u, httpClient)
	}
	sources := cities.SourcesFor(pref, public, ins, brat)
	var fetcher *cities.Fetcher
	if len(sources) > 0 {
		fetcher = cities.NewFetcher(sources, cfg.CityCacheDir, cfg.CityCacheTTL, logger, metricsRegistry)
	}

	// Load planning data from Postgres into the in-memory store.
	store := models.NewInMemoryPlanStore()
	resolver := schedule.NewResolver(logger, metricsRegistry)
	fin := finance.NewCalculator(logger)
	aud := audience.NewCalculator(cityStore, logger)
	inserter := transit.NewInserter(matrix, logger)

	srvDeps := api.NewServer(api.Deps{
		Logger:     logger,
		Store:      store,
		PG:         pg,
		Cache:      cache,
		Analytics:  analyticsSvc,
		Resolver:   resolver,
		Detector:   conflicts.NewDetector(store, resolver, logger, metricsRegistry),
		Inserter:   inserter,
		Audience:   aud,
		Finance:    fin,
		Reporting:  reporting.NewBuilder(resolver, aud, fin, inserter, settings, logger, metricsRegistry),
		Exporter:   export.NewExporter(resolver, logger),
		Cities:     cityStore,
		CityFetch:  fetcher,
		Registry:   fleet.NewRegistry(store, logger),
		Reconciler: fleet.NewReconciler(store, logger, metricsRegistry),
		Scanner:    notify.NewScanner(store, settings, logger, metricsRegistry),
		Acks:       notify.NewAckStore(cache.Client),
		Mailer:     notify.NewMailer(settings, logger),
		Files:      files.NewManager(cfg.DataRoot, logger),
		Settings:   settings,
		Metrics:    metricsRegistry,
		Config:     cfg,
	})

	if err := srvDeps.Reload(ctx); err != nil {
		return fmt.Errorf("initial data load: %w", err)
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")
	r.HandleFunc("/reload", srvDeps.ReloadHandler).Methods("POST")
	r.Handle("/metrics", promhttp.Handler())

	crud := r.PathPrefix("/api").Subrouter()

	crud.HandleFunc("/campaigns", srvDeps.ListCampaigns).Methods("GET")
	crud.HandleFunc("/campaigns", srvDeps.CreateCampaign).Methods("POST")
	crud.HandleFunc("/campaigns/conflicts", srvDeps.ConflictCheckHandler).Methods("POST")
	crud.HandleFunc("/campaigns/{id}", srvDeps.GetCampaign).Methods("GET")
	crud.HandleFunc("/campaigns/{id}", srvDeps.UpdateCampaign).Methods("PUT")
	crud.HandleFunc("/campaigns/{id}", srvDeps.DeleteCampaign).Methods("DELETE")
	crud.HandleFunc("/campaigns/{id}/timeline", srvDeps.TimelineHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/transit", srvDeps.TransitPlanHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/audience", srvDeps.AudienceHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/finance", srvDeps.FinanceHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/report", srvDeps.ReportHandler).Methods("POST")
	crud.HandleFunc("/campaigns/{id}/events", srvDeps.CampaignEventsHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/export/media-plan", srvDeps.ExportMediaPlanHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/export/schedule", srvDeps.ExportScheduleHandler).Methods("GET")

	crud.HandleFunc("/campaigns/{id}/spots", srvDeps.ListSpots).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/spots", srvDeps.CreateSpot).Methods("POST")
	crud.HandleFunc("/campaigns/{id}/spots/{spotID}", srvDeps.UpdateSpot).Methods("PUT")
	crud.HandleFunc("/campaigns/{id}/spots/{spotID}", srvDeps.DeleteSpot).Methods("DELETE")
	crud.HandleFunc("/campaigns/{id}/spots/{spotID}/timeline", srvDeps.SpotTimelineHandler).Methods("GET")
	crud.HandleFunc("/campaigns/{id}/spots/{spotID}/file", srvDeps.UploadSpotFile).Methods("POST")

	crud.HandleFunc("/vehicles", srvDeps.ListVehicles).Methods("GET")
	crud.HandleFunc("/vehicles", srvDeps.CreateVehicle).Methods("POST")
	crud.HandleFunc("/vehicles/{id}", srvDeps.GetVehicle).Methods("GET")
	crud.HandleFunc("/vehicles/{id}", srvDeps.UpdateVehicle).Methods("PUT")
	crud.HandleFunc("/vehicles/{id}/status", srvDeps.VehicleStatusHandler).Methods("POST")

	crud.HandleFunc("/drivers", srvDeps.ListDrivers).Methods("GET")
	crud.HandleFunc("/drivers", srvDeps.CreateDriver).Methods("POST")
	crud.HandleFunc("/drivers/{id}", srvDeps.UpdateDriver).Methods("PUT")
	crud.HandleFunc("/drivers/{id}/status", srvDeps.DriverStatusHandler).Methods("POST")

	crud.HandleFunc("/fleet/assign", srvDeps.AssignDriverHandler).Methods("POST")
	crud.HandleFunc("/fleet/replace-vehicle", srvDeps.ReplaceVehicleHandler).Methods("POST")
	crud.HandleFunc("/fleet/replace-driver", srvDeps.ReplaceDriverHandler).Methods("POST")

	crud.HandleFunc("/documents", srvDeps.ListDocuments).Methods("GET")
	crud.HandleFunc("/documents", srvDeps.CreateDocument).Methods("POST")
	crud.HandleFunc("/documents/{id}", srvDeps.DeleteDocument).Methods("DELETE")
	crud.HandleFunc("/documents/{id}/file", srvDeps.UploadDocumentFile).Methods("POST")

	crud.HandleFunc("/schedule-entries", srvDeps.ListScheduleEntries).Methods("GET")
	crud.HandleFunc("/schedule-entries", srvDeps.SetScheduleEntries).Methods("PUT")

	crud.HandleFunc("/cities", srvDeps.ListCities).Methods("GET")
	crud.HandleFunc("/cities/extrapolate", srvDeps.ExtrapolateCity).Methods("GET")
	crud.HandleFunc("/cities/{name}", srvDeps.GetCity).Methods("GET")
	crud.HandleFunc("/cities/{name}", srvDeps.UpsertCity).Methods("PUT")
	crud.HandleFunc("/cities/{name}/records/{quarter}", srvDeps.SetCityRecord).Methods("PUT")
	crud.HandleFunc("/cities/{name}/refresh", srvDeps.RefreshCity).Methods("POST")
	crud.HandleFunc("/cities/{name}/events", srvDeps.ListCityEvents).Methods("GET")
	crud.HandleFunc("/cities/{name}/events", srvDeps.SetCityEvents).Methods("PUT")

	crud.HandleFunc("/notifications", srvDeps.ListNotifications).Methods("GET")
	crud.HandleFunc("/notifications/digest", srvDeps.SendDigestHandler).Methods("POST")
	crud.HandleFunc("/notifications/{id}/ack", srvDeps.AcknowledgeNotification).Methods("POST")
	crud.HandleFunc("/notifications/{id}/ack", srvDeps.UnacknowledgeNotification).Methods("DELETE")

	crud.HandleFunc("/settings", srvDeps.GetSettings).Methods("GET")
	crud.HandleFunc("/settings", srvDeps.UpdateSettings).Methods("PUT")

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, "mobiplan.http"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Planning server running", zap.String("addr", srv.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
