// Campaign Report Tool builds the full planning report for one campaign
// without going through the HTTP API.
//
// It loads planning data straight from Postgres, city profiles and the
// road distance matrix from the data files, and writes the report JSON to
// the configured reports directory.
//
// Usage:
//
//	go run ./tools/campaign_report -campaign-id=<uuid>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/audience"
	"github.com/avasilescu/mobiplan/internal/cities"
	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/db"
	"github.com/avasilescu/mobiplan/internal/finance"
	"github.com/avasilescu/mobiplan/internal/observability"
	"github.com/avasilescu/mobiplan/internal/reporting"
	"github.com/avasilescu/mobiplan/internal/schedule"
	"github.com/avasilescu/mobiplan/internal/transit"
)

func main() {
	var (
		campaignID = flag.String("campaign-id", "", "campaign to report on")
		stdout     = flag.Bool("stdout", false, "print the report instead of writing it")
	)
	flag.Parse()

	if *campaignID == "" {
		fmt.Fprintf(os.Stderr, "Error: campaign-id is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx := context.Background()

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	campaigns, err := pg.LoadCampaigns(ctx)
	if err != nil {
		logger.Fatal("load campaigns", zap.Error(err))
	}
	idx := -1
	for i := range campaigns {
		if campaigns[i].ID == *campaignID {
			idx = i
			break
		}
	}
	if idx < 0 {
		fmt.Fprintf(os.Stderr, "campaign %s not found\n", *campaignID)
		os.Exit(1)
	}
	c := campaigns[idx]

	cityStore := cities.NewStore(cfg.CityDataPath, cfg.CityEventsPath, logger)
	if err := cityStore.Load(); err != nil {
		logger.Fatal("load city profiles", zap.Error(err))
	}
	matrix, err := transit.LoadMatrix(cfg.DistanceMatrixPath)
	if err != nil {
		logger.Fatal("load distance matrix", zap.Error(err))
	}

	settingsDoc, err := pg.LoadSettings(ctx)
	if err != nil {
		logger.Warn("load settings, using defaults", zap.Error(err))
	}
	settings := config.NewSettingsStore(settingsDoc, nil)

	metrics := &observability.MockMetricsRegistry{}
	resolver := schedule.NewResolver(logger, metrics)
	builder := reporting.NewBuilder(
		resolver,
		audience.NewCalculator(cityStore, logger),
		finance.NewCalculator(logger),
		transit.NewInserter(matrix, logger),
		settings,
		logger,
		metrics,
	)

	rep, err := builder.Build(&c)
	if err != nil {
		logger.Fatal("build report", zap.Error(err))
	}

	if *stdout {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			logger.Fatal("encode report", zap.Error(err))
		}
		return
	}

	path, err := builder.Write(rep)
	if err != nil {
		logger.Fatal("write report", zap.Error(err))
	}
	fmt.Println(path)
}
