package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/db"
	"github.com/avasilescu/mobiplan/internal/models"
	"github.com/avasilescu/mobiplan/internal/observability"
)

var (
	vehicleCount  = flag.Int("vehicles", 6, "number of vehicles")
	driverCount   = flag.Int("drivers", 6, "number of drivers")
	campaignCount = flag.Int("campaigns", 10, "number of campaigns")
	spotsPer      = flag.Int("spots", 3, "spots per campaign")
	seed          = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

var demoCities = []string{"Arad", "Timișoara", "Cluj-Napoca", "Oradea", "Sibiu", "Brașov"}

var demoClients = []string{"Aqua Carpatica", "Dedeman", "Banca Transilvania", "eMAG", "Profi", "Catena"}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx := context.Background()
	r := rand.New(rand.NewSource(*seed))

	drivers := make([]models.Driver, 0, *driverCount)
	for i := 0; i < *driverCount; i++ {
		d := models.Driver{
			ID:      uuid.NewString(),
			Name:    fmt.Sprintf("Driver %02d", i+1),
			Phone:   fmt.Sprintf("+4072%07d", r.Intn(10000000)),
			Licence: "B",
			Status:  models.DriverActive,
		}
		if err := pg.SaveDriver(ctx, &d); err != nil {
			logger.Fatal("insert driver", zap.Error(err))
		}
		drivers = append(drivers, d)
	}

	vehicles := make([]models.Vehicle, 0, *vehicleCount)
	for i := 0; i < *vehicleCount; i++ {
		rca := time.Now().UTC().AddDate(0, r.Intn(12), 0)
		itp := time.Now().UTC().AddDate(0, r.Intn(24), 0)
		v := models.Vehicle{
			ID:           uuid.NewString(),
			Name:         fmt.Sprintf("LED Van %02d", i+1),
			Registration: fmt.Sprintf("AR %02d MOB", i+10),
			Status:       models.VehicleActive,
			RCAExpiry:    &rca,
			ITPExpiry:    &itp,
			MileageKm:    float64(50000 + r.Intn(150000)),
		}
		if i < len(drivers) {
			v.DriverID = drivers[i].ID
			drivers[i].VehicleID = v.ID
			if err := pg.SaveDriver(ctx, &drivers[i]); err != nil {
				logger.Fatal("update driver", zap.Error(err))
			}
		}
		if err := pg.SaveVehicle(ctx, &v); err != nil {
			logger.Fatal("insert vehicle", zap.Error(err))
		}
		vehicles = append(vehicles, v)
	}

	for i := 0; i < *campaignCount; i++ {
		c := demoCampaign(r, vehicles, i)
		if err := pg.SaveCampaign(ctx, &c); err != nil {
			logger.Fatal("insert campaign", zap.Error(err))
		}
		for j := 0; j < *spotsPer; j++ {
			sp := models.Spot{
				ID:          uuid.NewString(),
				CampaignID:  c.ID,
				Index:       j + 1,
				Name:        fmt.Sprintf("%s spot %d", c.Client, j+1),
				Status:      models.SpotOK,
				DurationSec: 10 + 5*r.Intn(4),
				Active:      true,
				CreatedAt:   time.Now().UTC(),
				UpdatedAt:   time.Now().UTC(),
			}
			if err := pg.SaveSpot(ctx, &sp); err != nil {
				logger.Fatal("insert spot", zap.Error(err))
			}
		}
	}

	logger.Info("demo data inserted",
		zap.Int("vehicles", *vehicleCount),
		zap.Int("drivers", *driverCount),
		zap.Int("campaigns", *campaignCount))
}

func demoCampaign(r *rand.Rand, vehicles []models.Vehicle, i int) models.Campaign {
	start := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, r.Intn(60)-15)
	end := start.AddDate(0, 0, 7+r.Intn(21))
	city := demoCities[r.Intn(len(demoCities))]
	v := vehicles[r.Intn(len(vehicles))]

	c := models.Campaign{
		ID:              uuid.NewString(),
		Name:            fmt.Sprintf("%s %s %d", demoClients[i%len(demoClients)], city, start.Year()),
		Client:          demoClients[i%len(demoClients)],
		Status:          models.StatusConfirmed,
		StartDate:       start,
		EndDate:         end,
		Exclusive:       r.Intn(5) == 0,
		SpotDurationSec: 10,
		LoopDurationSec: 120,
		AvgSpeedKmh:     25,
		CostPerKm:       1.8,
		FixedCosts:      float64(500 + r.Intn(2000)),
		ExpectedRevenue: float64(3000 + r.Intn(12000)),
		Vehicles:        []string{v.ID},
		DailyHours:      "09:00-21:00",
		CityPeriods: models.PeriodMap{
			Mode:   models.ScopeShared,
			ByCity: map[string][]models.Period{city: {{Start: start, End: end}}},
		},
		CitySchedules: models.ScheduleMap{Mode: models.ScopeShared},
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if r.Intn(3) == 0 {
		c.Status = models.StatusPending
	}
	return c
}
