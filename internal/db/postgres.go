package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/config"
	"github.com/avasilescu/mobiplan/internal/models"
)

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist. Period and
// schedule maps, timelines, and histories live in JSONB columns; legacy
// rows may carry malformed JSON, which readers treat as null.
const schemaSQL = `CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    client TEXT NOT NULL DEFAULT '',
    po_number TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    campaign_mode TEXT NOT NULL DEFAULT '',
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    exclusive BOOLEAN NOT NULL DEFAULT FALSE,
    spot_duration_sec INT NOT NULL DEFAULT 0,
    loop_duration_sec INT NOT NULL DEFAULT 0,
    avg_speed_kmh DOUBLE PRECISION NOT NULL DEFAULT 0,
    stationing_min_per_hour DOUBLE PRECISION NOT NULL DEFAULT 0,
    daily_distance_km JSONB,
    known_distance_total_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    cost_per_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    fixed_costs DOUBLE PRECISION NOT NULL DEFAULT 0,
    expected_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
    vehicles JSONB,
    driver_overrides JSONB,
    daily_hours TEXT NOT NULL DEFAULT '',
    city_periods JSONB,
    city_schedules JSONB,
    transit_periods JSONB,
    vehicle_timeline JSONB,
    driver_timeline JSONB,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS spots (
    id TEXT PRIMARY KEY,
    campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    idx INT NOT NULL DEFAULT 0,
    name TEXT NOT NULL,
    file_path TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'OK',
    duration_sec INT NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    notes TEXT NOT NULL DEFAULT '',
    target_cities JSONB,
    target_vehicles JSONB,
    spot_periods JSONB,
    spot_schedules JSONB,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    registration TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    history JSONB,
    rca_expiry DATE,
    itp_expiry DATE,
    rovinieta_expiry DATE,
    casco_expiry DATE,
    mileage_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    generator_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    driver_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS drivers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    licence TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    history JSONB,
    vehicle_id TEXT NOT NULL DEFAULT '',
    assignments JSONB,
    leave JSONB
);

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    owner_type TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    doc_type TEXT NOT NULL,
    issue_date DATE,
    expiry DATE,
    file_path TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS maintenance_records (
    id TEXT PRIMARY KEY,
    owner_type TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    service_type TEXT NOT NULL,
    at_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    at_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    expiry_date DATE,
    expiry_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    expiry_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS schedule_entries (
    id TEXT PRIMARY KEY,
    owner_type TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    event_type TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    origin TEXT NOT NULL DEFAULT '',
    destination TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
    id INT PRIMARY KEY DEFAULT 1,
    document JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spots_campaign_id ON spots (campaign_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_status_dates ON campaigns (status, start_date, end_date);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (owner_type, owner_id);
CREATE INDEX IF NOT EXISTS idx_maintenance_owner ON maintenance_records (owner_type, owner_id);
CREATE INDEX IF NOT EXISTS idx_schedule_entries_owner ON schedule_entries (owner_type, owner_id);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	pgdb, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	pgdb.SetMaxOpenConns(maxOpenConns)
	pgdb.SetMaxIdleConns(maxIdleConns)
	pgdb.SetConnMaxLifetime(connMaxLifetime)
	pgdb.SetConnMaxIdleTime(connMaxIdleTime)

	if err := pgdb.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: pgdb}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// toJSON marshals v for a JSONB column; nil maps and slices store as SQL
// null.
func toJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	if s == "null" {
		return nil, nil
	}
	return s, nil
}

// fromJSON decodes a JSONB column into out. Malformed JSON from legacy
// rows decodes to the zero value instead of failing the whole load.
func fromJSON(raw sql.NullString, out any) {
	if !raw.Valid || raw.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw.String), out); err != nil {
		zap.L().Warn("malformed JSON column tolerated", zap.Error(err))
	}
}

// LoadCampaigns retrieves every campaign.
func (p *Postgres) LoadCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, client, po_number, status, campaign_mode,
        start_date, end_date, exclusive, spot_duration_sec, loop_duration_sec,
        avg_speed_kmh, stationing_min_per_hour, daily_distance_km, known_distance_total_km,
        cost_per_km, fixed_costs, expected_revenue, vehicles, driver_overrides, daily_hours,
        city_periods, city_schedules, transit_periods, vehicle_timeline, driver_timeline,
        created_at, updated_at FROM campaigns`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var cs []models.Campaign
	for rows.Next() {
		var c models.Campaign
		var dailyDist, vehicles, overrides, periods, schedules, transits, vtl, dtl sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Client, &c.PONumber, &c.Status, &c.Mode,
			&c.StartDate, &c.EndDate, &c.Exclusive, &c.SpotDurationSec, &c.LoopDurationSec,
			&c.AvgSpeedKmh, &c.StationingMinPerHour, &dailyDist, &c.KnownDistanceTotalKm,
			&c.CostPerKm, &c.FixedCosts, &c.ExpectedRevenue, &vehicles, &overrides, &c.DailyHours,
			&periods, &schedules, &transits, &vtl, &dtl,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		fromJSON(dailyDist, &c.DailyDistanceKm)
		fromJSON(vehicles, &c.Vehicles)
		fromJSON(overrides, &c.DriverOverrides)
		fromJSON(periods, &c.CityPeriods)
		fromJSON(schedules, &c.CitySchedules)
		fromJSON(transits, &c.TransitPeriods)
		fromJSON(vtl, &c.VehicleTimeline)
		fromJSON(dtl, &c.DriverTimeline)
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cs, nil
}

// SaveCampaign upserts one campaign inside a transaction.
func (p *Postgres) SaveCampaign(ctx context.Context, c *models.Campaign) error {
	cols := []any{}
	for _, v := range []any{c.DailyDistanceKm, c.Vehicles, c.DriverOverrides, c.CityPeriods, c.CitySchedules, c.TransitPeriods, c.VehicleTimeline, c.DriverTimeline} {
		raw, err := toJSON(v)
		if err != nil {
			return fmt.Errorf("encode campaign %s: %w", c.ID, err)
		}
		cols = append(cols, raw)
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO campaigns (
        id, name, client, po_number, status, campaign_mode, start_date, end_date,
        exclusive, spot_duration_sec, loop_duration_sec, avg_speed_kmh, stationing_min_per_hour,
        daily_distance_km, known_distance_total_km, cost_per_km, fixed_costs, expected_revenue,
        vehicles, driver_overrides, daily_hours, city_periods, city_schedules, transit_periods,
        vehicle_timeline, driver_timeline, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
        ON CONFLICT (id) DO UPDATE SET
        name=EXCLUDED.name, client=EXCLUDED.client, po_number=EXCLUDED.po_number,
        status=EXCLUDED.status, campaign_mode=EXCLUDED.campaign_mode,
        start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date, exclusive=EXCLUDED.exclusive,
        spot_duration_sec=EXCLUDED.spot_duration_sec, loop_duration_sec=EXCLUDED.loop_duration_sec,
        avg_speed_kmh=EXCLUDED.avg_speed_kmh, stationing_min_per_hour=EXCLUDED.stationing_min_per_hour,
        daily_distance_km=EXCLUDED.daily_distance_km, known_distance_total_km=EXCLUDED.known_distance_total_km,
        cost_per_km=EXCLUDED.cost_per_km, fixed_costs=EXCLUDED.fixed_costs,
        expected_revenue=EXCLUDED.expected_revenue, vehicles=EXCLUDED.vehicles,
        driver_overrides=EXCLUDED.driver_overrides, daily_hours=EXCLUDED.daily_hours,
        city_periods=EXCLUDED.city_periods, city_schedules=EXCLUDED.city_schedules,
        transit_periods=EXCLUDED.transit_periods, vehicle_timeline=EXCLUDED.vehicle_timeline,
        driver_timeline=EXCLUDED.driver_timeline, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Name, c.Client, c.PONumber, c.Status, c.Mode, c.StartDate, c.EndDate,
		c.Exclusive, c.SpotDurationSec, c.LoopDurationSec, c.AvgSpeedKmh, c.StationingMinPerHour,
		cols[0], c.KnownDistanceTotalKm, c.CostPerKm, c.FixedCosts, c.ExpectedRevenue,
		cols[1], cols[2], c.DailyHours, cols[3], cols[4], cols[5], cols[6], cols[7],
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		return &models.IntegrityError{Op: "save campaign " + c.ID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit campaign %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCampaign removes a campaign; the FK cascade removes its spots.
func (p *Postgres) DeleteCampaign(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return &models.IntegrityError{Op: "delete campaign " + id, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// LoadSpots retrieves every spot.
func (p *Postgres) LoadSpots(ctx context.Context) ([]models.Spot, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, campaign_id, idx, name, file_path, status,
        duration_sec, active, notes, target_cities, target_vehicles, spot_periods, spot_schedules,
        created_at, updated_at FROM spots`)
	if err != nil {
		return nil, fmt.Errorf("query spots: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sps []models.Spot
	for rows.Next() {
		var sp models.Spot
		var cities, vehicles, periods, schedules sql.NullString
		if err := rows.Scan(&sp.ID, &sp.CampaignID, &sp.Index, &sp.Name, &sp.FilePath, &sp.Status,
			&sp.DurationSec, &sp.Active, &sp.Notes, &cities, &vehicles, &periods, &schedules,
			&sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan spot: %w", err)
		}
		fromJSON(cities, &sp.TargetCities)
		fromJSON(vehicles, &sp.TargetVehicles)
		fromJSON(periods, &sp.SpotPeriods)
		fromJSON(schedules, &sp.SpotSchedules)
		sps = append(sps, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sps, nil
}

// SaveSpot upserts one spot.
func (p *Postgres) SaveSpot(ctx context.Context, sp *models.Spot) error {
	cols := []any{}
	for _, v := range []any{sp.TargetCities, sp.TargetVehicles, sp.SpotPeriods, sp.SpotSchedules} {
		raw, err := toJSON(v)
		if err != nil {
			return fmt.Errorf("encode spot %s: %w", sp.ID, err)
		}
		cols = append(cols, raw)
	}
	_, err := p.DB.ExecContext(ctx, `INSERT INTO spots (id, campaign_id, idx, name, file_path,
        status, duration_sec, active, notes, target_cities, target_vehicles, spot_periods,
        spot_schedules, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (id) DO UPDATE SET
        campaign_id=EXCLUDED.campaign_id, idx=EXCLUDED.idx, name=EXCLUDED.name,
        file_path=EXCLUDED.file_path, status=EXCLUDED.status, duration_sec=EXCLUDED.duration_sec,
        active=EXCLUDED.active, notes=EXCLUDED.notes, target_cities=EXCLUDED.target_cities,
        target_vehicles=EXCLUDED.target_vehicles, spot_periods=EXCLUDED.spot_periods,
        spot_schedules=EXCLUDED.spot_schedules, updated_at=EXCLUDED.updated_at`,
		sp.ID, sp.CampaignID, sp.Index, sp.Name, sp.FilePath, sp.Status, sp.DurationSec,
		sp.Active, sp.Notes, cols[0], cols[1], cols[2], cols[3], sp.CreatedAt, sp.UpdatedAt)
	if err != nil {
		return &models.IntegrityError{Op: "save spot " + sp.ID, Err: err}
	}
	return nil
}

// DeleteSpot removes one spot.
func (p *Postgres) DeleteSpot(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM spots WHERE id=$1`, id)
	if err != nil {
		return &models.IntegrityError{Op: "delete spot " + id, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("spot %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// LoadVehicles retrieves the fleet.
func (p *Postgres) LoadVehicles(ctx context.Context) ([]models.Vehicle, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, registration, status, history,
        rca_expiry, itp_expiry, rovinieta_expiry, casco_expiry, mileage_km, generator_hours,
        driver_id FROM vehicles`)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var vs []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		var history sql.NullString
		var rca, itp, rov, casco sql.NullTime
		if err := rows.Scan(&v.ID, &v.Name, &v.Registration, &v.Status, &history,
			&rca, &itp, &rov, &casco, &v.MileageKm, &v.GeneratorHours, &v.DriverID); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		fromJSON(history, &v.History)
		v.RCAExpiry = nullableTime(rca)
		v.ITPExpiry = nullableTime(itp)
		v.RovinietaExpiry = nullableTime(rov)
		v.CascoExpiry = nullableTime(casco)
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return vs, nil
}

// SaveVehicle upserts one vehicle.
func (p *Postgres) SaveVehicle(ctx context.Context, v *models.Vehicle) error {
	history, err := toJSON(v.History)
	if err != nil {
		return fmt.Errorf("encode vehicle %s: %w", v.ID, err)
	}
	_, err = p.DB.ExecContext(ctx, `INSERT INTO vehicles (id, name, registration, status, history,
        rca_expiry, itp_expiry, rovinieta_expiry, casco_expiry, mileage_km, generator_hours, driver_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (id) DO UPDATE SET
        name=EXCLUDED.name, registration=EXCLUDED.registration, status=EXCLUDED.status,
        history=EXCLUDED.history, rca_expiry=EXCLUDED.rca_expiry, itp_expiry=EXCLUDED.itp_expiry,
        rovinieta_expiry=EXCLUDED.rovinieta_expiry, casco_expiry=EXCLUDED.casco_expiry,
        mileage_km=EXCLUDED.mileage_km, generator_hours=EXCLUDED.generator_hours,
        driver_id=EXCLUDED.driver_id`,
		v.ID, v.Name, v.Registration, v.Status, history,
		v.RCAExpiry, v.ITPExpiry, v.RovinietaExpiry, v.CascoExpiry,
		v.MileageKm, v.GeneratorHours, v.DriverID)
	if err != nil {
		return &models.IntegrityError{Op: "save vehicle " + v.ID, Err: err}
	}
	return nil
}

// LoadDrivers retrieves all drivers.
func (p *Postgres) LoadDrivers(ctx context.Context) ([]models.Driver, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, phone, email, licence, status, history,
        vehicle_id, assignments, leave FROM drivers`)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ds []models.Driver
	for rows.Next() {
		var d models.Driver
		var history, assignments, leave sql.NullString
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.Email, &d.Licence, &d.Status, &history,
			&d.VehicleID, &assignments, &leave); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		fromJSON(history, &d.History)
		fromJSON(assignments, &d.Assignments)
		fromJSON(leave, &d.Leave)
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ds, nil
}

// SaveDriver upserts one driver.
func (p *Postgres) SaveDriver(ctx context.Context, d *models.Driver) error {
	cols := []any{}
	for _, v := range []any{d.History, d.Assignments, d.Leave} {
		raw, err := toJSON(v)
		if err != nil {
			return fmt.Errorf("encode driver %s: %w", d.ID, err)
		}
		cols = append(cols, raw)
	}
	_, err := p.DB.ExecContext(ctx, `INSERT INTO drivers (id, name, phone, email, licence, status,
        history, vehicle_id, assignments, leave)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO UPDATE SET
        name=EXCLUDED.name, phone=EXCLUDED.phone, email=EXCLUDED.email, licence=EXCLUDED.licence,
        status=EXCLUDED.status, history=EXCLUDED.history, vehicle_id=EXCLUDED.vehicle_id,
        assignments=EXCLUDED.assignments, leave=EXCLUDED.leave`,
		d.ID, d.Name, d.Phone, d.Email, d.Licence, d.Status,
		cols[0], d.VehicleID, cols[1], cols[2])
	if err != nil {
		return &models.IntegrityError{Op: "save driver " + d.ID, Err: err}
	}
	return nil
}

// LoadDocuments retrieves all documents.
func (p *Postgres) LoadDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, owner_type, owner_id, doc_type, issue_date,
        expiry, file_path, notes FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var issue, expiry sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.OwnerType, &doc.OwnerID, &doc.DocType, &issue,
			&expiry, &doc.FilePath, &doc.Notes); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.IssueDate = nullableTime(issue)
		doc.Expiry = nullableTime(expiry)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return docs, nil
}

// SaveDocument upserts one document.
func (p *Postgres) SaveDocument(ctx context.Context, doc *models.Document) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO documents (id, owner_type, owner_id, doc_type,
        issue_date, expiry, file_path, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET
        owner_type=EXCLUDED.owner_type, owner_id=EXCLUDED.owner_id, doc_type=EXCLUDED.doc_type,
        issue_date=EXCLUDED.issue_date, expiry=EXCLUDED.expiry, file_path=EXCLUDED.file_path,
        notes=EXCLUDED.notes`,
		doc.ID, doc.OwnerType, doc.OwnerID, doc.DocType, doc.IssueDate, doc.Expiry,
		doc.FilePath, doc.Notes)
	if err != nil {
		return &models.IntegrityError{Op: "save document " + doc.ID, Err: err}
	}
	return nil
}

// DeleteDocument removes one document row.
func (p *Postgres) DeleteDocument(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return &models.IntegrityError{Op: "delete document " + id, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// LoadMaintenance retrieves all maintenance records.
func (p *Postgres) LoadMaintenance(ctx context.Context) ([]models.MaintenanceRecord, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, owner_type, owner_id, service_type, at_km,
        at_hours, expiry_date, expiry_km, expiry_hours, notes FROM maintenance_records`)
	if err != nil {
		return nil, fmt.Errorf("query maintenance: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var recs []models.MaintenanceRecord
	for rows.Next() {
		var rec models.MaintenanceRecord
		var expiry sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.OwnerType, &rec.OwnerID, &rec.ServiceType, &rec.AtKm,
			&rec.AtHours, &expiry, &rec.ExpiryKm, &rec.ExpiryHours, &rec.Notes); err != nil {
			return nil, fmt.Errorf("scan maintenance record: %w", err)
		}
		rec.ExpiryDate = nullableTime(expiry)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return recs, nil
}

// SaveMaintenance upserts one maintenance record.
func (p *Postgres) SaveMaintenance(ctx context.Context, rec *models.MaintenanceRecord) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO maintenance_records (id, owner_type, owner_id,
        service_type, at_km, at_hours, expiry_date, expiry_km, expiry_hours, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO UPDATE SET
        owner_type=EXCLUDED.owner_type, owner_id=EXCLUDED.owner_id,
        service_type=EXCLUDED.service_type, at_km=EXCLUDED.at_km, at_hours=EXCLUDED.at_hours,
        expiry_date=EXCLUDED.expiry_date, expiry_km=EXCLUDED.expiry_km,
        expiry_hours=EXCLUDED.expiry_hours, notes=EXCLUDED.notes`,
		rec.ID, rec.OwnerType, rec.OwnerID, rec.ServiceType, rec.AtKm, rec.AtHours,
		rec.ExpiryDate, rec.ExpiryKm, rec.ExpiryHours, rec.Notes)
	if err != nil {
		return &models.IntegrityError{Op: "save maintenance " + rec.ID, Err: err}
	}
	return nil
}

// LoadScheduleEntries retrieves availability entries grouped by owner.
func (p *Postgres) LoadScheduleEntries(ctx context.Context, ownerType models.OwnerType, ownerID string) ([]models.ScheduleEntry, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, start_date, end_date, event_type, details,
        origin, destination FROM schedule_entries WHERE owner_type=$1 AND owner_id=$2
        ORDER BY start_date`, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query schedule entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []models.ScheduleEntry
	for rows.Next() {
		var e models.ScheduleEntry
		if err := rows.Scan(&e.ID, &e.StartDate, &e.EndDate, &e.EventType, &e.Details,
			&e.Origin, &e.Destination); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// SaveScheduleEntry upserts one availability entry.
func (p *Postgres) SaveScheduleEntry(ctx context.Context, ownerType models.OwnerType, ownerID string, e *models.ScheduleEntry) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO schedule_entries (id, owner_type, owner_id,
        start_date, end_date, event_type, details, origin, destination)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO UPDATE SET
        start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date,
        event_type=EXCLUDED.event_type, details=EXCLUDED.details, origin=EXCLUDED.origin,
        destination=EXCLUDED.destination`,
		e.ID, ownerType, ownerID, e.StartDate, e.EndDate, e.EventType, e.Details,
		e.Origin, e.Destination)
	if err != nil {
		return &models.IntegrityError{Op: "save schedule entry " + e.ID, Err: err}
	}
	return nil
}

// LoadSettings reads the settings document, tolerating a missing row.
func (p *Postgres) LoadSettings(ctx context.Context) (config.Settings, error) {
	var raw []byte
	err := p.DB.QueryRowContext(ctx, `SELECT document FROM settings WHERE id=1`).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		return config.DefaultSettings(), nil
	case err != nil:
		return config.DefaultSettings(), fmt.Errorf("query settings: %w", err)
	}
	return config.ParseSettings(raw), nil
}

// SaveSettings replaces the settings document.
func (p *Postgres) SaveSettings(ctx context.Context, s config.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if _, err := p.DB.ExecContext(ctx, `INSERT INTO settings (id, document) VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET document=EXCLUDED.document`, raw); err != nil {
		return &models.IntegrityError{Op: "save settings", Err: err}
	}
	return nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
