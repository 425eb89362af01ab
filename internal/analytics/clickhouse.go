package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Planning event types recorded by the service.
const (
	EventCampaignSaved   = "campaign_saved"
	EventConflictCheck   = "conflict_check"
	EventReportGenerated = "report_generated"
	EventVehicleSwap     = "vehicle_swap"
)

// AnalyticsService records planning events. Implementations must return
// ErrUnavailable when the underlying storage is not configured instead of
// failing the calling operation.
type AnalyticsService interface {
	// RecordEvent records one planning event with its context.
	RecordEvent(ctx context.Context, eventType, campaignID, userRef string, detail map[string]string) error
	// GetEventsByCampaign returns the event history for one campaign.
	GetEventsByCampaign(ctx context.Context, campaignID string) ([]EventRecord, error)
	Close()
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// EventRecord mirrors a row in the planning_events table.
type EventRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	CampaignID string            `json:"campaign_id"`
	UserRef    string            `json:"user_ref,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// Analytics wraps a ClickHouse connection.
type Analytics struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the planning_events
// table exists. An empty DSN disables the sink.
func InitClickHouse(dsn string) (*Analytics, error) {
	if dsn == "" {
		return nil, nil
	}
	chdb, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	chdb.SetMaxOpenConns(10)
	if err := chdb.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS planning_events (
       timestamp   DateTime,
       event_type  String,
       campaign_id String,
       user_ref    String,
       detail      Map(String, String)
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := chdb.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: chdb}, nil
}

// RecordEvent inserts a single planning event row.
func (a *Analytics) RecordEvent(ctx context.Context, eventType, campaignID, userRef string, detail map[string]string) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if detail == nil {
		detail = map[string]string{}
	}
	stmt := `INSERT INTO planning_events (timestamp, event_type, campaign_id, user_ref, detail) VALUES (?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, time.Now(), eventType, campaignID, userRef, detail); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("event_type", eventType))
		return fmt.Errorf("insert %s event: %w", eventType, err)
	}
	return nil
}

// GetEventsByCampaign returns all events for a campaign ordered by time.
func (a *Analytics) GetEventsByCampaign(ctx context.Context, campaignID string) ([]EventRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, event_type, campaign_id, user_ref, detail FROM planning_events WHERE campaign_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query planning events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.Timestamp, &ev.EventType, &ev.CampaignID, &ev.UserRef, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}
