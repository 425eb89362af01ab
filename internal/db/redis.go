package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/avasilescu/mobiplan/internal/models"
)

const timelineKeyPrefix = "mobiplan:timeline:"

// RedisStore caches resolved presence timelines keyed by campaign id, so
// repeated conflict checks and report builds skip the resolver.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
	TTL    time.Duration
}

// InitRedis connects to Redis and verifies the connection.
func InitRedis(addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return &RedisStore{Client: client, Ctx: ctx, TTL: ttl}, nil
}

// Close terminates the Redis connection.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}

// GetTimeline returns the cached segments for a campaign, or false on a
// miss. Cache failures count as misses so callers fall back to the
// resolver.
func (r *RedisStore) GetTimeline(ctx context.Context, campaignID string) ([]models.PresenceSegment, bool) {
	if r == nil || r.Client == nil {
		return nil, false
	}
	raw, err := r.Client.Get(ctx, timelineKeyPrefix+campaignID).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("timeline cache read", zap.String("campaign_id", campaignID), zap.Error(err))
		}
		return nil, false
	}
	var segs []models.PresenceSegment
	if err := json.Unmarshal(raw, &segs); err != nil {
		zap.L().Warn("timeline cache decode", zap.String("campaign_id", campaignID), zap.Error(err))
		return nil, false
	}
	return segs, true
}

// SetTimeline caches the resolved segments for a campaign.
func (r *RedisStore) SetTimeline(ctx context.Context, campaignID string, segs []models.PresenceSegment) error {
	if r == nil || r.Client == nil {
		return nil
	}
	raw, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("encode timeline %s: %w", campaignID, err)
	}
	if err := r.Client.Set(ctx, timelineKeyPrefix+campaignID, raw, r.TTL).Err(); err != nil {
		return fmt.Errorf("cache timeline %s: %w", campaignID, err)
	}
	return nil
}

// InvalidateTimeline drops the cached segments after a campaign edit.
func (r *RedisStore) InvalidateTimeline(ctx context.Context, campaignID string) {
	if r == nil || r.Client == nil {
		return
	}
	if err := r.Client.Del(ctx, timelineKeyPrefix+campaignID).Err(); err != nil {
		zap.L().Warn("timeline cache invalidate", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}
