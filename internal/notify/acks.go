package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ackKeyPrefix = "mobiplan:notify:ack:"

// AckStore remembers which notification ids the operator has dismissed.
// Entries carry a TTL so a persisting condition resurfaces eventually.
type AckStore struct {
	Client *redis.Client
}

// NewAckStore constructs an AckStore.
func NewAckStore(client *redis.Client) *AckStore {
	return &AckStore{Client: client}
}

// Acknowledge suppresses one notification id for the given duration.
func (a *AckStore) Acknowledge(ctx context.Context, id string, ttl time.Duration) error {
	if err := a.Client.Set(ctx, ackKeyPrefix+id, "1", ttl).Err(); err != nil {
		return fmt.Errorf("acknowledging notification %s: %w", id, err)
	}
	return nil
}

// Unacknowledge brings a dismissed notification back.
func (a *AckStore) Unacknowledge(ctx context.Context, id string) error {
	return a.Client.Del(ctx, ackKeyPrefix+id).Err()
}

// Filter drops notifications whose id has been acknowledged. A redis
// failure returns the input unchanged: losing suppression is better than
// losing alerts.
func (a *AckStore) Filter(ctx context.Context, items []Notification) []Notification {
	if a == nil || a.Client == nil || len(items) == 0 {
		return items
	}
	keys := make([]string, len(items))
	for i, n := range items {
		keys[i] = ackKeyPrefix + n.ID
	}
	vals, err := a.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return items
	}
	out := items[:0]
	for i, v := range vals {
		if v == nil {
			out = append(out, items[i])
		}
	}
	return out
}
