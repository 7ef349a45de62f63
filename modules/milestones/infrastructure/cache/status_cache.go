package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
)

const DefaultStatusPrefix = "milestones:status:v1"

// StatusCache stores the current status event of each request under its own
// key so entries expire independently.
type StatusCache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewStatusCache(client redis.UniversalClient, prefix string, ttl time.Duration) *StatusCache {
	if prefix == "" {
		prefix = DefaultStatusPrefix
	}
	return &StatusCache{redis: client, prefix: prefix, ttl: ttl}
}

type cachedEvent struct {
	ID         int64     `json:"id"`
	StatusCode string    `json:"status_code"`
	OccurredAt time.Time `json:"occurred_at"`
	Reason     *string   `json:"reason,omitempty"`
}

func encodeEvent(ev statushistory.Event) ([]byte, error) {
	return json.Marshal(cachedEvent{
		ID:         ev.ID,
		StatusCode: string(ev.StatusCode),
		OccurredAt: ev.OccurredAt,
		Reason:     ev.Reason,
	})
}

func decodeEvent(requestID uuid.UUID, raw string) (statushistory.Event, error) {
	var c cachedEvent
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return statushistory.Event{}, err
	}
	return statushistory.Event{
		ID:         c.ID,
		RequestID:  requestID,
		StatusCode: statushistory.NormalizeCode(c.StatusCode),
		OccurredAt: c.OccurredAt,
		Reason:     c.Reason,
	}, nil
}

func (c *StatusCache) key(requestID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", c.prefix, requestID)
}

func (c *StatusCache) GetMany(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID]statushistory.Event, error) {
	out := make(map[uuid.UUID]statushistory.Event, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(requestIDs))
	for i, id := range requestIDs {
		keys[i] = c.key(id)
	}
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		ev, err := decodeEvent(requestIDs[i], raw)
		if err != nil {
			// A corrupt entry is treated as a miss and overwritten on the next SetMany.
			continue
		}
		out[requestIDs[i]] = ev
	}
	return out, nil
}

func (c *StatusCache) SetMany(ctx context.Context, events map[uuid.UUID]statushistory.Event) error {
	if len(events) == 0 {
		return nil
	}
	pipe := c.redis.Pipeline()
	for id, ev := range events {
		payload, err := encodeEvent(ev)
		if err != nil {
			return err
		}
		pipe.Set(ctx, c.key(id), payload, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *StatusCache) Invalidate(ctx context.Context, requestIDs ...uuid.UUID) error {
	if len(requestIDs) == 0 {
		return nil
	}
	keys := make([]string, len(requestIDs))
	for i, id := range requestIDs {
		keys[i] = c.key(id)
	}
	return c.redis.Del(ctx, keys...).Err()
}
