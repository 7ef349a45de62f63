package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const DefaultIDHeader = "X-Webhook-Id"

func deliveryID(r *http.Request, header string) (string, error) {
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" {
		return "", fmt.Errorf("%w: %s header is required", ErrMissingID, header)
	}
	return id, nil
}

// RedisReplayProtector remembers delivery ids for ttl using SET NX.
type RedisReplayProtector struct {
	client redis.UniversalClient
	prefix string
	header string
	ttl    time.Duration
}

func NewRedisReplayProtector(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisReplayProtector {
	if prefix == "" {
		prefix = "webhooks:seen"
	}
	return &RedisReplayProtector{client: client, prefix: prefix, header: DefaultIDHeader, ttl: ttl}
}

func (p *RedisReplayProtector) Check(ctx context.Context, r *http.Request, _ []byte) error {
	id, err := deliveryID(r, p.header)
	if err != nil {
		return err
	}
	fresh, err := p.client.SetNX(ctx, p.prefix+":"+id, 1, p.ttl).Result()
	if err != nil {
		return fmt.Errorf("replay check: %w", err)
	}
	if !fresh {
		return fmt.Errorf("%w: %s", ErrReplayDetected, id)
	}
	return nil
}

// MemoryReplayProtector is a single-process fallback when Redis is not configured.
type MemoryReplayProtector struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	header string
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewMemoryReplayProtector(ttl time.Duration, clock clockwork.Clock) *MemoryReplayProtector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryReplayProtector{seen: map[string]time.Time{}, header: DefaultIDHeader, ttl: ttl, clock: clock}
}

func (p *MemoryReplayProtector) Check(_ context.Context, r *http.Request, _ []byte) error {
	id, err := deliveryID(r, p.header)
	if err != nil {
		return err
	}
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, exp := range p.seen {
		if !now.Before(exp) {
			delete(p.seen, k)
		}
	}
	if _, ok := p.seen[id]; ok {
		return fmt.Errorf("%w: %s", ErrReplayDetected, id)
	}
	p.seen[id] = now.Add(p.ttl)
	return nil
}
