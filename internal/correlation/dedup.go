package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupHorizon is how long a correlation id stays marked as processed.
// Longer than the correlation window on purpose: re-submitting the same
// event pair minutes later must still be idempotent.
const DedupHorizon = 5 * time.Minute

// DedupStore records processed correlation ids. Seen marks the id and
// reports whether it was already marked within the horizon.
type DedupStore interface {
	Seen(ctx context.Context, id string, now time.Time) bool
}

// MemoryDedup is the in-process dedup store.
type MemoryDedup struct {
	mu      sync.Mutex
	items   map[string]time.Time
	horizon time.Duration
}

// NewMemoryDedup creates an in-memory dedup store.
func NewMemoryDedup(horizon time.Duration) *MemoryDedup {
	if horizon <= 0 {
		horizon = DedupHorizon
	}
	return &MemoryDedup{
		items:   make(map[string]time.Time),
		horizon: horizon,
	}
}

// Seen marks the id and reports whether it was already seen within the
// horizon.
func (d *MemoryDedup) Seen(_ context.Context, id string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.items[id]; ok && now.Sub(ts) <= d.horizon {
		return true
	}
	d.items[id] = now
	if len(d.items) > 10000 {
		d.compact(now)
	}
	return false
}

func (d *MemoryDedup) compact(now time.Time) {
	for id, ts := range d.items {
		if now.Sub(ts) > d.horizon {
			delete(d.items, id)
		}
	}
}

// Len returns the number of tracked ids.
func (d *MemoryDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// RedisDedup shares the dedup horizon across pipeline replicas via SETNX
// with TTL. Redis errors fail open (treat as not seen): a duplicate alert
// under a Redis outage beats a dropped alert.
type RedisDedup struct {
	client  *redis.Client
	prefix  string
	horizon time.Duration
}

// NewRedisDedup creates a Redis-backed dedup store.
func NewRedisDedup(client *redis.Client, prefix string, horizon time.Duration) *RedisDedup {
	if prefix == "" {
		prefix = "nettriage:dedup:"
	}
	if horizon <= 0 {
		horizon = DedupHorizon
	}
	return &RedisDedup{client: client, prefix: prefix, horizon: horizon}
}

// Seen marks the id and reports whether another replica already processed it.
func (d *RedisDedup) Seen(ctx context.Context, id string, now time.Time) bool {
	ok, err := d.client.SetNX(ctx, d.prefix+id, now.Unix(), d.horizon).Result()
	if err != nil {
		return false
	}
	return !ok
}
