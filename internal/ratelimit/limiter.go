package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ipv-vendor-gateway/internal/logging"
)

// CounterStore increments a fixed-window counter and reports the count
// after the increment. Implementations must make the increment atomic
// so concurrent requests cannot slip past the limit.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter enforces a fixed-window request limit per license
type Limiter struct {
	store  CounterStore
	logger *logging.Logger

	MaxRequests int
	Window      time.Duration
}

// Result describes the outcome of a limit check
type Result struct {
	Allowed   bool
	Count     int64
	Limit     int
	Remaining int
}

// NewLimiter creates a rate limiter
func NewLimiter(store CounterStore, maxRequests, windowSecs int, logger *logging.Logger) *Limiter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Limiter{
		store:       store,
		logger:      logger.WithComponent("ratelimit"),
		MaxRequests: maxRequests,
		Window:      time.Duration(windowSecs) * time.Second,
	}
}

// Allow counts this request against the license's window and reports
// whether it is within the limit. Store failures fail open so a Redis
// outage does not take the gateway down with it.
func (l *Limiter) Allow(ctx context.Context, licenseID string) (*Result, error) {
	key := fmt.Sprintf("ipv:ratelimit:%s", licenseID)

	count, err := l.store.Incr(ctx, key, l.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", "error", err)
		return &Result{Allowed: true, Limit: l.MaxRequests, Remaining: l.MaxRequests}, nil
	}

	remaining := l.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(l.MaxRequests),
		Count:     count,
		Limit:     l.MaxRequests,
		Remaining: remaining,
	}, nil
}

// RedisStore backs the limiter with Redis INCR and EXPIRE
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed counter store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr increments the counter and starts the window on first hit
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// MemoryStore is an in-process counter store for single-instance
// deployments and tests
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

// NewMemoryStore creates an in-memory counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*memoryWindow)}
}

// Incr increments the counter, resetting expired windows
func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.expires) {
		w = &memoryWindow{expires: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}
