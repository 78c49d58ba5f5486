package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	// Allow records one hit for key and reports whether the window still
	// has budget left.
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter shares its windows between processes.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// NewRedis allows max hits per key every window.
func NewRedis(client redis.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "jwks:miss:"
	}
	return &RedisLimiter{redis: client, prefix: prefix, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.incrementWithTTL(ctx, l.prefix+key)
	if err != nil {
		return false, err
	}
	return count <= int64(l.max), nil
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// MemoryLimiter keeps its windows in process.
type MemoryLimiter struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	max    int
	window time.Duration
}

func NewMemory(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(window, 2*window),
		max:    max,
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Add only succeeds for the first hit, which opens the window.
	if err := l.cache.Add(key, int64(1), l.window); err == nil {
		return l.max >= 1, nil
	}
	count, err := l.cache.IncrementInt64(key, 1)
	if err != nil {
		// The window expired between Add and Increment.
		l.cache.Set(key, int64(1), l.window)
		count = 1
	}
	return count <= int64(l.max), nil
}
