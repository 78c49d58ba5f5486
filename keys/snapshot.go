package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Snapshot is the last good JWKS body of a remote source.
type Snapshot struct {
	Body      []byte    `json:"body"`
	ETag      string    `json:"etag,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotStore keeps JWKS snapshots so a bundle can start with keys before
// its first successful fetch. Load returns (nil, nil) when nothing is stored.
type SnapshotStore interface {
	Load(ctx context.Context, source string) (*Snapshot, error)
	Save(ctx context.Context, source string, snap Snapshot) error
}

// RedisSnapshotStore shares snapshots between processes.
type RedisSnapshotStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshotStore stores snapshots under prefix+source. A ttl of zero
// keeps them until overwritten.
func NewRedisSnapshotStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSnapshotStore {
	if prefix == "" {
		prefix = "jwks:"
	}
	return &RedisSnapshotStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSnapshotStore) Load(ctx context.Context, source string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.prefix+source).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, source string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+source, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// MemorySnapshotStore keeps snapshots in process, for bundles that are
// rebuilt during the process lifetime.
type MemorySnapshotStore struct {
	cache *gocache.Cache
}

func NewMemorySnapshotStore(ttl time.Duration) *MemorySnapshotStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := 10 * time.Minute
	if ttl == gocache.NoExpiration {
		cleanup = 0
	}
	return &MemorySnapshotStore{cache: gocache.New(ttl, cleanup)}
}

func (s *MemorySnapshotStore) Load(_ context.Context, source string) (*Snapshot, error) {
	v, ok := s.cache.Get(source)
	if !ok {
		return nil, nil
	}
	snap := v.(Snapshot)
	snap.Body = append([]byte(nil), snap.Body...)
	return &snap, nil
}

func (s *MemorySnapshotStore) Save(_ context.Context, source string, snap Snapshot) error {
	snap.Body = append([]byte(nil), snap.Body...)
	s.cache.SetDefault(source, snap)
	return nil
}
