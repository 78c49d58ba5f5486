package keys

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTime is how long a remote key set stays fresh after a fetch.
const DefaultCacheTime = 300 * time.Second

// RefreshOutcome classifies a completed refresh attempt.
type RefreshOutcome uint8

const (
	RefreshUpdated RefreshOutcome = iota
	RefreshNotModified
	RefreshFailed
)

func (o RefreshOutcome) String() string {
	switch o {
	case RefreshUpdated:
		return "updated"
	case RefreshNotModified:
		return "not_modified"
	default:
		return "failed"
	}
}

// RefreshEvent is reported to an Observer after every refresh attempt.
type RefreshEvent struct {
	Source     string
	Outcome    RefreshOutcome
	StatusCode int
	Keys       int
	// Rotated counts keys that became inactive during this refresh.
	Rotated  int
	Err      error
	Duration time.Duration
}

// Observer receives bundle lifecycle events. Calls happen on the goroutine
// that performed the work and must not block.
type Observer interface {
	Refreshed(ctx context.Context, ev RefreshEvent)
	Pruned(ctx context.Context, source string, removed int)
}

type options struct {
	cacheTime  time.Duration
	fetcher    Fetcher
	client     *http.Client
	verifyTLS  bool
	store      SnapshotStore
	clock      func() time.Time
	log        *zap.Logger
	observer   Observer
	strictETag bool
	uses       []Use
	kid        string
	missLimit  MissLimiter

	refreshTimeout time.Duration
}

func defaultOptions() options {
	return options{
		cacheTime: DefaultCacheTime,
		verifyTLS: true,

		refreshTimeout: defaultFetchTimeout,
		clock:     time.Now,
		log:       zap.NewNop(),
	}
}

// Option configures a Bundle.
type Option func(*options)

// WithRefreshTimeout bounds one shared refresh, snapshot reads and writes
// included. Callers leaving early do not cancel the refresh, so this is what
// stops a hung source. Non-positive values keep the default of 10s.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

// WithCacheTime sets how long a remote key set is considered fresh.
func WithCacheTime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cacheTime = d
		}
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithHTTPClient sets the client used by the default fetcher.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithVerifyTLS(false) disables certificate checks on the default client.
func WithVerifyTLS(verify bool) Option {
	return func(o *options) { o.verifyTLS = verify }
}

// WithSnapshotStore persists every fetched key set and seeds empty bundles
// from it.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(o *options) { o.store = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithStrictETag makes a 200 without an ETag a failed refresh.
func WithStrictETag(strict bool) Option {
	return func(o *options) { o.strictETag = strict }
}

// WithUsage restricts the uses registered for DER keys.
func WithUsage(uses ...Use) Option {
	return func(o *options) { o.uses = append([]Use(nil), uses...) }
}

// WithKeyID names the key loaded from a DER file.
func WithKeyID(kid string) Option {
	return func(o *options) { o.kid = kid }
}

// MissLimiter bounds refetches forced by unknown key ids. Allow is called
// with the bundle source once per miss.
type MissLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// WithMissLimiter throttles kid-miss refetches. Lazy refreshes of a stale
// set are not affected.
func WithMissLimiter(l MissLimiter) Option {
	return func(o *options) { o.missLimit = l }
}
