package keys

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle position of a bundle.
type State uint8

const (
	StateLocalUnloaded State = iota
	StateLocalLoaded
	StateRemoteFresh
	StateRemoteStale
)

func (s State) String() string {
	switch s {
	case StateLocalUnloaded:
		return "local_unloaded"
	case StateLocalLoaded:
		return "local_loaded"
	case StateRemoteFresh:
		return "remote_fresh"
	case StateRemoteStale:
		return "remote_stale"
	default:
		return "unknown"
	}
}

// Bundle is an ordered key collection with one origin: memory, a local file
// or a remote JWKS URL. Remote bundles refresh lazily: an accessor that finds
// the set stale refreshes it before answering, and concurrent callers share
// one refresh. Keys that disappear from the source are kept as inactive
// until PruneInactive removes them.
//
// Bundle is safe for concurrent use.
type Bundle struct {
	opts    options
	source  string
	path    string
	format  Format
	remote  bool
	fetcher Fetcher

	group singleflight.Group
	dirty atomic.Bool

	obsMu     sync.RWMutex
	observers []Observer

	mu          sync.RWMutex
	keys        []Key
	etag        string
	lastUpdated time.Time
	nextRefresh time.Time
	lastErr     error
	loaded      bool
}

func newBundle(opts []Option) *Bundle {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &Bundle{opts: o}
	if o.observer != nil {
		b.observers = []Observer{o.observer}
	}
	return b
}

// AddObserver registers obs for refresh and prune events.
func (b *Bundle) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.obsMu.Lock()
	b.observers = append(b.observers, obs)
	b.obsMu.Unlock()
}

func (b *Bundle) notify(fn func(Observer)) {
	b.obsMu.RLock()
	observers := b.observers
	b.obsMu.RUnlock()
	for _, obs := range observers {
		fn(obs)
	}
}

// NewBundle holds keys in memory. It has no source and never refreshes.
func NewBundle(keys []Key, opts ...Option) *Bundle {
	b := newBundle(opts)
	b.keys = append([]Key(nil), keys...)
	b.lastUpdated = b.opts.clock()
	b.loaded = true
	return b
}

// NewFileBundle loads path synchronously. A missing file fails with
// ErrSourceImport; unparseable content is logged and leaves an empty bundle
// that a later Refresh may fill.
func NewFileBundle(path string, format Format, opts ...Option) (*Bundle, error) {
	if format != FormatJWKS && format != FormatDER {
		return nil, fmt.Errorf("%w: unsupported format %s", ErrSourceImport, format)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceImport, err)
	}
	b := newBundle(opts)
	b.source = "file://" + path
	b.path = path
	b.format = format

	if err := b.doRefresh(context.Background()); err != nil {
		b.opts.log.Error("initial key load failed; bundle starts empty",
			zap.String("source", b.source), zap.Error(err))
	}
	return b, nil
}

// FromLocalFile is NewFileBundle with the file type given by name ("jwks",
// "der" or "rsa"). An unknown name fails with ErrUnknownKeyType.
func FromLocalFile(path, fileType string, opts ...Option) (*Bundle, error) {
	format, err := ParseFormat(fileType)
	if err != nil {
		return nil, err
	}
	return NewFileBundle(path, format, opts...)
}

// NewRemoteBundle points at an http or https JWKS URL. Nothing is fetched
// until the first access.
func NewRemoteBundle(rawURL string, opts ...Option) (*Bundle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceImport, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrSourceImport, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrSourceImport, rawURL)
	}
	b := newBundle(opts)
	b.source = rawURL
	b.remote = true
	b.fetcher = b.opts.fetcher
	if b.fetcher == nil {
		b.fetcher = NewHTTPFetcher(b.opts.client, b.opts.verifyTLS)
	}
	return b, nil
}

// NewBundleFromSource dispatches on the source form: http(s) URLs become
// remote bundles, file:// URLs and bare paths become file bundles.
func NewBundleFromSource(source string, format Format, opts ...Option) (*Bundle, error) {
	switch {
	case source == "":
		return nil, fmt.Errorf("%w: empty source", ErrSourceImport)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return NewRemoteBundle(source, opts...)
	case strings.HasPrefix(source, "file://"):
		return NewFileBundle(strings.TrimPrefix(source, "file://"), format, opts...)
	case strings.Contains(source, "://"):
		return nil, fmt.Errorf("%w: unsupported source %q", ErrSourceImport, source)
	default:
		return NewFileBundle(source, format, opts...)
	}
}

func (b *Bundle) Source() string { return b.source }
func (b *Bundle) IsRemote() bool { return b.remote }

func (b *Bundle) ETag() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.etag
}

func (b *Bundle) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdated
}

func (b *Bundle) NextRefresh() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextRefresh
}

// Stats is a point-in-time view of a bundle.
type Stats struct {
	Active      int
	Inactive    int
	LastUpdated time.Time
	State       State
}

// Stats counts keys without triggering a refresh.
func (b *Bundle) Stats() Stats {
	state := b.State()
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Stats{LastUpdated: b.lastUpdated, State: state}
	for _, k := range b.keys {
		if k.Active() {
			st.Active++
		} else {
			st.Inactive++
		}
	}
	return st
}

// LastError is the outcome of the latest refresh, nil after a success.
func (b *Bundle) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

// IsStale reports whether the next accessor call will refresh. Remote sets
// are stale past their deadline or while empty; file bundles are stale after
// WatchFile saw the file change.
func (b *Bundle) IsStale() bool {
	if b.source == "" {
		return false
	}
	if !b.remote {
		return b.dirty.Load()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.opts.clock().After(b.nextRefresh) || len(b.keys) == 0
}

func (b *Bundle) State() State {
	if b.remote {
		if b.IsStale() {
			return StateRemoteStale
		}
		return StateRemoteFresh
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.loaded {
		return StateLocalLoaded
	}
	return StateLocalUnloaded
}

// Refresh reloads the source now, regardless of staleness. Concurrent calls
// share one refresh. A failed refresh leaves keys and ETag untouched.
// In-memory bundles return nil immediately.
func (b *Bundle) Refresh(ctx context.Context) error {
	if b.source == "" {
		return nil
	}
	// The shared refresh must not die with whichever caller started it, but
	// it still gets its own deadline.
	ch := b.group.DoChan("refresh", func() (any, error) {
		shared, cancel := b.sharedContext(ctx)
		defer cancel()
		return nil, b.doRefresh(shared)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sharedContext detaches ctx from its caller's cancellation and deadline
// and applies the bundle's refresh timeout instead.
func (b *Bundle) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.opts.refreshTimeout)
}

func (b *Bundle) ensureFresh(ctx context.Context) {
	if b.IsStale() {
		_ = b.Refresh(ctx)
	}
}

func (b *Bundle) doRefresh(ctx context.Context) error {
	start := time.Now()
	var ev RefreshEvent
	if b.remote {
		ev = b.refreshRemote(ctx)
	} else {
		ev = b.reloadFile()
	}
	ev.Source = b.source
	ev.Duration = time.Since(start)

	b.mu.Lock()
	b.lastErr = ev.Err
	b.mu.Unlock()

	log := b.opts.log.With(zap.String("source", b.source))
	switch ev.Outcome {
	case RefreshUpdated:
		log.Debug("key bundle updated", zap.Int("keys", ev.Keys), zap.Int("rotated", ev.Rotated))
	case RefreshNotModified:
		log.Debug("key bundle not modified", zap.Int("keys", ev.Keys))
	default:
		log.Warn("key bundle refresh failed", zap.Int("status", ev.StatusCode), zap.Error(ev.Err))
	}
	b.notify(func(obs Observer) { obs.Refreshed(ctx, ev) })
	return ev.Err
}

func (b *Bundle) reloadFile() RefreshEvent {
	b.dirty.Store(false)
	data, err := os.ReadFile(b.path)
	if err != nil {
		return RefreshEvent{Outcome: RefreshFailed, Err: fmt.Errorf("%w: %v", ErrSourceImport, err)}
	}

	var fresh []Key
	switch b.format {
	case FormatDER:
		fresh, err = ParseDER(data, b.opts.kid, b.opts.uses...)
	default:
		fresh, err = ParseJWKS(data, b.opts.log)
	}
	if err != nil {
		return RefreshEvent{Outcome: RefreshFailed, Err: &UpdateError{Source: b.source, Err: err}}
	}

	now := b.opts.clock()
	b.mu.Lock()
	rotated := b.commitLocked(fresh, now)
	b.lastUpdated = now
	b.loaded = true
	n := len(b.keys)
	b.mu.Unlock()
	return RefreshEvent{Outcome: RefreshUpdated, Keys: n, Rotated: rotated}
}

func (b *Bundle) refreshRemote(ctx context.Context) RefreshEvent {
	b.seedFromSnapshot(ctx)

	b.mu.RLock()
	etag := b.etag
	b.mu.RUnlock()

	res, err := b.fetcher.Fetch(ctx, b.source, etag)
	if err != nil {
		return RefreshEvent{Outcome: RefreshFailed, Err: &UpdateError{Source: b.source, Err: err}}
	}

	now := b.opts.clock()
	switch res.StatusCode {
	case 304:
		b.mu.Lock()
		b.nextRefresh = now.Add(b.opts.cacheTime)
		n := len(b.keys)
		b.mu.Unlock()
		return RefreshEvent{Outcome: RefreshNotModified, StatusCode: 304, Keys: n}

	case 200:
		fresh, err := ParseJWKS(res.Body, b.opts.log)
		if err != nil {
			return RefreshEvent{Outcome: RefreshFailed, StatusCode: 200,
				Err: &UpdateError{Source: b.source, StatusCode: 200, Err: err}}
		}
		if res.ETag == "" && b.opts.strictETag {
			return RefreshEvent{Outcome: RefreshFailed, StatusCode: 200,
				Err: &UpdateError{Source: b.source, StatusCode: 200, Err: ErrMissingETag}}
		}

		b.mu.Lock()
		rotated := b.commitLocked(fresh, now)
		b.etag = res.ETag
		b.lastUpdated = now
		b.nextRefresh = now.Add(b.opts.cacheTime)
		n := len(b.keys)
		b.mu.Unlock()

		b.saveSnapshot(ctx, Snapshot{Body: res.Body, ETag: res.ETag, FetchedAt: now})
		return RefreshEvent{Outcome: RefreshUpdated, StatusCode: 200, Keys: n, Rotated: rotated}

	default:
		return RefreshEvent{Outcome: RefreshFailed, StatusCode: res.StatusCode,
			Err: &UpdateError{Source: b.source, StatusCode: res.StatusCode}}
	}
}

// seedFromSnapshot fills an empty remote bundle from the snapshot store. The
// deadline is left alone, so the fetch that follows still runs, now
// conditional on the stored ETag.
func (b *Bundle) seedFromSnapshot(ctx context.Context) {
	if b.opts.store == nil {
		return
	}
	b.mu.RLock()
	empty := len(b.keys) == 0
	b.mu.RUnlock()
	if !empty {
		return
	}

	snap, err := b.opts.store.Load(ctx, b.source)
	if err != nil {
		b.opts.log.Warn("snapshot load failed", zap.String("source", b.source), zap.Error(err))
		return
	}
	if snap == nil {
		return
	}
	seeded, err := ParseJWKS(snap.Body, b.opts.log)
	if err != nil {
		b.opts.log.Warn("snapshot unreadable", zap.String("source", b.source), zap.Error(err))
		return
	}

	b.mu.Lock()
	if len(b.keys) == 0 {
		b.keys = seeded
		b.etag = snap.ETag
		b.lastUpdated = snap.FetchedAt
	}
	b.mu.Unlock()
	b.opts.log.Info("key bundle seeded from snapshot",
		zap.String("source", b.source), zap.Int("keys", len(seeded)), zap.Time("fetched_at", snap.FetchedAt))
}

func (b *Bundle) saveSnapshot(ctx context.Context, snap Snapshot) {
	if b.opts.store == nil {
		return
	}
	if err := b.opts.store.Save(ctx, b.source, snap); err != nil {
		b.opts.log.Warn("snapshot save failed", zap.String("source", b.source), zap.Error(err))
	}
}

// commitLocked installs fresh as the key set. Keys of the old set missing
// from fresh are carried over, marked inactive at now. It returns how many
// keys became inactive. b.mu must be held for writing.
func (b *Bundle) commitLocked(fresh []Key, now time.Time) int {
	next, rotated := rotate(b.keys, fresh, now)
	b.keys = next
	return rotated
}

func rotate(old, fresh []Key, at time.Time) ([]Key, int) {
	present := make(map[string]struct{}, len(fresh))
	for _, k := range fresh {
		present[k.identity()] = struct{}{}
	}
	next := make([]Key, 0, len(fresh)+len(old))
	next = append(next, fresh...)
	rotated := 0
	for _, k := range old {
		if _, ok := present[k.identity()]; ok {
			continue
		}
		if k.Active() {
			rotated++
		}
		next = append(next, k.inactivated(at))
	}
	return next, rotated
}

// Keys returns every key, refreshing first if the set is stale.
func (b *Bundle) Keys(ctx context.Context) []Key {
	b.ensureFresh(ctx)
	return b.filter(func(Key) bool { return true })
}

func (b *Bundle) ActiveKeys(ctx context.Context) []Key {
	b.ensureFresh(ctx)
	return b.filter(Key.Active)
}

// KeysByType matches kty case-insensitively and returns a new slice.
func (b *Bundle) KeysByType(ctx context.Context, kty string) []Key {
	b.ensureFresh(ctx)
	return b.filter(func(k Key) bool { return strings.EqualFold(string(k.Type()), kty) })
}

// KeyIDs lists distinct non-empty key ids in bundle order.
func (b *Bundle) KeyIDs(ctx context.Context) []string {
	b.ensureFresh(ctx)
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{}, len(b.keys))
	var out []string
	for _, k := range b.keys {
		if k.kid == "" {
			continue
		}
		if _, ok := seen[k.kid]; ok {
			continue
		}
		seen[k.kid] = struct{}{}
		out = append(out, k.kid)
	}
	return out
}

// Len counts keys without refreshing.
func (b *Bundle) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.keys)
}

// KeyByID returns the key with kid, preferring an active one. On a miss the
// bundle is refreshed once and searched again.
func (b *Bundle) KeyByID(ctx context.Context, kid string) (Key, error) {
	return b.resolve(ctx, kid, nil)
}

// VerificationKey resolves the key for a token signed with alg. It
// implements jwt.KeySource. Without a kid the first usable key wins.
// Inactive keys still verify, which is what makes rotation graceful.
func (b *Bundle) VerificationKey(ctx context.Context, alg *algorithm.Algorithm, kid string) (any, error) {
	k, err := b.resolve(ctx, kid, func(k Key) bool { return k.CanVerify(alg) })
	if err != nil {
		return nil, err
	}
	return k.VerificationKey(), nil
}

// SigningKey returns an active key able to sign with alg. An empty kid
// takes the first one.
func (b *Bundle) SigningKey(ctx context.Context, alg *algorithm.Algorithm, kid string) (Key, error) {
	b.ensureFresh(ctx)
	k, ok := b.lookup(kid, func(k Key) bool { return k.Active() && k.CanSign(alg) })
	if !ok {
		return Key{}, fmt.Errorf("%w: no active %s signing key for kid %q", ErrKeyNotFound, alg, kid)
	}
	return k, nil
}

func (b *Bundle) resolve(ctx context.Context, kid string, match func(Key) bool) (Key, error) {
	b.ensureFresh(ctx)
	if k, ok := b.lookup(kid, match); ok {
		return k, nil
	}
	if b.source == "" {
		return Key{}, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	refreshErr := b.refreshOnMiss(ctx)
	if k, ok := b.lookup(kid, match); ok {
		return k, nil
	}
	notFound := fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	if refreshErr != nil {
		return Key{}, errors.Join(notFound, refreshErr)
	}
	return Key{}, notFound
}

// refreshOnMiss refreshes after a failed lookup. With a miss limiter,
// concurrent misses share one limiter hit and one refresh.
func (b *Bundle) refreshOnMiss(ctx context.Context) error {
	if b.opts.missLimit == nil {
		return b.Refresh(ctx)
	}
	ch := b.group.DoChan("miss", func() (any, error) {
		shared, cancel := b.sharedContext(ctx)
		defer cancel()
		if !b.allowMissRefresh(shared) {
			return nil, ErrRefreshThrottled
		}
		return nil, b.Refresh(shared)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// allowMissRefresh fails open when the limiter itself errors.
func (b *Bundle) allowMissRefresh(ctx context.Context) bool {
	if b.opts.missLimit == nil {
		return true
	}
	ok, err := b.opts.missLimit.Allow(ctx, b.source)
	if err != nil {
		b.opts.log.Warn("kid miss limiter unavailable", zap.String("source", b.source), zap.Error(err))
		return true
	}
	if !ok {
		b.opts.log.Debug("kid miss refetch throttled", zap.String("source", b.source))
	}
	return ok
}

// lookup scans for kid (any key when kid is empty) passing match, preferring
// active keys over inactive ones.
func (b *Bundle) lookup(kid string, match func(Key) bool) (Key, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var fallback Key
	found := false
	for _, k := range b.keys {
		if kid != "" && k.kid != kid {
			continue
		}
		if match != nil && !match(k) {
			continue
		}
		if k.Active() {
			return k, true
		}
		if !found {
			fallback, found = k, true
		}
	}
	return fallback, found
}

func (b *Bundle) filter(keep func(Key) bool) []Key {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Key, 0, len(b.keys))
	for _, k := range b.keys {
		if keep(k) {
			out = append(out, k)
		}
	}
	return out
}

// mutate replaces the key list with fn's result under the write lock.
func (b *Bundle) mutate(fn func(old []Key) []Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = fn(b.keys)
}

// MarkInactive marks every active key with kid inactive as of now and
// returns how many changed.
func (b *Bundle) MarkInactive(kid string) int {
	now := b.opts.clock()
	changed := 0
	b.mutate(func(old []Key) []Key {
		next := make([]Key, len(old))
		for i, k := range old {
			if k.kid == kid && k.Active() {
				k = k.inactivated(now)
				changed++
			}
			next[i] = k
		}
		return next
	})
	return changed
}

// PruneInactive drops keys inactive for longer than retention as of asOf.
// Active keys are never removed.
func (b *Bundle) PruneInactive(retention time.Duration, asOf time.Time) int {
	removed := 0
	b.mutate(func(old []Key) []Key {
		next := make([]Key, 0, len(old))
		for _, k := range old {
			if since, inactive := k.InactiveSince(); inactive && asOf.Sub(since) > retention {
				removed++
				continue
			}
			next = append(next, k)
		}
		return next
	})
	if removed > 0 {
		b.opts.log.Info("pruned inactive keys", zap.String("source", b.source), zap.Int("removed", removed))
	}
	b.notify(func(obs Observer) { obs.Pruned(context.Background(), b.source, removed) })
	return removed
}

func (b *Bundle) Append(keys ...Key) {
	b.mutate(func(old []Key) []Key {
		next := make([]Key, 0, len(old)+len(keys))
		next = append(next, old...)
		return append(next, keys...)
	})
}

// Remove drops every entry with the same identity as key.
func (b *Bundle) Remove(key Key) bool {
	removed := false
	id := key.identity()
	b.mutate(func(old []Key) []Key {
		next := make([]Key, 0, len(old))
		for _, k := range old {
			if k.identity() == id {
				removed = true
				continue
			}
			next = append(next, k)
		}
		return next
	})
	return removed
}

// RemoveKeysByType drops every key of type kty (case-insensitive).
func (b *Bundle) RemoveKeysByType(kty string) int {
	removed := 0
	b.mutate(func(old []Key) []Key {
		next := make([]Key, 0, len(old))
		for _, k := range old {
			if strings.EqualFold(string(k.Type()), kty) {
				removed++
				continue
			}
			next = append(next, k)
		}
		return next
	})
	return removed
}

// JWKS serializes the current set. Inactive keys are included so relying
// parties can still verify older tokens.
func (b *Bundle) JWKS(ctx context.Context, includePrivate bool) ([]byte, error) {
	return MarshalJWKS(b.Keys(ctx), includePrivate)
}

func (b *Bundle) String() string {
	return fmt.Sprintf("keys.Bundle{source=%q keys=%d state=%s}", b.source, b.Len(), b.State())
}
