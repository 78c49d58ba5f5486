package keys

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jwksIssuer serves a mutable key set with ETag support.
type jwksIssuer struct {
	t      *testing.T
	mu     sync.Mutex
	body   []byte
	etag   string
	status int
	hits   atomic.Int32
	srv    *httptest.Server
}

func newJWKSIssuer(t *testing.T, keys ...Key) *jwksIssuer {
	t.Helper()
	iss := &jwksIssuer{t: t}
	iss.publish("v1", keys...)
	iss.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iss.hits.Add(1)
		iss.mu.Lock()
		defer iss.mu.Unlock()
		if iss.status != 0 {
			w.WriteHeader(iss.status)
			return
		}
		if iss.etag != "" && r.Header.Get("If-None-Match") == iss.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if iss.etag != "" {
			w.Header().Set("ETag", iss.etag)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(iss.body)
	}))
	t.Cleanup(iss.srv.Close)
	return iss
}

func (i *jwksIssuer) publish(etag string, keys ...Key) {
	body, err := MarshalJWKS(keys, false)
	require.NoError(i.t, err)
	i.mu.Lock()
	i.body, i.etag, i.status = body, etag, 0
	i.mu.Unlock()
}

func (i *jwksIssuer) fail(status int) {
	i.mu.Lock()
	i.status = status
	i.mu.Unlock()
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManualClock() *manualClock { return &manualClock{now: time.Unix(1_700_000_000, 0)} }

func rs256For(t *testing.T, k Key) *algorithm.Algorithm {
	t.Helper()
	alg, err := algorithm.RSA256(nil, k.SigningKey().(*rsa.PrivateKey))
	require.NoError(t, err)
	return alg
}

func TestRemoteBundleLazyFetch(t *testing.T) {
	k1 := newRSAKey(t, "k1")
	iss := newJWKSIssuer(t, k1)

	b, err := NewRemoteBundle(iss.srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(0), iss.hits.Load())
	assert.Equal(t, StateRemoteStale, b.State())

	keys := b.Keys(context.Background())
	require.Len(t, keys, 1)
	assert.Equal(t, "k1", keys[0].ID())
	assert.Equal(t, int32(1), iss.hits.Load())
	assert.Equal(t, "v1", b.ETag())
	assert.Equal(t, StateRemoteFresh, b.State())

	_ = b.Keys(context.Background())
	assert.Equal(t, int32(1), iss.hits.Load(), "fresh bundle must not refetch")
}

func TestRemoteBundleRotation(t *testing.T) {
	clock := newManualClock()
	k1, k2 := newRSAKey(t, "k1"), newRSAKey(t, "k2")
	iss := newJWKSIssuer(t, k1)
	b, err := NewRemoteBundle(iss.srv.URL, WithClock(clock.Now), WithCacheTime(time.Minute))
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))

	iss.publish("v2", k2)
	clock.Advance(2 * time.Minute)
	rotatedAt := clock.Now()

	keys := b.Keys(context.Background())
	require.Len(t, keys, 2)
	assert.Equal(t, "k2", keys[0].ID())
	assert.True(t, keys[0].Active())
	assert.Equal(t, "k1", keys[1].ID())
	since, inactive := keys[1].InactiveSince()
	assert.True(t, inactive)
	assert.Equal(t, rotatedAt, since)

	// Tokens signed by the rotated key still verify.
	vk, err := b.VerificationKey(context.Background(), rs256For(t, k1), "k1")
	require.NoError(t, err)
	assert.NotNil(t, vk)

	active := b.ActiveKeys(context.Background())
	require.Len(t, active, 1)
	assert.Equal(t, "k2", active[0].ID())

	assert.Equal(t, 0, b.PruneInactive(time.Hour, clock.Now()))
	assert.Equal(t, 1, b.PruneInactive(time.Hour, rotatedAt.Add(2*time.Hour)))
	assert.Equal(t, 1, b.Len())
}

func TestRemoteBundleNotModifiedAdvancesDeadline(t *testing.T) {
	clock := newManualClock()
	iss := newJWKSIssuer(t, newRSAKey(t, "k1"))
	b, err := NewRemoteBundle(iss.srv.URL, WithClock(clock.Now), WithCacheTime(time.Minute))
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))
	updated := b.LastUpdated()

	clock.Advance(2 * time.Minute)
	assert.True(t, b.IsStale())
	require.NoError(t, b.Refresh(context.Background()))

	assert.False(t, b.IsStale())
	assert.Equal(t, updated, b.LastUpdated())
	assert.Equal(t, clock.Now().Add(time.Minute), b.NextRefresh())
	assert.Equal(t, 1, b.Len())
}

type keyView struct {
	kid        string
	thumbprint string
	inactive   time.Time
}

func viewKeys(keys []Key) []keyView {
	out := make([]keyView, len(keys))
	for i, k := range keys {
		since, _ := k.InactiveSince()
		out[i] = keyView{kid: k.ID(), thumbprint: k.Thumbprint(), inactive: since}
	}
	return out
}

func keyByID(t *testing.T, keys []Key, kid string) Key {
	t.Helper()
	for _, k := range keys {
		if k.ID() == kid {
			return k
		}
	}
	t.Fatalf("key %q not in bundle", kid)
	return Key{}
}

func TestRemoteBundleNotModifiedKeepsKeysIdentical(t *testing.T) {
	clock := newManualClock()
	a, b1, c := newRSAKey(t, "a"), newRSAKey(t, "b"), newRSAKey(t, "c")
	iss := newJWKSIssuer(t, a, b1)
	b, err := NewRemoteBundle(iss.srv.URL, WithClock(clock.Now), WithCacheTime(time.Minute))
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))

	// A rotation first, so the list holds an inactive timestamp too.
	iss.publish("v2", a, c)
	clock.Advance(2 * time.Minute)
	require.NoError(t, b.Refresh(context.Background()))
	before := viewKeys(b.Keys(context.Background()))
	require.Len(t, before, 3)

	clock.Advance(2 * time.Minute)
	hits := iss.hits.Load()
	require.NoError(t, b.Refresh(context.Background()))
	require.Equal(t, hits+1, iss.hits.Load())

	assert.Equal(t, before, viewKeys(b.Keys(context.Background())))
	assert.Equal(t, "v2", b.ETag())
	assert.Equal(t, clock.Now().Add(time.Minute), b.NextRefresh())
}

func TestRemoteBundleRotationKeepsSurvivorsActive(t *testing.T) {
	clock := newManualClock()
	a, b1, c := newRSAKey(t, "a"), newRSAKey(t, "b"), newRSAKey(t, "c")
	iss := newJWKSIssuer(t, a, b1)
	b, err := NewRemoteBundle(iss.srv.URL, WithClock(clock.Now), WithCacheTime(time.Minute))
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))

	iss.publish("v2", a, c)
	clock.Advance(2 * time.Minute)
	refreshedAt := clock.Now()
	require.NoError(t, b.Refresh(context.Background()))

	keys := b.Keys(context.Background())
	require.Len(t, keys, 3)

	gotA := keyByID(t, keys, "a")
	assert.True(t, gotA.Active())
	assert.Equal(t, a.Thumbprint(), gotA.Thumbprint())

	gotC := keyByID(t, keys, "c")
	assert.True(t, gotC.Active())
	assert.Equal(t, c.Thumbprint(), gotC.Thumbprint())

	gotB := keyByID(t, keys, "b")
	since, inactive := gotB.InactiveSince()
	require.True(t, inactive)
	assert.Equal(t, refreshedAt, since)
	assert.Equal(t, b1.Thumbprint(), gotB.Thumbprint())
}

func TestPruneInactiveRetentionBoundary(t *testing.T) {
	clock := newManualClock()
	b := NewBundle([]Key{
		newRSAKey(t, "active"),
		newRSAKey(t, "old"),
		newRSAKey(t, "edge"),
		newRSAKey(t, "recent"),
	}, WithClock(clock.Now))

	asOf := clock.Now().Add(150 * time.Second)
	require.Equal(t, 1, b.MarkInactive("old")) // asOf-150s
	clock.Advance(50 * time.Second)
	require.Equal(t, 1, b.MarkInactive("edge")) // asOf-100s
	clock.Advance(50 * time.Second)
	require.Equal(t, 1, b.MarkInactive("recent")) // asOf-50s

	assert.Equal(t, 1, b.PruneInactive(100*time.Second, asOf))

	ids := make([]string, 0, 3)
	for _, k := range b.Keys(context.Background()) {
		ids = append(ids, k.ID())
	}
	assert.ElementsMatch(t, []string{"active", "edge", "recent"}, ids)
	assert.True(t, keyByID(t, b.Keys(context.Background()), "active").Active())

	// Active keys survive any retention.
	b.PruneInactive(0, asOf.Add(time.Hour))
	keys := b.Keys(context.Background())
	require.Len(t, keys, 1)
	assert.Equal(t, "active", keys[0].ID())
}

func TestRemoteBundleFailureKeepsKeys(t *testing.T) {
	clock := newManualClock()
	iss := newJWKSIssuer(t, newRSAKey(t, "k1"))
	b, err := NewRemoteBundle(iss.srv.URL, WithClock(clock.Now), WithCacheTime(time.Minute))
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))

	iss.fail(http.StatusInternalServerError)
	clock.Advance(2 * time.Minute)
	err = b.Refresh(context.Background())
	require.ErrorIs(t, err, ErrUpdateFailed)
	var ue *UpdateError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, "v1", b.ETag())
	assert.ErrorIs(t, b.LastError(), ErrUpdateFailed)

	// Accessors still answer from the previous set.
	assert.Len(t, b.Keys(context.Background()), 1)
}

func TestRemoteBundleStrictETag(t *testing.T) {
	iss := newJWKSIssuer(t, newRSAKey(t, "k1"))
	iss.publish("", newRSAKey(t, "k1"))

	lenient, err := NewRemoteBundle(iss.srv.URL)
	require.NoError(t, err)
	require.NoError(t, lenient.Refresh(context.Background()))
	assert.Equal(t, "", lenient.ETag())
	assert.Equal(t, 1, lenient.Len())

	strict, err := NewRemoteBundle(iss.srv.URL, WithStrictETag(true))
	require.NoError(t, err)
	err = strict.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrMissingETag)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.Equal(t, 0, strict.Len())
}

func TestRemoteBundleMissingKeysMember(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("ETag", "x")
		_, _ = w.Write([]byte(`{"nope":true}`))
	}))
	defer srv.Close()

	b, err := NewRemoteBundle(srv.URL)
	require.NoError(t, err)
	err = b.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrMissingKeys)
	assert.ErrorIs(t, err, ErrUpdateFailed)
}

func TestKeyByIDMissRefreshesOnce(t *testing.T) {
	k1, k2 := newRSAKey(t, "k1"), newRSAKey(t, "k2")
	iss := newJWKSIssuer(t, k1)
	b, err := NewRemoteBundle(iss.srv.URL)
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))

	iss.publish("v2", k1, k2)
	got, err := b.KeyByID(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, k2.Thumbprint(), got.Thumbprint())
	assert.Equal(t, int32(2), iss.hits.Load())

	_, err = b.KeyByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, int32(3), iss.hits.Load())
}

func TestConcurrentRefreshSharesFetch(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	body, err := MarshalJWKS([]Key{newRSAKey(t, "k1")}, false)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("ETag", "v1")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	b, err := NewRemoteBundle(srv.URL)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Keys(context.Background())
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, b.Len())
}

func TestSnapshotSeedsColdStart(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisSnapshotStore(rdb, "", 0)

	iss := newJWKSIssuer(t, newRSAKey(t, "k1"))
	first, err := NewRemoteBundle(iss.srv.URL, WithSnapshotStore(store))
	require.NoError(t, err)
	require.NoError(t, first.Refresh(context.Background()))

	snap, err := store.Load(context.Background(), iss.srv.URL)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "v1", snap.ETag)

	// The issuer is down; a new process still starts with the stored keys.
	iss.fail(http.StatusServiceUnavailable)
	second, err := NewRemoteBundle(iss.srv.URL, WithSnapshotStore(store))
	require.NoError(t, err)
	assert.Error(t, second.Refresh(context.Background()))
	assert.Equal(t, 1, second.Len())
	assert.Equal(t, "v1", second.ETag())
}

func TestMemorySnapshotStore(t *testing.T) {
	store := NewMemorySnapshotStore(0)
	snap, err := store.Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, store.Save(context.Background(), "x", Snapshot{Body: []byte(`{"keys":[]}`), ETag: "e"}))
	snap, err = store.Load(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "e", snap.ETag)
}

func TestNewBundleFromSource(t *testing.T) {
	_, err := NewBundleFromSource("", FormatJWKS)
	assert.ErrorIs(t, err, ErrSourceImport)

	_, err = NewBundleFromSource("ftp://example.com/jwks", FormatJWKS)
	assert.ErrorIs(t, err, ErrSourceImport)

	_, err = NewBundleFromSource(filepath.Join(t.TempDir(), "missing.json"), FormatJWKS)
	assert.ErrorIs(t, err, ErrSourceImport)

	b, err := NewBundleFromSource("https://issuer.example.com/jwks", FormatJWKS)
	require.NoError(t, err)
	assert.True(t, b.IsRemote())
}

func TestFileBundleUnparseableStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwks.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	b, err := NewFileBundle(path, FormatJWKS)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, StateLocalUnloaded, b.State())
	assert.ErrorIs(t, b.LastError(), ErrUpdateFailed)

	body, err := MarshalJWKS([]Key{newRSAKey(t, "k1")}, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, StateLocalLoaded, b.State())
}

func TestWatchFileMarksStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwks.json")
	body, err := MarshalJWKS([]Key{newRSAKey(t, "k1")}, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	b, err := NewFileBundle(path, FormatJWKS)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.WatchFile(ctx))
	assert.False(t, b.IsStale())

	body, err = MarshalJWKS([]Key{newRSAKey(t, "k2")}, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	require.Eventually(t, b.IsStale, 5*time.Second, 20*time.Millisecond)
	ids := b.KeyIDs(context.Background())
	assert.Equal(t, []string{"k2", "k1"}, ids)
	assert.False(t, b.IsStale())

	remote, err := NewRemoteBundle("https://issuer.example.com/jwks")
	require.NoError(t, err)
	assert.ErrorIs(t, remote.WatchFile(ctx), ErrNotFileBundle)
}

func TestBundleMaintenance(t *testing.T) {
	k1, k2 := newRSAKey(t, "k1"), newRSAKey(t, "k2")
	secret, err := NewKey("h1", UseSig, SymmetricMaterial{Secret: []byte("secret")})
	require.NoError(t, err)

	b := NewBundle([]Key{k1})
	assert.Equal(t, StateLocalLoaded, b.State())
	assert.False(t, b.IsStale())
	require.NoError(t, b.Refresh(context.Background()))

	b.Append(k2, secret)
	assert.Equal(t, 3, b.Len())
	assert.Len(t, b.KeysByType(context.Background(), "rsa"), 2)

	assert.Equal(t, 1, b.MarkInactive("k1"))
	assert.Equal(t, 0, b.MarkInactive("k1"))

	alg := rs256For(t, k1)
	_, err = b.SigningKey(context.Background(), alg, "k1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	sk, err := b.SigningKey(context.Background(), alg, "")
	require.NoError(t, err)
	assert.Equal(t, "k2", sk.ID())

	assert.True(t, b.Remove(k2))
	assert.False(t, b.Remove(k2))
	assert.Equal(t, 1, b.RemoveKeysByType("OCT"))
	assert.Equal(t, 1, b.Len())

	_, err = b.KeyByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	doc, err := b.JWKS(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"kid":"k1"`)
}

func TestVerificationKeyWithoutKIDSkipsEncKeys(t *testing.T) {
	k := newRSAKey(t, "")
	enc, err := NewKey("", UseEnc, k.Material())
	require.NoError(t, err)
	b := NewBundle([]Key{enc, k})

	vk, err := b.VerificationKey(context.Background(), rs256For(t, k), "")
	require.NoError(t, err)
	assert.Equal(t, k.VerificationKey(), vk)
}

type recordingObserver struct {
	mu      sync.Mutex
	events  []RefreshEvent
	removed int
}

func (o *recordingObserver) Refreshed(_ context.Context, ev RefreshEvent) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) Pruned(_ context.Context, _ string, removed int) {
	o.mu.Lock()
	o.removed += removed
	o.mu.Unlock()
}

func TestObserverSeesOutcomes(t *testing.T) {
	clock := newManualClock()
	obs := &recordingObserver{}
	iss := newJWKSIssuer(t, newRSAKey(t, "k1"))
	b, err := NewRemoteBundle(iss.srv.URL, WithObserver(obs), WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, b.Refresh(context.Background()))
	require.NoError(t, b.Refresh(context.Background()))
	iss.fail(http.StatusBadGateway)
	require.Error(t, b.Refresh(context.Background()))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.events, 3)
	assert.Equal(t, RefreshUpdated, obs.events[0].Outcome)
	assert.Equal(t, RefreshNotModified, obs.events[1].Outcome)
	assert.Equal(t, RefreshFailed, obs.events[2].Outcome)
	assert.Equal(t, http.StatusBadGateway, obs.events[2].StatusCode)
}

type budgetLimiter struct {
	mu     sync.Mutex
	budget int
	keys   []string
}

func (l *budgetLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.budget == 0 {
		return false, nil
	}
	l.budget--
	return true, nil
}

func TestKeyByIDMissRefreshThrottled(t *testing.T) {
	k1 := newRSAKey(t, "k1")
	iss := newJWKSIssuer(t, k1)
	limiter := &budgetLimiter{budget: 1}
	b, err := NewRemoteBundle(iss.srv.URL, WithMissLimiter(limiter))
	require.NoError(t, err)
	require.NoError(t, b.Refresh(context.Background()))

	_, err = b.KeyByID(context.Background(), "unknown-1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.NotErrorIs(t, err, ErrRefreshThrottled)
	assert.Equal(t, int32(2), iss.hits.Load())

	_, err = b.KeyByID(context.Background(), "unknown-2")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, ErrRefreshThrottled)
	assert.Equal(t, int32(2), iss.hits.Load(), "throttled miss must not fetch")

	got, err := b.KeyByID(context.Background(), "k1")
	require.NoError(t, err, "known keys resolve without the limiter")
	assert.Equal(t, "k1", got.ID())
	assert.Equal(t, []string{iss.srv.URL, iss.srv.URL}, limiter.keys)
}

func TestStatsDoesNotFetch(t *testing.T) {
	clock := newManualClock()
	k1, k2 := newRSAKey(t, "k1"), newRSAKey(t, "k2")
	iss := newJWKSIssuer(t, k1)
	b, err := NewRemoteBundle(iss.srv.URL, WithClock(clock.Now), WithCacheTime(time.Minute))
	require.NoError(t, err)

	st := b.Stats()
	assert.Equal(t, 0, st.Active+st.Inactive)
	assert.Equal(t, StateRemoteStale, st.State)
	assert.Equal(t, int32(0), iss.hits.Load())

	require.NoError(t, b.Refresh(context.Background()))
	iss.publish("v2", k2)
	clock.Advance(2 * time.Minute)
	require.NoError(t, b.Refresh(context.Background()))

	st = b.Stats()
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 1, st.Inactive)
	assert.Equal(t, clock.Now(), st.LastUpdated)
	assert.Equal(t, StateRemoteFresh, st.State)
	assert.Equal(t, int32(2), iss.hits.Load())
}

// hangingFetcher blocks until the refresh context ends.
type hangingFetcher struct {
	calls atomic.Int32
}

func (f *hangingFetcher) Fetch(ctx context.Context, _, _ string) (*FetchResult, error) {
	f.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefreshTimeoutStopsHungSource(t *testing.T) {
	f := &hangingFetcher{}
	b, err := NewRemoteBundle("https://issuer.test/jwks",
		WithFetcher(f), WithRefreshTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	err = b.Refresh(context.Background())
	require.ErrorIs(t, err, ErrUpdateFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	// Accessors without a deadline are bounded the same way.
	start = time.Now()
	assert.Empty(t, b.Keys(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestProviderContextCancelsLookup(t *testing.T) {
	f := &hangingFetcher{}
	b, err := NewRemoteBundle("https://issuer.test/jwks",
		WithFetcher(f), WithRefreshTimeout(3*time.Second))
	require.NoError(t, err)
	p := NewProvider(b, "sig-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = p.PublicKeyByIDContext(ctx, "k1")
	require.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = p.PrivateKeyContext(ctx2)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
