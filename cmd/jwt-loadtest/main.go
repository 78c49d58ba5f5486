// Command jwt-loadtest measures signing and verification throughput against
// a local JWKS issuer, optionally rotating its keys while verifiers run.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"flag"
	"fmt"
	mrand "math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/MrEthical07/goJWT/jwt"
	"github.com/MrEthical07/goJWT/keys"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		tokens      = flag.Int("tokens", 10000, "number of tokens to sign")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "verify operations")
		rotateEvery = flag.Duration("rotate-every", 0, "rotate the issuer key at this interval during the verify phase; 0 disables")
		cacheTime   = flag.Duration("cache-time", 5*time.Second, "verifier JWKS cache time")
		redisAddr   = flag.String("redis-addr", "", "redis address for JWKS snapshots; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *tokens <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "tokens, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	iss, err := newIssuer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "issuer setup failed: %v\n", err)
		os.Exit(1)
	}
	defer iss.srv.Close()

	bundle, err := keys.NewRemoteBundle(iss.srv.URL,
		keys.WithCacheTime(*cacheTime),
		keys.WithSnapshotStore(keys.NewRedisSnapshotStore(client, "loadtest:jwks:", time.Hour)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bundle setup failed: %v\n", err)
		os.Exit(1)
	}
	verifierAlg, err := algorithm.WithProvider(algorithm.RS256, keys.NewProvider(bundle, ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "verifier setup failed: %v\n", err)
		os.Exit(1)
	}
	verifier, err := jwt.Require(verifierAlg).
		WithLeeway(30).
		AcceptIssuers("https://loadtest.local").
		WithKeySource(bundle).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verifier setup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("signing %d tokens...\n", *tokens)
	signed, signStats := runSignPhase(iss, *tokens, *concurrency)

	stop := make(chan struct{})
	if *rotateEvery > 0 {
		go iss.rotateLoop(*rotateEvery, stop)
	}
	verifyStats := runVerifyPhase(ctx, verifier, signed, *ops, *concurrency)
	close(stop)

	fmt.Println("---- results ----")
	printStats("sign", signStats)
	printStats("verify", verifyStats)
	fmt.Printf("jwks: fetches=%d not_modified=%d keys=%d rotations=%d\n",
		iss.fetches.Load(), iss.notModified.Load(), bundle.Len(), iss.rotations.Load())
}

// issuer signs with its current key and serves every key it has ever used,
// newest first, so older tokens keep verifying.
type issuer struct {
	mu          sync.RWMutex
	current     *algorithm.Algorithm
	kid         string
	published   []keys.Key
	body        []byte
	etag        string
	srv         *httptest.Server
	fetches     atomic.Int64
	notModified atomic.Int64
	rotations   atomic.Int64
}

func newIssuer() (*issuer, error) {
	iss := &issuer{}
	if err := iss.rotate(); err != nil {
		return nil, err
	}
	iss.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		iss.fetches.Add(1)
		iss.mu.RLock()
		defer iss.mu.RUnlock()
		if r.Header.Get("If-None-Match") == iss.etag {
			iss.notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", iss.etag)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(iss.body)
	}))
	return iss, nil
}

func (i *issuer) rotate() error {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}
	n := i.rotations.Add(1)
	kid := "k" + strconv.FormatInt(n, 10)
	key, err := keys.NewKey(kid, keys.UseSig, keys.RSAMaterial{Public: &priv.PublicKey})
	if err != nil {
		return err
	}
	alg, err := algorithm.RSA256(&priv.PublicKey, priv)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	published := append([]keys.Key{key}, i.published...)
	body, err := keys.MarshalJWKS(published, false)
	if err != nil {
		return err
	}
	i.current, i.kid, i.published, i.body = alg, kid, published, body
	i.etag = `"` + kid + `"`
	return nil
}

func (i *issuer) rotateLoop(every time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := i.rotate(); err != nil {
				fmt.Fprintf(os.Stderr, "rotate failed: %v\n", err)
			}
		}
	}
}

func (i *issuer) sign(n int) (string, error) {
	i.mu.RLock()
	alg, kid := i.current, i.kid
	i.mu.RUnlock()

	now := time.Now()
	return jwt.NewBuilder(jwt.ClaimIssuer, jwt.ClaimSubject).
		WithIssuer("https://loadtest.local").
		WithSubject("user-" + strconv.Itoa(n)).
		WithIssuedAt(now).
		WithExpiresAt(now.Add(time.Hour)).
		WithKeyID(kid).
		Sign(alg)
}

func runSignPhase(iss *issuer, count, concurrency int) ([]string, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		out       = make([]string, count)
		latencies = make([]time.Duration, 0, count)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= count {
					return
				}
				t0 := time.Now()
				token, err := iss.sign(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				out[i] = token
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return out, computeStats(time.Since(start), latencies, failures)
}

func runVerifyPhase(ctx context.Context, verifier *jwt.Verifier, tokens []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				token := tokens[r.Intn(len(tokens))]
				t0 := time.Now()
				_, err := verifier.Verify(ctx, token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
