//go:build integration
// +build integration

package test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	goJWT "github.com/MrEthical07/goJWT"
	"github.com/MrEthical07/goJWT/keys"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testIssuer   = "https://issuer.integration"
	testAudience = "integration-api"
)

// jwksServer publishes a key set with an ETag and can simulate an outage.
type jwksServer struct {
	mu   sync.Mutex
	body []byte
	etag string
	down bool
	hits atomic.Int32
	srv  *httptest.Server
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if s.etag != "" && r.Header.Get("If-None-Match") == s.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", s.etag)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.body)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

// publish replaces the served set. Each key is published under its kid.
func (s *jwksServer) publish(t *testing.T, pubs map[string]*rsa.PublicKey) {
	t.Helper()
	var set []keys.Key
	etag := `"`
	for kid, pub := range pubs {
		k, err := keys.NewKey(kid, keys.UseSig, keys.RSAMaterial{Public: pub})
		if err != nil {
			t.Fatalf("new key: %v", err)
		}
		set = append(set, k)
		etag += kid
	}
	body, err := keys.MarshalJWKS(set, false)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	s.mu.Lock()
	s.body, s.etag = body, etag+`"`
	s.mu.Unlock()
}

func (s *jwksServer) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// newRSAIssuer returns an engine signing RS256 tokens under kid.
func newRSAIssuer(t *testing.T, kid string) (*goJWT.Engine, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := goJWT.DefaultConfig()
	cfg.Token.Algorithm = "RS256"
	cfg.Token.Secret = ""
	cfg.Token.Issuer = testIssuer
	cfg.Token.Audience = []string{testAudience}
	cfg.Token.KeyID = kid
	cfg.Token.PrivateKeyPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	}))
	engine, err := goJWT.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("build issuer: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, priv
}

func verifierConfig(source string) goJWT.Config {
	cfg := goJWT.DefaultConfig()
	cfg.Token.Algorithm = "RS256"
	cfg.Token.Secret = ""
	cfg.Token.Issuer = testIssuer
	cfg.Token.Audience = []string{testAudience}
	cfg.Keys.Source = source
	return cfg
}

func newVerifier(t *testing.T, cfg goJWT.Config, rdb redis.UniversalClient) *goJWT.Engine {
	t.Helper()
	b := goJWT.New().WithConfig(cfg)
	if rdb != nil {
		b.WithRedis(rdb)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
