package goJWT

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/MrEthical07/goJWT/jwt"
)

// DefaultConfig returns the defaults with a freshly generated HS256 secret,
// ready for a single process that both issues and verifies tokens.
func DefaultConfig() Config {
	cfg := defaultConfig()
	cfg.Token.Algorithm = algorithm.HS256
	cfg.Token.Secret = randomSecret(32)
	return cfg
}

// HighSecurityConfig uses ES256 with a generated key pair, short token
// lifetimes, strict ETag handling and production validation.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.ProductionMode = true
	cfg.Token.Algorithm = algorithm.ES256
	cfg.Token.TTL = 5 * time.Minute
	cfg.Token.Leeway = 10 * time.Second
	cfg.Token.Audience = []string{"default"}
	cfg.Token.RequiredClaims = []string{jwt.ClaimJWTID, jwt.ClaimIssuer, jwt.ClaimSubject, jwt.ClaimIssuedAt}
	cfg.Token.PrivateKeyPEM = generateECPEM()
	cfg.Keys.StrictETag = true
	cfg.Keys.RetentionWindow = 6 * time.Hour
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = true
	cfg.Metrics.Enabled = true
	return cfg
}

// HighThroughputConfig favours verification speed: HS256, no latency
// histograms and a longer JWKS cache.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.TTL = 10 * time.Minute
	cfg.Keys.CacheTime = 15 * time.Minute
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = false
	return cfg
}

func randomSecret(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("goJWT: crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func generateECPEM() string {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic("goJWT: generate ES256 key: " + err.Error())
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		panic("goJWT: marshal ES256 key: " + err.Error())
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}
