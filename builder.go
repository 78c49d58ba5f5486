package goJWT

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/MrEthical07/goJWT/internal/rate"
	"github.com/MrEthical07/goJWT/jwt"
	"github.com/MrEthical07/goJWT/keys"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. It is single use: a second Build fails with
// ErrBuilderUsed.
type Builder struct {
	config Config
	alg    *algorithm.Algorithm
	bundle *keys.Bundle
	redis  redis.UniversalClient

	auditSink AuditSink
	log       *zap.Logger
	clock     func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSigningAlgorithm supplies a ready algorithm. Its name becomes the
// expected algorithm for verification, overriding Token.Algorithm.
func (b *Builder) WithSigningAlgorithm(alg *algorithm.Algorithm) *Builder {
	b.alg = alg
	return b
}

// WithKeyBundle supplies the bundle verification keys are resolved from.
// Keys.Source is ignored when a bundle is given.
func (b *Builder) WithKeyBundle(bundle *keys.Bundle) *Builder {
	b.bundle = bundle
	return b
}

// WithRedis makes bundles built from Keys.Source share JWKS snapshots
// through Redis instead of process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the time source for issuance, verification and key
// bookkeeping.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. Without
// WithSigningAlgorithm the algorithm comes from Token: the HMAC secret, PEM
// keys, or the key bundle (an oct key for HMAC, a key provider for RSA and
// ECDSA). An HMAC secret taken from a remote bundle is fetched here.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if b.alg != nil {
		cfg.Token.Algorithm = b.alg.Name()
		if b.alg.Family() == algorithm.FamilyNone {
			cfg.Token.AllowNone = true
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	enc, err := jwt.ParseEncoding(cfg.Token.Encoding)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		encoding: enc,
		log:      log,
		clock:    clock,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink, log.Named("audit")),
	}
	fail := func(err error) (*Engine, error) {
		engine.Close()
		return nil, err
	}

	// -------- KEY BUNDLE --------
	bundle := b.bundle
	if bundle != nil {
		bundle.AddObserver(keyObserver{engine: engine})
	} else if cfg.Keys.Source != "" {
		bundle, err = bundleFromConfig(cfg, b.redis, log, clock, keyObserver{engine: engine})
		if err != nil {
			return fail(err)
		}
		if cfg.Keys.WatchFile {
			ctx, cancel := context.WithCancel(context.Background())
			if err := bundle.WatchFile(ctx); err != nil {
				cancel()
				return fail(fmt.Errorf("watch key file: %w", err))
			}
			engine.stopWatch = cancel
		}
	}
	engine.bundle = bundle

	// -------- ALGORITHM --------
	alg := b.alg
	if alg == nil {
		alg, err = algorithmFromConfig(cfg.Token, bundle)
		if err != nil {
			return fail(err)
		}
	}
	engine.alg = alg

	// -------- VERIFIER --------
	verification := jwt.Require(alg).
		WithLeeway(int64(cfg.Token.Leeway / time.Second)).
		WithEncoding(enc).
		WithClock(clock)
	issuers := cfg.Token.AcceptIssuers
	if len(issuers) == 0 && cfg.Token.Issuer != "" {
		issuers = []string{cfg.Token.Issuer}
	}
	if len(issuers) > 0 {
		verification.AcceptIssuers(issuers...)
	}
	if len(cfg.Token.Audience) > 0 {
		verification.AcceptAudience(cfg.Token.Audience...)
	}
	if bundle != nil {
		verification.WithKeySource(bundle)
	}
	verifier, err := verification.Build()
	if err != nil {
		return fail(err)
	}
	engine.verifier = verifier

	b.built = true
	log.Info("token engine ready",
		zap.String("algorithm", alg.Name()),
		zap.String("encoding", enc.String()),
		zap.Bool("key_bundle", bundle != nil))

	return engine, nil
}

func bundleFromConfig(cfg Config, rdb redis.UniversalClient, log *zap.Logger, clock func() time.Time, obs keys.Observer) (*keys.Bundle, error) {
	format, err := keys.ParseFormat(cfg.Keys.Format)
	if err != nil {
		return nil, err
	}

	var store keys.SnapshotStore
	var limiter keys.MissLimiter
	if rdb != nil {
		store = keys.NewRedisSnapshotStore(rdb, cfg.Keys.SnapshotPrefix, cfg.Keys.SnapshotTTL)
		if cfg.Keys.MissRefreshLimit > 0 {
			limiter = rate.NewRedis(rdb, cfg.Keys.SnapshotPrefix+"miss:", cfg.Keys.MissRefreshLimit, cfg.Keys.MissRefreshWindow)
		}
	} else {
		store = keys.NewMemorySnapshotStore(cfg.Keys.SnapshotTTL)
		if cfg.Keys.MissRefreshLimit > 0 {
			limiter = rate.NewMemory(cfg.Keys.MissRefreshLimit, cfg.Keys.MissRefreshWindow)
		}
	}

	opts := []keys.Option{
		keys.WithCacheTime(cfg.Keys.CacheTime),
		keys.WithVerifyTLS(cfg.Keys.VerifyTLS),
		keys.WithStrictETag(cfg.Keys.StrictETag),
		keys.WithSnapshotStore(store),
		keys.WithLogger(log.Named("keys")),
		keys.WithClock(clock),
		keys.WithObserver(obs),
		keys.WithKeyID(cfg.Token.KeyID),
	}
	if limiter != nil {
		opts = append(opts, keys.WithMissLimiter(limiter))
	}
	return keys.NewBundleFromSource(cfg.Keys.Source, format, opts...)
}

func algorithmFromConfig(tc TokenConfig, bundle *keys.Bundle) (*algorithm.Algorithm, error) {
	name := algorithm.Canonical(tc.Algorithm)
	desc, err := algorithm.Lookup(name)
	if err != nil {
		return nil, err
	}

	switch desc.Family {
	case algorithm.FamilyNone:
		return algorithm.None(), nil

	case algorithm.FamilyHMAC:
		if tc.Secret != "" {
			return algorithm.New(name, nil, []byte(tc.Secret))
		}
		if bundle != nil {
			return hmacFromBundle(name, tc.KeyID, bundle)
		}

	case algorithm.FamilyRSA, algorithm.FamilyECDSA:
		if tc.PrivateKeyPEM != "" || tc.PublicKeyPEM != "" {
			pub, priv, err := parsePEMKeys(desc.Family, tc.PublicKeyPEM, tc.PrivateKeyPEM)
			if err != nil {
				return nil, err
			}
			return algorithm.New(name, pub, priv)
		}
		if bundle != nil {
			return algorithm.WithProvider(name, keys.NewProvider(bundle, tc.KeyID))
		}
	}
	return nil, ErrNoSigningKey
}

func hmacFromBundle(name, kid string, bundle *keys.Bundle) (*algorithm.Algorithm, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, k := range bundle.ActiveKeys(ctx) {
		if k.Type() != keys.TypeOct || (kid != "" && k.ID() != kid) {
			continue
		}
		if k.Use() != keys.UseAny && k.Use() != keys.UseSig {
			continue
		}
		if k.Algorithm() != "" && k.Algorithm() != name {
			continue
		}
		secret, _ := k.SigningKey().([]byte)
		return algorithm.New(name, nil, secret)
	}
	return nil, fmt.Errorf("%w: no %s secret in key bundle %s", ErrNoSigningKey, name, bundle.Source())
}

// parsePEMKeys leaves absent halves as typed nils, which algorithm.New
// treats as missing.
func parsePEMKeys(family algorithm.Family, publicPEM, privatePEM string) (pub, priv any, err error) {
	switch family {
	case algorithm.FamilyRSA:
		var rsaPub *rsa.PublicKey
		var rsaPriv *rsa.PrivateKey
		if privatePEM != "" {
			if rsaPriv, err = gjwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM)); err != nil {
				return nil, nil, fmt.Errorf("%w: private key: %v", ErrInvalidKeyMaterial, err)
			}
		}
		if publicPEM != "" {
			if rsaPub, err = gjwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM)); err != nil {
				return nil, nil, fmt.Errorf("%w: public key: %v", ErrInvalidKeyMaterial, err)
			}
		}
		return rsaPub, rsaPriv, nil
	default:
		var ecPub *ecdsa.PublicKey
		var ecPriv *ecdsa.PrivateKey
		if privatePEM != "" {
			if ecPriv, err = gjwt.ParseECPrivateKeyFromPEM([]byte(privatePEM)); err != nil {
				return nil, nil, fmt.Errorf("%w: private key: %v", ErrInvalidKeyMaterial, err)
			}
		}
		if publicPEM != "" {
			if ecPub, err = gjwt.ParseECPublicKeyFromPEM([]byte(publicPEM)); err != nil {
				return nil, nil, fmt.Errorf("%w: public key: %v", ErrInvalidKeyMaterial, err)
			}
		}
		return ecPub, ecPriv, nil
	}
}
