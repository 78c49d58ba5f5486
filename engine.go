package goJWT

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/MrEthical07/goJWT/jwt"
	"github.com/MrEthical07/goJWT/keys"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine issues and verifies tokens with one configured algorithm and,
// optionally, a key bundle that supplies verification keys by kid.
//
// Engine is safe for concurrent use. Close releases the audit worker and
// any file watcher.
type Engine struct {
	config   Config
	alg      *algorithm.Algorithm
	verifier *jwt.Verifier
	encoding jwt.Encoding
	bundle   *keys.Bundle

	audit   *auditDispatcher
	metrics *Metrics
	log     *zap.Logger
	clock   func() time.Time

	stopWatch context.CancelFunc
	closed    atomic.Bool
}

// Close stops background work. Safe to call more than once.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.stopWatch != nil {
		e.stopWatch()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// KeyBundle is nil when the engine verifies with bound keys only.
func (e *Engine) KeyBundle() *keys.Bundle { return e.bundle }

// KeyStats reports key counts without refreshing. ok is false when the
// engine has no key bundle.
func (e *Engine) KeyStats() (stats keys.Stats, ok bool) {
	if e == nil || e.bundle == nil {
		return keys.Stats{}, false
	}
	return e.bundle.Stats(), true
}

func (e *Engine) Algorithm() *algorithm.Algorithm { return e.alg }

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// NewToken returns a builder preset with issuer, audience, iat, exp, a
// random jti, the configured kid and the configured required claims. The
// caller adds the subject and any custom claims, then passes it to Sign.
func (e *Engine) NewToken() *jwt.Builder {
	tc := e.config.Token
	now := e.clock()

	b := jwt.NewBuilder(tc.RequiredClaims...)
	if tc.Issuer != "" {
		b.WithIssuer(tc.Issuer)
	}
	if len(tc.Audience) > 0 {
		b.WithAudience(tc.Audience...)
	}
	b.WithIssuedAt(now).
		WithExpiresAt(now.Add(tc.TTL)).
		WithJWTID(uuid.NewString())
	if tc.KeyID != "" {
		b.WithKeyID(tc.KeyID)
	}
	if tc.AllowNone {
		b.AllowNoneAlgorithm(true)
	}
	return b
}

// Sign signs b with the engine's algorithm in the configured encoding.
func (e *Engine) Sign(ctx context.Context, b *jwt.Builder) (string, error) {
	if e.closed.Load() {
		return "", ErrEngineClosed
	}
	if b == nil {
		return "", ErrNilBuilder
	}

	token, err := b.SignEncoded(e.alg, e.encoding)
	claims := b.Claims()
	subject, tokenID := claimText(claims, jwt.ClaimSubject), claimText(claims, jwt.ClaimJWTID)
	if err != nil {
		e.metricInc(MetricSignFailure)
		e.log.Debug("token signing failed", zap.String("algorithm", e.alg.Name()), zap.Error(err))
		e.emitAudit(ctx, auditEventTokenIssued, false, subject, tokenID, e.alg.KeyID(), "", err, nil)
		return "", err
	}

	e.metricInc(MetricSignSuccess)
	e.emitAudit(ctx, auditEventTokenIssued, true, subject, tokenID, e.alg.KeyID(), "", nil, func() map[string]string {
		return map[string]string{"algorithm": e.alg.Name()}
	})
	return token, nil
}

// Verify checks token against the configured algorithm, issuers, audience
// and leeway. Keys come from the bundle when one is configured.
func (e *Engine) Verify(ctx context.Context, token string) (*jwt.Decoded, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	start := time.Now()
	decoded, err := e.verifier.Verify(ctx, token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(verifyFailureMetric(err))
		e.log.Debug("token rejected", zap.Error(err))
		e.emitAudit(ctx, auditEventTokenRejected, false, "", "", "", "", err, nil)
		return nil, err
	}

	e.metricInc(MetricVerifySuccess)
	return decoded, nil
}

// RefreshKeys forces a bundle refresh. Without a bundle it does nothing.
func (e *Engine) RefreshKeys(ctx context.Context) error {
	if e.bundle == nil {
		return nil
	}
	return e.bundle.Refresh(ctx)
}

// PruneInactiveKeys drops bundle keys inactive for longer than
// Keys.RetentionWindow and returns how many were removed.
func (e *Engine) PruneInactiveKeys(ctx context.Context) (int, error) {
	if e.closed.Load() {
		return 0, ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.bundle == nil {
		return 0, nil
	}
	return e.bundle.PruneInactive(e.config.Keys.RetentionWindow, e.clock()), nil
}

// PublicJWKS serializes the bundle's public keys, inactive ones included.
// Without a bundle the set is empty.
func (e *Engine) PublicJWKS(ctx context.Context) ([]byte, error) {
	if e.bundle == nil {
		return keys.MarshalJWKS(nil, false)
	}
	return e.bundle.JWKS(ctx, false)
}

func claimText(claims *jwt.ClaimSet, name string) string {
	c, ok := claims.Get(name)
	if !ok {
		return ""
	}
	values, ok := c.AsStrings()
	if !ok {
		return ""
	}
	return strings.Join(values, ",")
}

// keyObserver turns bundle events into engine metrics and audit events.
type keyObserver struct {
	engine *Engine
}

func (o keyObserver) Refreshed(ctx context.Context, ev keys.RefreshEvent) {
	e := o.engine
	switch ev.Outcome {
	case keys.RefreshUpdated:
		e.metricInc(MetricKeysRefreshUpdated)
		e.emitAudit(ctx, auditEventKeysRefreshed, true, "", "", "", ev.Source, nil, func() map[string]string {
			return refreshMetadata(ev)
		})
		if ev.Rotated > 0 {
			e.metrics.Add(MetricKeysRotated, uint64(ev.Rotated))
			e.emitAudit(ctx, auditEventKeysRotated, true, "", "", "", ev.Source, nil, func() map[string]string {
				return refreshMetadata(ev)
			})
		}
	case keys.RefreshNotModified:
		e.metricInc(MetricKeysRefreshNotModified)
	default:
		e.metricInc(MetricKeysRefreshFailure)
		e.emitAudit(ctx, auditEventKeysRefreshFailed, false, "", "", "", ev.Source, ev.Err, func() map[string]string {
			return refreshMetadata(ev)
		})
	}
}

func (o keyObserver) Pruned(ctx context.Context, source string, removed int) {
	if removed <= 0 {
		return
	}
	e := o.engine
	e.metrics.Add(MetricKeysPruned, uint64(removed))
	e.emitAudit(ctx, auditEventKeysPruned, true, "", "", "", source, nil, func() map[string]string {
		return map[string]string{"removed": itoa(removed)}
	})
}
