package keys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
)

// Jar groups bundles by issuer. A verifier that trusts several issuers
// resolves keys through the jar with the token's issuer.
type Jar struct {
	mu      sync.RWMutex
	issuers map[string][]*Bundle
}

func NewJar() *Jar {
	return &Jar{issuers: make(map[string][]*Bundle)}
}

// Add registers bundles for issuer. The empty issuer is a valid owner for
// keys that belong to this process.
func (j *Jar) Add(issuer string, bundles ...*Bundle) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, b := range bundles {
		if b != nil {
			j.issuers[issuer] = append(j.issuers[issuer], b)
		}
	}
}

// AddSource builds a bundle from source and registers it for issuer.
func (j *Jar) AddSource(issuer, source string, format Format, opts ...Option) (*Bundle, error) {
	b, err := NewBundleFromSource(source, format, opts...)
	if err != nil {
		return nil, err
	}
	j.Add(issuer, b)
	return b, nil
}

func (j *Jar) Bundles(issuer string) []*Bundle {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]*Bundle(nil), j.issuers[issuer]...)
}

// Issuers lists registered issuers in sorted order.
func (j *Jar) Issuers() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, 0, len(j.issuers))
	for iss := range j.issuers {
		out = append(out, iss)
	}
	sort.Strings(out)
	return out
}

func (j *Jar) RemoveIssuer(issuer string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.issuers, issuer)
}

// Keys collects the keys of every bundle of issuer.
func (j *Jar) Keys(ctx context.Context, issuer string) []Key {
	var out []Key
	for _, b := range j.Bundles(issuer) {
		out = append(out, b.Keys(ctx)...)
	}
	return out
}

// VerificationKey searches the issuer's bundles in registration order.
func (j *Jar) VerificationKey(ctx context.Context, issuer string, alg *algorithm.Algorithm, kid string) (any, error) {
	bundles := j.Bundles(issuer)
	if len(bundles) == 0 {
		return nil, fmt.Errorf("%w: no bundles for issuer %q", ErrKeyNotFound, issuer)
	}
	var errs []error
	for _, b := range bundles {
		key, err := b.VerificationKey(ctx, alg, kid)
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// Refresh refreshes every bundle of issuer and joins the failures.
func (j *Jar) Refresh(ctx context.Context, issuer string) error {
	var errs []error
	for _, b := range j.Bundles(issuer) {
		if err := b.Refresh(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PruneInactive prunes every bundle in the jar.
func (j *Jar) PruneInactive(retention time.Duration, asOf time.Time) int {
	j.mu.RLock()
	var all []*Bundle
	for _, bs := range j.issuers {
		all = append(all, bs...)
	}
	j.mu.RUnlock()

	removed := 0
	for _, b := range all {
		removed += b.PruneInactive(retention, asOf)
	}
	return removed
}
