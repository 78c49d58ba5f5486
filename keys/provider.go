package keys

import (
	"context"
	"crypto"
	"fmt"
)

// Provider adapts a Bundle to algorithm.KeyProvider so an RSA or ECDSA
// algorithm can take its keys from a rotating set. Verification looks the
// public key up by the token's kid; signing uses the key named signKID.
//
// algorithm.KeyProvider carries no context, so PublicKeyByID and PrivateKey
// cannot see a caller's cancellation. A refresh they trigger is bounded by
// the bundle's refresh timeout (WithRefreshTimeout). Callers holding a
// context use the Context variants, or verify through the bundle as a
// jwt.KeySource, which is how the engine resolves verification keys.
type Provider struct {
	bundle  *Bundle
	signKID string
}

// NewProvider returns a provider over b. signKID may be empty for
// verify-only use.
func NewProvider(b *Bundle, signKID string) *Provider {
	return &Provider{bundle: b, signKID: signKID}
}

func (p *Provider) PublicKeyByID(kid string) (crypto.PublicKey, error) {
	ctx, cancel := p.bundle.sharedContext(context.Background())
	defer cancel()
	return p.PublicKeyByIDContext(ctx, kid)
}

// PublicKeyByIDContext is PublicKeyByID honouring ctx.
func (p *Provider) PublicKeyByIDContext(ctx context.Context, kid string) (crypto.PublicKey, error) {
	k, err := p.bundle.resolve(ctx, kid, func(k Key) bool {
		return k.Type() != TypeOct && (k.Use() == UseAny || k.Use() == UseSig)
	})
	if err != nil {
		return nil, err
	}
	return k.VerificationKey(), nil
}

func (p *Provider) PrivateKey() (crypto.PrivateKey, error) {
	ctx, cancel := p.bundle.sharedContext(context.Background())
	defer cancel()
	return p.PrivateKeyContext(ctx)
}

// PrivateKeyContext is PrivateKey honouring ctx.
func (p *Provider) PrivateKeyContext(ctx context.Context) (crypto.PrivateKey, error) {
	if p.signKID == "" {
		return nil, fmt.Errorf("%w: provider has no signing key id", ErrKeyNotFound)
	}
	k, err := p.bundle.resolve(ctx, p.signKID, func(k Key) bool {
		return k.Active() && k.Type() != TypeOct && k.Material().HasPrivate() &&
			(k.Use() == UseAny || k.Use() == UseSig)
	})
	if err != nil {
		return nil, err
	}
	return k.SigningKey(), nil
}

func (p *Provider) PrivateKeyID() string { return p.signKID }
