package algorithm

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// KeyProvider resolves RSA or ECDSA keys lazily. Verification asks for the
// public key matching the token's "kid"; signing asks for the private key
// and the id to stamp into the header.
type KeyProvider interface {
	PublicKeyByID(keyID string) (crypto.PublicKey, error)
	PrivateKey() (crypto.PrivateKey, error)
	PrivateKeyID() string
}

// Algorithm is an immutable signing strategy bound to its key material.
// Instances are safe for concurrent use.
type Algorithm struct {
	desc     Descriptor
	method   gjwt.SigningMethod
	secret   []byte
	public   crypto.PublicKey
	private  crypto.PrivateKey
	provider KeyProvider
}

func HMAC256(secret []byte) (*Algorithm, error) { return newHMAC(descriptors[HS256], secret) }
func HMAC384(secret []byte) (*Algorithm, error) { return newHMAC(descriptors[HS384], secret) }
func HMAC512(secret []byte) (*Algorithm, error) { return newHMAC(descriptors[HS512], secret) }

func RSA256(public *rsa.PublicKey, private *rsa.PrivateKey) (*Algorithm, error) {
	return newRSA(descriptors[RS256], public, private)
}

func RSA384(public *rsa.PublicKey, private *rsa.PrivateKey) (*Algorithm, error) {
	return newRSA(descriptors[RS384], public, private)
}

func RSA512(public *rsa.PublicKey, private *rsa.PrivateKey) (*Algorithm, error) {
	return newRSA(descriptors[RS512], public, private)
}

func ECDSA256(public *ecdsa.PublicKey, private *ecdsa.PrivateKey) (*Algorithm, error) {
	return newECDSA(descriptors[ES256], public, private)
}

func ECDSA384(public *ecdsa.PublicKey, private *ecdsa.PrivateKey) (*Algorithm, error) {
	return newECDSA(descriptors[ES384], public, private)
}

func ECDSA512(public *ecdsa.PublicKey, private *ecdsa.PrivateKey) (*Algorithm, error) {
	return newECDSA(descriptors[ES512], public, private)
}

// WithProvider builds an RSA or ECDSA algorithm whose keys come from p.
// Key problems surface on the first Sign or Verify call instead of here.
func WithProvider(name string, p KeyProvider) (*Algorithm, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if d.Family != FamilyRSA && d.Family != FamilyECDSA {
		return nil, fmt.Errorf("%w: %s does not accept a key provider", ErrInvalidKeyMaterial, name)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: the key provider cannot be nil", ErrInvalidKeyMaterial)
	}
	return &Algorithm{desc: d, method: methods[d.Name], provider: p}, nil
}

// None returns the unsigned algorithm. Its signature is always empty.
func None() *Algorithm {
	return &Algorithm{desc: descriptors[NoneName]}
}

func newHMAC(d Descriptor, secret []byte) (*Algorithm, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: the secret cannot be empty", ErrInvalidKeyMaterial)
	}
	own := make([]byte, len(secret))
	copy(own, secret)
	return &Algorithm{desc: d, method: methods[d.Name], secret: own}, nil
}

func newRSA(d Descriptor, public *rsa.PublicKey, private *rsa.PrivateKey) (*Algorithm, error) {
	if public == nil && private == nil {
		return nil, fmt.Errorf("%w: both provided keys cannot be nil", ErrInvalidKeyMaterial)
	}
	a := &Algorithm{desc: d, method: methods[d.Name]}
	if private != nil {
		a.private = private
		a.public = &private.PublicKey
	}
	if public != nil {
		a.public = public
	}
	return a, nil
}

func newECDSA(d Descriptor, public *ecdsa.PublicKey, private *ecdsa.PrivateKey) (*Algorithm, error) {
	if public == nil && private == nil {
		return nil, fmt.Errorf("%w: both provided keys cannot be nil", ErrInvalidKeyMaterial)
	}
	if public != nil {
		if err := checkCurve(d.Name, public); err != nil {
			return nil, err
		}
	}
	a := &Algorithm{desc: d, method: methods[d.Name]}
	if private != nil {
		if err := checkCurve(d.Name, &private.PublicKey); err != nil {
			return nil, err
		}
		a.private = private
		a.public = &private.PublicKey
	}
	if public != nil {
		a.public = public
	}
	return a, nil
}

func checkCurve(name string, key *ecdsa.PublicKey) error {
	if key.Curve == nil {
		return fmt.Errorf("%w: ECDSA key has no curve", ErrInvalidKeyMaterial)
	}
	if got := key.Curve.Params().BitSize; got != curveBits[name] {
		return fmt.Errorf("%w: %s needs a %d-bit curve, key uses %d", ErrInvalidKeyMaterial, name, curveBits[name], got)
	}
	return nil
}

func (a *Algorithm) Name() string        { return a.desc.Name }
func (a *Algorithm) Description() string { return a.desc.Description }
func (a *Algorithm) Family() Family      { return a.desc.Family }
func (a *Algorithm) Bits() int           { return a.desc.Bits }
func (a *Algorithm) KeyType() string     { return a.desc.Family.KeyType() }
func (a *Algorithm) String() string      { return a.desc.Name }

// Equal reports whether both algorithms carry the same wire name.
func (a *Algorithm) Equal(other *Algorithm) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.desc.Name == other.desc.Name
}

// KeyID is the id the key provider assigns to its signing key, or "".
func (a *Algorithm) KeyID() string {
	if a.provider == nil {
		return ""
	}
	return a.provider.PrivateKeyID()
}

// CanSign reports whether Sign has key material to work with. Provider-backed
// algorithms always report true; the provider may still fail at signing time.
func (a *Algorithm) CanSign() bool {
	switch {
	case a.desc.Family == FamilyNone, a.desc.Family == FamilyHMAC:
		return true
	case a.provider != nil:
		return true
	default:
		return a.private != nil
	}
}

// Sign returns the raw signature over signingInput.
func (a *Algorithm) Sign(signingInput []byte) ([]byte, error) {
	switch a.desc.Family {
	case FamilyNone:
		return []byte{}, nil
	case FamilyHMAC:
		return a.sign(signingInput, a.secret)
	}

	var key any = a.private
	if a.provider != nil {
		k, err := a.provider.PrivateKey()
		if err != nil {
			return nil, fmt.Errorf("%w: key provider: %v", ErrInvalidKeyMaterial, err)
		}
		key = k
	}
	key, err := a.signingKey(key)
	if err != nil {
		return nil, err
	}
	return a.sign(signingInput, key)
}

// signingKey narrows key to the family's private key type. A nil key,
// including a typed nil from a provider, is ErrInvalidKeyMaterial.
func (a *Algorithm) signingKey(key any) (any, error) {
	missing := fmt.Errorf("%w: %s signing requires a private key", ErrInvalidKeyMaterial, a.desc.Name)
	switch a.desc.Family {
	case FamilyRSA:
		priv, err := rsaPrivate(key)
		if err != nil {
			return nil, err
		}
		if priv == nil {
			return nil, missing
		}
		return priv, nil
	case FamilyECDSA:
		priv, err := ecdsaPrivate(key)
		if err != nil {
			return nil, err
		}
		if priv == nil {
			return nil, missing
		}
		return priv, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrAlgorithmNotFound, a.desc.Name)
}

func (a *Algorithm) sign(input []byte, key any) ([]byte, error) {
	sig, err := a.method.Sign(string(input), key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return sig, nil
}

// Verify checks signature against signingInput with the bound key. A false
// result with a nil error means the signature does not match; an error means
// the key material could not be used at all.
func (a *Algorithm) Verify(signingInput, signature []byte) (bool, error) {
	return a.VerifyKeyID("", signingInput, signature)
}

// VerifyKeyID is Verify for provider-backed algorithms, which look up the
// public key by keyID. Algorithms with bound keys ignore keyID.
func (a *Algorithm) VerifyKeyID(keyID string, signingInput, signature []byte) (bool, error) {
	switch a.desc.Family {
	case FamilyNone:
		return len(signature) == 0, nil
	case FamilyHMAC:
		return a.check(signingInput, signature, a.secret)
	}

	key := a.public
	if a.provider != nil {
		k, err := a.provider.PublicKeyByID(keyID)
		if err != nil {
			return false, fmt.Errorf("%w: key provider: %v", ErrInvalidKeyMaterial, err)
		}
		key = k
	}
	if key == nil {
		return false, fmt.Errorf("%w: no %s verification key for kid %q", ErrInvalidKeyMaterial, a.desc.Name, keyID)
	}
	return a.VerifyWith(key, signingInput, signature)
}

// VerifyWith checks signature using key instead of the bound material. It is
// how externally resolved keys (for example from a key bundle) are applied.
// HMAC expects []byte; RSA and ECDSA accept public or private keys.
func (a *Algorithm) VerifyWith(key any, signingInput, signature []byte) (bool, error) {
	switch a.desc.Family {
	case FamilyNone:
		return len(signature) == 0, nil
	case FamilyHMAC:
		secret := secretBytes(key)
		if len(secret) == 0 {
			return false, fmt.Errorf("%w: HMAC verification expects a non-empty secret, got %T", ErrInvalidKeyMaterial, key)
		}
		return a.check(signingInput, signature, secret)
	case FamilyRSA:
		pub, err := rsaPublic(key)
		if err != nil {
			return false, err
		}
		if pub == nil {
			return false, fmt.Errorf("%w: nil RSA key", ErrInvalidKeyMaterial)
		}
		return a.check(signingInput, signature, pub)
	case FamilyECDSA:
		pub, err := ecdsaPublic(key)
		if err != nil {
			return false, err
		}
		if pub == nil {
			return false, fmt.Errorf("%w: nil ECDSA key", ErrInvalidKeyMaterial)
		}
		if err := checkCurve(a.desc.Name, pub); err != nil {
			return false, err
		}
		return a.check(signingInput, signature, pub)
	}
	return false, fmt.Errorf("%w: %q", ErrAlgorithmNotFound, a.desc.Name)
}

func (a *Algorithm) check(input, signature []byte, key any) (bool, error) {
	err := a.method.Verify(string(input), signature, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gjwt.ErrInvalidKeyType), errors.Is(err, gjwt.ErrInvalidKey):
		return false, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	default:
		return false, nil
	}
}
