package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	jose "github.com/go-jose/go-jose/v4"
)

// KeyType is the JWK "kty" value.
type KeyType string

const (
	TypeRSA KeyType = "RSA"
	TypeEC  KeyType = "EC"
	TypeOct KeyType = "oct"
)

// ParseKeyType matches s case-insensitively against the supported types.
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rsa":
		return TypeRSA, nil
	case "ec":
		return TypeEC, nil
	case "oct":
		return TypeOct, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKeyType, s)
}

// Use is the JWK "use" value. The empty Use means unrestricted.
type Use string

const (
	UseAny Use = ""
	UseSig Use = "sig"
	UseEnc Use = "enc"
)

var useAliases = map[string]Use{
	"":    UseAny,
	"sig": UseSig,
	"ver": UseSig,
	"enc": UseEnc,
	"dec": UseEnc,
}

// NormalizeUse maps "ver" to "sig" and "dec" to "enc".
func NormalizeUse(s string) (Use, error) {
	u, ok := useAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidUse, s)
	}
	return u, nil
}

// Material is the raw key behind a Key. It is implemented only by
// RSAMaterial, ECMaterial and SymmetricMaterial.
type Material interface {
	Type() KeyType
	HasPrivate() bool
	// VerificationKey returns what algorithm.Algorithm.VerifyWith expects.
	VerificationKey() any
	// SigningKey returns the private half, or nil.
	SigningKey() any
	sealed()
}

type RSAMaterial struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

func (RSAMaterial) Type() KeyType      { return TypeRSA }
func (m RSAMaterial) HasPrivate() bool { return m.Private != nil }
func (RSAMaterial) sealed()            {}
func (m RSAMaterial) SigningKey() any {
	if m.Private == nil {
		return nil
	}
	return m.Private
}
func (m RSAMaterial) VerificationKey() any {
	if m.Public != nil {
		return m.Public
	}
	if m.Private != nil {
		return &m.Private.PublicKey
	}
	return nil
}

type ECMaterial struct {
	Public  *ecdsa.PublicKey
	Private *ecdsa.PrivateKey
}

func (ECMaterial) Type() KeyType      { return TypeEC }
func (m ECMaterial) HasPrivate() bool { return m.Private != nil }
func (ECMaterial) sealed()            {}
func (m ECMaterial) SigningKey() any {
	if m.Private == nil {
		return nil
	}
	return m.Private
}
func (m ECMaterial) VerificationKey() any {
	if m.Public != nil {
		return m.Public
	}
	if m.Private != nil {
		return &m.Private.PublicKey
	}
	return nil
}

// SymmetricMaterial is an HMAC secret. The same bytes sign and verify.
type SymmetricMaterial struct {
	Secret []byte
}

func (SymmetricMaterial) Type() KeyType      { return TypeOct }
func (m SymmetricMaterial) HasPrivate() bool { return len(m.Secret) > 0 }
func (SymmetricMaterial) sealed()            {}
func (m SymmetricMaterial) VerificationKey() any {
	if len(m.Secret) == 0 {
		return nil
	}
	return append([]byte(nil), m.Secret...)
}
func (m SymmetricMaterial) SigningKey() any { return m.VerificationKey() }

// Key is one entry of a bundle. Keys are values: the bundle hands out copies
// and replaces entries instead of mutating them.
type Key struct {
	use           Use
	kid           string
	alg           string
	material      Material
	thumbprint    string
	inactiveSince time.Time
}

// NewKey wraps material. The thumbprint used for identity is computed here.
func NewKey(kid string, use Use, m Material) (Key, error) {
	if m == nil || m.VerificationKey() == nil {
		return Key{}, fmt.Errorf("%w: key %q has no material", algorithm.ErrInvalidKeyMaterial, kid)
	}
	if _, ok := useAliases[string(use)]; !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidUse, use)
	}
	k := Key{use: useAliases[string(use)], kid: kid, material: m}
	tp, err := thumbprint(m)
	if err != nil {
		return Key{}, err
	}
	k.thumbprint = tp
	return k, nil
}

// WithAlgorithm pins the key to one algorithm name (the JWK "alg" member).
func (k Key) WithAlgorithm(name string) Key {
	k.alg = name
	return k
}

func (k Key) Type() KeyType      { return k.material.Type() }
func (k Key) Use() Use           { return k.use }
func (k Key) ID() string         { return k.kid }
func (k Key) Algorithm() string  { return k.alg }
func (k Key) Material() Material { return k.material }
func (k Key) Thumbprint() string { return k.thumbprint }
func (k Key) Active() bool       { return k.inactiveSince.IsZero() }
func (k Key) IsZero() bool       { return k.material == nil }

// InactiveSince reports when the key left the active set.
func (k Key) InactiveSince() (time.Time, bool) {
	return k.inactiveSince, !k.inactiveSince.IsZero()
}

func (k Key) VerificationKey() any { return k.material.VerificationKey() }
func (k Key) SigningKey() any      { return k.material.SigningKey() }

// CanVerify reports whether the key may check signatures made with alg.
func (k Key) CanVerify(alg *algorithm.Algorithm) bool {
	if alg == nil || k.IsZero() {
		return false
	}
	if string(k.Type()) != alg.KeyType() {
		return false
	}
	if k.use != UseAny && k.use != UseSig {
		return false
	}
	return k.alg == "" || k.alg == alg.Name()
}

// CanSign is CanVerify plus private material.
func (k Key) CanSign(alg *algorithm.Algorithm) bool {
	return k.CanVerify(alg) && k.material.HasPrivate()
}

// inactivated returns a copy marked inactive at t. The first mark wins.
func (k Key) inactivated(t time.Time) Key {
	if k.inactiveSince.IsZero() {
		k.inactiveSince = t
	}
	return k
}

// identity distinguishes keys for rotation. Two records with the same kid
// but different material are different keys.
func (k Key) identity() string {
	return string(k.Type()) + "|" + string(k.use) + "|" + k.kid + "|" + k.thumbprint
}

// JWK converts the key for serialization. With includePrivate false,
// asymmetric keys are reduced to their public half and ok is false for
// symmetric keys, which have no public form.
func (k Key) JWK(includePrivate bool) (jwk jose.JSONWebKey, ok bool) {
	jwk = jose.JSONWebKey{KeyID: k.kid, Use: string(k.use), Algorithm: k.alg}
	switch m := k.material.(type) {
	case RSAMaterial:
		if includePrivate && m.Private != nil {
			jwk.Key = m.Private
		} else {
			jwk.Key = m.VerificationKey()
		}
	case ECMaterial:
		if includePrivate && m.Private != nil {
			jwk.Key = m.Private
		} else {
			jwk.Key = m.VerificationKey()
		}
	case SymmetricMaterial:
		if !includePrivate {
			return jose.JSONWebKey{}, false
		}
		jwk.Key = append([]byte(nil), m.Secret...)
	default:
		return jose.JSONWebKey{}, false
	}
	return jwk, true
}

func thumbprint(m Material) (string, error) {
	var sum []byte
	switch mat := m.(type) {
	case SymmetricMaterial:
		h := sha256.Sum256(mat.Secret)
		sum = h[:]
	default:
		jwk := jose.JSONWebKey{Key: m.VerificationKey()}
		tp, err := jwk.Thumbprint(crypto.SHA256)
		if err != nil {
			return "", fmt.Errorf("%w: thumbprint: %v", algorithm.ErrInvalidKeyMaterial, err)
		}
		sum = tp
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
