package algorithm

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"sort"
	"strings"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Family groups algorithms that share key material requirements.
type Family uint8

const (
	// FamilyNone is the unsigned "none" algorithm.
	FamilyNone Family = iota
	// FamilyHMAC covers HS256, HS384 and HS512.
	FamilyHMAC
	// FamilyRSA covers RS256, RS384 and RS512 (PKCS#1 v1.5).
	FamilyRSA
	// FamilyECDSA covers ES256, ES384 and ES512.
	FamilyECDSA
)

func (f Family) String() string {
	switch f {
	case FamilyNone:
		return "none"
	case FamilyHMAC:
		return "HMAC"
	case FamilyRSA:
		return "RSA"
	case FamilyECDSA:
		return "ECDSA"
	default:
		return "unknown"
	}
}

// KeyType returns the JWK "kty" value for keys of this family, or "" for none.
func (f Family) KeyType() string {
	return familyKeyTypes[f]
}

// Descriptor is the static registry entry for one algorithm name.
type Descriptor struct {
	Name        string
	Description string
	Family      Family
	Bits        int
}

const (
	HS256 = "HS256"
	HS384 = "HS384"
	HS512 = "HS512"
	RS256 = "RS256"
	RS384 = "RS384"
	RS512 = "RS512"
	ES256 = "ES256"
	ES384 = "ES384"
	ES512 = "ES512"
	// NoneName is the wire name of the unsigned algorithm.
	NoneName = "none"
)

var descriptors = map[string]Descriptor{
	HS256:    {Name: HS256, Description: "HmacSHA256", Family: FamilyHMAC, Bits: 256},
	HS384:    {Name: HS384, Description: "HmacSHA384", Family: FamilyHMAC, Bits: 384},
	HS512:    {Name: HS512, Description: "HmacSHA512", Family: FamilyHMAC, Bits: 512},
	RS256:    {Name: RS256, Description: "SHA256withRSA", Family: FamilyRSA, Bits: 256},
	RS384:    {Name: RS384, Description: "SHA384withRSA", Family: FamilyRSA, Bits: 384},
	RS512:    {Name: RS512, Description: "SHA512withRSA", Family: FamilyRSA, Bits: 512},
	ES256:    {Name: ES256, Description: "SHA256withECDSA", Family: FamilyECDSA, Bits: 256},
	ES384:    {Name: ES384, Description: "SHA384withECDSA", Family: FamilyECDSA, Bits: 384},
	ES512:    {Name: ES512, Description: "SHA512withECDSA", Family: FamilyECDSA, Bits: 512},
	NoneName: {Name: NoneName, Description: "none", Family: FamilyNone},
}

var familyKeyTypes = map[Family]string{
	FamilyHMAC:  "oct",
	FamilyRSA:   "RSA",
	FamilyECDSA: "EC",
}

var methods = map[string]gjwt.SigningMethod{
	HS256: gjwt.SigningMethodHS256,
	HS384: gjwt.SigningMethodHS384,
	HS512: gjwt.SigningMethodHS512,
	RS256: gjwt.SigningMethodRS256,
	RS384: gjwt.SigningMethodRS384,
	RS512: gjwt.SigningMethodRS512,
	ES256: gjwt.SigningMethodES256,
	ES384: gjwt.SigningMethodES384,
	ES512: gjwt.SigningMethodES512,
}

// ES512 runs on P-521, so the curve size does not follow the digest size.
var curveBits = map[string]int{
	ES256: 256,
	ES384: 384,
	ES512: 521,
}

// Lookup returns the registry entry for name. Names match exactly.
func Lookup(name string) (Descriptor, error) {
	d, ok := descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrAlgorithmNotFound, name)
	}
	return d, nil
}

// Names lists every registered algorithm name in sorted order.
func Names() []string {
	out := make([]string, 0, len(descriptors))
	for name := range descriptors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// KeyTypeFor returns the JWK "kty" serving the named algorithm, or "" when
// the name is unknown or is "none".
func KeyTypeFor(name string) string {
	d, ok := descriptors[name]
	if !ok {
		return ""
	}
	return d.Family.KeyType()
}

// New builds an algorithm from its wire name. HMAC accepts the secret as
// either argument ([]byte or string). RSA and ECDSA take a public key for
// verification and a private key for signing; either may be nil but not both.
// A *rsa.PrivateKey or *ecdsa.PrivateKey passed as verifyKey is reduced to
// its public half.
func New(name string, verifyKey, signKey any) (*Algorithm, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	switch d.Family {
	case FamilyNone:
		return None(), nil
	case FamilyHMAC:
		secret := secretBytes(signKey)
		if len(secret) == 0 {
			secret = secretBytes(verifyKey)
		}
		return newHMAC(d, secret)
	case FamilyRSA:
		pub, err := rsaPublic(verifyKey)
		if err != nil {
			return nil, err
		}
		priv, err := rsaPrivate(signKey)
		if err != nil {
			return nil, err
		}
		return newRSA(d, pub, priv)
	case FamilyECDSA:
		pub, err := ecdsaPublic(verifyKey)
		if err != nil {
			return nil, err
		}
		priv, err := ecdsaPrivate(signKey)
		if err != nil {
			return nil, err
		}
		return newECDSA(d, pub, priv)
	}
	return nil, fmt.Errorf("%w: %q", ErrAlgorithmNotFound, name)
}

func secretBytes(v any) []byte {
	switch s := v.(type) {
	case []byte:
		return s
	case string:
		return []byte(s)
	default:
		return nil
	}
}

func rsaPublic(v any) (*rsa.PublicKey, error) {
	switch k := v.(type) {
	case nil:
		return nil, nil
	case *rsa.PublicKey:
		return k, nil
	case *rsa.PrivateKey:
		return &k.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: RSA verification expects *rsa.PublicKey, got %T", ErrInvalidKeyMaterial, v)
	}
}

func rsaPrivate(v any) (*rsa.PrivateKey, error) {
	switch k := v.(type) {
	case nil:
		return nil, nil
	case *rsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: RSA signing expects *rsa.PrivateKey, got %T", ErrInvalidKeyMaterial, v)
	}
}

func ecdsaPublic(v any) (*ecdsa.PublicKey, error) {
	switch k := v.(type) {
	case nil:
		return nil, nil
	case *ecdsa.PublicKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return &k.PublicKey, nil
	default:
		return nil, fmt.Errorf("%w: ECDSA verification expects *ecdsa.PublicKey, got %T", ErrInvalidKeyMaterial, v)
	}
}

func ecdsaPrivate(v any) (*ecdsa.PrivateKey, error) {
	switch k := v.(type) {
	case nil:
		return nil, nil
	case *ecdsa.PrivateKey:
		return k, nil
	default:
		return nil, fmt.Errorf("%w: ECDSA signing expects *ecdsa.PrivateKey, got %T", ErrInvalidKeyMaterial, v)
	}
}

// Canonical maps a loosely written name ("hs256", "NONE") to its wire form.
// Configuration input goes through here; token headers never do.
func Canonical(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, NoneName) {
		return NoneName
	}
	return strings.ToUpper(name)
}
