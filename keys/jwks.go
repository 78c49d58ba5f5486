package keys

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
	"go.uber.org/zap"
)

type jwksDocument struct {
	Keys *[]json.RawMessage `json:"keys"`
}

type jwkHeader struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
}

// ParseJWKS reads a JWKS document. Entries with an unsupported "kty", an
// unknown "use" or unreadable material are skipped and logged; a document
// without a "keys" member fails with ErrMissingKeys.
func ParseJWKS(data []byte, log *zap.Logger) ([]Key, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var doc jwksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	if doc.Keys == nil {
		return nil, ErrMissingKeys
	}

	out := make([]Key, 0, len(*doc.Keys))
	for i, raw := range *doc.Keys {
		key, err := parseJWK(raw)
		if err != nil {
			log.Warn("skipping JWKS entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, key)
	}
	return out, nil
}

// ParseJWK reads a single JSON Web Key.
func ParseJWK(data []byte) (Key, error) {
	return parseJWK(data)
}

func parseJWK(raw json.RawMessage) (Key, error) {
	var hdr jwkHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return Key{}, fmt.Errorf("decode JWK: %w", err)
	}
	kty, err := ParseKeyType(hdr.Kty)
	if err != nil {
		return Key{}, fmt.Errorf("kid %q: %w", hdr.Kid, err)
	}
	use, err := NormalizeUse(hdr.Use)
	if err != nil {
		return Key{}, fmt.Errorf("kid %q: %w", hdr.Kid, err)
	}

	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(raw); err != nil {
		return Key{}, fmt.Errorf("kid %q: %w", hdr.Kid, err)
	}

	var m Material
	switch k := jwk.Key.(type) {
	case *rsa.PublicKey:
		m = RSAMaterial{Public: k}
	case *rsa.PrivateKey:
		m = RSAMaterial{Private: k}
	case *ecdsa.PublicKey:
		m = ECMaterial{Public: k}
	case *ecdsa.PrivateKey:
		m = ECMaterial{Private: k}
	case []byte:
		m = SymmetricMaterial{Secret: k}
	default:
		return Key{}, fmt.Errorf("kid %q: %w: %T", hdr.Kid, ErrUnknownKeyType, jwk.Key)
	}
	if m.Type() != kty {
		return Key{}, fmt.Errorf("kid %q: kty %q does not match %s material", hdr.Kid, hdr.Kty, m.Type())
	}

	key, err := NewKey(jwk.KeyID, use, m)
	if err != nil {
		return Key{}, err
	}
	return key.WithAlgorithm(jwk.Algorithm), nil
}

// MarshalJWKS writes keys as a JWKS document. Without includePrivate only
// public halves are written and symmetric keys are left out.
func MarshalJWKS(keys []Key, includePrivate bool) ([]byte, error) {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(keys))}
	for _, k := range keys {
		jwk, ok := k.JWK(includePrivate)
		if !ok {
			continue
		}
		set.Keys = append(set.Keys, jwk)
	}
	return json.Marshal(set)
}
