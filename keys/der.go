package keys

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Format is the encoding of a local key file.
type Format uint8

const (
	FormatJWKS Format = iota
	// FormatDER holds a single RSA key: PKCS#1, PKCS#8 or PKIX, optionally
	// PEM armoured.
	FormatDER
)

func (f Format) String() string {
	switch f {
	case FormatJWKS:
		return "jwks"
	case FormatDER:
		return "der"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat accepts "jwks", "der" and "rsa" (an alias of "der").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jwks", "json":
		return FormatJWKS, nil
	case "der", "rsa", "pem":
		return FormatDER, nil
	}
	return 0, fmt.Errorf("%w: unsupported file type %q", ErrUnknownKeyType, s)
}

var defaultDERUses = []Use{UseEnc, UseSig}

// ParseDER reads one RSA key and returns one Key per use. Without uses the
// key is registered for both "enc" and "sig".
func ParseDER(data []byte, kid string, uses ...Use) ([]Key, error) {
	m, err := parseRSAMaterial(data)
	if err != nil {
		return nil, err
	}
	if len(uses) == 0 {
		uses = defaultDERUses
	}
	out := make([]Key, 0, len(uses))
	for _, u := range uses {
		k, err := NewKey(kid, u, m)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func parseRSAMaterial(data []byte) (RSAMaterial, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN")) {
		if priv, err := gjwt.ParseRSAPrivateKeyFromPEM(data); err == nil {
			return RSAMaterial{Private: priv}, nil
		}
		pub, err := gjwt.ParseRSAPublicKeyFromPEM(data)
		if err != nil {
			return RSAMaterial{}, fmt.Errorf("parse PEM key: %w", err)
		}
		return RSAMaterial{Public: pub}, nil
	}

	if priv, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		return RSAMaterial{Private: priv}, nil
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return RSAMaterial{}, fmt.Errorf("%w: DER private key is %T, not RSA", ErrUnknownKeyType, parsed)
		}
		return RSAMaterial{Private: priv}, nil
	}
	if parsed, err := x509.ParsePKIXPublicKey(data); err == nil {
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return RSAMaterial{}, fmt.Errorf("%w: DER public key is %T, not RSA", ErrUnknownKeyType, parsed)
		}
		return RSAMaterial{Public: pub}, nil
	}
	if pub, err := x509.ParsePKCS1PublicKey(data); err == nil {
		return RSAMaterial{Public: pub}, nil
	}
	return RSAMaterial{}, fmt.Errorf("parse DER key: not a PKCS#1, PKCS#8 or PKIX RSA key")
}
