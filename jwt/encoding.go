package jwt

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Encoding selects the textual form of the three token segments. It never
// changes the signing input, which is always the base64url form of
// header.payload.
type Encoding uint8

const (
	// Base64URL is the standard compact serialization (unpadded).
	Base64URL Encoding = iota
	// Base16 writes each segment as lowercase hex.
	Base16
	// Base32 writes each segment with the RFC 4648 alphabet, unpadded.
	Base32
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

func (e Encoding) String() string {
	switch e {
	case Base64URL:
		return "base64url"
	case Base16:
		return "base16"
	case Base32:
		return "base32"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// ParseEncoding reads an encoding name as written in configuration.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "base64url", "base64", "b64":
		return Base64URL, nil
	case "base16", "hex":
		return Base16, nil
	case "base32", "b32":
		return Base32, nil
	}
	return 0, fmt.Errorf("unknown token encoding %q", name)
}

func (e Encoding) EncodeToString(b []byte) string {
	switch e {
	case Base16:
		return hex.EncodeToString(b)
	case Base32:
		return base32NoPad.EncodeToString(b)
	default:
		return base64.RawURLEncoding.EncodeToString(b)
	}
}

// DecodeString accepts padded input for base64url and base32 and either
// letter case for base16.
func (e Encoding) DecodeString(s string) ([]byte, error) {
	switch e {
	case Base16:
		return hex.DecodeString(s)
	case Base32:
		return base32NoPad.DecodeString(strings.TrimRight(s, "="))
	default:
		return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	}
}
