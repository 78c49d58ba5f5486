package jwt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
)

// Builder accumulates claims and produces a signed compact token. Claims
// named at construction are required: Sign fails with a *MissingClaimError
// if one of them was never set.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	header    *ClaimSet
	claims    *ClaimSet
	required  map[string]bool
	keyID     string
	allowNone bool
	err       error
}

// NewBuilder returns a builder that requires the given registered claims.
func NewBuilder(required ...string) *Builder {
	b := &Builder{
		header:   NewClaimSet(),
		claims:   NewClaimSet(),
		required: make(map[string]bool, len(required)),
	}
	for _, name := range required {
		b.required[name] = false
	}
	return b
}

// NewRiscBuilder requires jti, iss, sub and iat, the claim profile of
// security event tokens.
func NewRiscBuilder() *Builder {
	return NewBuilder(ClaimJWTID, ClaimIssuer, ClaimSubject, ClaimIssuedAt)
}

// NewImplicitBuilder requires iss, sub and iat.
func NewImplicitBuilder() *Builder {
	return NewBuilder(ClaimIssuer, ClaimSubject, ClaimIssuedAt)
}

// Require adds names to the required set. Claims already set stay satisfied.
func (b *Builder) Require(names ...string) *Builder {
	for _, name := range names {
		if _, ok := b.required[name]; !ok {
			b.required[name] = b.claims.Has(name)
		}
	}
	return b
}

func (b *Builder) WithJWTID(id string) *Builder {
	return b.set(ClaimJWTID, String(id))
}

// WithIssuer replaces the issuer. Several values are written as an array.
func (b *Builder) WithIssuer(issuers ...string) *Builder {
	return b.set(ClaimIssuer, oneOrMany(issuers))
}

// WithSubject replaces the subject. Several values are written as an array.
func (b *Builder) WithSubject(subjects ...string) *Builder {
	return b.set(ClaimSubject, oneOrMany(subjects))
}

// WithAudience replaces the audience. It is always written as an array.
func (b *Builder) WithAudience(audience ...string) *Builder {
	return b.set(ClaimAudience, Strings(audience...))
}

func (b *Builder) WithIssuedAt(t time.Time) *Builder  { return b.set(ClaimIssuedAt, Time(t)) }
func (b *Builder) WithExpiresAt(t time.Time) *Builder { return b.set(ClaimExpiresAt, Time(t)) }
func (b *Builder) WithNotBefore(t time.Time) *Builder { return b.set(ClaimNotBefore, Time(t)) }

// WithNonStandardClaim stores any claim under name. It never satisfies a
// required claim, even when name is a registered one.
func (b *Builder) WithNonStandardClaim(name string, value Claim) *Builder {
	if !b.validName(name) {
		return b
	}
	if !value.IsValid() {
		b.fail(fmt.Errorf("%w: claim %q has no value", ErrInvalidClaim, name))
		return b
	}
	b.claims.Set(name, value)
	return b
}

// WithArrayClaim stores items as a sequence claim. Registered names count
// toward the required set.
func (b *Builder) WithArrayClaim(name string, items ...string) *Builder {
	return b.set(name, Strings(items...))
}

// WithKeyID sets the header "kid". Without it the algorithm's provider key
// id is used, if any.
func (b *Builder) WithKeyID(kid string) *Builder {
	b.keyID = kid
	return b
}

// WithHeader adds a header member. "alg" is always taken from the signing
// algorithm and cannot be overridden.
func (b *Builder) WithHeader(name string, value Claim) *Builder {
	if strings.TrimSpace(name) == "" {
		b.fail(fmt.Errorf("%w: header name cannot be empty", ErrInvalidClaim))
		return b
	}
	if name == HeaderAlgorithm {
		b.fail(fmt.Errorf("%w: %q is derived from the signing algorithm", ErrInvalidClaim, name))
		return b
	}
	b.header.Set(name, value)
	return b
}

// AllowNoneAlgorithm permits signing with the "none" algorithm.
func (b *Builder) AllowNoneAlgorithm(allow bool) *Builder {
	b.allowNone = allow
	return b
}

// Claims returns a copy of the claims set so far.
func (b *Builder) Claims() *ClaimSet {
	return b.claims.Clone()
}

// Missing lists required claims that are still unset, sorted by name.
func (b *Builder) Missing() []string {
	var out []string
	for name, set := range b.required {
		if !set {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Builder) Sign(alg *algorithm.Algorithm) (string, error) {
	return b.SignEncoded(alg, Base64URL)
}

func (b *Builder) SignBase16(alg *algorithm.Algorithm) (string, error) {
	return b.SignEncoded(alg, Base16)
}

func (b *Builder) SignBase32(alg *algorithm.Algorithm) (string, error) {
	return b.SignEncoded(alg, Base32)
}

// SignEncoded signs header.payload and writes the three segments in enc.
//
// The required-claim check runs after signing succeeds, so a key problem is
// reported ahead of a missing claim. On a missing claim the token is
// discarded.
func (b *Builder) SignEncoded(alg *algorithm.Algorithm, enc Encoding) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if alg == nil {
		return "", fmt.Errorf("%w: the algorithm cannot be nil", ErrInvalidKeyMaterial)
	}
	if alg.Family() == algorithm.FamilyNone && !b.allowNone {
		return "", ErrNoneAlgorithmNotAllowed
	}

	kid := b.keyID
	if kid == "" {
		kid = alg.KeyID()
	}
	headerJSON, err := json.Marshal(newHeader(alg.Name(), kid, b.header))
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	payloadJSON, err := b.claims.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	signingInput := Base64URL.EncodeToString(headerJSON) + "." + Base64URL.EncodeToString(payloadJSON)
	signature, err := alg.Sign([]byte(signingInput))
	if err != nil {
		return "", err
	}

	if missing := b.Missing(); len(missing) > 0 {
		return "", &MissingClaimError{Name: missing[0]}
	}

	if enc == Base64URL {
		return signingInput + "." + Base64URL.EncodeToString(signature), nil
	}
	return enc.EncodeToString(headerJSON) + "." +
		enc.EncodeToString(payloadJSON) + "." +
		enc.EncodeToString(signature), nil
}

func (b *Builder) set(name string, value Claim) *Builder {
	if !b.validName(name) {
		return b
	}
	b.claims.Set(name, value)
	if _, tracked := b.required[name]; tracked {
		b.required[name] = true
	}
	return b
}

func (b *Builder) validName(name string) bool {
	if strings.TrimSpace(name) == "" {
		b.fail(fmt.Errorf("%w: the custom claim's name can't be empty", ErrInvalidClaim))
		return false
	}
	return true
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func oneOrMany(values []string) Claim {
	if len(values) == 1 {
		return String(values[0])
	}
	return Strings(values...)
}
