package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
)

// KeySource resolves the verification key for a token. keyID is the header
// "kid" and may be empty. The returned key must suit alg.VerifyWith.
type KeySource interface {
	VerificationKey(ctx context.Context, alg *algorithm.Algorithm, keyID string) (any, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context, alg *algorithm.Algorithm, keyID string) (any, error)

func (f KeySourceFunc) VerificationKey(ctx context.Context, alg *algorithm.Algorithm, keyID string) (any, error) {
	return f(ctx, alg, keyID)
}

// Verification collects the expectations for a Verifier. Start one with
// Require and finish it with Build.
type Verification struct {
	alg      *algorithm.Algorithm
	leeway   int64
	expLee   *int64
	nbfLee   *int64
	iatLee   *int64
	issuers  []string
	audience []string
	subject  *string
	claims   *ClaimSet
	encoding Encoding
	source   KeySource
	clock    func() time.Time
	err      error
}

// Require starts a verification that only accepts tokens whose header "alg"
// equals alg's name.
func Require(alg *algorithm.Algorithm) *Verification {
	return &Verification{
		alg:    alg,
		claims: NewClaimSet(),
		clock:  time.Now,
	}
}

// WithLeeway sets the tolerance, in seconds, applied to exp, nbf and iat.
func (v *Verification) WithLeeway(seconds int64) *Verification {
	v.checkLeeway(seconds)
	v.leeway = seconds
	return v
}

// WithExpiresAtLeeway overrides the tolerance for exp only.
func (v *Verification) WithExpiresAtLeeway(seconds int64) *Verification {
	v.checkLeeway(seconds)
	v.expLee = &seconds
	return v
}

// WithNotBeforeLeeway overrides the tolerance for nbf only.
func (v *Verification) WithNotBeforeLeeway(seconds int64) *Verification {
	v.checkLeeway(seconds)
	v.nbfLee = &seconds
	return v
}

// WithIssuedAtLeeway overrides the tolerance for iat only.
func (v *Verification) WithIssuedAtLeeway(seconds int64) *Verification {
	v.checkLeeway(seconds)
	v.iatLee = &seconds
	return v
}

// AcceptIssuers passes tokens carrying at least one of the given issuers.
func (v *Verification) AcceptIssuers(issuers ...string) *Verification {
	v.issuers = append([]string(nil), issuers...)
	return v
}

// AcceptAudience passes tokens whose audience shares at least one value
// with audience.
func (v *Verification) AcceptAudience(audience ...string) *Verification {
	v.audience = append([]string(nil), audience...)
	return v
}

func (v *Verification) WithSubject(subject string) *Verification {
	v.subject = &subject
	return v
}

// WithClaim expects name to equal value exactly.
func (v *Verification) WithClaim(name string, value Claim) *Verification {
	if strings.TrimSpace(name) == "" {
		if v.err == nil {
			v.err = fmt.Errorf("%w: the custom claim's name can't be empty", ErrInvalidClaim)
		}
		return v
	}
	v.claims.Set(name, value)
	return v
}

// WithEncoding tells the verifier how the segments were written. Encodings
// are never guessed.
func (v *Verification) WithEncoding(enc Encoding) *Verification {
	v.encoding = enc
	return v
}

// WithKeySource resolves keys per token instead of using the algorithm's
// bound key material.
func (v *Verification) WithKeySource(src KeySource) *Verification {
	v.source = src
	return v
}

func (v *Verification) WithClock(now func() time.Time) *Verification {
	if now != nil {
		v.clock = now
	}
	return v
}

func (v *Verification) checkLeeway(seconds int64) {
	if seconds < 0 && v.err == nil {
		v.err = ErrLeewayInvalid
	}
}

// Build freezes the verification. A negative leeway fails here with
// ErrLeewayInvalid.
func (v *Verification) Build() (*Verifier, error) {
	if v.err != nil {
		return nil, v.err
	}
	if v.alg == nil {
		return nil, fmt.Errorf("%w: the algorithm cannot be nil", ErrInvalidKeyMaterial)
	}
	out := &Verifier{
		alg:      v.alg,
		expLee:   v.leeway,
		nbfLee:   v.leeway,
		iatLee:   v.leeway,
		issuers:  append([]string(nil), v.issuers...),
		audience: append([]string(nil), v.audience...),
		claims:   v.claims.Clone(),
		encoding: v.encoding,
		source:   v.source,
		clock:    v.clock,
	}
	if v.expLee != nil {
		out.expLee = *v.expLee
	}
	if v.nbfLee != nil {
		out.nbfLee = *v.nbfLee
	}
	if v.iatLee != nil {
		out.iatLee = *v.iatLee
	}
	if v.subject != nil {
		s := *v.subject
		out.subject = &s
	}
	return out, nil
}

// Verifier checks compact tokens against a fixed set of expectations. It is
// immutable and safe for concurrent use.
type Verifier struct {
	alg      *algorithm.Algorithm
	expLee   int64
	nbfLee   int64
	iatLee   int64
	issuers  []string
	audience []string
	subject  *string
	claims   *ClaimSet
	encoding Encoding
	source   KeySource
	clock    func() time.Time
}

func (v *Verifier) Algorithm() *algorithm.Algorithm { return v.alg }

// Verify parses token, checks the algorithm and signature, then the claims.
// The first failure is returned. Algorithm identity and signature are always
// checked before any claim.
func (v *Verifier) Verify(ctx context.Context, token string) (*Decoded, error) {
	d, err := parse(token, v.encoding)
	if err != nil {
		return nil, err
	}

	if got := d.header.Algorithm(); got != v.alg.Name() {
		return nil, fmt.Errorf("%w: token uses %q, expected %q", ErrAlgorithmMismatch, got, v.alg.Name())
	}

	if err := v.verifySignature(ctx, d); err != nil {
		return nil, err
	}

	if err := v.verifyClaims(d.claims); err != nil {
		return nil, err
	}
	return d, nil
}

func (v *Verifier) verifySignature(ctx context.Context, d *Decoded) error {
	var (
		ok  bool
		err error
	)
	kid := d.header.KeyID()
	if v.source != nil && v.alg.Family() != algorithm.FamilyNone {
		key, kerr := v.source.VerificationKey(ctx, v.alg, kid)
		if kerr != nil {
			return fmt.Errorf("%w: resolve key %q: %w", ErrInvalidSignature, kid, kerr)
		}
		ok, err = v.alg.VerifyWith(key, d.signingInput, d.signature)
	} else {
		ok, err = v.alg.VerifyKeyID(kid, d.signingInput, d.signature)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

func (v *Verifier) verifyClaims(claims *ClaimSet) error {
	now := v.clock().Unix()

	if exp, ok, err := numericDate(claims, ClaimExpiresAt); err != nil {
		return err
	} else if ok && exp < now-v.expLee {
		return ErrTokenExpired
	}
	if nbf, ok, err := numericDate(claims, ClaimNotBefore); err != nil {
		return err
	} else if ok && nbf > now+v.nbfLee {
		return ErrTokenNotYetValid
	}
	if iat, ok, err := numericDate(claims, ClaimIssuedAt); err != nil {
		return err
	} else if ok && iat > now+v.iatLee {
		return fmt.Errorf("%w: issued in the future", ErrTokenNotYetValid)
	}

	if len(v.issuers) > 0 && !intersects(claims, ClaimIssuer, v.issuers) {
		return ErrIssuerMismatch
	}
	if len(v.audience) > 0 && !intersects(claims, ClaimAudience, v.audience) {
		return ErrAudienceMismatch
	}
	if v.subject != nil {
		c, ok := claims.Get(ClaimSubject)
		if !ok || !c.Equal(String(*v.subject)) {
			return &ClaimError{Name: ClaimSubject}
		}
	}
	for _, name := range v.claims.Names() {
		want, _ := v.claims.Get(name)
		got, ok := claims.Get(name)
		if !ok || !got.Equal(want) {
			return &ClaimError{Name: name}
		}
	}
	return nil
}

func numericDate(claims *ClaimSet, name string) (int64, bool, error) {
	c, ok := claims.Get(name)
	if !ok {
		return 0, false, nil
	}
	t, ok := c.AsTime()
	if !ok {
		return 0, false, fmt.Errorf("%w: %q is not a numeric date", ErrTokenFormat, name)
	}
	return t.Unix(), true, nil
}

func intersects(claims *ClaimSet, name string, accepted []string) bool {
	c, ok := claims.Get(name)
	if !ok {
		return false
	}
	values, ok := c.AsStrings()
	if !ok {
		return false
	}
	for _, have := range values {
		for _, want := range accepted {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Decode parses token without verifying anything. It is meant for inspection
// and for picking a key before verification; never trust its claims.
func Decode(token string, enc Encoding) (*Decoded, error) {
	return parse(token, enc)
}

func parse(token string, enc Encoding) (*Decoded, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrTokenFormat, len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: empty header or payload", ErrTokenFormat)
	}

	headerJSON, err := enc.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTokenFormat, err)
	}
	payloadJSON, err := enc.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTokenFormat, err)
	}
	signature, err := enc.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrTokenFormat, err)
	}

	header := NewClaimSet()
	if err := json.Unmarshal(headerJSON, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTokenFormat, err)
	}
	claims := NewClaimSet()
	if err := json.Unmarshal(payloadJSON, claims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTokenFormat, err)
	}

	signingInput := parts[0] + "." + parts[1]
	if enc != Base64URL {
		signingInput = Base64URL.EncodeToString(headerJSON) + "." + Base64URL.EncodeToString(payloadJSON)
	}

	return &Decoded{
		token:        token,
		encoding:     enc,
		header:       Header{claims: header},
		claims:       claims,
		signingInput: []byte(signingInput),
		signature:    signature,
	}, nil
}
