package jwt

import (
	"time"
)

// Decoded is a parsed token. The verifier only hands one out after the
// signature and every configured claim check passed. Accessors return copies.
type Decoded struct {
	token        string
	encoding     Encoding
	header       Header
	claims       *ClaimSet
	signingInput []byte
	signature    []byte
}

func (d *Decoded) Token() string      { return d.token }
func (d *Decoded) Encoding() Encoding { return d.encoding }
func (d *Decoded) Header() Header     { return Header{claims: d.header.claims.Clone()} }
func (d *Decoded) Claims() *ClaimSet  { return d.claims.Clone() }
func (d *Decoded) Algorithm() string  { return d.header.Algorithm() }
func (d *Decoded) KeyID() string      { return d.header.KeyID() }

func (d *Decoded) Claim(name string) (Claim, bool) { return d.claims.Get(name) }

func (d *Decoded) SigningInput() []byte { return append([]byte(nil), d.signingInput...) }
func (d *Decoded) Signature() []byte    { return append([]byte(nil), d.signature...) }

// Subject returns "sub" when it is a single string.
func (d *Decoded) Subject() string { return d.str(ClaimSubject) }
func (d *Decoded) ID() string      { return d.str(ClaimJWTID) }

// Issuers returns "iss" as a list; a single issuer becomes one element.
func (d *Decoded) Issuers() []string  { return d.strs(ClaimIssuer) }
func (d *Decoded) Audience() []string { return d.strs(ClaimAudience) }

func (d *Decoded) ExpiresAt() (time.Time, bool) { return d.date(ClaimExpiresAt) }
func (d *Decoded) NotBefore() (time.Time, bool) { return d.date(ClaimNotBefore) }
func (d *Decoded) IssuedAt() (time.Time, bool)  { return d.date(ClaimIssuedAt) }

func (d *Decoded) str(name string) string {
	c, ok := d.claims.Get(name)
	if !ok {
		return ""
	}
	s, _ := c.AsString()
	return s
}

func (d *Decoded) strs(name string) []string {
	c, ok := d.claims.Get(name)
	if !ok {
		return nil
	}
	out, _ := c.AsStrings()
	return out
}

func (d *Decoded) date(name string) (time.Time, bool) {
	c, ok := d.claims.Get(name)
	if !ok {
		return time.Time{}, false
	}
	return c.AsTime()
}
