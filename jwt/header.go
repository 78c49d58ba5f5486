package jwt

// Reserved header names.
const (
	HeaderAlgorithm   = "alg"
	HeaderType        = "typ"
	HeaderKeyID       = "kid"
	HeaderContentType = "cty"
)

// Header is the token's JOSE header. It is a claim mapping whose reserved
// members have typed accessors.
type Header struct {
	claims *ClaimSet
}

func newHeader(alg, kid string, extra *ClaimSet) Header {
	set := NewClaimSet()
	set.Set(HeaderAlgorithm, String(alg))
	set.Set(HeaderType, String("JWT"))
	if kid != "" {
		set.Set(HeaderKeyID, String(kid))
	}
	for _, name := range extra.Names() {
		if name == HeaderAlgorithm {
			continue
		}
		c, _ := extra.Get(name)
		set.Set(name, c)
	}
	return Header{claims: set}
}

func (h Header) Algorithm() string   { return h.str(HeaderAlgorithm) }
func (h Header) Type() string        { return h.str(HeaderType) }
func (h Header) KeyID() string       { return h.str(HeaderKeyID) }
func (h Header) ContentType() string { return h.str(HeaderContentType) }

func (h Header) Get(name string) (Claim, bool) { return h.claims.Get(name) }

// Claims returns a copy of every header member.
func (h Header) Claims() *ClaimSet { return h.claims.Clone() }

func (h Header) str(name string) string {
	c, ok := h.claims.Get(name)
	if !ok {
		return ""
	}
	s, _ := c.AsString()
	return s
}

func (h Header) MarshalJSON() ([]byte, error) {
	if h.claims == nil {
		return []byte("{}"), nil
	}
	return h.claims.MarshalJSON()
}
