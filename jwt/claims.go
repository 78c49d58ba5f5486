package jwt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Registered claim names.
const (
	ClaimIssuer    = "iss"
	ClaimSubject   = "sub"
	ClaimAudience  = "aud"
	ClaimExpiresAt = "exp"
	ClaimNotBefore = "nbf"
	ClaimIssuedAt  = "iat"
	ClaimJWTID     = "jti"
)

// ClaimKind tags the value held by a Claim.
type ClaimKind uint8

const (
	KindInvalid ClaimKind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindTime
	KindStrings
	// KindRaw holds a JSON value outside the scalar kinds (objects, mixed
	// arrays). Raw claims survive a round trip and compare byte for byte.
	KindRaw
)

func (k ClaimKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindStrings:
		return "strings"
	case KindRaw:
		return "raw"
	default:
		return "invalid"
	}
}

// Claim is one claim value. The zero Claim is invalid.
type Claim struct {
	kind ClaimKind
	s    string
	b    bool
	i    int64
	f    float64
	t    time.Time
	ss   []string
	raw  json.RawMessage
}

func String(v string) Claim  { return Claim{kind: KindString, s: v} }
func Bool(v bool) Claim      { return Claim{kind: KindBool, b: v} }
func Int(v int64) Claim      { return Claim{kind: KindInt, i: v} }
func Float(v float64) Claim  { return Claim{kind: KindFloat, f: v} }
func Time(v time.Time) Claim { return Claim{kind: KindTime, t: v.Truncate(time.Second)} }

// Strings copies values into a sequence claim.
func Strings(values ...string) Claim {
	out := make([]string, len(values))
	copy(out, values)
	return Claim{kind: KindStrings, ss: out}
}

func (c Claim) Kind() ClaimKind { return c.kind }
func (c Claim) IsValid() bool   { return c.kind != KindInvalid }

func (c Claim) AsString() (string, bool) { return c.s, c.kind == KindString }
func (c Claim) AsBool() (bool, bool)     { return c.b, c.kind == KindBool }

func (c Claim) AsInt() (int64, bool) {
	switch c.kind {
	case KindInt:
		return c.i, true
	case KindTime:
		return c.t.Unix(), true
	}
	return 0, false
}

func (c Claim) AsFloat() (float64, bool) {
	switch c.kind {
	case KindFloat:
		return c.f, true
	case KindInt:
		return float64(c.i), true
	}
	return 0, false
}

// AsTime reads numeric claims as seconds since the epoch.
func (c Claim) AsTime() (time.Time, bool) {
	switch c.kind {
	case KindTime:
		return c.t, true
	case KindInt:
		return time.Unix(c.i, 0), true
	case KindFloat:
		// NaN and values outside int64 have no defined conversion.
		if math.IsNaN(c.f) || c.f < math.MinInt64 || c.f >= math.MaxInt64 {
			return time.Time{}, false
		}
		sec, _ := math.Modf(c.f)
		return time.Unix(int64(sec), 0), true
	}
	return time.Time{}, false
}

// AsStrings returns a copy of a sequence claim. A single string reads as a
// one-element sequence, matching how "aud" and "iss" may be written.
func (c Claim) AsStrings() ([]string, bool) {
	switch c.kind {
	case KindStrings:
		out := make([]string, len(c.ss))
		copy(out, c.ss)
		return out, true
	case KindString:
		return []string{c.s}, true
	}
	return nil, false
}

// Raw returns the JSON text of a KindRaw claim.
func (c Claim) Raw() (json.RawMessage, bool) {
	if c.kind != KindRaw {
		return nil, false
	}
	return append(json.RawMessage(nil), c.raw...), true
}

// Equal compares two claims. Dates compare at second precision and a date
// equals an int holding the same epoch second, since dates travel as ints.
func (c Claim) Equal(o Claim) bool {
	if c.kind == KindTime || o.kind == KindTime {
		a, okA := c.AsInt()
		b, okB := o.AsInt()
		return okA && okB && a == b
	}
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindString:
		return c.s == o.s
	case KindBool:
		return c.b == o.b
	case KindInt:
		return c.i == o.i
	case KindFloat:
		return c.f == o.f
	case KindStrings:
		if len(c.ss) != len(o.ss) {
			return false
		}
		for i := range c.ss {
			if c.ss[i] != o.ss[i] {
				return false
			}
		}
		return true
	case KindRaw:
		return bytes.Equal(c.raw, o.raw)
	}
	return true
}

func (c Claim) String() string {
	switch c.kind {
	case KindString:
		return c.s
	case KindStrings:
		return "[" + strings.Join(c.ss, " ") + "]"
	case KindTime:
		return c.t.UTC().Format(time.RFC3339)
	case KindRaw:
		return string(c.raw)
	}
	data, err := c.MarshalJSON()
	if err != nil {
		return c.kind.String()
	}
	return string(data)
}

func (c Claim) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindString:
		return json.Marshal(c.s)
	case KindBool:
		return json.Marshal(c.b)
	case KindInt:
		return json.Marshal(c.i)
	case KindFloat:
		return json.Marshal(c.f)
	case KindTime:
		return json.Marshal(c.t.Unix())
	case KindStrings:
		if c.ss == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.ss)
	case KindRaw:
		return append([]byte(nil), c.raw...), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %s claim", ErrInvalidClaim, c.kind)
}

func claimFromJSON(raw json.RawMessage) (Claim, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Claim{}, err
	}
	switch val := v.(type) {
	case nil:
		return Claim{}, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return Claim{}, err
		}
		return Float(f), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return Claim{kind: KindRaw, raw: compact(raw)}, nil
			}
			out = append(out, s)
		}
		return Claim{kind: KindStrings, ss: out}, nil
	default:
		return Claim{kind: KindRaw, raw: compact(raw)}, nil
	}
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}

// ClaimSet is a name to claim mapping that remembers insertion order for
// serialization. Equality ignores order.
type ClaimSet struct {
	names  []string
	values map[string]Claim
}

func NewClaimSet() *ClaimSet {
	return &ClaimSet{values: make(map[string]Claim)}
}

// Set stores c under name. Overwriting keeps the original position.
func (s *ClaimSet) Set(name string, c Claim) {
	if s.values == nil {
		s.values = make(map[string]Claim)
	}
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = c
}

func (s *ClaimSet) Get(name string) (Claim, bool) {
	if s == nil {
		return Claim{}, false
	}
	c, ok := s.values[name]
	return c, ok
}

func (s *ClaimSet) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

func (s *ClaimSet) Delete(name string) {
	if s == nil {
		return
	}
	if _, ok := s.values[name]; !ok {
		return
	}
	delete(s.values, name)
	names := make([]string, 0, len(s.names)-1)
	for _, n := range s.names {
		if n != name {
			names = append(names, n)
		}
	}
	s.names = names
}

func (s *ClaimSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Names returns claim names in insertion order.
func (s *ClaimSet) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *ClaimSet) Clone() *ClaimSet {
	out := &ClaimSet{
		names:  make([]string, 0, s.Len()),
		values: make(map[string]Claim, s.Len()),
	}
	if s == nil {
		return out
	}
	for _, name := range s.names {
		out.Set(name, s.values[name])
	}
	return out
}

// Equal reports whether both sets hold the same names with equal values.
func (s *ClaimSet) Equal(o *ClaimSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, name := range s.Names() {
		a := s.values[name]
		b, ok := o.Get(name)
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

func (s *ClaimSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := s.values[name].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("claim %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping member order. Null members are
// dropped.
func (s *ClaimSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	next := NewClaimSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected member name, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("claim %q: %w", name, err)
		}
		c, err := claimFromJSON(raw)
		if err != nil {
			return fmt.Errorf("claim %q: %w", name, err)
		}
		if !c.IsValid() {
			continue
		}
		next.Set(name, c)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = *next
	return nil
}
