package jwt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hs256(t *testing.T, secret string) *algorithm.Algorithm {
	t.Helper()
	alg, err := algorithm.HMAC256([]byte(secret))
	require.NoError(t, err)
	return alg
}

func TestRiscBuilderRequiresClaims(t *testing.T) {
	alg := hs256(t, "secret")
	now := time.Now()

	_, err := NewRiscBuilder().
		WithIssuer("accounts.example.com").
		WithSubject("user-1").
		WithIssuedAt(now).
		Sign(alg)
	require.ErrorIs(t, err, ErrMissingRequiredClaim)

	var missing *MissingClaimError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, ClaimJWTID, missing.Name)

	token, err := NewRiscBuilder().
		WithJWTID("id-1").
		WithIssuer("accounts.example.com").
		WithSubject("user-1").
		WithIssuedAt(now).
		Sign(alg)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
}

func TestMissingClaimReportedInSortedOrder(t *testing.T) {
	_, err := NewImplicitBuilder().Sign(hs256(t, "secret"))
	var missing *MissingClaimError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, ClaimIssuedAt, missing.Name)
}

func TestSigningErrorBeatsMissingClaim(t *testing.T) {
	rsaVerifyOnly, err := algorithm.New(algorithm.RS256, &newRSAKeyForTest(t).PublicKey, nil)
	require.NoError(t, err)

	_, err = NewImplicitBuilder().Sign(rsaVerifyOnly)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
	assert.NotErrorIs(t, err, ErrMissingRequiredClaim)
}

func TestArrayClaimSatisfiesRegisteredName(t *testing.T) {
	b := NewBuilder(ClaimAudience)
	b.WithArrayClaim(ClaimAudience, "svc-a", "svc-b")
	assert.Empty(t, b.Missing())
}

func TestNonStandardClaimNeverSatisfiesRequired(t *testing.T) {
	b := NewBuilder(ClaimSubject)
	b.WithNonStandardClaim(ClaimSubject, String("user-1"))
	assert.Equal(t, []string{ClaimSubject}, b.Missing())
}

func TestEmptyClaimNameFailsAtSign(t *testing.T) {
	_, err := NewBuilder().WithNonStandardClaim("", String("x")).Sign(hs256(t, "secret"))
	assert.ErrorIs(t, err, ErrInvalidClaim)

	_, err = NewBuilder().WithHeader(HeaderAlgorithm, String("HS512")).Sign(hs256(t, "secret"))
	assert.ErrorIs(t, err, ErrInvalidClaim)
}

func TestNoneRequiresOptIn(t *testing.T) {
	builders := []*Builder{
		NewBuilder(),
		NewBuilder().WithSubject("user-1"),
		NewImplicitBuilder().WithIssuer("a").WithSubject("b").WithIssuedAt(time.Now()),
		NewRiscBuilder(),
	}
	for _, b := range builders {
		_, err := b.Sign(algorithm.None())
		assert.ErrorIs(t, err, ErrNoneAlgorithmNotAllowed)
	}

	token, err := NewBuilder().WithSubject("user-1").AllowNoneAlgorithm(true).Sign(algorithm.None())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(token, "."))

	v, err := Require(algorithm.None()).WithSubject("user-1").Build()
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
}

func TestSetterOverwrites(t *testing.T) {
	b := NewBuilder().WithAudience("a", "b").WithAudience("c")
	c, ok := b.Claims().Get(ClaimAudience)
	require.True(t, ok)
	aud, _ := c.AsStrings()
	assert.Equal(t, []string{"c"}, aud)
}

func TestProviderKeyIDStampedInHeader(t *testing.T) {
	key := newRSAKeyForTest(t)
	alg, err := algorithm.WithProvider(algorithm.RS256, fixedProvider{key: key, id: "rsa-1"})
	require.NoError(t, err)

	token, err := NewBuilder().WithSubject("user-1").Sign(alg)
	require.NoError(t, err)

	d, err := Decode(token, Base64URL)
	require.NoError(t, err)
	assert.Equal(t, "rsa-1", d.KeyID())
	assert.Equal(t, "JWT", d.Header().Type())

	token, err = NewBuilder().WithKeyID("explicit").Sign(alg)
	require.NoError(t, err)
	d, err = Decode(token, Base64URL)
	require.NoError(t, err)
	assert.Equal(t, "explicit", d.KeyID())
}
