package keys

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJarResolvesAcrossIssuerBundles(t *testing.T) {
	k1, k2 := newRSAKey(t, "k1"), newRSAKey(t, "k2")
	jar := NewJar()
	jar.Add("https://a.example.com", NewBundle([]Key{k1}), NewBundle([]Key{k2}))
	jar.Add("https://b.example.com", NewBundle(nil))

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, jar.Issuers())

	vk, err := jar.VerificationKey(context.Background(), "https://a.example.com", rs256For(t, k2), "k2")
	require.NoError(t, err)
	assert.Equal(t, k2.VerificationKey(), vk)

	_, err = jar.VerificationKey(context.Background(), "https://b.example.com", rs256For(t, k2), "k2")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = jar.VerificationKey(context.Background(), "https://c.example.com", rs256For(t, k2), "k2")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.Len(t, jar.Keys(context.Background(), "https://a.example.com"), 2)
	jar.RemoveIssuer("https://b.example.com")
	assert.Equal(t, []string{"https://a.example.com"}, jar.Issuers())
}

func TestJarPrune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBundle([]Key{newRSAKey(t, "old")}, WithClock(func() time.Time { return now }))
	b.MarkInactive("old")
	jar := NewJar()
	jar.Add("", b)
	assert.Equal(t, 1, jar.PruneInactive(time.Minute, now.Add(time.Hour)))
}

func TestProviderSignsAndVerifiesThroughBundle(t *testing.T) {
	k := newRSAKey(t, "sig-1")
	b := NewBundle([]Key{k})
	alg, err := algorithm.WithProvider(algorithm.RS256, NewProvider(b, "sig-1"))
	require.NoError(t, err)
	assert.Equal(t, "sig-1", alg.KeyID())

	sig, err := alg.Sign([]byte("input"))
	require.NoError(t, err)
	ok, err := alg.VerifyKeyID("sig-1", []byte("input"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewProvider(b, "").PrivateKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
