package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goJWT/algorithm"
	gjwt "github.com/golang-jwt/jwt/v5"
)

func newECKeys(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ecdsa key: %v", err)
	}
	return key
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	key := newECKeys(t)
	es256, err := algorithm.ECDSA256(&key.PublicKey, nil)
	if err != nil {
		t.Fatalf("new algorithm: %v", err)
	}
	v, err := Require(es256).Build()
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrAlgorithmMismatch) {
		t.Fatalf("expected algorithm mismatch, got %v", err)
	}
}

func TestVerifyAcceptsForeignTokens(t *testing.T) {
	key := newECKeys(t)
	es256, err := algorithm.ECDSA256(&key.PublicKey, nil)
	if err != nil {
		t.Fatalf("new algorithm: %v", err)
	}
	v, err := Require(es256).
		AcceptIssuers("accounts.example.com").
		AcceptAudience("api").
		WithLeeway(30).
		Build()
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}

	good := gjwt.NewWithClaims(gjwt.SigningMethodES256, gjwt.RegisteredClaims{
		Issuer:    "accounts.example.com",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, err := good.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(context.Background(), signed); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	wrongAudience := gjwt.NewWithClaims(gjwt.SigningMethodES256, gjwt.RegisteredClaims{
		Issuer:    "accounts.example.com",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	badAudience, _ := wrongAudience.SignedString(key)
	if _, err := v.Verify(context.Background(), badAudience); !errors.Is(err, ErrAudienceMismatch) {
		t.Fatalf("expected audience mismatch, got %v", err)
	}

	expired := gjwt.NewWithClaims(gjwt.SigningMethodES256, gjwt.RegisteredClaims{
		Issuer:    "accounts.example.com",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
	})
	expiredSigned, _ := expired.SignedString(key)
	if _, err := v.Verify(context.Background(), expiredSigned); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestBuiltTokensParseWithGolangJWT(t *testing.T) {
	alg, err := algorithm.HMAC256([]byte("secret"))
	if err != nil {
		t.Fatalf("new algorithm: %v", err)
	}
	token, err := NewImplicitBuilder().
		WithIssuer("accounts.example.com").
		WithSubject("user-1").
		WithIssuedAt(time.Now()).
		WithKeyID("k1").
		Sign(alg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := gjwt.Parse(token, func(tok *gjwt.Token) (interface{}, error) {
		if tok.Header["kid"] != "k1" {
			t.Fatalf("kid header lost: %v", tok.Header)
		}
		return []byte("secret"), nil
	}, gjwt.WithValidMethods([]string{"HS256"}), gjwt.WithIssuer("accounts.example.com"))
	if err != nil {
		t.Fatalf("golang-jwt rejected token: %v", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub != "user-1" {
		t.Fatalf("unexpected subject %q (%v)", sub, err)
	}
}

func TestVerifyUnknownKidFails(t *testing.T) {
	k1 := newECKeys(t)
	k2 := newECKeys(t)
	es256, err := algorithm.ECDSA256(&k1.PublicKey, nil)
	if err != nil {
		t.Fatalf("new algorithm: %v", err)
	}
	keys := map[string]any{"k1": &k1.PublicKey}
	v, err := Require(es256).WithKeySource(KeySourceFunc(func(_ context.Context, _ *algorithm.Algorithm, kid string) (any, error) {
		key, ok := keys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	})).Build()
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}

	claims := gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodES256, claims)
	tok.Header["kid"] = "k2"
	unknown, err := tok.SignedString(k1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(context.Background(), unknown); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}

	tok2 := gjwt.NewWithClaims(gjwt.SigningMethodES256, claims)
	tok2.Header["kid"] = "k1"
	good, _ := tok2.SignedString(k1)
	if _, err := v.Verify(context.Background(), good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	forged, _ := tok2.SignedString(k2)
	if _, err := v.Verify(context.Background(), forged); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected signature from other key to fail, got %v", err)
	}
}
