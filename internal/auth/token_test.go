package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, secret string, now *time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		Secret: []byte(secret),
		Now:    func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestIssueVerifyRoundTripUntilExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, "secret-a", &now)

	token, err := issuer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject 'user-1', got %q", claims.Subject)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("expected email 'a@x.com', got %q", claims.Email)
	}
	if want := now.Add(DefaultTokenTTL); !claims.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, claims.ExpiresAt)
	}

	now = now.Add(DefaultTokenTTL - time.Second)
	if _, err := issuer.Verify(token); err != nil {
		t.Fatalf("expected token valid just before expiry: %v", err)
	}

	now = now.Add(time.Second)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at expiry, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer := newTestIssuer(t, "secret-a", &now)
	verifier := newTestIssuer(t, "secret-b", &now)

	token, err := signer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, "secret-a", &now)

	token, err := issuer.Issue("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, err := issuer.Issue("user-2", "b@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	forged := parts[0] + "." + otherParts[1] + "." + parts[2]

	if _, err := issuer.Verify(forged); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, "secret-a", &now)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := issuer.Verify(token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", token, err)
		}
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, "secret-a", &now)

	claims := jwt.MapClaims{"sub": "user-1", "exp": now.Add(time.Hour).Unix()}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := issuer.Verify(unsigned); err == nil {
		t.Fatalf("expected alg none to be rejected")
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret-a"))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := issuer.Verify(hs512); err == nil {
		t.Fatalf("expected HS512 to be rejected")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer(TokenConfig{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenIssuer(TokenConfig{Secret: []byte("s"), TTL: -time.Second}); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("p", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "p" {
		t.Fatalf("expected hash to differ from password")
	}
	ok, err := ComparePassword(hash, "p")
	if err != nil || !ok {
		t.Fatalf("expected password to match, got %v %v", ok, err)
	}
	ok, err = ComparePassword(hash, "q")
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v %v", ok, err)
	}
}
