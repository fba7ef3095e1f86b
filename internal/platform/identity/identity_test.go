package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	provider := NewStatic(User{})
	if IsAuthenticated(provider) {
		t.Fatal("expected signed-out provider")
	}
	provider.Set(User{ID: "shopper-1", Name: "Ada"})
	user, ok := provider.CurrentUser()
	if !ok || user.ID != "shopper-1" {
		t.Fatalf("CurrentUser = %+v, %v", user, ok)
	}
}

func TestIsAuthenticatedNilProvider(t *testing.T) {
	t.Parallel()

	if IsAuthenticated(nil) {
		t.Fatal("expected nil provider to be unauthenticated")
	}
}

func TestTokenProviderReadsSubject(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.MapClaims{
		"sub":  "shopper-9",
		"name": "Grace",
		"exp":  now.Add(time.Hour).Unix(),
	})
	provider := NewTokenProvider(token, func() time.Time { return now })

	user, ok := provider.CurrentUser()
	if !ok {
		t.Fatal("expected authenticated user")
	}
	if user.ID != "shopper-9" || user.Name != "Grace" {
		t.Fatalf("user = %+v", user)
	}
	if provider.Token() != token {
		t.Fatal("expected raw token")
	}
}

func TestTokenProviderRejectsExpiredAndMalformed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := signedToken(t, jwt.MapClaims{
		"sub": "shopper-9",
		"exp": now.Add(-time.Minute).Unix(),
	})
	testCases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "not-a-jwt"},
		{name: "expired", token: expired},
		{name: "missing subject", token: signedToken(t, jwt.MapClaims{"name": "x"})},
	}
	for _, tc := range testCases {
		provider := NewTokenProvider(tc.token, func() time.Time { return now })
		if _, ok := provider.CurrentUser(); ok {
			t.Fatalf("%s: expected unauthenticated", tc.name)
		}
	}
}
