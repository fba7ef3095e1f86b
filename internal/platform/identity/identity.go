// Package identity exposes the current shopper identity to the sync layer.
//
// The sync layer only reads identity; signing in, refreshing and verifying
// tokens belong to the authentication service.
package identity

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the signed-in shopper.
type User struct {
	ID   string
	Name string
}

// Provider resolves the current user, if any.
type Provider interface {
	CurrentUser() (User, bool)
}

// IsAuthenticated reports whether provider currently has a user.
func IsAuthenticated(provider Provider) bool {
	if provider == nil {
		return false
	}
	_, ok := provider.CurrentUser()
	return ok
}

// Static is a Provider with a fixed, replaceable user.
type Static struct {
	mu   sync.RWMutex
	user User
}

// NewStatic returns a provider for user; an empty user ID means signed out.
func NewStatic(user User) *Static {
	return &Static{user: user}
}

// CurrentUser implements Provider.
func (s *Static) CurrentUser() (User, bool) {
	if s == nil {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if strings.TrimSpace(s.user.ID) == "" {
		return User{}, false
	}
	return s.user, true
}

// Set replaces the current user.
func (s *Static) Set(user User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// TokenProvider derives the user from the subject of a bearer access token.
//
// Claims are read without signature verification: the API verifies every
// request, and the client only needs the subject to scope cache keys.
type TokenProvider struct {
	token string
	clock func() time.Time
}

// NewTokenProvider returns a provider for token. clock may be nil.
func NewTokenProvider(token string, clock func() time.Time) *TokenProvider {
	if clock == nil {
		clock = time.Now
	}
	return &TokenProvider{token: strings.TrimSpace(token), clock: clock}
}

// Token returns the raw access token.
func (p *TokenProvider) Token() string {
	if p == nil {
		return ""
	}
	return p.token
}

type accessClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// CurrentUser implements Provider. Malformed or expired tokens are treated as
// signed out.
func (p *TokenProvider) CurrentUser() (User, bool) {
	if p == nil || p.token == "" {
		return User{}, false
	}
	claims := &accessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(p.token, claims); err != nil {
		return User{}, false
	}
	if claims.ExpiresAt != nil && !p.clock().Before(claims.ExpiresAt.Time) {
		return User{}, false
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return User{}, false
	}
	return User{ID: subject, Name: strings.TrimSpace(claims.Name)}, true
}
