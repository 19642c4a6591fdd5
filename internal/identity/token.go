// Package identity resolves the local user from the application's session token.
package identity

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vico_home/callcore/internal/domain"
)

// Claims is the subset of the session token the call core reads.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenProvider implements domain.IdentityProvider over a JWT session token.
// With a secret the token is verified (HS256); without one it is only
// decoded, since the relay verifies it on connect.
type TokenProvider struct {
	secret []byte
	now    func() time.Time

	mu    sync.RWMutex
	token string
}

// NewTokenProvider creates a provider for token. secret may be empty.
func NewTokenProvider(token, secret string) *TokenProvider {
	p := &TokenProvider{now: time.Now, token: strings.TrimSpace(token)}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// SetToken replaces the session token, e.g. after the auth layer refreshed it.
func (p *TokenProvider) SetToken(token string) {
	p.mu.Lock()
	p.token = strings.TrimSpace(token)
	p.mu.Unlock()
}

// Token returns the raw session token.
func (p *TokenProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// CurrentUserID returns the user id carried by the token. Any failure is
// reported as domain.ErrNoIdentity.
func (p *TokenProvider) CurrentUserID() (string, error) {
	token := p.Token()
	if token == "" {
		return "", fmt.Errorf("%w: empty session token", domain.ErrNoIdentity)
	}

	claims, err := p.parse(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNoIdentity, err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return "", fmt.Errorf("%w: token carries no user id", domain.ErrNoIdentity)
	}
	return id, nil
}

func (p *TokenProvider) parse(token string) (*Claims, error) {
	var claims Claims

	if p.secret == nil {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
			return nil, err
		}
		if claims.ExpiresAt != nil && p.now().After(claims.ExpiresAt.Time) {
			return nil, jwt.ErrTokenExpired
		}
		return &claims, nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithLeeway(30*time.Second),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// Static is an identity provider with a fixed user id.
type Static string

// CurrentUserID returns the fixed id, or ErrNoIdentity when empty.
func (s Static) CurrentUserID() (string, error) {
	if s == "" {
		return "", domain.ErrNoIdentity
	}
	return string(s), nil
}
