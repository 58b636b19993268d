package registry

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Authenticator attaches credentials to an outgoing registry request and
// reacts to a 401 by forcing one token refresh before the caller surfaces
// the failure.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
	// ForceRefresh is called once after a 401; implementations without a
	// refreshable token (None, Basic) may no-op.
	ForceRefresh(ctx context.Context) error
}

// NoAuth performs no authentication.
type NoAuth struct{}

func (NoAuth) Authenticate(context.Context, *http.Request) error { return nil }
func (NoAuth) ForceRefresh(context.Context) error                { return nil }

// BasicAuth attaches HTTP Basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Authenticate(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}
func (BasicAuth) ForceRefresh(context.Context) error { return nil }

// BearerAuth attaches a static bearer token.
type BearerAuth struct {
	Token string
}

func (b BearerAuth) Authenticate(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}
func (BearerAuth) ForceRefresh(context.Context) error { return nil }

// TokenProvider abstracts a cloud-specific token source (ECR, GCR/GAR).
// This module ships only a static/env-var-backed stub implementation: no
// AWS or GCP SDK appears anywhere in the reference pack, so wiring a real
// one in would introduce a dependency the corpus never grounds (see
// DESIGN.md). Production deployments supply their own TokenProvider.
type TokenProvider interface {
	// Token returns a bearer token and its expiry.
	Token(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// TokenProviderAuth wraps a TokenProvider, caching its token until
// RefreshSkew before expiry and forcing a refresh on demand (a 401
// response).
type TokenProviderAuth struct {
	Provider    TokenProvider
	RefreshSkew time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenProviderAuth returns a TokenProviderAuth with a 60s refresh skew.
func NewTokenProviderAuth(p TokenProvider) *TokenProviderAuth {
	return &TokenProviderAuth{Provider: p, RefreshSkew: 60 * time.Second}
}

func (a *TokenProviderAuth) Authenticate(ctx context.Context, req *http.Request) error {
	token, err := a.currentToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *TokenProviderAuth) ForceRefresh(ctx context.Context) error {
	a.mu.Lock()
	a.expires = time.Time{}
	a.mu.Unlock()
	_, err := a.currentToken(ctx)
	return err
}

func (a *TokenProviderAuth) currentToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && time.Now().Add(a.RefreshSkew).Before(a.expires) {
		return a.token, nil
	}
	token, expires, err := a.Provider.Token(ctx)
	if err != nil {
		return "", &Error{Kind: ErrAuthenticationFailed, Message: "token provider failed", Cause: err}
	}
	a.token = token
	a.expires = expires
	return token, nil
}

// StaticEnvTokenProvider reads a pre-fetched token from an environment
// variable, the stand-in this module uses where a real EcrTokenProvider or
// GcpTokenProvider would plug in.
type StaticEnvTokenProvider struct {
	Token   string
	Expires time.Time
}

func (p StaticEnvTokenProvider) Token(context.Context) (string, time.Time, error) {
	return p.Token, p.Expires, nil
}
