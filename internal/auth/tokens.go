// Package auth issues and resolves the opaque API tokens clients send in the
// Authorization header.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
)

const userIDKey = "auth:user:id"

var (
	// ErrMissingToken means the request carried no token credentials.
	ErrMissingToken = errors.New("auth: authentication credentials were not provided")
	// ErrInvalidToken means the token is unknown, expired or revoked.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Tokens issues opaque tokens whose payload lives in an scs store.
type Tokens struct {
	sessions *scs.SessionManager
}

// NewTokens builds a token issuer on top of store. Tokens expire after lifetime.
func NewTokens(store scs.Store, lifetime time.Duration) *Tokens {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = lifetime
	sm.HashTokenInStore = true
	return &Tokens{sessions: sm}
}

// Issue creates a new token bound to userID.
func (t *Tokens) Issue(ctx context.Context, userID uint) (string, time.Time, error) {
	ctx, err := t.sessions.Load(ctx, "")
	if err != nil {
		return "", time.Time{}, err
	}
	t.sessions.Put(ctx, userIDKey, int(userID))
	return t.sessions.Commit(ctx)
}

// Resolve returns the user bound to token.
func (t *Tokens) Resolve(ctx context.Context, token string) (uint, error) {
	if strings.TrimSpace(token) == "" {
		return 0, ErrMissingToken
	}
	ctx, err := t.sessions.Load(ctx, token)
	if err != nil {
		return 0, err
	}
	id := t.sessions.GetInt(ctx, userIDKey)
	if id <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Revoke deletes token so later requests carrying it fail.
func (t *Tokens) Revoke(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	ctx, err := t.sessions.Load(ctx, token)
	if err != nil {
		return err
	}
	return t.sessions.Destroy(ctx)
}

// TokenFromRequest extracts the credentials of an "Authorization: Token <key>"
// or "Authorization: Bearer <key>" header. It returns ErrMissingToken when the
// header is absent or uses another scheme and ErrInvalidToken when it is malformed.
func TokenFromRequest(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(header)
	switch strings.ToLower(parts[0]) {
	case "token", "bearer":
	default:
		return "", ErrMissingToken
	}
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
