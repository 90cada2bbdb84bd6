// Package auth provides the security tokens passed to dependency handlers.
//
// The engine treats the auth context as opaque and only forwards it. Handlers
// built on this package call [Check] on every operation, so access is
// enforced the same way whether an object was selected directly or reached
// through another object's dependencies.
//
// # Usage
//
//	tok, err := auth.New("deploy-bot", auth.DefaultTTL, auth.PermRead)
//	if err != nil {
//	    return err
//	}
//	closure, err := resolver.Resolve(ctx, tok, roots, opts)
//
// The CLI runs with [Local], a full-permission token for the local user.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/percussion/deployer/pkg/errors"
)

// Permission names an operation class a token may perform.
type Permission string

const (
	// PermRead allows existence checks, resolution, enumeration and export.
	PermRead Permission = "read"

	// PermWrite allows installing objects.
	PermWrite Permission = "write"
)

// DefaultTTL is the default token lifetime.
const DefaultTTL = 8 * time.Hour

// Token is an authenticated principal with a set of permissions.
type Token struct {
	ID          string       `json:"id"`
	Principal   string       `json:"principal"`
	Permissions []Permission `json:"permissions"`
	ExpiresAt   time.Time    `json:"expires_at"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsExpired returns true if the token has expired.
func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Allows reports whether the token grants p.
func (t *Token) Allows(p Permission) bool {
	return t != nil && slices.Contains(t.Permissions, p)
}

// GenerateID creates a cryptographically secure random token ID.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// New creates a token for principal valid for ttl.
func New(principal string, ttl time.Duration, perms ...Permission) (*Token, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Token{
		ID:          id,
		Principal:   principal,
		Permissions: perms,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}, nil
}

// Local returns a token for the local CLI user with every permission.
func Local() *Token {
	now := time.Now()
	return &Token{
		ID:          "local",
		Principal:   "local",
		Permissions: []Permission{PermRead, PermWrite},
		ExpiresAt:   now.Add(365 * 24 * time.Hour),
		CreatedAt:   now,
	}
}

// Check verifies that the opaque auth context is a valid, unexpired token
// granting p. It returns an UNAUTHORIZED error otherwise.
func Check(authCtx any, p Permission) error {
	tok, ok := authCtx.(*Token)
	if !ok || tok == nil {
		return errors.New(errors.ErrCodeUnauthorized, "missing or invalid security token")
	}
	if tok.IsExpired() {
		return errors.New(errors.ErrCodeUnauthorized, "token for %s expired at %s", tok.Principal, tok.ExpiresAt.Format(time.RFC3339))
	}
	if !tok.Allows(p) {
		return errors.New(errors.ErrCodeUnauthorized, "%s lacks %s permission", tok.Principal, p)
	}
	return nil
}
