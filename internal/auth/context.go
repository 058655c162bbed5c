// ABOUTME: Authentication context for tracking a caller's identity and capabilities
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// AuthContext holds the authenticated identity extracted from a capability token.
type AuthContext struct {
	Subject      string // who the token was issued to
	Capabilities Set    // tokens the caller may see
}

// Has reports whether the caller holds token. A nil AuthContext holds nothing.
func (a *AuthContext) Has(token string) bool {
	if a == nil {
		return false
	}
	return a.Capabilities.Has(token)
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	auth, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}
