package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultSessionLocalsKey is the router locals key used by route guards.
const DefaultSessionLocalsKey = "session"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession stores a copy of session in the given context.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session.Clone())
}

// SessionFromContext finds the session stored by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	session, ok := ctx.Value(sessionCtxKey).(*Session)
	return session, ok && session != nil
}

// IdentityFromContext is a shortcut for the identity of the stored session.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return nil, false
	}
	return session.Identity.Clone(), true
}

// SessionFromRouter extracts the session a route guard placed in the router
// locals under key.
func SessionFromRouter(ctx router.Context, key string) (*Session, bool) {
	if key == "" {
		key = DefaultSessionLocalsKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*Session)
	return session, ok && session != nil
}

// RoleFromRouter returns the role of the guarded session, if any.
func RoleFromRouter(ctx router.Context, key string) (Role, bool) {
	session, ok := SessionFromRouter(ctx, key)
	if !ok {
		return "", false
	}
	return session.Role(), true
}
