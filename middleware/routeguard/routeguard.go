// Package routeguard applies auth.Guard decisions to go-router routes.
package routeguard

import (
	"net/http"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-router"
)

type Config struct {
	// Filter skips the guard when it returns true.
	Filter func(router.Context) bool
	// Guard defaults to auth.NewGuard().
	Guard *auth.Guard
	// Sessions provides the published session, usually the auth.Service.
	Sessions auth.SessionReader
	Class    auth.RouteClass
	// StatusCode used for redirects, defaults to 302.
	StatusCode int
	// OnRedirect is called before redirecting.
	OnRedirect func(ctx router.Context, decision auth.Decision)
	// ContextKey, when set, stores the allowed session in the router locals
	// for auth.SessionFromRouter.
	ContextKey string
}

// New returns a middleware that lets the request through on Allow and
// redirects otherwise.
func New(cfg Config) router.MiddlewareFunc {
	if cfg.Guard == nil {
		cfg.Guard = auth.NewGuard()
	}
	if cfg.StatusCode == 0 {
		cfg.StatusCode = http.StatusFound
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return hf(ctx)
			}

			var session *auth.Session
			if cfg.Sessions != nil {
				session = cfg.Sessions.Current()
			}

			decision := cfg.Guard.Check(session, cfg.Class)
			if decision.Allowed {
				if cfg.ContextKey != "" && session != nil {
					ctx.Locals(cfg.ContextKey, session)
				}
				return hf(ctx)
			}

			if cfg.OnRedirect != nil {
				cfg.OnRedirect(ctx, decision)
			}
			return ctx.Redirect(decision.Redirect, cfg.StatusCode)
		}
	}
}

// Public guards routes meant for anonymous visitors only.
func Public(guard *auth.Guard, sessions auth.SessionReader) router.MiddlewareFunc {
	return New(Config{Guard: guard, Sessions: sessions, Class: auth.RoutePublic})
}

// Authenticated guards routes that need a live session.
func Authenticated(guard *auth.Guard, sessions auth.SessionReader) router.MiddlewareFunc {
	return New(Config{Guard: guard, Sessions: sessions, Class: auth.RouteAuthenticated})
}

// AdminOnly guards routes that need the admin role.
func AdminOnly(guard *auth.Guard, sessions auth.SessionReader) router.MiddlewareFunc {
	return New(Config{Guard: guard, Sessions: sessions, Class: auth.RouteAdminOnly})
}
