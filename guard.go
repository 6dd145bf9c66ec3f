package auth

import (
	"fmt"
	"strings"
)

// RouteClass is the access tier a navigation target requires.
type RouteClass int

const (
	// RoutePublic targets only make sense to anonymous visitors, like the
	// login and registration forms.
	RoutePublic RouteClass = iota
	RouteAuthenticated
	RouteAdminOnly
)

const (
	DefaultHomeRoute  = "/"
	DefaultLoginRoute = "/login"
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteAuthenticated:
		return "authenticated"
	case RouteAdminOnly:
		return "admin"
	default:
		return fmt.Sprintf("route_class(%d)", int(c))
	}
}

// ParseRouteClass accepts "public", "authenticated" (or "private") and
// "admin" (or "admin_only").
func ParseRouteClass(raw string) (RouteClass, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "public":
		return RoutePublic, nil
	case "authenticated", "private":
		return RouteAuthenticated, nil
	case "admin", "admin_only", "adminonly":
		return RouteAdminOnly, nil
	default:
		return 0, wrapError(ErrInvalidInput, nil, map[string]any{"route_class": raw})
	}
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Allow lets navigation proceed.
func Allow() Decision {
	return Decision{Allowed: true}
}

// RedirectTo sends navigation to target.
func RedirectTo(target string) Decision {
	return Decision{Redirect: target}
}

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "redirect(" + d.Redirect + ")"
}

// RouteRule decides access for one route class.
type RouteRule interface {
	Evaluate(session *Session, targets RouteTargets) Decision
}

// RouteRuleFunc adapts a function to RouteRule.
type RouteRuleFunc func(session *Session, targets RouteTargets) Decision

func (f RouteRuleFunc) Evaluate(session *Session, targets RouteTargets) Decision {
	return f(session, targets)
}

// RouteTargets are the redirect destinations.
type RouteTargets struct {
	Home  string
	Login string
}

type publicRule struct{}

func (publicRule) Evaluate(session *Session, t RouteTargets) Decision {
	if session == nil {
		return Allow()
	}
	return RedirectTo(t.Home)
}

type authenticatedRule struct{}

func (authenticatedRule) Evaluate(session *Session, t RouteTargets) Decision {
	if session == nil {
		return RedirectTo(t.Login)
	}
	return Allow()
}

type adminRule struct{}

func (adminRule) Evaluate(session *Session, t RouteTargets) Decision {
	switch {
	case session == nil:
		return RedirectTo(t.Login)
	case !session.IsAdmin():
		return RedirectTo(t.Home)
	default:
		return Allow()
	}
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithHomeRoute sets where authenticated visitors are bounced to.
func WithHomeRoute(path string) GuardOption {
	return func(g *Guard) {
		if path = strings.TrimSpace(path); path != "" {
			g.targets.Home = path
		}
	}
}

// WithLoginRoute sets where anonymous visitors are sent.
func WithLoginRoute(path string) GuardOption {
	return func(g *Guard) {
		if path = strings.TrimSpace(path); path != "" {
			g.targets.Login = path
		}
	}
}

// WithRouteRule replaces the rule for a class.
func WithRouteRule(class RouteClass, rule RouteRule) GuardOption {
	return func(g *Guard) {
		if rule != nil {
			g.rules[class] = rule
		}
	}
}

// Guard is a pure predicate over the current session.
type Guard struct {
	targets RouteTargets
	rules   map[RouteClass]RouteRule
}

// NewGuard returns a guard with the default rule table.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		targets: RouteTargets{Home: DefaultHomeRoute, Login: DefaultLoginRoute},
		rules: map[RouteClass]RouteRule{
			RoutePublic:        publicRule{},
			RouteAuthenticated: authenticatedRule{},
			RouteAdminOnly:     adminRule{},
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// NewGuardFromConfig reads the redirect targets from cfg.
func NewGuardFromConfig(cfg Config, opts ...GuardOption) *Guard {
	base := []GuardOption{
		WithHomeRoute(cfg.GetHomeRoute()),
		WithLoginRoute(cfg.GetLoginRoute()),
	}
	return NewGuard(append(base, opts...)...)
}

// Check decides whether navigation to a route of the given class proceeds.
// Unknown classes are denied.
func (g *Guard) Check(session *Session, class RouteClass) Decision {
	rule, ok := g.rules[class]
	if !ok {
		if session == nil {
			return RedirectTo(g.targets.Login)
		}
		return RedirectTo(g.targets.Home)
	}
	return rule.Evaluate(session, g.targets)
}

// CheckReader evaluates against the snapshot held by reader.
func (g *Guard) CheckReader(reader SessionReader, class RouteClass) Decision {
	if reader == nil {
		return g.Check(nil, class)
	}
	return g.Check(reader.Current(), class)
}

// Targets returns the configured redirect targets.
func (g *Guard) Targets() RouteTargets {
	return g.targets
}
