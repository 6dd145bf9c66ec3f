package auth

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// DefaultAuthScheme is the Authorization header scheme.
const DefaultAuthScheme = "Bearer"

// BearerAuthorizer attaches the live session token to outbound requests.
// It is safe for concurrent use.
type BearerAuthorizer struct {
	base   http.RoundTripper
	scheme string

	mu             sync.RWMutex
	token          string
	onUnauthorized func(*http.Request)
}

var _ HeaderAuthorizer = (*BearerAuthorizer)(nil)

// NewBearerAuthorizer wraps base, http.DefaultTransport when nil.
func NewBearerAuthorizer(base http.RoundTripper) *BearerAuthorizer {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerAuthorizer{
		base:   base,
		scheme: DefaultAuthScheme,
	}
}

// WithScheme overrides the header scheme.
func (a *BearerAuthorizer) WithScheme(scheme string) *BearerAuthorizer {
	if scheme = strings.TrimSpace(scheme); scheme != "" {
		a.scheme = scheme
	}
	return a
}

// OnUnauthorized registers a hook fired when a request that carried a token
// gets a 401 back.
func (a *BearerAuthorizer) OnUnauthorized(fn func(*http.Request)) *BearerAuthorizer {
	a.mu.Lock()
	a.onUnauthorized = fn
	a.mu.Unlock()
	return a
}

func (a *BearerAuthorizer) SetToken(token string) {
	a.mu.Lock()
	a.token = strings.TrimSpace(token)
	a.mu.Unlock()
}

func (a *BearerAuthorizer) ClearToken() {
	a.SetToken("")
}

func (a *BearerAuthorizer) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Header returns the Authorization header value, empty when no token is set.
func (a *BearerAuthorizer) Header() string {
	token := a.Token()
	if token == "" {
		return ""
	}
	return a.oauthToken(token).Type() + " " + token
}

// RoundTrip implements http.RoundTripper.
func (a *BearerAuthorizer) RoundTrip(req *http.Request) (*http.Response, error) {
	a.mu.RLock()
	token, hook := a.token, a.onUnauthorized
	a.mu.RUnlock()

	if token == "" {
		return a.base.RoundTrip(req)
	}

	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(a.oauthToken(token)),
		Base:   a.base,
	}
	res, err := transport.RoundTrip(req)
	if err != nil {
		return res, err
	}
	if res.StatusCode == http.StatusUnauthorized && hook != nil {
		hook(req)
	}
	return res, nil
}

// Client returns an http.Client using the authorizer as transport.
func (a *BearerAuthorizer) Client() *http.Client {
	return &http.Client{Transport: a}
}

func (a *BearerAuthorizer) oauthToken(token string) *oauth2.Token {
	return &oauth2.Token{AccessToken: token, TokenType: a.scheme}
}
