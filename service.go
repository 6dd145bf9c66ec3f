package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RegisterOutcome tells the caller where a successful registration left the
// session.
type RegisterOutcome string

const (
	// RegisteredLoggedIn means the response carried a token and the session
	// is now live.
	RegisteredLoggedIn RegisterOutcome = "logged_in"
	// RegisteredPendingLogin means the account exists but the caller should
	// route to the login flow.
	RegisteredPendingLogin RegisterOutcome = "pending_login"
)

// RegisterResult is returned by a successful Register call.
type RegisterResult struct {
	Outcome RegisterOutcome
	Session *Session
}

// LoggedIn reports whether registration also opened a session.
func (r *RegisterResult) LoggedIn() bool {
	return r != nil && r.Outcome == RegisteredLoggedIn
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLoggerProvider resolves the service logger from provider.
func WithLoggerProvider(provider LoggerProvider) ServiceOption {
	return func(s *Service) {
		s.loggerProvider = provider
	}
}

// WithAuthorizer sets the outbound header layer.
func WithAuthorizer(authorizer HeaderAuthorizer) ServiceOption {
	return func(s *Service) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

// WithActivitySink sets the sink used to emit session events.
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithClock injects the time source used for expiry checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRevokeOnUnauthorized clears the session when an authenticated outbound
// request is answered with 401. Only applies to a *BearerAuthorizer.
func WithRevokeOnUnauthorized(enabled bool) ServiceOption {
	return func(s *Service) {
		s.revokeOnUnauthorized = enabled
	}
}

// Service orchestrates startup recovery, login, registration and logout. It is
// the only component that mutates the SessionStore.
type Service struct {
	store          SessionStore
	api            RemoteAPI
	authorizer     HeaderAuthorizer
	logger         Logger
	loggerProvider LoggerProvider
	activity       ActivitySink
	now            func() time.Time
	states         *sessionStateMachine

	revokeOnUnauthorized bool

	// mu keeps the header and the store in step within one operation.
	mu sync.Mutex
}

// NewService wires a service. A nil store falls back to a memory-backed Store.
func NewService(store SessionStore, api RemoteAPI, opts ...ServiceOption) *Service {
	if store == nil {
		store = NewStore(nil)
	}
	s := &Service{
		store:      store,
		api:        api,
		authorizer: NewBearerAuthorizer(nil),
		activity:   noopActivitySink{},
		now:        time.Now,
		states:     newSessionStateMachine(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = ResolveLogger("auth.service", s.loggerProvider, s.logger)

	if bearer, ok := s.authorizer.(*BearerAuthorizer); ok && s.revokeOnUnauthorized {
		bearer.OnUnauthorized(func(req *http.Request) {
			s.Revoke(context.WithoutCancel(req.Context()), "unauthorized_response")
		})
	}
	return s
}

// Recover restores a persisted session at startup. Any failure leaves the
// service Anonymous with an empty store and is never returned to the caller.
func (s *Service) Recover(ctx context.Context) bool {
	persisted, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("session recovery could not read store", "error", err)
		s.discard(ctx, "load_failed")
		return false
	}

	if persisted == nil {
		s.authorizer.ClearToken()
		s.logger.Debug("no persisted session")
		return false
	}

	identity, err := IdentityFromToken(persisted.Token, s.now())
	if err != nil {
		s.logger.Info("discarding persisted session", "error", err)
		s.discard(ctx, discardCause(err))
		return false
	}
	s.warnUnknownRole(identity)

	s.mu.Lock()
	s.authorizer.SetToken(persisted.Token)
	err = s.store.Save(ctx, Session{Token: persisted.Token, Identity: *identity})
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("session recovery could not persist identity", "error", err)
		s.discard(ctx, "save_failed")
		return false
	}

	s.states.transition(ctx, ReasonRecovered, identity)
	s.record(ctx, ActivityEventSessionRecovered, identity, nil)
	s.logger.Info("session recovered", "user_id", identity.ID, "role", identity.Role)
	return true
}

// Login submits credentials and publishes the resulting session. The returned
// error carries a user-facing message, see UserMessage.
func (s *Service) Login(ctx context.Context, credentials Credentials) (*Session, error) {
	if err := credentials.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	res, err := s.api.Login(ctx, credentials)
	if err != nil {
		s.recordFailure(ctx, ActivityEventLoginFailure, credentials.Email, "request_failed")
		return nil, withMessage(ErrRemoteUnavailable, err, defaultLoginFailureMessage, nil)
	}

	if res == nil || res.StatusCode != http.StatusOK {
		status, message := responseDetails(res)
		s.logger.Info("login rejected", "email", credentials.Email, "status", status)
		s.recordFailure(ctx, ActivityEventLoginFailure, credentials.Email, "credentials_rejected")
		return nil, withMessage(ErrCredentialsRejected, nil, message, map[string]any{"status": status})
	}

	if !res.HasToken() {
		s.recordFailure(ctx, ActivityEventLoginFailure, credentials.Email, "missing_token")
		return nil, wrapError(ErrMissingToken, nil, map[string]any{"status": res.StatusCode})
	}

	session, err := s.establish(ctx, res, ReasonLogin)
	if err != nil {
		s.logger.Warn("login rolled back", "email", credentials.Email, "error", err)
		s.recordFailure(ctx, ActivityEventLoginFailure, credentials.Email, "rolled_back")
		return nil, err
	}

	s.record(ctx, ActivityEventLoginSuccess, &session.Identity, nil)
	return session, nil
}

// Register submits registration data. A 201 response with a token logs the
// user in; any other 2xx response leaves the service Anonymous.
func (s *Service) Register(ctx context.Context, registration Registration) (*RegisterResult, error) {
	if err := registration.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	res, err := s.api.Register(ctx, registration.Payload())
	if err != nil {
		s.recordFailure(ctx, ActivityEventRegisterFailure, registration.Email, "request_failed")
		return nil, withMessage(ErrRemoteUnavailable, err, defaultRegistrationFailureMessage, nil)
	}

	if !res.IsSuccess() {
		status, message := responseDetails(res)
		s.logger.Info("registration rejected", "email", registration.Email, "status", status)
		s.recordFailure(ctx, ActivityEventRegisterFailure, registration.Email, "registration_rejected")
		return nil, withMessage(ErrRegistrationRejected, nil, message, map[string]any{"status": status})
	}

	if res.StatusCode == http.StatusCreated && res.HasToken() {
		session, err := s.establish(ctx, res, ReasonRegistered)
		if err == nil {
			s.record(ctx, ActivityEventRegisterSuccess, &session.Identity, map[string]any{"logged_in": true})
			return &RegisterResult{Outcome: RegisteredLoggedIn, Session: session}, nil
		}
		// the account exists even though its token was unusable
		s.logger.Warn("registration auto-login rolled back", "email", registration.Email, "error", err)
	}

	s.record(ctx, ActivityEventRegisterSuccess, nil, map[string]any{
		"logged_in": false,
		"email":     registration.Email,
	})
	return &RegisterResult{Outcome: RegisteredPendingLogin}, nil
}

// Logout clears the session. It is idempotent and cannot fail; store errors
// are logged.
func (s *Service) Logout(ctx context.Context) {
	s.end(ctx, ReasonLogout, ActivityEventLogout, nil)
}

// Revoke clears the session after the remote API signalled that the token is
// no longer accepted.
func (s *Service) Revoke(ctx context.Context, cause string) {
	s.end(ctx, ReasonRevoked, ActivityEventSessionRevoked, map[string]any{"cause": cause})
}

// Current returns the published session snapshot.
func (s *Service) Current() *Session {
	return s.store.Current()
}

// CurrentIdentity returns the published identity, or nil when Anonymous.
func (s *Service) CurrentIdentity() *Identity {
	current := s.store.Current()
	if current == nil {
		return nil
	}
	return current.Identity.Clone()
}

// CurrentRole returns the published role. ok is false when Anonymous.
func (s *Service) CurrentRole() (role Role, ok bool) {
	current := s.store.Current()
	if current == nil {
		return "", false
	}
	return current.Identity.Role, true
}

// State returns Anonymous or Authenticated.
func (s *Service) State() SessionState {
	return s.states.current()
}

// Subscribe registers a listener for session changes and returns a function
// that removes it.
func (s *Service) Subscribe(listener SessionListener) func() {
	return s.states.subscribe(listener)
}

// Authorizer exposes the outbound header layer.
func (s *Service) Authorizer() HeaderAuthorizer {
	return s.authorizer
}

// establish attaches the header, derives the identity and publishes the
// session. On failure the previous header is restored and the store is left
// untouched.
func (s *Service) establish(ctx context.Context, res *AuthResponse, reason ChangeReason) (*Session, error) {
	token := strings.TrimSpace(res.Token)

	s.mu.Lock()
	previous := s.authorizer.Token()
	s.authorizer.SetToken(token)

	identity, shape, err := ResolveIdentity(token, res.User, s.now())
	if err != nil {
		s.authorizer.SetToken(previous)
		s.mu.Unlock()
		return nil, wrapError(ErrInvalidOrExpiredToken, err, map[string]any{"operation": string(reason)})
	}

	session := Session{Token: token, Identity: *identity}
	if err := s.store.Save(ctx, session); err != nil {
		s.authorizer.SetToken(previous)
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.warnUnknownRole(identity)
	s.logger.Debug("session published", "shape", shape.String(), "user_id", identity.ID, "role", identity.Role)
	s.states.transition(ctx, reason, identity)
	return &session, nil
}

func (s *Service) end(ctx context.Context, reason ChangeReason, eventType ActivityEventType, meta map[string]any) {
	s.mu.Lock()
	previous := s.store.Current()
	s.authorizer.ClearToken()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("failed to clear session store", "reason", reason, "error", err)
	}
	s.mu.Unlock()

	s.states.transition(ctx, reason, nil)

	var identity *Identity
	if previous != nil {
		identity = &previous.Identity
	}
	s.record(ctx, eventType, identity, meta)
}

func (s *Service) discard(ctx context.Context, cause string) {
	s.mu.Lock()
	s.authorizer.ClearToken()
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("failed to clear stale session", "error", err)
	}
	s.mu.Unlock()

	s.states.transition(ctx, ReasonDiscarded, nil)
	s.record(ctx, ActivityEventSessionDiscarded, nil, map[string]any{"cause": cause})
}

func (s *Service) warnUnknownRole(identity *Identity) {
	if identity == nil || identity.Role.IsKnown() {
		return
	}
	s.logger.Warn("unrecognized role passed through", "role", identity.Role, "user_id", identity.ID)
}

func (s *Service) record(ctx context.Context, eventType ActivityEventType, identity *Identity, meta map[string]any) {
	event := newActivityEvent(eventType, identity, s.now(), meta)
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink failed", "event", eventType, "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, eventType ActivityEventType, email, cause string) {
	s.record(ctx, eventType, nil, map[string]any{"email": email, "cause": cause})
}

func responseDetails(res *AuthResponse) (int, string) {
	if res == nil {
		return 0, ""
	}
	return res.StatusCode, res.Message
}

func discardCause(err error) string {
	switch {
	case IsMalformedTokenError(err):
		return "malformed_token"
	case IsExpiredOrUnrecognizedError(err):
		return "expired_or_unrecognized"
	default:
		return "invalid_token"
	}
}
