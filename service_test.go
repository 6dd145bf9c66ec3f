package auth_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-client"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	api        *MockRemoteAPI
	slots      *failingSlots
	store      *auth.Store
	authorizer *auth.BearerAuthorizer
	activity   *activityRecorder
	changes    []auth.SessionChange
	service    *auth.Service
}

func newServiceFixture(t *testing.T, opts ...auth.ServiceOption) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		api:        new(MockRemoteAPI),
		slots:      newFailingSlots(),
		authorizer: auth.NewBearerAuthorizer(nil),
		activity:   &activityRecorder{},
	}
	f.store = auth.NewStore(f.slots)

	base := []auth.ServiceOption{
		auth.WithLogger(auth.NopLogger()),
		auth.WithAuthorizer(f.authorizer),
		auth.WithActivitySink(f.activity),
		auth.WithClock(fixedClock),
	}
	f.service = auth.NewService(f.store, f.api, append(base, opts...)...)
	f.service.Subscribe(func(_ context.Context, change auth.SessionChange) {
		f.changes = append(f.changes, change)
	})
	t.Cleanup(func() { f.api.AssertExpectations(t) })
	return f
}

func (f *serviceFixture) persist(t *testing.T, token string, identity string) {
	t.Helper()
	require.NoError(t, f.slots.WriteSlots(context.Background(), auth.PersistedSlots{Token: token, Identity: []byte(identity)}))
}

func requireTextCode(t *testing.T, err error, code string) *goerrors.Error {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, errors.As(err, &richErr), "expected a rich error, got %T", err)
	assert.Equal(t, code, richErr.TextCode)
	return richErr
}

var validCredentials = auth.Credentials{Email: "a@x.com", Password: "secret"}

func TestServiceRecoverValidToken(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{
		"exp":    fixedNow.Add(time.Hour).Unix(),
		"id":     7,
		"nombre": "Ana",
		"rol":    "admin",
	})
	// identity blob written by an older client with synonym names
	f.persist(t, token, `{"id":7,"nombre":"Ana","rol":"admin"}`)

	assert.True(t, f.service.Recover(context.Background()))
	assert.Equal(t, auth.StateAuthenticated, f.service.State())
	assert.Equal(t, "Bearer "+token, f.authorizer.Header())

	expected := &auth.Identity{ID: "7", DisplayName: "Ana", Role: auth.RoleAdmin}
	assert.Equal(t, expected, f.service.CurrentIdentity())

	role, ok := f.service.CurrentRole()
	assert.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, role)

	// identity slot is rewritten in canonical form
	slots, err := f.slots.ReadSlots(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","name":"Ana","email":"","role":"admin"}`, string(slots.Identity))

	require.Len(t, f.changes, 1)
	assert.Equal(t, auth.ReasonRecovered, f.changes[0].Reason)
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSessionRecovered}, f.activity.types())
}

func TestServiceRecoverDiscardsStaleSessions(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, map[string]any{"exp": fixedNow.Add(-10 * time.Second).Unix(), "id": 1})
			},
		},
		{
			name:  "malformed",
			token: func(t *testing.T) string { return "definitely-not-a-token" },
		},
		{
			name: "unrecognized shape",
			token: func(t *testing.T) string {
				return signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "iss": "api"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			f.persist(t, tt.token(t), `{"id":"1","role":"admin"}`)
			f.authorizer.SetToken("leftover")

			assert.False(t, f.service.Recover(context.Background()))
			assert.Equal(t, auth.StateAnonymous, f.service.State())
			assert.Nil(t, f.service.CurrentIdentity())
			assert.Empty(t, f.authorizer.Header())

			loaded, err := f.store.Load(context.Background())
			require.NoError(t, err)
			assert.Nil(t, loaded)

			assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSessionDiscarded}, f.activity.types())
		})
	}
}

func TestServiceRecoverNothingPersisted(t *testing.T) {
	f := newServiceFixture(t)
	assert.False(t, f.service.Recover(context.Background()))
	assert.Equal(t, auth.StateAnonymous, f.service.State())
	assert.Empty(t, f.changes)
}

func TestServiceRecoverStoreFailureIsSilent(t *testing.T) {
	f := newServiceFixture(t)
	f.slots.readErr = errBackendDown

	assert.NotPanics(t, func() {
		assert.False(t, f.service.Recover(context.Background()))
	})
	assert.Nil(t, f.service.Current())
}

func TestServiceLoginWithTokenOnly(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{
		"exp":  fixedNow.Add(time.Minute).Unix(),
		"id":   3,
		"role": "client",
	})
	f.api.On("Login", mock.Anything, validCredentials).
		Return(&auth.AuthResponse{StatusCode: http.StatusOK, Token: token}, nil).Once()

	session, err := f.service.Login(context.Background(), validCredentials)
	require.NoError(t, err)
	assert.Equal(t, token, session.Token)
	assert.Equal(t, auth.Identity{ID: "3", Role: auth.RoleClient}, session.Identity)

	assert.Equal(t, auth.StateAuthenticated, f.service.State())
	assert.Equal(t, "Bearer "+token, f.authorizer.Header())

	loaded, err := auth.NewStore(f.slots).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session, loaded)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, f.activity.types())
}

func TestServiceLoginPrefersServerUser(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{
		"exp":  fixedNow.Add(time.Minute).Unix(),
		"id":   1,
		"role": "client",
	})
	f.api.On("Login", mock.Anything, validCredentials).Return(&auth.AuthResponse{
		StatusCode: http.StatusOK,
		Token:      token,
		User:       map[string]any{"id": "42", "nombre": "Ana", "email": "a@x.com", "rol": "admin"},
	}, nil).Once()

	session, err := f.service.Login(context.Background(), validCredentials)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{ID: "42", DisplayName: "Ana", Email: "a@x.com", Role: auth.RoleAdmin}, session.Identity)
}

func TestServiceLoginFailures(t *testing.T) {
	expiredToken := func(t *testing.T) string {
		return signToken(t, map[string]any{"exp": fixedNow.Add(-time.Minute).Unix(), "id": 1})
	}

	tests := []struct {
		name     string
		response func(t *testing.T) *auth.AuthResponse
		err      error
		code     string
		message  string
	}{
		{
			name: "rejected with server message",
			response: func(*testing.T) *auth.AuthResponse {
				return &auth.AuthResponse{StatusCode: http.StatusUnauthorized, Message: "wrong password"}
			},
			code:    auth.TextCodeCredentialsRejected,
			message: "wrong password",
		},
		{
			name: "rejected without message",
			response: func(*testing.T) *auth.AuthResponse {
				return &auth.AuthResponse{StatusCode: http.StatusUnauthorized}
			},
			code:    auth.TextCodeCredentialsRejected,
			message: "credentials are invalid",
		},
		{
			name: "non 200 success",
			response: func(*testing.T) *auth.AuthResponse {
				return &auth.AuthResponse{StatusCode: http.StatusNoContent}
			},
			code:    auth.TextCodeCredentialsRejected,
			message: "credentials are invalid",
		},
		{
			name: "token missing",
			response: func(*testing.T) *auth.AuthResponse {
				return &auth.AuthResponse{StatusCode: http.StatusOK}
			},
			code:    auth.TextCodeMissingToken,
			message: "token not received",
		},
		{
			name: "expired token rolls back",
			response: func(t *testing.T) *auth.AuthResponse {
				return &auth.AuthResponse{StatusCode: http.StatusOK, Token: expiredToken(t)}
			},
			code:    auth.TextCodeInvalidOrExpiredToken,
			message: "invalid or expired token",
		},
		{
			name: "malformed token rolls back",
			response: func(*testing.T) *auth.AuthResponse {
				return &auth.AuthResponse{StatusCode: http.StatusOK, Token: "garbage"}
			},
			code:    auth.TextCodeInvalidOrExpiredToken,
			message: "invalid or expired token",
		},
		{
			name:    "transport failure",
			err:     errors.New("connection refused"),
			code:    auth.TextCodeRemoteUnavailable,
			message: "there was an error signing in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			var res *auth.AuthResponse
			if tt.response != nil {
				res = tt.response(t)
			}
			f.api.On("Login", mock.Anything, validCredentials).Return(res, tt.err).Once()

			session, err := f.service.Login(context.Background(), validCredentials)
			assert.Nil(t, session)
			requireTextCode(t, err, tt.code)
			assert.Equal(t, tt.message, auth.UserMessage(err))

			assert.Equal(t, auth.StateAnonymous, f.service.State())
			assert.Nil(t, f.service.CurrentIdentity())
			assert.Empty(t, f.authorizer.Header())

			loaded, loadErr := f.store.Load(context.Background())
			require.NoError(t, loadErr)
			assert.Nil(t, loaded, "store must stay untouched")
			assert.Empty(t, f.changes)
			assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginFailure}, f.activity.types())
		})
	}
}

func TestServiceLoginRollbackKeepsPreviousSession(t *testing.T) {
	f := newServiceFixture(t)
	first := signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "id": 1})
	f.api.On("Login", mock.Anything, validCredentials).
		Return(&auth.AuthResponse{StatusCode: http.StatusOK, Token: first}, nil).Once()
	_, err := f.service.Login(context.Background(), validCredentials)
	require.NoError(t, err)

	f.api.On("Login", mock.Anything, validCredentials).
		Return(&auth.AuthResponse{StatusCode: http.StatusOK, Token: "garbage"}, nil).Once()
	_, err = f.service.Login(context.Background(), validCredentials)
	requireTextCode(t, err, auth.TextCodeInvalidOrExpiredToken)

	assert.Equal(t, "Bearer "+first, f.authorizer.Header())
	assert.Equal(t, first, f.service.Current().Token)
}

func TestServiceLoginPersistenceFailure(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "id": 1})
	f.api.On("Login", mock.Anything, validCredentials).
		Return(&auth.AuthResponse{StatusCode: http.StatusOK, Token: token}, nil).Once()
	f.slots.writeErr = errBackendDown

	_, err := f.service.Login(context.Background(), validCredentials)
	requireTextCode(t, err, auth.TextCodeSessionPersistence)
	assert.Empty(t, f.authorizer.Header())
	assert.Equal(t, auth.StateAnonymous, f.service.State())
}

func TestServiceLoginValidatesInput(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service.Login(context.Background(), auth.Credentials{Email: "nope"})
	requireTextCode(t, err, auth.TextCodeInvalidInput)

	message := auth.UserMessage(err)
	assert.True(t, strings.HasPrefix(message, "invalid input: "), message)
	assert.Contains(t, message, "email: must be a valid email address")
	assert.Contains(t, message, "password: cannot be blank")
	f.api.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestServiceRegisterAutoLogin(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "sub": "9"})
	f.api.On("Register", mock.Anything, mock.Anything).Return(&auth.AuthResponse{
		StatusCode: http.StatusCreated,
		Token:      token,
		User:       map[string]any{"id": 9, "role": "moderator"},
	}, nil).Once()

	result, err := f.service.Register(context.Background(), auth.Registration{
		Name: "Ana", Email: "ana@x.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.True(t, result.LoggedIn())
	assert.Equal(t, auth.RegisteredLoggedIn, result.Outcome)
	assert.Equal(t, auth.Identity{ID: "9", Role: auth.RoleModerator}, result.Session.Identity)

	assert.Equal(t, auth.StateAuthenticated, f.service.State())
	assert.Equal(t, "Bearer "+token, f.authorizer.Header())
	require.Len(t, f.changes, 1)
	assert.Equal(t, auth.ReasonRegistered, f.changes[0].Reason)
}

func TestServiceRegisterTranslatesName(t *testing.T) {
	f := newServiceFixture(t)
	f.api.On("Register", mock.Anything, mock.MatchedBy(func(payload map[string]any) bool {
		return payload["name"] == "Ana" && payload["nombre"] == "Ana" && payload["edad"] == 30
	})).Return(&auth.AuthResponse{StatusCode: http.StatusCreated}, nil).Once()

	age := 30
	result, err := f.service.Register(context.Background(), auth.Registration{
		Name: "Ana", Email: "ana@x.com", Password: "secret1", Age: &age,
	})
	require.NoError(t, err)
	assert.False(t, result.LoggedIn())
	assert.Equal(t, auth.RegisteredPendingLogin, result.Outcome)
	assert.Nil(t, result.Session)
	assert.Equal(t, auth.StateAnonymous, f.service.State())
}

func TestServiceRegisterTokenWithoutCreatedStaysAnonymous(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "sub": "9"})
	f.api.On("Register", mock.Anything, mock.Anything).Return(&auth.AuthResponse{
		StatusCode: http.StatusOK,
		Token:      token,
		User:       map[string]any{"id": 9},
	}, nil).Once()

	result, err := f.service.Register(context.Background(), auth.Registration{
		Name: "Ana", Email: "ana@x.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RegisteredPendingLogin, result.Outcome)
	assert.Nil(t, result.Session)
	assert.Equal(t, auth.StateAnonymous, f.service.State())
	assert.Empty(t, f.authorizer.Header())
	assert.Nil(t, f.service.Current())
	assert.Empty(t, f.changes)
}

func TestServiceRegisterUnusableTokenStillCreated(t *testing.T) {
	f := newServiceFixture(t)
	f.api.On("Register", mock.Anything, mock.Anything).
		Return(&auth.AuthResponse{StatusCode: http.StatusCreated, Token: "garbage"}, nil).Once()

	result, err := f.service.Register(context.Background(), auth.Registration{
		Nombre: "Ana", Email: "ana@x.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RegisteredPendingLogin, result.Outcome)
	assert.Empty(t, f.authorizer.Header())
	assert.Nil(t, f.service.Current())
}

func TestServiceRegisterFailures(t *testing.T) {
	tests := []struct {
		name    string
		res     *auth.AuthResponse
		err     error
		code    string
		message string
	}{
		{
			name:    "rejected with server error",
			res:     &auth.AuthResponse{StatusCode: http.StatusConflict, Message: "email already registered"},
			code:    auth.TextCodeRegistrationRejected,
			message: "email already registered",
		},
		{
			name:    "rejected without payload",
			res:     &auth.AuthResponse{StatusCode: http.StatusInternalServerError},
			code:    auth.TextCodeRegistrationRejected,
			message: "there was an error registering the user",
		},
		{
			name:    "transport failure",
			err:     errors.New("timeout"),
			code:    auth.TextCodeRemoteUnavailable,
			message: "there was an error registering the user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			f.api.On("Register", mock.Anything, mock.Anything).Return(tt.res, tt.err).Once()

			result, err := f.service.Register(context.Background(), auth.Registration{
				Name: "Ana", Email: "ana@x.com", Password: "secret1",
			})
			assert.Nil(t, result)
			requireTextCode(t, err, tt.code)
			assert.Equal(t, tt.message, auth.UserMessage(err))
			assert.Equal(t, auth.StateAnonymous, f.service.State())
		})
	}
}

func TestServiceLogout(t *testing.T) {
	f := newServiceFixture(t)
	token := signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "id": 1, "role": "admin"})
	f.api.On("Login", mock.Anything, validCredentials).
		Return(&auth.AuthResponse{StatusCode: http.StatusOK, Token: token}, nil).Once()
	_, err := f.service.Login(context.Background(), validCredentials)
	require.NoError(t, err)

	f.service.Logout(context.Background())
	assert.Nil(t, f.service.CurrentIdentity())
	_, ok := f.service.CurrentRole()
	assert.False(t, ok)
	assert.Empty(t, f.authorizer.Header())
	assert.Equal(t, auth.StateAnonymous, f.service.State())

	loaded, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// idempotent from Anonymous, even with a failing backend
	f.slots.deleteErr = errBackendDown
	assert.NotPanics(t, func() { f.service.Logout(context.Background()) })
	assert.Nil(t, f.service.CurrentIdentity())

	require.Len(t, f.changes, 3)
	assert.Equal(t, auth.ReasonLogout, f.changes[1].Reason)
	assert.Equal(t, auth.StateAnonymous, f.changes[2].From)
}

func TestServiceRevokeOnUnauthorizedResponse(t *testing.T) {
	f := newServiceFixture(t, auth.WithRevokeOnUnauthorized(true))
	srv := headerEchoServer(t, http.StatusUnauthorized)

	token := signToken(t, map[string]any{"exp": fixedNow.Add(time.Hour).Unix(), "id": 1})
	f.api.On("Login", mock.Anything, validCredentials).
		Return(&auth.AuthResponse{StatusCode: http.StatusOK, Token: token}, nil).Once()
	_, err := f.service.Login(context.Background(), validCredentials)
	require.NoError(t, err)

	res, err := f.authorizer.Client().Get(srv.URL)
	require.NoError(t, err)
	res.Body.Close()

	assert.Nil(t, f.service.Current())
	assert.Empty(t, f.authorizer.Header())
	assert.Equal(t, auth.StateAnonymous, f.service.State())
	assert.Contains(t, f.activity.types(), auth.ActivityEventSessionRevoked)
}

func TestServiceUnsubscribe(t *testing.T) {
	f := newServiceFixture(t)
	var seen int
	unsubscribe := f.service.Subscribe(func(context.Context, auth.SessionChange) { seen++ })

	f.service.Logout(context.Background())
	unsubscribe()
	unsubscribe()
	f.service.Logout(context.Background())

	assert.Equal(t, 1, seen)
}
