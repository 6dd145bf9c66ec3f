package auth

import (
	"context"
	"time"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetLoginPath() string
	GetRegisterPath() string
	GetAuthScheme() string
	GetHomeRoute() string
	GetLoginRoute() string
	GetRequestTimeout() time.Duration
}

// SessionReader exposes the published session snapshot.
type SessionReader interface {
	Current() *Session
}

// SessionStore persists at most one Session. Save and Clear are the only
// mutators.
type SessionStore interface {
	SessionReader
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context) error
}

// PersistedSlots is the raw content of the two storage slots.
type PersistedSlots struct {
	Token    string
	Identity []byte
}

// SlotStorage is the durable backend behind Store. WriteSlots must write
// both slots or neither, DeleteSlots removes both.
type SlotStorage interface {
	// ReadSlots returns nil when no token slot is persisted.
	ReadSlots(ctx context.Context) (*PersistedSlots, error)
	WriteSlots(ctx context.Context, slots PersistedSlots) error
	DeleteSlots(ctx context.Context) error
}

// RemoteAPI is the subset of the remote API the service consumes.
type RemoteAPI interface {
	Login(ctx context.Context, credentials Credentials) (*AuthResponse, error)
	Register(ctx context.Context, payload map[string]any) (*AuthResponse, error)
}

// HeaderAuthorizer configures the outbound request layer.
type HeaderAuthorizer interface {
	SetToken(token string)
	ClearToken()
	Token() string
}
