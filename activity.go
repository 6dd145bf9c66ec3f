package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionRecovered ActivityEventType = "auth.session.recovered"
	ActivityEventSessionDiscarded ActivityEventType = "auth.session.discarded"
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventRegisterSuccess  ActivityEventType = "auth.register.success"
	ActivityEventRegisterFailure  ActivityEventType = "auth.register.failure"
	ActivityEventLogout           ActivityEventType = "auth.logout"
	ActivityEventSessionRevoked   ActivityEventType = "auth.session.revoked"
)

// ActivityEvent captures audit-friendly information about a session change.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	UserID     string
	Role       Role
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func newActivityEvent(eventType ActivityEventType, identity *Identity, at time.Time, meta map[string]any) ActivityEvent {
	event := ActivityEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		Metadata:   meta,
		OccurredAt: at,
	}
	if identity != nil {
		event.UserID = identity.ID
		event.Role = identity.Role
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	return event
}
