// Package activitymap flattens session activity events into records that
// log pipelines and audit stores can ingest without importing auth types.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-client"
)

// Metadata keys added to every record when the event carries the value.
const (
	MetadataKeyRole    = "role"
	MetadataKeyOutcome = "outcome"
	MetadataKeyEventID = "event_id"
)

// ObjectType is the object every auth activity refers to.
const ObjectType = "session"

const (
	DefaultChannel = "auth"
	DefaultActor   = "anonymous"
)

// Normalized is the flattened activity record.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option configures Normalize.
type Option func(*mapper)

type mapper struct {
	channel string
	actor   string
}

// WithChannel sets the channel stamped on records. Blank keeps the default.
func WithChannel(channel string) Option {
	return func(m *mapper) {
		if channel = strings.TrimSpace(channel); channel != "" {
			m.channel = channel
		}
	}
}

// WithActorFallback sets the actor used when the event names neither a user
// id nor an attempted email. Blank keeps the default.
func WithActorFallback(actor string) Option {
	return func(m *mapper) {
		if actor = strings.TrimSpace(actor); actor != "" {
			m.actor = actor
		}
	}
}

// Normalize converts event into a Normalized record. Failed attempts carry
// no user id, so the attempted email becomes the actor.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	m := mapper{channel: DefaultChannel, actor: DefaultActor}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	userID := strings.TrimSpace(event.UserID)
	actor := userID
	if actor == "" {
		email, _ := event.Metadata["email"].(string)
		actor = strings.TrimSpace(email)
	}
	if actor == "" {
		actor = m.actor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actor,
		Verb:       string(event.EventType),
		ObjectType: ObjectType,
		ObjectID:   userID,
		Channel:    m.channel,
		Metadata:   metadataFor(event),
		OccurredAt: occurredAt,
	}
}

// metadataFor copies the event metadata and fills in derived keys that the
// caller did not set already.
func metadataFor(event auth.ActivityEvent) map[string]any {
	derived := map[string]any{}
	if event.Role != "" {
		derived[MetadataKeyRole] = event.Role.String()
	}
	if outcome := outcomeOf(event.EventType); outcome != "" {
		derived[MetadataKeyOutcome] = outcome
	}
	if event.ID != "" {
		derived[MetadataKeyEventID] = event.ID
	}
	if len(event.Metadata) == 0 && len(derived) == 0 {
		return nil
	}

	out := make(map[string]any, len(event.Metadata)+len(derived))
	for key, value := range derived {
		out[key] = value
	}
	for key, value := range event.Metadata {
		out[key] = value
	}
	return out
}

func outcomeOf(eventType auth.ActivityEventType) string {
	name := string(eventType)
	switch {
	case strings.HasSuffix(name, ".success"):
		return "success"
	case strings.HasSuffix(name, ".failure"):
		return "failure"
	}
	return ""
}
