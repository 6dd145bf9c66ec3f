package auth

import (
	"context"
	"sync"
)

// SessionState is the service state.
type SessionState string

const (
	StateAnonymous     SessionState = "anonymous"
	StateAuthenticated SessionState = "authenticated"
)

// ChangeReason identifies the operation behind a SessionChange.
type ChangeReason string

const (
	ReasonRecovered  ChangeReason = "recovered"
	ReasonDiscarded  ChangeReason = "discarded"
	ReasonLogin      ChangeReason = "login"
	ReasonRegistered ChangeReason = "registered"
	ReasonLogout     ChangeReason = "logout"
	ReasonRevoked    ChangeReason = "revoked"
)

// SessionChange is delivered to listeners after the session was published or
// cleared.
type SessionChange struct {
	From     SessionState
	To       SessionState
	Reason   ChangeReason
	Identity *Identity
}

// SessionListener observes session changes. Listeners run synchronously on
// the goroutine that performed the change.
type SessionListener func(ctx context.Context, change SessionChange)

var allowedTransitions = map[SessionState]map[ChangeReason]SessionState{
	StateAnonymous: {
		ReasonRecovered:  StateAuthenticated,
		ReasonDiscarded:  StateAnonymous,
		ReasonLogin:      StateAuthenticated,
		ReasonRegistered: StateAuthenticated,
		ReasonLogout:     StateAnonymous,
		ReasonRevoked:    StateAnonymous,
	},
	StateAuthenticated: {
		ReasonDiscarded:  StateAnonymous,
		ReasonLogin:      StateAuthenticated,
		ReasonRegistered: StateAuthenticated,
		ReasonLogout:     StateAnonymous,
		ReasonRevoked:    StateAnonymous,
	},
}

// sessionStateMachine tracks the current state and fans out changes.
type sessionStateMachine struct {
	mu        sync.RWMutex
	state     SessionState
	nextID    int
	listeners map[int]SessionListener
}

func newSessionStateMachine() *sessionStateMachine {
	return &sessionStateMachine{
		state:     StateAnonymous,
		listeners: map[int]SessionListener{},
	}
}

func (m *sessionStateMachine) current() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// transition moves to the state the reason leads to. Unknown pairs keep the
// current state and report false.
func (m *sessionStateMachine) transition(ctx context.Context, reason ChangeReason, identity *Identity) (SessionChange, bool) {
	m.mu.Lock()
	from := m.state
	to, ok := allowedTransitions[from][reason]
	if !ok {
		m.mu.Unlock()
		return SessionChange{From: from, To: from, Reason: reason}, false
	}
	m.state = to
	listeners := make([]SessionListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	change := SessionChange{From: from, To: to, Reason: reason, Identity: identity.Clone()}
	for _, l := range listeners {
		l(ctx, change)
	}
	return change, true
}

func (m *sessionStateMachine) subscribe(listener SessionListener) func() {
	if listener == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}
