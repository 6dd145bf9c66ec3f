package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// Storage slot names. They match the keys used by existing clients so
// sessions written by either side stay readable.
const (
	SlotToken    = "token"
	SlotIdentity = "user"
)

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the SessionStore implementation: an in-memory snapshot in front of
// a SlotStorage.
type Store struct {
	slots  SlotStorage
	logger Logger

	mu      sync.RWMutex
	current *Session
}

var _ SessionStore = (*Store)(nil)

// NewStore creates a store over slots. A nil backend falls back to
// process-local memory.
func NewStore(slots SlotStorage, opts ...StoreOption) *Store {
	if slots == nil {
		slots = NewMemorySlots()
	}
	s := &Store{
		slots:  slots,
		logger: NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load reads the persisted pair without validating it. An identity slot that
// cannot be decoded yields a Session with an empty Identity.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	slots, err := s.slots.ReadSlots(ctx)
	if err != nil {
		return nil, wrapError(ErrSessionPersistence, err, map[string]any{"operation": "load"})
	}
	if slots == nil || strings.TrimSpace(slots.Token) == "" {
		return nil, nil
	}

	session := &Session{Token: slots.Token}
	if len(slots.Identity) == 0 {
		return session, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(slots.Identity, &raw); err != nil {
		s.logger.Debug("persisted identity is not decodable", "error", err)
		return session, nil
	}
	identity, err := IdentityFromUser(raw)
	if err != nil {
		s.logger.Debug("persisted identity is not recognized", "error", err)
		return session, nil
	}
	session.Identity = *identity
	return session, nil
}

// Save replaces the persisted pair and the snapshot.
func (s *Store) Save(ctx context.Context, session Session) error {
	if strings.TrimSpace(session.Token) == "" {
		return ErrInvalidSession
	}

	blob, err := json.Marshal(session.Identity)
	if err != nil {
		return wrapError(ErrSessionPersistence, err, map[string]any{"operation": "encode"})
	}

	if err := s.slots.WriteSlots(ctx, PersistedSlots{Token: session.Token, Identity: blob}); err != nil {
		return wrapError(ErrSessionPersistence, err, map[string]any{"operation": "save"})
	}

	s.mu.Lock()
	s.current = session.Clone()
	s.mu.Unlock()
	return nil
}

// Clear drops the snapshot and both persisted slots.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.slots.DeleteSlots(ctx); err != nil {
		return wrapError(ErrSessionPersistence, err, map[string]any{"operation": "clear"})
	}
	return nil
}

// Current returns a copy of the snapshot, or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// MemorySlots keeps both slots in process memory. Useful for tests and for
// callers that accept losing the session on restart.
type MemorySlots struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemorySlots creates an empty in-memory backend.
func NewMemorySlots() *MemorySlots {
	return &MemorySlots{values: map[string][]byte{}}
}

func (m *MemorySlots) ReadSlots(ctx context.Context) (*PersistedSlots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.values[SlotToken]
	if !ok {
		return nil, nil
	}
	slots := &PersistedSlots{Token: string(token)}
	if identity, ok := m.values[SlotIdentity]; ok {
		slots.Identity = append([]byte(nil), identity...)
	}
	return slots, nil
}

func (m *MemorySlots) WriteSlots(ctx context.Context, slots PersistedSlots) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[SlotToken] = []byte(slots.Token)
	m.values[SlotIdentity] = append([]byte(nil), slots.Identity...)
	return nil
}

func (m *MemorySlots) DeleteSlots(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, SlotToken)
	delete(m.values, SlotIdentity)
	return nil
}
