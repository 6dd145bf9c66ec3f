// Package redisstore persists session slots in Redis, for deployments where
// several processes share one session.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is prepended to the slot keys.
const DefaultPrefix = "auth:session:"

// SlotStore is a Redis-based auth.SlotStorage.
type SlotStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ auth.SlotStorage = (*SlotStore)(nil)

// NewSlotStore creates a store using DefaultPrefix.
func NewSlotStore(client redis.UniversalClient) *SlotStore {
	return &SlotStore{
		client: client,
		prefix: DefaultPrefix,
	}
}

// WithPrefix overrides the key prefix.
func (s *SlotStore) WithPrefix(prefix string) *SlotStore {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

// WithTTL expires both keys after ttl. Zero keeps them until cleared.
func (s *SlotStore) WithTTL(ttl time.Duration) *SlotStore {
	if ttl >= 0 {
		s.ttl = ttl
	}
	return s
}

func (s *SlotStore) key(slot string) string {
	return s.prefix + slot
}

// ReadSlots implements auth.SlotStorage.
func (s *SlotStore) ReadSlots(ctx context.Context) (*auth.PersistedSlots, error) {
	values, err := s.client.MGet(ctx, s.key(auth.SlotToken), s.key(auth.SlotIdentity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	token, ok := values[0].(string)
	if !ok || token == "" {
		return nil, nil
	}

	slots := &auth.PersistedSlots{Token: token}
	if identity, ok := values[1].(string); ok {
		slots.Identity = []byte(identity)
	}
	return slots, nil
}

// WriteSlots implements auth.SlotStorage. Both keys are set in one MULTI/EXEC.
func (s *SlotStore) WriteSlots(ctx context.Context, slots auth.PersistedSlots) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(auth.SlotToken), slots.Token, s.ttl)
		pipe.Set(ctx, s.key(auth.SlotIdentity), slots.Identity, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write slots: %w", err)
	}
	return nil
}

// DeleteSlots implements auth.SlotStorage.
func (s *SlotStore) DeleteSlots(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(auth.SlotToken), s.key(auth.SlotIdentity)).Err(); err != nil {
		return fmt.Errorf("redis delete slots: %w", err)
	}
	return nil
}
