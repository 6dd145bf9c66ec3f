package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/uptrace/bun"
)

// DefaultNamespace scopes slots when several applications share a database.
const DefaultNamespace = "default"

// SessionSlotModel is the Bun model for one persisted session slot.
type SessionSlotModel struct {
	bun.BaseModel `bun:"table:session_slots"`

	Namespace string    `bun:"namespace,pk"`
	Slot      string    `bun:"slot,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Option customizes a SlotRepository.
type Option func(*SlotRepository)

// WithNamespace sets the namespace rows are written under.
func WithNamespace(namespace string) Option {
	return func(r *SlotRepository) {
		if namespace = strings.TrimSpace(namespace); namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithClock injects the time source for updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *SlotRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// SlotRepository implements auth.SlotStorage using Bun.
type SlotRepository struct {
	db        *bun.DB
	namespace string
	now       func() time.Time
}

var _ auth.SlotStorage = (*SlotRepository)(nil)

// NewSlotRepository creates a new repository.
func NewSlotRepository(db *bun.DB, opts ...Option) *SlotRepository {
	r := &SlotRepository{
		db:        db,
		namespace: DefaultNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Migrate creates the session_slots table when missing.
func (r *SlotRepository) Migrate(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*SessionSlotModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// ReadSlots implements auth.SlotStorage.
func (r *SlotRepository) ReadSlots(ctx context.Context) (*auth.PersistedSlots, error) {
	var models []SessionSlotModel
	err := r.db.NewSelect().
		Model(&models).
		Where("namespace = ?", r.namespace).
		Where("slot IN (?)", bun.In([]string{auth.SlotToken, auth.SlotIdentity})).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var slots auth.PersistedSlots
	found := false
	for _, m := range models {
		switch m.Slot {
		case auth.SlotToken:
			slots.Token = m.Value
			found = true
		case auth.SlotIdentity:
			slots.Identity = []byte(m.Value)
		}
	}
	if !found {
		return nil, nil
	}
	return &slots, nil
}

// WriteSlots implements auth.SlotStorage. Both rows are upserted in one
// transaction.
func (r *SlotRepository) WriteSlots(ctx context.Context, slots auth.PersistedSlots) error {
	now := r.now()
	models := []SessionSlotModel{
		{Namespace: r.namespace, Slot: auth.SlotToken, Value: slots.Token, UpdatedAt: now},
		{Namespace: r.namespace, Slot: auth.SlotIdentity, Value: string(slots.Identity), UpdatedAt: now},
	}

	return runInTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&models).
			On("CONFLICT (namespace, slot) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// DeleteSlots implements auth.SlotStorage.
func (r *SlotRepository) DeleteSlots(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*SessionSlotModel)(nil)).
		Where("namespace = ?", r.namespace).
		Exec(ctx)
	return err
}
