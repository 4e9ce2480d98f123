// Package store persists billing records through gorm. Every mutation of a
// mirrored record appends an outbox entry inside the same transaction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tariconnect/internal/apperr"
	"tariconnect/internal/domain/outbox"

	"gorm.io/gorm"
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *gorm.DB { return s.db }

// Now returns the store clock in UTC.
func (s *Store) Now() time.Time { return s.now().UTC() }

// Transaction runs fn against a store bound to one database transaction.
// Nested calls become savepoints.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{db: gtx, now: s.now})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// classify maps a gorm error onto the apperr taxonomy.
func classify(op string, err error, missing string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, missing)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict(op, "record already exists")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Store(op, err)
}

func (s *Store) enqueue(ctx context.Context, path string, op outbox.Op, payload any) error {
	entry := outbox.Entry{
		Path:      path,
		Op:        op,
		Status:    outbox.StatusPending,
		CreatedAt: s.Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal outbox payload for %s: %w", path, err)
		}
		entry.Payload = raw
	}
	if err := s.conn(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append outbox entry for %s: %w", path, err)
	}
	return nil
}
