package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"salvadanaio/internal/preferences"
)

type key struct {
	userID string
	kind   preferences.Kind
}

// Store keeps preference records in process memory. It backs the default
// "memory" data backend and the tests.
type Store struct {
	mu      sync.Mutex
	records map[key]preferences.Record
	now     func() time.Time
}

var _ preferences.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{records: make(map[key]preferences.Record), now: time.Now}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Read(_ context.Context, userID string, kind preferences.Kind) (preferences.Record, error) {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return preferences.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key{userID, kind}]
	if !ok {
		return preferences.Record{}, preferences.ErrNotFound
	}
	return clone(rec), nil
}

func (s *Store) Write(_ context.Context, userID string, kind preferences.Kind, value json.RawMessage) (preferences.Record, error) {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return preferences.Record{}, err
	}
	rec := preferences.Record{
		UserID:    userID,
		Kind:      kind,
		Value:     slices.Clone(value),
		UpdatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.records[key{userID, kind}] = rec
	s.mu.Unlock()
	return clone(rec), nil
}

func (s *Store) Delete(_ context.Context, userID string, kind preferences.Kind) error {
	if err := preferences.CheckKey(userID, kind); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, key{userID, kind})
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func clone(r preferences.Record) preferences.Record {
	r.Value = slices.Clone(r.Value)
	return r
}
