// Package memory provides an in-memory RecordStore. It backs tests and local
// runs without a database; the semantics mirror the postgres implementation.
package memory

import (
	"context"
	"sync"

	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
	"github.com/google/uuid"
)

// Store is a mutex-guarded in-memory record store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*store.Record // by ID
	order   []string                 // insertion order for stable listing
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*store.Record)}
}

// FindByKey returns the first live record matching the normalized key.
func (s *Store) FindByKey(_ context.Context, ownerID, kind, key string) (*store.Record, error) {
	key = schema.NormalizeKey(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		rec := s.records[id]
		if rec.OwnerID != ownerID || rec.Kind != kind {
			continue
		}
		if rec.Deleted || rec.IsDuplicate {
			continue
		}
		if rec.Key == key {
			return rec.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// Insert stores a new record, assigning an ID if the caller did not.
func (s *Store) Insert(_ context.Context, rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records[rec.ID] = rec.Clone()
	s.order = append(s.order, rec.ID)
	return nil
}

// Update replaces an existing record by ID.
func (s *Store) Update(_ context.Context, rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return store.ErrNotFound
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// CountByOwner counts live records of a kind.
func (s *Store) CountByOwner(_ context.Context, ownerID, kind string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.records {
		if rec.OwnerID == ownerID && rec.Kind == kind && !rec.Deleted {
			count++
		}
	}
	return count, nil
}

// ListByOwner returns non-deleted records of a kind in insertion order.
func (s *Store) ListByOwner(_ context.Context, ownerID, kind string) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Record
	for _, id := range s.order {
		rec := s.records[id]
		if rec.OwnerID == ownerID && rec.Kind == kind && !rec.Deleted {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Len reports the total number of records held, deleted included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
