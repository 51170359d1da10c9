// Package store defines the persistence contract the import/export engine
// depends on. The engine never sees a database: it talks to a RecordStore,
// a CapacityProvider, and a Clock, all injected at construction.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByKey when no live record matches.
var ErrNotFound = errors.New("record not found")

// Record is a stored entity, scoped to an owner and a kind.
type Record struct {
	ID      string
	OwnerID string
	Kind    string

	// Key is the normalized natural key (lower-cased trimmed email for
	// contacts, title for deals). FindByKey matches on it.
	Key string

	Fields map[string]string
	Groups map[string]map[string]string
	Lists  map[string][]string

	// IsDuplicate marks a record inserted as a knowing duplicate of another.
	// DuplicateOfID references the first live record that held the same key
	// at insert time; older historical duplicates are not linked.
	IsDuplicate   bool
	DuplicateOfID string

	Deleted bool

	// Import provenance, zero-valued for records created outside an import.
	ImportedAt   time.Time
	ImportSource string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can mutate freely.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = copyMap(r.Fields)
	c.Groups = make(map[string]map[string]string, len(r.Groups))
	for g, sub := range r.Groups {
		c.Groups[g] = copyMap(sub)
	}
	c.Lists = make(map[string][]string, len(r.Lists))
	for k, v := range r.Lists {
		c.Lists[k] = append([]string(nil), v...)
	}
	return &c
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RecordStore is the persistence collaborator. Implementations must exclude
// soft-deleted and duplicate-flagged records from FindByKey so that duplicate
// resolution always targets the one live record per key.
type RecordStore interface {
	// FindByKey returns the first live record with the given natural key,
	// or ErrNotFound.
	FindByKey(ctx context.Context, ownerID, kind, key string) (*Record, error)

	Insert(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error

	// CountByOwner counts live records (soft-deleted excluded) of a kind.
	CountByOwner(ctx context.Context, ownerID, kind string) (int, error)

	// ListByOwner returns all non-deleted records of a kind, in stable
	// insertion order. Used by the exporter.
	ListByOwner(ctx context.Context, ownerID, kind string) ([]*Record, error)
}

// CapacityProvider reports how many records an owner may hold.
type CapacityProvider interface {
	Limit(ctx context.Context, ownerID string) (int, error)
}

// FixedCapacity is a CapacityProvider with one limit for every owner.
type FixedCapacity int

func (c FixedCapacity) Limit(context.Context, string) (int, error) { return int(c), nil }

// Clock abstracts time for provenance stamps and date-window validation.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
