package core

// helpers_test.go holds the shared fixtures: a fixed clock, a service wired
// to the in-memory store, and small CSV builders.

import (
	"context"
	"strings"
	"time"

	"github.com/crmkit/importer/internal/store"
	"github.com/crmkit/importer/internal/store/memory"
)

// testTime is the reference instant for every clock-sensitive test.
var testTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// newTestService wires a service to the given store with a fixed clock and
// a generous default capacity.
func newTestService(st store.RecordStore, capacity int) *Service {
	return NewService(st, store.FixedCapacity(capacity), fakeClock{now: testTime}, Limits{})
}

func newMemoryService(capacity int) (*Service, *memory.Store) {
	st := memory.New()
	return newTestService(st, capacity), st
}

// csvDoc joins lines into a document body with trailing newline.
func csvDoc(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

// contactCSV builds a contact document from rows of
// firstName,lastName,email cells.
func contactCSV(rows ...string) []byte {
	lines := append([]string{"firstName,lastName,email"}, rows...)
	return csvDoc(lines...)
}

// failingStore wraps a RecordStore and fails writes for one natural key.
type failingStore struct {
	store.RecordStore
	failKey string
	err     error
}

func (f *failingStore) Insert(ctx context.Context, rec *store.Record) error {
	if rec.Key == f.failKey {
		return f.err
	}
	return f.RecordStore.Insert(ctx, rec)
}

func (f *failingStore) Update(ctx context.Context, rec *store.Record) error {
	if rec.Key == f.failKey {
		return f.err
	}
	return f.RecordStore.Update(ctx, rec)
}

// cancellingStore cancels the given context after the first successful
// insert, simulating a client that goes away mid-import.
type cancellingStore struct {
	store.RecordStore
	cancel  context.CancelFunc
	inserts int
}

func (c *cancellingStore) Insert(ctx context.Context, rec *store.Record) error {
	if err := c.RecordStore.Insert(ctx, rec); err != nil {
		return err
	}
	c.inserts++
	if c.inserts == 1 {
		c.cancel()
	}
	return nil
}
