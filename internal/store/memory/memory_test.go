package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/crmkit/importer/internal/store"
)

func record(owner, key string) *store.Record {
	return &store.Record{
		OwnerID: owner,
		Kind:    "contact",
		Key:     key,
		Fields:  map[string]string{"email": key},
	}
}

func TestInsertAssignsID(t *testing.T) {
	s := New()
	rec := record("owner-1", "ada@example.com")

	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("Insert() did not assign an ID")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestFindByKey(t *testing.T) {
	s := New()
	rec := record("owner-1", "ada@example.com")
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	// The lookup key is normalized before matching.
	got, err := s.FindByKey(context.Background(), "owner-1", "contact", "  Ada@Example.COM ")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("FindByKey() ID = %q, want %q", got.ID, rec.ID)
	}

	if _, err := s.FindByKey(context.Background(), "owner-2", "contact", "ada@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindByKey(other owner) error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindByKey(context.Background(), "owner-1", "deal", "ada@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindByKey(other kind) error = %v, want ErrNotFound", err)
	}
}

func TestFindByKey_SkipsDeletedAndDuplicates(t *testing.T) {
	s := New()

	deleted := record("owner-1", "ada@example.com")
	deleted.Deleted = true
	dup := record("owner-1", "ada@example.com")
	dup.IsDuplicate = true
	for _, rec := range []*store.Record{deleted, dup} {
		if err := s.Insert(context.Background(), rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if _, err := s.FindByKey(context.Background(), "owner-1", "contact", "ada@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindByKey() error = %v, want ErrNotFound past deleted and duplicate records", err)
	}
}

func TestFindByKey_ReturnsClone(t *testing.T) {
	s := New()
	if err := s.Insert(context.Background(), record("owner-1", "ada@example.com")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := s.FindByKey(context.Background(), "owner-1", "contact", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	got.Fields["email"] = "mutated@example.com"

	again, err := s.FindByKey(context.Background(), "owner-1", "contact", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if again.Fields["email"] != "ada@example.com" {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	rec := record("owner-1", "ada@example.com")
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	rec.Fields["company"] = "Analytical Engines"
	if err := s.Update(context.Background(), rec); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := s.FindByKey(context.Background(), "owner-1", "contact", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if got.Fields["company"] != "Analytical Engines" {
		t.Errorf("company = %q after update", got.Fields["company"])
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after update, want 1", s.Len())
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	s := New()
	rec := record("owner-1", "ada@example.com")
	rec.ID = "no-such-id"

	if err := s.Update(context.Background(), rec); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestCountByOwner(t *testing.T) {
	s := New()

	deleted := record("owner-1", "old@example.com")
	deleted.Deleted = true
	dup := record("owner-1", "ada@example.com")
	dup.IsDuplicate = true
	for _, rec := range []*store.Record{
		record("owner-1", "ada@example.com"),
		record("owner-1", "grace@example.com"),
		record("owner-2", "joan@example.com"),
		deleted,
		dup,
	} {
		if err := s.Insert(context.Background(), rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	// Duplicates occupy capacity; deleted records do not.
	count, err := s.CountByOwner(context.Background(), "owner-1", "contact")
	if err != nil {
		t.Fatalf("CountByOwner() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountByOwner() = %d, want 3", count)
	}
}

func TestListByOwner_InsertionOrder(t *testing.T) {
	s := New()
	keys := []string{"c@example.com", "a@example.com", "b@example.com"}
	for _, k := range keys {
		if err := s.Insert(context.Background(), record("owner-1", k)); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	recs, err := s.ListByOwner(context.Background(), "owner-1", "contact")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("ListByOwner() returned %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.Key != keys[i] {
			t.Errorf("record %d key = %q, want %q", i, rec.Key, keys[i])
		}
	}
}
