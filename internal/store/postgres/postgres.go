// Package postgres implements the RecordStore on PostgreSQL via pgx.
//
// Field data is held in JSONB columns so the same table serves every record
// kind; the partial unique index on (owner_id, kind, natural_key) makes the
// natural-key constraint authoritative even under concurrent imports.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema is the DDL for the records table.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	id              UUID PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	kind            TEXT NOT NULL,
	natural_key     TEXT NOT NULL,
	fields          JSONB NOT NULL DEFAULT '{}',
	groups          JSONB NOT NULL DEFAULT '{}',
	lists           JSONB NOT NULL DEFAULT '{}',
	is_duplicate    BOOLEAN NOT NULL DEFAULT FALSE,
	duplicate_of    UUID,
	deleted         BOOLEAN NOT NULL DEFAULT FALSE,
	imported_at     TIMESTAMPTZ,
	import_source   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS records_owner_kind_key
	ON records (owner_id, kind, natural_key)
	WHERE NOT deleted AND NOT is_duplicate;

CREATE INDEX IF NOT EXISTS records_owner_kind
	ON records (owner_id, kind)
	WHERE NOT deleted;
`

// Store is a pgx-backed RecordStore.
type Store struct {
	db DBTX
}

// New creates a Store over a pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the records table and indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure records schema: %w", err)
	}
	return nil
}

const findByKeySQL = `
SELECT id, owner_id, kind, natural_key, fields, groups, lists,
       is_duplicate, duplicate_of, deleted, imported_at, import_source,
       created_at, updated_at
FROM records
WHERE owner_id = $1 AND kind = $2 AND natural_key = $3
  AND NOT deleted AND NOT is_duplicate
ORDER BY created_at
LIMIT 1`

// FindByKey returns the first live record matching the normalized key.
func (s *Store) FindByKey(ctx context.Context, ownerID, kind, key string) (*store.Record, error) {
	row := s.db.QueryRow(ctx, findByKeySQL, ownerID, kind, schema.NormalizeKey(key))

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find record by key: %w", err)
	}
	return rec, nil
}

const insertSQL = `
INSERT INTO records
	(id, owner_id, kind, natural_key, fields, groups, lists,
	 is_duplicate, duplicate_of, deleted, imported_at, import_source,
	 created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

// Insert stores a new record, assigning an ID if the caller did not.
func (s *Store) Insert(ctx context.Context, rec *store.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	id, err := parseUUID(rec.ID)
	if err != nil {
		return err
	}

	fields, groups, lists, err := marshalData(rec)
	if err != nil {
		return err
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.Exec(ctx, insertSQL,
		id, rec.OwnerID, rec.Kind, rec.Key, fields, groups, lists,
		rec.IsDuplicate, nullableUUID(rec.DuplicateOfID), rec.Deleted,
		nullableTime(rec.ImportedAt), rec.ImportSource,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

const updateSQL = `
UPDATE records
SET natural_key = $2, fields = $3, groups = $4, lists = $5,
    is_duplicate = $6, duplicate_of = $7, deleted = $8,
    imported_at = $9, import_source = $10, updated_at = $11
WHERE id = $1`

// Update replaces an existing record by ID.
func (s *Store) Update(ctx context.Context, rec *store.Record) error {
	id, err := parseUUID(rec.ID)
	if err != nil {
		return err
	}

	fields, groups, lists, err := marshalData(rec)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now()
	tag, err := s.db.Exec(ctx, updateSQL,
		id, rec.Key, fields, groups, lists,
		rec.IsDuplicate, nullableUUID(rec.DuplicateOfID), rec.Deleted,
		nullableTime(rec.ImportedAt), rec.ImportSource, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const countSQL = `
SELECT count(*) FROM records
WHERE owner_id = $1 AND kind = $2 AND NOT deleted`

// CountByOwner counts live records of a kind.
func (s *Store) CountByOwner(ctx context.Context, ownerID, kind string) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, countSQL, ownerID, kind).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

const listSQL = `
SELECT id, owner_id, kind, natural_key, fields, groups, lists,
       is_duplicate, duplicate_of, deleted, imported_at, import_source,
       created_at, updated_at
FROM records
WHERE owner_id = $1 AND kind = $2 AND NOT deleted
ORDER BY created_at, id`

// ListByOwner returns non-deleted records of a kind in creation order.
func (s *Store) ListByOwner(ctx context.Context, ownerID, kind string) ([]*store.Record, error) {
	rows, err := s.db.Query(ctx, listSQL, ownerID, kind)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// scanRecord reads one record from a row with the standard column order.
func scanRecord(row pgx.Row) (*store.Record, error) {
	var (
		rec         store.Record
		id          pgtype.UUID
		duplicateOf pgtype.UUID
		importedAt  pgtype.Timestamptz
		fields      []byte
		groups      []byte
		lists       []byte
	)

	err := row.Scan(&id, &rec.OwnerID, &rec.Kind, &rec.Key,
		&fields, &groups, &lists,
		&rec.IsDuplicate, &duplicateOf, &rec.Deleted,
		&importedAt, &rec.ImportSource, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if id.Valid {
		rec.ID = uuid.UUID(id.Bytes).String()
	}
	if duplicateOf.Valid {
		rec.DuplicateOfID = uuid.UUID(duplicateOf.Bytes).String()
	}
	if importedAt.Valid {
		rec.ImportedAt = importedAt.Time
	}

	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(groups, &rec.Groups); err != nil {
		return nil, fmt.Errorf("unmarshal groups: %w", err)
	}
	if err := json.Unmarshal(lists, &rec.Lists); err != nil {
		return nil, fmt.Errorf("unmarshal lists: %w", err)
	}

	return &rec, nil
}

func marshalData(rec *store.Record) (fields, groups, lists []byte, err error) {
	if fields, err = json.Marshal(orEmptyFields(rec.Fields)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal fields: %w", err)
	}
	if groups, err = json.Marshal(orEmptyGroups(rec.Groups)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal groups: %w", err)
	}
	if lists, err = json.Marshal(orEmptyLists(rec.Lists)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal lists: %w", err)
	}
	return fields, groups, lists, nil
}

func orEmptyFields(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyGroups(m map[string]map[string]string) map[string]map[string]string {
	if m == nil {
		return map[string]map[string]string{}
	}
	return m
}

func orEmptyLists(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func parseUUID(s string) (pgtype.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("invalid record ID %q: %w", s, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func nullableUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: u, Valid: true}
}

func nullableTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
