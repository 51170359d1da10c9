// Package core implements the bulk record import/export engine: tokenized
// input runs through header mapping, row transformation, validation and
// sanitization, then an import strategy resolves each entity against the
// record store. The engine is schema-driven and has no UI dependencies.
package core

import (
	"strings"

	"github.com/crmkit/importer/internal/schema"
)

// Entity is a transformed, not-yet-persisted record. Scalars live in Fields
// keyed by canonical column name; nested groups and list fields are held as
// embedded values. Entities are ephemeral, scoped to one import or preview
// call.
type Entity struct {
	Kind      string
	OwnerID   string // set for create mode; the import engine attaches it later
	RowNumber int    // 1-based position among data rows, 0 outside bulk runs

	Fields map[string]string
	Groups map[string]map[string]string
	Lists  map[string][]string
}

// NewEntity returns an empty entity of a kind.
func NewEntity(kind string) Entity {
	return Entity{
		Kind:   kind,
		Fields: make(map[string]string),
		Groups: make(map[string]map[string]string),
		Lists:  make(map[string][]string),
	}
}

// Clone deep-copies the entity.
func (e Entity) Clone() Entity {
	c := e
	c.Fields = make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		c.Fields[k] = v
	}
	c.Groups = make(map[string]map[string]string, len(e.Groups))
	for g, sub := range e.Groups {
		inner := make(map[string]string, len(sub))
		for k, v := range sub {
			inner[k] = v
		}
		c.Groups[g] = inner
	}
	c.Lists = make(map[string][]string, len(e.Lists))
	for k, v := range e.Lists {
		c.Lists[k] = append([]string(nil), v...)
	}
	return c
}

// IsEmpty reports whether the entity carries no value at all.
func (e Entity) IsEmpty() bool {
	for _, v := range e.Fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	for _, sub := range e.Groups {
		for _, v := range sub {
			if strings.TrimSpace(v) != "" {
				return false
			}
		}
	}
	for _, list := range e.Lists {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// NaturalKey returns the normalized natural key per the schema, or "" when
// the key field is empty.
func (e Entity) NaturalKey(s *schema.Schema) string {
	return schema.NormalizeKey(e.Fields[s.KeyField])
}

// ValidationResult is the outcome of validating one entity.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// InvalidRow is a rejected data row: its raw cell values keyed by header,
// its position, and every diagnostic collected for it.
type InvalidRow struct {
	RowNumber int               `json:"rowNumber"`
	Raw       map[string]string `json:"raw"`
	Errors    []string          `json:"errors"`
}

// BulkResult partitions a batch into valid sanitized entities and invalid
// rows, with the natural keys that collided inside the batch.
type BulkResult struct {
	Valid         []Entity     `json:"validEntities"`
	Invalid       []InvalidRow `json:"invalidEntities"`
	DuplicateKeys []string     `json:"duplicateKeys"`
}

// Summary is the aggregate row accounting for an import or preview.
// Valid always equals Imported+Updated+Skipped+Failed+InsertedAsDuplicates
// after the store phase, and Total always equals Valid+Invalid.
type Summary struct {
	Total                int `json:"total"`
	Valid                int `json:"valid"`
	Invalid              int `json:"invalid"`
	Imported             int `json:"imported"`
	Updated              int `json:"updated"`
	Skipped              int `json:"skipped"`
	Failed               int `json:"failed"`
	InsertedAsDuplicates int `json:"insertedAsDuplicates"`
}

// ImportOptions controls the import strategy.
type ImportOptions struct {
	// SkipDuplicates leaves rows whose key already exists untouched,
	// recording the existing record's ID. Ignored when UpdateExisting is set.
	SkipDuplicates bool `json:"skipDuplicates"`

	// UpdateExisting merges incoming fields onto the matching record.
	UpdateExisting bool `json:"updateExisting"`

	// ValidateOnly stops after validation; the store is never touched.
	ValidateOnly bool `json:"validateOnly"`

	// BatchSize groups store operations; cancellation is honored between
	// batches.
	BatchSize int `json:"batchSize"`

	// Delimiter for the input document, comma if zero.
	Delimiter rune `json:"-"`
}

// DefaultImportOptions mirrors the documented defaults.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		SkipDuplicates: true,
		BatchSize:      DefaultBatchSize,
	}
}

// DefaultBatchSize is the store-phase batch size when none is given.
const DefaultBatchSize = 100

// Per-entity import outcomes.

// ImportedRecord is a row inserted as a new record.
type ImportedRecord struct {
	RowNumber int    `json:"rowNumber"`
	ID        string `json:"id"`
}

// UpdatedRecord is a row merged onto an existing record.
type UpdatedRecord struct {
	RowNumber int    `json:"rowNumber"`
	ID        string `json:"id"`
}

// SkippedRecord is a row left untouched because its key already exists.
type SkippedRecord struct {
	RowNumber  int    `json:"rowNumber"`
	ExistingID string `json:"existingId"`
	Reason     string `json:"reason"`
}

// DuplicateRecord is a row inserted as a flagged duplicate of an existing
// record.
type DuplicateRecord struct {
	RowNumber  int    `json:"rowNumber"`
	ID         string `json:"id"`
	ExistingID string `json:"existingId"`
}

// FailedRecord is a row whose persistence failed; the error never aborts
// sibling rows.
type FailedRecord struct {
	RowNumber int    `json:"rowNumber"`
	Error     string `json:"error"`
}

// ImportResults groups per-entity outcomes from the store phase.
type ImportResults struct {
	Imported             []ImportedRecord  `json:"imported"`
	Updated              []UpdatedRecord   `json:"updated"`
	Skipped              []SkippedRecord   `json:"skipped"`
	InsertedAsDuplicates []DuplicateRecord `json:"insertedAsDuplicates"`
	Failed               []FailedRecord    `json:"failed"`
}

// ImportReport is the full result of an import call: row accounting,
// validation detail, and store-phase outcomes.
type ImportReport struct {
	Summary    Summary       `json:"summary"`
	Validation BulkResult    `json:"validation"`
	Results    ImportResults `json:"results"`
}

// PreviewReport is the dry-run result: identical row accounting, no store
// phase.
type PreviewReport struct {
	Summary    Summary    `json:"summary"`
	Validation BulkResult `json:"validation"`
}
