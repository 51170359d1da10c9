// Package schema declares the data-driven field schemas the import/export
// engine is parameterized by. A Schema is an immutable value: the engine holds
// no entity-specific logic, so adding a record kind means adding a Schema
// here, not touching the pipeline.
package schema

import (
	"strings"
	"time"
)

// Mode selects which rules apply during validation.
type Mode string

const (
	ModeCreate Mode = "create" // full record: schema-required fields plus an owner
	ModeUpdate Mode = "update" // partial record: nothing is required
	ModeImport Mode = "import" // schema-required fields; ownership attached later
)

// FieldType drives per-field validation and sanitization.
type FieldType int

const (
	FieldText FieldType = iota
	FieldName           // human name: letters, spaces, hyphens, apostrophes, periods
	FieldEmail
	FieldPhone
	FieldURL
	FieldEnum
	FieldDate
	FieldNumeric
	FieldLongText // rich text run through the formatting-tag allow list
	FieldList     // comma-joined list on input, e.g. tags
)

// Field defines one column of a record kind.
type Field struct {
	Name       string    // canonical column header; templates and exports use this
	Type       FieldType
	Required   bool
	MaxLen     int      // 0 means no length bound
	EnumValues []string // valid values for FieldEnum
	URLHosts   []string // allowed hosts for FieldURL; empty means any host
	Group      string   // nested group this column belongs to, e.g. "address"
	GroupField string   // sub-field name inside Group
	Example    string   // realistic value for generated templates
}

// CrossRule is a cross-field consistency check. Check receives the entity's
// scalar fields keyed by canonical name plus the current time for date-window
// rules, and returns a diagnostic, or "" when the rule holds. Rules run only
// in the listed modes.
type CrossRule struct {
	Name  string
	Modes []Mode
	Check func(fields map[string]string, now time.Time) string
}

// AppliesTo reports whether the rule runs in the given mode.
func (r CrossRule) AppliesTo(mode Mode) bool {
	for _, m := range r.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Schema describes one record kind.
type Schema struct {
	Kind     string  // "contact", "deal"
	KeyField string  // column whose normalized value is the natural key
	Fields   []Field // canonical column order
	Cross    []CrossRule
}

// Field returns the field definition for a canonical name, matched
// case-insensitively.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the canonical names of required fields in order.
func (s *Schema) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Headers returns every canonical column name in schema order.
func (s *Schema) Headers() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// NormalizeKey produces the natural-key form of a raw key value: trimmed and
// lower-cased, so "the same real-world entity" compares equal across rows and
// against the store.
func NormalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// InEnum reports whether value matches one of allowed, ignoring case.
func InEnum(value string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return true
		}
	}
	return false
}

// registry of built-in schemas keyed by kind.
var registry = map[string]*Schema{
	Contact.Kind: Contact,
	Deal.Kind:    Deal,
}

// ByKind returns the built-in schema for a record kind.
func ByKind(kind string) (*Schema, bool) {
	s, ok := registry[strings.ToLower(strings.TrimSpace(kind))]
	return s, ok
}

// Kinds lists the registered record kinds.
func Kinds() []string {
	return []string{Contact.Kind, Deal.Kind}
}
