package core

// template.go emits blank import templates from the schema. Headers use
// canonical names, not display names, so a downloaded template is directly
// re-importable.

import (
	"fmt"

	"github.com/crmkit/importer/internal/delim"
	"github.com/crmkit/importer/internal/schema"
)

// Template generates a header-only document for a record kind, optionally
// followed by an example row with realistic values.
func (s *Service) Template(kind string, includeExamples bool, delimiter rune) (string, error) {
	sch, ok := schema.ByKind(kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return GenerateTemplate(sch, includeExamples, delimiter), nil
}

// GenerateTemplate renders the template for a schema using the export
// quoting rules.
func GenerateTemplate(sch *schema.Schema, includeExamples bool, delimiter rune) string {
	rows := [][]string{sch.Headers()}

	if includeExamples {
		example := make([]string, len(sch.Fields))
		for i, f := range sch.Fields {
			example[i] = f.Example
		}
		rows = append(rows, example)
	}

	return delim.FormatRows(rows, delimiter)
}
