package core

import (
	"strings"

	"github.com/crmkit/importer/internal/schema"
)

// TransformRow maps a flat header-to-value row onto a structured entity.
//
// Scalars copy directly. Nested groups (address, socialMedia) are assembled
// only when at least one of their sub-fields carries a value. List fields are
// split on comma with each element trimmed and empties dropped; order and
// duplicates are preserved, deduplication belongs to the sanitizer.
func TransformRow(raw map[string]string, s *schema.Schema) Entity {
	e := NewEntity(s.Kind)

	for _, f := range s.Fields {
		value, ok := raw[f.Name]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch {
		case f.Type == schema.FieldList:
			if items := splitList(value); len(items) > 0 {
				e.Lists[f.Name] = items
			}
		case f.Group != "":
			if value == "" {
				continue
			}
			if e.Groups[f.Group] == nil {
				e.Groups[f.Group] = make(map[string]string)
			}
			e.Groups[f.Group][f.GroupField] = value
		default:
			if value != "" {
				e.Fields[f.Name] = value
			}
		}
	}

	return e
}

// splitList splits a comma-joined cell into elements, trimming each and
// dropping empties.
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}
