package core

import (
	"strings"

	"github.com/crmkit/importer/internal/schema"
)

// HeaderReport is the result of mapping detected column headers against a
// schema. Missing required or duplicate headers make the report invalid and
// abort the whole call before any row is processed; unknown headers are
// warnings only, and those columns are ignored downstream.
type HeaderReport struct {
	IsValid         bool     `json:"isValid"`
	MissingRequired []string `json:"missingRequired,omitempty"`
	Unknown         []string `json:"unknownHeaders,omitempty"`
	Duplicates      []string `json:"duplicateHeaders,omitempty"`
}

// ValidateHeaders checks detected headers against the schema.
func ValidateHeaders(headers []string, s *schema.Schema) HeaderReport {
	report := HeaderReport{IsValid: true}

	seen := make(map[string]bool, len(headers))
	dupReported := make(map[string]bool)
	unknownReported := make(map[string]bool)
	for _, h := range headers {
		name := strings.TrimSpace(h)
		key := strings.ToLower(name)
		if key == "" {
			continue
		}
		if seen[key] && !dupReported[key] {
			report.Duplicates = append(report.Duplicates, name)
			dupReported[key] = true
		}
		seen[key] = true

		if _, ok := s.Field(h); !ok && !unknownReported[key] {
			report.Unknown = append(report.Unknown, name)
			unknownReported[key] = true
		}
	}

	for _, name := range s.RequiredFields() {
		if !seen[strings.ToLower(name)] {
			report.MissingRequired = append(report.MissingRequired, name)
		}
	}

	if len(report.MissingRequired) > 0 || len(report.Duplicates) > 0 {
		report.IsValid = false
	}
	return report
}

// rawRowMap pairs header names with row cells, keeping only headers the
// schema knows. Shorter rows leave trailing columns absent; the first
// occurrence wins for duplicated headers.
func rawRowMap(headers []string, row []string, s *schema.Schema) map[string]string {
	raw := make(map[string]string)
	for i, h := range headers {
		if i >= len(row) {
			break
		}
		f, ok := s.Field(h)
		if !ok {
			continue
		}
		if _, exists := raw[f.Name]; exists {
			continue
		}
		raw[f.Name] = row[i]
	}
	return raw
}
