package core

// bulk.go is the bulk validation orchestrator: it runs transform, validate
// and sanitize over every data row in source order, tracks natural keys seen
// in the batch, and partitions the rows into valid entities and invalid rows
// with diagnostics. It has no side effects on any store and is safe to call
// repeatedly; preview is exactly one of these runs.

import (
	"strings"

	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
)

// ValidateBulk processes data rows against a schema.
//
// Row numbers are 1-based, dense over the data rows. A row with no non-empty
// cell is invalid with a single "empty row" diagnostic and nothing else runs
// for it. A natural key already seen in this batch marks the later row
// invalid; the earlier row is not revisited.
func ValidateBulk(s *schema.Schema, clock store.Clock, headers []string, rows [][]string) *BulkResult {
	validator := NewValidator(s, clock)
	sanitizer := NewSanitizer(s)

	result := &BulkResult{}
	registry := make(map[string]bool) // natural keys seen in this batch
	conflicted := make(map[string]bool)

	for i, row := range rows {
		rowNumber := i + 1

		if isBlankRow(row) {
			result.Invalid = append(result.Invalid, InvalidRow{
				RowNumber: rowNumber,
				Raw:       rawRowMap(headers, row, s),
				Errors:    []string{"empty row"},
			})
			continue
		}

		raw := rawRowMap(headers, row, s)
		entity := TransformRow(raw, s)
		entity.RowNumber = rowNumber

		res := validator.Validate(entity, schema.ModeImport)
		errs := res.Errors

		if key := entity.NaturalKey(s); key != "" {
			if registry[key] {
				errs = append(errs, "duplicate "+s.KeyField+" within import: "+key)
				if !conflicted[key] {
					conflicted[key] = true
					result.DuplicateKeys = append(result.DuplicateKeys, key)
				}
			} else {
				registry[key] = true
			}
		}

		if len(errs) == 0 {
			clean := sanitizer.Sanitize(entity)
			result.Valid = append(result.Valid, clean)
		} else {
			result.Invalid = append(result.Invalid, InvalidRow{
				RowNumber: rowNumber,
				Raw:       raw,
				Errors:    errs,
			})
		}
	}

	return result
}

// Counts returns the row accounting for the validation phase. Store-phase
// counters are zero until an import fills them in.
func (r *BulkResult) Counts() Summary {
	return Summary{
		Total:   len(r.Valid) + len(r.Invalid),
		Valid:   len(r.Valid),
		Invalid: len(r.Invalid),
	}
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
