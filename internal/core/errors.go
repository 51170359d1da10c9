package core

// errors.go defines the engine's error taxonomy. Structural problems (bad
// file, bad headers, capacity) are errors that abort the whole call before
// any store mutation; row-level problems are data, accumulated per row, and
// never surface as errors.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when no schema is registered for a record kind.
var ErrUnknownKind = errors.New("unknown record kind")

// ErrNoRecords is returned by Export when no stored records match.
var ErrNoRecords = errors.New("no records match the export criteria")

// ErrImportInProgress is returned when another import holds the owner's lock
// and the wait timeout expires. Clients should retry after a short delay.
var ErrImportInProgress = errors.New("an import for this owner is already in progress, please try again later")

// FileTooLargeError aborts a call whose input exceeds the byte cap.
type FileTooLargeError struct {
	Size, Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file is %d bytes, limit is %d", e.Size, e.Limit)
}

// TooManyRowsError aborts a call whose input exceeds the data-row cap.
type TooManyRowsError struct {
	Rows, Limit int
}

func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("file has %d data rows, limit is %d", e.Rows, e.Limit)
}

// HeaderError aborts a call whose column headers cannot be mapped: required
// columns missing or the same column appearing twice. Unknown headers are
// warnings, not errors, and never produce a HeaderError.
type HeaderError struct {
	Report HeaderReport
}

func (e *HeaderError) Error() string {
	var parts []string
	if len(e.Report.MissingRequired) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.Report.MissingRequired, ", "))
	}
	if len(e.Report.Duplicates) > 0 {
		parts = append(parts, "duplicate columns: "+strings.Join(e.Report.Duplicates, ", "))
	}
	if len(parts) == 0 {
		return "invalid headers"
	}
	return strings.Join(parts, "; ")
}

// CapacityError aborts an import whose valid rows would push the owner past
// the record limit. The store is left untouched.
type CapacityError struct {
	Current  int
	Incoming int
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("import of %d records would exceed the limit of %d (currently %d)",
		e.Incoming, e.Limit, e.Current)
}
