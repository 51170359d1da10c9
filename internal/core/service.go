package core

import (
	"context"
	"fmt"
	"time"

	"github.com/crmkit/importer/internal/delim"
	"github.com/crmkit/importer/internal/logging"
	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
)

// Limits bounds a single import or preview call.
type Limits struct {
	MaxFileBytes int64         // input size cap
	MaxRows      int           // data-row cap
	LockWait     time.Duration // wait for the per-owner import lock
}

// DefaultLimits matches the documented caps: 5 MB and 1000 data rows.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes: 5 * 1024 * 1024,
		MaxRows:      1000,
		LockWait:     DefaultLockWait,
	}
}

// Service wires the pipeline to its collaborators: the record store, the
// capacity provider, and the clock.
type Service struct {
	store    store.RecordStore
	capacity store.CapacityProvider
	clock    store.Clock
	limits   Limits
	locks    *ownerLocks
}

// NewService creates a Service. A nil clock defaults to the wall clock and
// zero limits default to DefaultLimits.
func NewService(st store.RecordStore, capacity store.CapacityProvider, clock store.Clock, limits Limits) *Service {
	if clock == nil {
		clock = store.SystemClock{}
	}
	def := DefaultLimits()
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = def.MaxFileBytes
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = def.MaxRows
	}
	if limits.LockWait <= 0 {
		limits.LockWait = def.LockWait
	}

	return &Service{
		store:    st,
		capacity: capacity,
		clock:    clock,
		limits:   limits,
		locks:    newOwnerLocks(limits.LockWait),
	}
}

// parse tokenizes raw input for a record kind, enforcing the byte and row
// caps before any row-level work.
func (s *Service) parse(kind string, data []byte, delimiter rune) (*schema.Schema, *delim.Document, error) {
	sch, ok := schema.ByKind(kind)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if int64(len(data)) > s.limits.MaxFileBytes {
		return nil, nil, &FileTooLargeError{Size: int64(len(data)), Limit: s.limits.MaxFileBytes}
	}

	data = delim.SanitizeUTF8(data)
	doc, err := delim.Parse(string(data), delim.Options{Delimiter: delimiter})
	if err != nil {
		return nil, nil, fmt.Errorf("parse input: %w", err)
	}

	if len(doc.Rows) > s.limits.MaxRows {
		return nil, nil, &TooManyRowsError{Rows: len(doc.Rows), Limit: s.limits.MaxRows}
	}

	return sch, doc, nil
}

// validate maps headers and runs the bulk orchestrator over the data rows.
func (s *Service) validate(sch *schema.Schema, doc *delim.Document) (*BulkResult, error) {
	report := ValidateHeaders(doc.Headers, sch)
	if !report.IsValid {
		return nil, &HeaderError{Report: report}
	}
	return ValidateBulk(sch, s.clock, doc.Headers, doc.Rows), nil
}

// Preview runs the validation pipeline without touching the store. Two
// preview calls on identical input produce identical row-for-row results,
// and a subsequent real import reports the same valid/invalid counts.
func (s *Service) Preview(ctx context.Context, kind string, data []byte, delimiter rune) (*PreviewReport, error) {
	sch, doc, err := s.parse(kind, data, delimiter)
	if err != nil {
		return nil, err
	}

	bulk, err := s.validate(sch, doc)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("preview complete",
		"kind", kind,
		"total", len(doc.Rows),
		"valid", len(bulk.Valid),
		"invalid", len(bulk.Invalid),
	)

	return &PreviewReport{Summary: bulk.Counts(), Validation: *bulk}, nil
}

// Import runs the full pipeline: validation, capacity gate, then per-entity
// resolution against the store in sequential batches.
//
// Structural failures (bad input, bad headers, capacity, lock timeout)
// return a nil report and an error. Once the store phase starts the caller
// always receives a report; cancellation between batches returns the partial
// report together with the context error.
func (s *Service) Import(ctx context.Context, ownerID, kind string, data []byte, opts ImportOptions) (*ImportReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	sch, doc, err := s.parse(kind, data, opts.Delimiter)
	if err != nil {
		return nil, err
	}

	bulk, err := s.validate(sch, doc)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{Summary: bulk.Counts(), Validation: *bulk}
	if opts.ValidateOnly {
		return report, nil
	}

	// The lock covers only the store-touching phase.
	if err := s.locks.Acquire(ctx, ownerID); err != nil {
		return nil, err
	}
	defer s.locks.Release(ownerID)

	// Capacity gate: fail fast for the whole call, before any mutation.
	current, err := s.store.CountByOwner(ctx, ownerID, sch.Kind)
	if err != nil {
		return nil, fmt.Errorf("count records for owner: %w", err)
	}
	limit, err := s.capacity.Limit(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolve capacity limit: %w", err)
	}
	if current+len(bulk.Valid) > limit {
		return nil, &CapacityError{Current: current, Incoming: len(bulk.Valid), Limit: limit}
	}

	results, runErr := s.importValidated(ctx, ownerID, sch, bulk.Valid, opts)
	report.Results = results
	report.Summary = summarize(bulk, results)

	logging.FromContext(ctx).Info("import complete",
		"kind", kind,
		"owner", ownerID,
		"total", report.Summary.Total,
		"imported", report.Summary.Imported,
		"updated", report.Summary.Updated,
		"skipped", report.Summary.Skipped,
		"failed", report.Summary.Failed,
		"invalid", report.Summary.Invalid,
	)

	return report, runErr
}

// summarize folds store-phase outcomes into the row accounting.
func summarize(bulk *BulkResult, results ImportResults) Summary {
	sum := bulk.Counts()
	sum.Imported = len(results.Imported)
	sum.Updated = len(results.Updated)
	sum.Skipped = len(results.Skipped)
	sum.Failed = len(results.Failed)
	sum.InsertedAsDuplicates = len(results.InsertedAsDuplicates)
	return sum
}
