package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/crmkit/importer/internal/store"
	"github.com/crmkit/importer/internal/store/memory"
)

const testOwner = "owner-1"

func mustImport(t *testing.T, svc *Service, data []byte, opts ImportOptions) *ImportReport {
	t.Helper()
	report, err := svc.Import(context.Background(), testOwner, "contact", data, opts)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	return report
}

// checkInvariants asserts the two accounting identities every report must
// satisfy.
func checkInvariants(t *testing.T, sum Summary) {
	t.Helper()
	if got := sum.Imported + sum.Updated + sum.Skipped + sum.Failed + sum.InsertedAsDuplicates; got != sum.Valid {
		t.Errorf("outcome sum = %d, want Valid = %d (%+v)", got, sum.Valid, sum)
	}
	if sum.Valid+sum.Invalid != sum.Total {
		t.Errorf("Valid+Invalid = %d, want Total = %d", sum.Valid+sum.Invalid, sum.Total)
	}
}

// ----------------------------------------------------------------------------
// Fresh Import Tests
// ----------------------------------------------------------------------------

func TestImport_FreshRecords(t *testing.T) {
	svc, st := newMemoryService(100)
	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,Dylan,bob@example.com",
	)

	report := mustImport(t, svc, data, DefaultImportOptions())

	want := Summary{Total: 2, Valid: 2, Imported: 2}
	if report.Summary != want {
		t.Errorf("Summary = %+v, want %+v", report.Summary, want)
	}
	checkInvariants(t, report.Summary)

	if st.Len() != 2 {
		t.Errorf("store holds %d records, want 2", st.Len())
	}

	rec, err := st.FindByKey(context.Background(), testOwner, "contact", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if rec.ImportSource != ImportSourceTag {
		t.Errorf("ImportSource = %q, want %q", rec.ImportSource, ImportSourceTag)
	}
	if !rec.ImportedAt.Equal(testTime) {
		t.Errorf("ImportedAt = %v, want clock time %v", rec.ImportedAt, testTime)
	}
	if rec.OwnerID != testOwner {
		t.Errorf("OwnerID = %q", rec.OwnerID)
	}
}

func TestImport_MixedValidity(t *testing.T) {
	svc, _ := newMemoryService(100)
	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,,bob@example.com", // missing required lastName
	)

	report := mustImport(t, svc, data, DefaultImportOptions())

	if report.Summary.Imported != 1 || report.Summary.Invalid != 1 {
		t.Errorf("Summary = %+v", report.Summary)
	}
	checkInvariants(t, report.Summary)
}

// ----------------------------------------------------------------------------
// Conflict Resolution Tests
// ----------------------------------------------------------------------------

func TestImport_SkipDuplicates(t *testing.T) {
	svc, st := newMemoryService(100)
	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,Dylan,bob@example.com",
	)

	mustImport(t, svc, data, DefaultImportOptions())

	// Re-importing the same file is idempotent under skip.
	report := mustImport(t, svc, data, DefaultImportOptions())

	want := Summary{Total: 2, Valid: 2, Skipped: 2}
	if report.Summary != want {
		t.Errorf("Summary = %+v, want %+v", report.Summary, want)
	}
	checkInvariants(t, report.Summary)

	if st.Len() != 2 {
		t.Errorf("store holds %d records after re-import, want 2", st.Len())
	}
	if len(report.Results.Skipped) != 2 {
		t.Fatalf("Skipped = %+v", report.Results.Skipped)
	}
	sk := report.Results.Skipped[0]
	if sk.ExistingID == "" {
		t.Error("skipped record missing ExistingID")
	}
	if !strings.Contains(sk.Reason, "already exists") {
		t.Errorf("Reason = %q", sk.Reason)
	}
}

func TestImport_UpdateExisting(t *testing.T) {
	svc, st := newMemoryService(100)
	mustImport(t, svc, contactCSV("Ada,Lovelace,ada@example.com"), DefaultImportOptions())

	before, _ := st.FindByKey(context.Background(), testOwner, "contact", "ada@example.com")

	data := csvDoc(
		"firstName,lastName,email,company",
		"Ada,Lovelace,ada@example.com,Analytical Engines",
	)
	opts := DefaultImportOptions()
	opts.UpdateExisting = true
	report := mustImport(t, svc, data, opts)

	if report.Summary.Updated != 1 || report.Summary.Imported != 0 {
		t.Errorf("Summary = %+v", report.Summary)
	}

	after, err := st.FindByKey(context.Background(), testOwner, "contact", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if after.ID != before.ID {
		t.Error("update changed the record identity")
	}
	if after.Fields["company"] != "Analytical Engines" {
		t.Errorf("company = %q, want merged value", after.Fields["company"])
	}
	if after.Fields["firstName"] != "Ada" {
		t.Errorf("firstName = %q, existing value lost", after.Fields["firstName"])
	}
}

func TestImport_UpdatePreservesAbsentFields(t *testing.T) {
	svc, st := newMemoryService(100)
	seed := csvDoc(
		"firstName,lastName,email,company",
		"Ada,Lovelace,ada@example.com,Acme",
	)
	mustImport(t, svc, seed, DefaultImportOptions())

	// The update row does not carry company; the stored value must survive.
	opts := DefaultImportOptions()
	opts.UpdateExisting = true
	mustImport(t, svc, contactCSV("Ada,Byron,ada@example.com"), opts)

	rec, _ := st.FindByKey(context.Background(), testOwner, "contact", "ada@example.com")
	if rec.Fields["company"] != "Acme" {
		t.Errorf("company = %q, want preserved Acme", rec.Fields["company"])
	}
	if rec.Fields["lastName"] != "Byron" {
		t.Errorf("lastName = %q, want overlaid Byron", rec.Fields["lastName"])
	}
}

func TestImport_InsertAsDuplicate(t *testing.T) {
	svc, st := newMemoryService(100)
	mustImport(t, svc, contactCSV("Ada,Lovelace,ada@example.com"), DefaultImportOptions())

	existing, _ := st.FindByKey(context.Background(), testOwner, "contact", "ada@example.com")

	opts := ImportOptions{SkipDuplicates: false, UpdateExisting: false, BatchSize: DefaultBatchSize}
	report := mustImport(t, svc, contactCSV("Ada,Again,ada@example.com"), opts)

	if report.Summary.InsertedAsDuplicates != 1 {
		t.Fatalf("Summary = %+v", report.Summary)
	}
	checkInvariants(t, report.Summary)

	dup := report.Results.InsertedAsDuplicates[0]
	if dup.ExistingID != existing.ID {
		t.Errorf("ExistingID = %q, want %q", dup.ExistingID, existing.ID)
	}
	if st.Len() != 2 {
		t.Errorf("store holds %d records, want 2", st.Len())
	}

	// The duplicate-flagged record never becomes a FindByKey match, so the
	// original stays the one live record for the key.
	live, err := st.FindByKey(context.Background(), testOwner, "contact", "ada@example.com")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if live.ID != existing.ID {
		t.Error("duplicate-flagged record shadowed the original")
	}
}

// ----------------------------------------------------------------------------
// Capacity Gate Tests
// ----------------------------------------------------------------------------

func TestImport_CapacityGateFailsWholeCall(t *testing.T) {
	svc, st := newMemoryService(1)
	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,Dylan,bob@example.com",
	)

	report, err := svc.Import(context.Background(), testOwner, "contact", data, DefaultImportOptions())
	if report != nil {
		t.Error("capacity failure should not produce a report")
	}

	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("error = %v, want CapacityError", err)
	}
	if capErr.Incoming != 2 || capErr.Limit != 1 || capErr.Current != 0 {
		t.Errorf("CapacityError = %+v", capErr)
	}

	// All-or-nothing: the store was never touched.
	if st.Len() != 0 {
		t.Errorf("store holds %d records, want 0", st.Len())
	}
}

func TestImport_CapacityCountsOnlyValidRows(t *testing.T) {
	svc, _ := newMemoryService(1)
	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,,bob@example.com", // invalid, does not count against capacity
	)

	report := mustImport(t, svc, data, DefaultImportOptions())
	if report.Summary.Imported != 1 {
		t.Errorf("Summary = %+v", report.Summary)
	}
}

// ----------------------------------------------------------------------------
// ValidateOnly Tests
// ----------------------------------------------------------------------------

func TestImport_ValidateOnly(t *testing.T) {
	svc, st := newMemoryService(100)
	opts := DefaultImportOptions()
	opts.ValidateOnly = true

	report := mustImport(t, svc, contactCSV("Ada,Lovelace,ada@example.com"), opts)

	if report.Summary.Valid != 1 || report.Summary.Imported != 0 {
		t.Errorf("Summary = %+v", report.Summary)
	}
	if st.Len() != 0 {
		t.Errorf("validate-only touched the store: %d records", st.Len())
	}
}

// ----------------------------------------------------------------------------
// Fail-Soft Persistence Tests
// ----------------------------------------------------------------------------

func TestImport_RowFailureDoesNotAbortSiblings(t *testing.T) {
	base := memory.New()
	failing := &failingStore{
		RecordStore: base,
		failKey:     "bob@example.com",
		err:         errors.New(`pq: connection refused on host "db-internal:5432"`),
	}
	svc := newTestService(failing, 100)

	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,Dylan,bob@example.com",
		"Cat,Stevens,cat@example.com",
	)
	report := mustImport(t, svc, data, DefaultImportOptions())

	if report.Summary.Imported != 2 || report.Summary.Failed != 1 {
		t.Errorf("Summary = %+v", report.Summary)
	}
	checkInvariants(t, report.Summary)

	if len(report.Results.Failed) != 1 {
		t.Fatalf("Failed = %+v", report.Results.Failed)
	}
	failed := report.Results.Failed[0]
	if failed.RowNumber != 2 {
		t.Errorf("failed RowNumber = %d, want 2", failed.RowNumber)
	}
	// Store internals must not leak into the per-row message.
	if strings.Contains(failed.Error, "db-internal") || strings.Contains(failed.Error, "pq:") {
		t.Errorf("raw store error leaked: %q", failed.Error)
	}
	if failed.Error != "the record store is unavailable, try again shortly" {
		t.Errorf("Error = %q", failed.Error)
	}
}

// ----------------------------------------------------------------------------
// Cancellation Tests
// ----------------------------------------------------------------------------

func TestImport_CancellationBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	base := memory.New()
	st := &cancellingStore{RecordStore: base, cancel: cancel}
	svc := newTestService(st, 100)

	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,Dylan,bob@example.com",
	)
	opts := DefaultImportOptions()
	opts.BatchSize = 1

	report, err := svc.Import(ctx, testOwner, "contact", data, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if report == nil {
		t.Fatal("cancellation mid-import should still return the partial report")
	}
	if report.Summary.Imported != 1 {
		t.Errorf("Summary = %+v, want one imported before cancellation", report.Summary)
	}
	if base.Len() != 1 {
		t.Errorf("store holds %d records, want 1", base.Len())
	}
}

// ----------------------------------------------------------------------------
// Structural Error Tests
// ----------------------------------------------------------------------------

func TestImport_StructuralErrors(t *testing.T) {
	svc, _ := newMemoryService(100)

	t.Run("unknown kind", func(t *testing.T) {
		_, err := svc.Import(context.Background(), testOwner, "invoice", contactCSV("a,b,c@d.io"), DefaultImportOptions())
		if !errors.Is(err, ErrUnknownKind) {
			t.Errorf("error = %v, want ErrUnknownKind", err)
		}
	})

	t.Run("missing required header", func(t *testing.T) {
		data := csvDoc("firstName,lastName", "Ada,Lovelace")
		_, err := svc.Import(context.Background(), testOwner, "contact", data, DefaultImportOptions())

		var headerErr *HeaderError
		if !errors.As(err, &headerErr) {
			t.Fatalf("error = %v, want HeaderError", err)
		}
		if len(headerErr.Report.MissingRequired) != 1 || headerErr.Report.MissingRequired[0] != "email" {
			t.Errorf("Report = %+v", headerErr.Report)
		}
	})

	t.Run("header only input", func(t *testing.T) {
		data := csvDoc("firstName,lastName,email")
		_, err := svc.Import(context.Background(), testOwner, "contact", data, DefaultImportOptions())
		if err == nil {
			t.Error("header-only input accepted")
		}
	})

	t.Run("file too large", func(t *testing.T) {
		small := NewService(memory.New(), store.FixedCapacity(100), fakeClock{now: testTime}, Limits{MaxFileBytes: 10})
		_, err := small.Import(context.Background(), testOwner, "contact", contactCSV("Ada,Lovelace,ada@example.com"), DefaultImportOptions())

		var tooLarge *FileTooLargeError
		if !errors.As(err, &tooLarge) {
			t.Errorf("error = %v, want FileTooLargeError", err)
		}
	})

	t.Run("too many rows", func(t *testing.T) {
		small := NewService(memory.New(), store.FixedCapacity(100), fakeClock{now: testTime}, Limits{MaxRows: 1})
		data := contactCSV("Ada,Lovelace,ada@example.com", "Bob,Dylan,bob@example.com")
		_, err := small.Import(context.Background(), testOwner, "contact", data, DefaultImportOptions())

		var tooMany *TooManyRowsError
		if !errors.As(err, &tooMany) {
			t.Errorf("error = %v, want TooManyRowsError", err)
		}
	})
}

// ----------------------------------------------------------------------------
// Preview Tests
// ----------------------------------------------------------------------------

func TestPreview_MatchesImportAccounting(t *testing.T) {
	data := contactCSV(
		"Ada,Lovelace,ada@example.com",
		"Bob,,bob@example.com",
		"Ada,Again,ada@example.com",
	)

	svc, st := newMemoryService(100)
	preview, err := svc.Preview(context.Background(), "contact", data, 0)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("preview touched the store: %d records", st.Len())
	}

	report := mustImport(t, svc, data, DefaultImportOptions())
	if preview.Summary.Valid != report.Summary.Valid || preview.Summary.Invalid != report.Summary.Invalid {
		t.Errorf("preview %+v does not match import %+v", preview.Summary, report.Summary)
	}

	second, err := svc.Preview(context.Background(), "contact", data, 0)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.Summary != second.Summary {
		t.Errorf("previews differ: %+v vs %+v", preview.Summary, second.Summary)
	}
}

// ----------------------------------------------------------------------------
// Owner Isolation Tests
// ----------------------------------------------------------------------------

func TestImport_OwnersIsolated(t *testing.T) {
	svc, st := newMemoryService(100)
	data := contactCSV("Ada,Lovelace,ada@example.com")

	mustImport(t, svc, data, DefaultImportOptions())

	report, err := svc.Import(context.Background(), "owner-2", "contact", data, DefaultImportOptions())
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if report.Summary.Imported != 1 || report.Summary.Skipped != 0 {
		t.Errorf("second owner's import = %+v, want a fresh insert", report.Summary)
	}
	if st.Len() != 2 {
		t.Errorf("store holds %d records, want 2", st.Len())
	}
}
