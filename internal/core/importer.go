package core

// importer.go is the import strategy engine. Every valid entity is resolved
// against the store by natural key: no match inserts, a match either updates,
// skips, or inserts a flagged duplicate depending on the options. Batches run
// strictly sequentially so later rows see the store state earlier inserts
// produced; a persistence failure on one row never aborts its siblings.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/crmkit/importer/internal/logging"
	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
	"github.com/google/uuid"
)

// ImportSourceTag is the provenance tag stamped on records created by an
// import.
const ImportSourceTag = "csv_import"

// importValidated executes the store phase over already-validated entities.
// Cancellation is honored between batches; the returned error is non-nil
// only for that case, with the outcomes so far intact.
func (s *Service) importValidated(ctx context.Context, ownerID string, sch *schema.Schema, entities []Entity, opts ImportOptions) (ImportResults, error) {
	var results ImportResults
	log := logging.FromContext(ctx)
	now := s.clock.Now()

	for start := 0; start < len(entities); start += opts.BatchSize {
		// Batch boundary is the cooperative cancellation checkpoint.
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := start + opts.BatchSize
		if end > len(entities) {
			end = len(entities)
		}

		for _, entity := range entities[start:end] {
			s.resolveEntity(ctx, ownerID, sch, entity, opts, now, &results, log)
		}
	}

	return results, nil
}

// resolveEntity applies the conflict-resolution strategy to one entity.
func (s *Service) resolveEntity(ctx context.Context, ownerID string, sch *schema.Schema, entity Entity, opts ImportOptions, now time.Time, results *ImportResults, log *slog.Logger) {
	key := entity.NaturalKey(sch)

	existing, err := s.store.FindByKey(ctx, ownerID, sch.Kind, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn("record lookup failed", "row", entity.RowNumber, "error", err)
		results.Failed = append(results.Failed, FailedRecord{
			RowNumber: entity.RowNumber,
			Error:     persistenceMessage(err),
		})
		return
	}

	switch {
	case existing == nil:
		rec := recordFromEntity(ownerID, key, entity, now)
		if err := s.store.Insert(ctx, rec); err != nil {
			log.Warn("record insert failed", "row", entity.RowNumber, "error", err)
			results.Failed = append(results.Failed, FailedRecord{
				RowNumber: entity.RowNumber,
				Error:     persistenceMessage(err),
			})
			return
		}
		results.Imported = append(results.Imported, ImportedRecord{
			RowNumber: entity.RowNumber,
			ID:        rec.ID,
		})

	case opts.UpdateExisting:
		merged := mergeEntity(existing, entity, key)
		if err := s.store.Update(ctx, merged); err != nil {
			log.Warn("record update failed", "row", entity.RowNumber, "id", existing.ID, "error", err)
			results.Failed = append(results.Failed, FailedRecord{
				RowNumber: entity.RowNumber,
				Error:     persistenceMessage(err),
			})
			return
		}
		results.Updated = append(results.Updated, UpdatedRecord{
			RowNumber: entity.RowNumber,
			ID:        existing.ID,
		})

	case opts.SkipDuplicates:
		results.Skipped = append(results.Skipped, SkippedRecord{
			RowNumber:  entity.RowNumber,
			ExistingID: existing.ID,
			Reason:     "a record with this " + sch.KeyField + " already exists",
		})

	default:
		// Preserve the row rather than discarding it: insert it flagged as a
		// duplicate, linked to the first existing record found live. Older
		// historical duplicates for the same key are not referenced.
		rec := recordFromEntity(ownerID, key, entity, now)
		rec.IsDuplicate = true
		rec.DuplicateOfID = existing.ID
		if err := s.store.Insert(ctx, rec); err != nil {
			log.Warn("duplicate insert failed", "row", entity.RowNumber, "error", err)
			results.Failed = append(results.Failed, FailedRecord{
				RowNumber: entity.RowNumber,
				Error:     persistenceMessage(err),
			})
			return
		}
		results.InsertedAsDuplicates = append(results.InsertedAsDuplicates, DuplicateRecord{
			RowNumber:  entity.RowNumber,
			ID:         rec.ID,
			ExistingID: existing.ID,
		})
	}
}

// recordFromEntity builds a new store record with import provenance.
func recordFromEntity(ownerID, key string, e Entity, now time.Time) *store.Record {
	clone := e.Clone()
	return &store.Record{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Kind:         clone.Kind,
		Key:          key,
		Fields:       clone.Fields,
		Groups:       clone.Groups,
		Lists:        clone.Lists,
		ImportedAt:   now,
		ImportSource: ImportSourceTag,
	}
}

// mergeEntity overlays incoming fields onto a copy of the existing record.
// Only fields the incoming entity actually carries are touched; the existing
// record's identity is preserved.
func mergeEntity(existing *store.Record, e Entity, key string) *store.Record {
	merged := existing.Clone()
	merged.Key = key

	for name, value := range e.Fields {
		merged.Fields[name] = value
	}
	for group, sub := range e.Groups {
		if merged.Groups[group] == nil {
			merged.Groups[group] = make(map[string]string, len(sub))
		}
		for k, v := range sub {
			merged.Groups[group][k] = v
		}
	}
	for name, list := range e.Lists {
		merged.Lists[name] = append([]string(nil), list...)
	}

	return merged
}
