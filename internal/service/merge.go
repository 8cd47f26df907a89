package service

import (
	"strings"

	"gradcafe_scraper/internal/models"
)

// RecordSignature is the only equality used for deduplication.
type RecordSignature struct {
	University string
	Program    string
	Date       string
	Comments   string
}

// Signature normalizes the identifying fields of a record.
func Signature(rec models.CleanedRecord) RecordSignature {
	return RecordSignature{
		University: normalizeKey(models.Deref(rec.University)),
		Program:    normalizeKey(models.Deref(rec.ProgramName)),
		Date:       normalizeKey(models.Deref(rec.DateAdded)),
		Comments:   normalizeKey(rec.Comments),
	}
}

// Merge prepends the fresh records that are not already known to the existing
// list. A fresh record is dropped when its signature matches an existing record
// or an earlier fresh one.
func Merge(existing, fresh []models.CleanedRecord) []models.CleanedRecord {
	seen := make(map[RecordSignature]struct{}, len(existing)+len(fresh))
	for _, rec := range existing {
		seen[Signature(rec)] = struct{}{}
	}

	accepted := make([]models.CleanedRecord, 0, len(fresh))
	for _, rec := range fresh {
		sig := Signature(rec)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		accepted = append(accepted, rec)
	}

	return append(accepted, existing...)
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
