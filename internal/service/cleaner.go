package service

import (
	"fmt"
	"log/slog"
	"strings"

	"gradcafe_scraper/internal/models"
)

// Cleaner turns raw scraped entries into canonical applicant records.
type Cleaner struct {
	dates  DateNormalizer
	logger *slog.Logger
}

// NewCleaner creates a cleaner that assumes defaultYear for year-less dates.
func NewCleaner(defaultYear int, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		dates:  NewDateNormalizer(defaultYear),
		logger: logger,
	}
}

// Clean builds every entry of the batch. An entry that cannot be built is
// logged and skipped; it never aborts the batch.
func (c *Cleaner) Clean(batch []models.RawEntry) []models.CleanedRecord {
	cleaned := make([]models.CleanedRecord, 0, len(batch))
	for i, item := range batch {
		rec, err := c.safeBuild(item)
		if err != nil {
			c.logger.Warn("skipping raw entry", "index", i, "err", err)
			continue
		}
		cleaned = append(cleaned, rec)
	}
	return cleaned
}

func (c *Cleaner) safeBuild(item models.RawEntry) (rec models.CleanedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build record: %v", r)
		}
	}()
	return c.Build(item), nil
}

// Build maps one raw entry into a cleaned record. Fields that cannot be
// resolved are left unset and omitted; Comments is always present.
func (c *Cleaner) Build(item models.RawEntry) models.CleanedRecord {
	// 1. One blob over every text-bearing field
	parts := make([]string, 0, len(models.TextKeys))
	for _, key := range models.TextKeys {
		parts = append(parts, item.String(key))
	}
	blob := strings.Join(parts, " ")

	// 2. Status and decision date from the blob, falling back to a supplied date
	status, fragment := ExtractStatusDate(blob)
	date := ""
	if fragment != "" {
		date = c.dates.Normalize(fragment)
	}
	if date == "" {
		if supplied := models.ToString(item.First(models.DateAddedKeys...)); supplied != "" {
			date = c.dates.Normalize(supplied)
		}
	}

	// 3. Fixed record shape, scraper-native key first
	rec := models.CleanedRecord{
		ProgramName:   cleanString(item.First(models.ProgramKeys...)),
		University:    cleanString(item.First(models.UniversityKeys...)),
		Comments:      models.Deref(cleanString(item.First(models.CommentKeys...))),
		DateAdded:     models.StringPtr(date),
		URL:           models.StringPtr(models.ToString(item.First(models.URLKeys...))),
		Status:        status,
		Term:          firstString(ExtractSeason(blob), item.First(models.SeasonKeys...)),
		Origin:        firstString(ExtractOrigin(blob), item.First(models.OriginKeys...)),
		GRE:           models.ToFloat(item.First(models.GREKeys...)),
		GREVerbal:     models.ToFloat(item.First(models.GREVerbalKeys...)),
		GREAW:         models.ToFloat(item.First(models.GREAWKeys...)),
		Degree:        cleanString(item.First(models.DegreeKeys...)),
		GPA:           models.ToFloat(item.First(models.GPAKeys...)),
		LLMProgram:    models.StringPtr(models.ToString(item.First("llm_generated_program"))),
		LLMUniversity: models.StringPtr(models.ToString(item.First("llm_generated_university"))),
	}

	switch status {
	case models.StatusAccepted:
		rec.Accepted = models.StringPtr(date)
	case models.StatusRejected:
		rec.Rejected = models.StringPtr(date)
	}

	// 4. Extracted scores overwrite supplied ones only when found
	if gpa := ExtractGPA(blob); gpa != nil {
		rec.GPA = gpa
	}
	gre := ExtractGRE(blob)
	if gre.Total != nil {
		rec.GRE = gre.Total
	}
	if gre.Verbal != nil {
		rec.GREVerbal = gre.Verbal
	}
	if gre.AW != nil {
		rec.GREAW = gre.AW
	}

	prune(&rec)
	return rec
}

// prune drops blank optional strings; Comments is trimmed to "" instead.
func prune(rec *models.CleanedRecord) {
	for _, field := range []**string{
		&rec.ProgramName, &rec.University, &rec.DateAdded, &rec.URL,
		&rec.Accepted, &rec.Rejected, &rec.Term, &rec.Origin, &rec.Degree,
		&rec.LLMProgram, &rec.LLMUniversity,
	} {
		if *field != nil && strings.TrimSpace(**field) == "" {
			*field = nil
		}
	}
	if strings.TrimSpace(rec.Comments) == "" {
		rec.Comments = ""
	}
}

// cleanString collapses internal whitespace; a blank value becomes nil.
func cleanString(v any) *string {
	if v == nil {
		return nil
	}
	return models.StringPtr(strings.Join(strings.Fields(models.ToString(v)), " "))
}

func firstString(extracted string, supplied any) *string {
	if extracted != "" {
		return &extracted
	}
	return models.StringPtr(models.ToString(supplied))
}
