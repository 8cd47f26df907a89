package models

import (
	"strings"
	"time"
)

// Applicant is one cleaned admission result stored in the relational table.
// The composite unique index makes repeated loads insert-or-ignore. Its
// columns are never NULL, since NULLs never collide in a unique index.
type Applicant struct {
	ID uint `json:"id" gorm:"primaryKey;column:p_id"`

	// the program the applicant applied to, "" when unknown
	Program *string `json:"program" gorm:"type:text;not null;default:'';uniqueIndex:idx_applicant_identity"`
	// the institution name, "" when unknown
	University *string `json:"university" gorm:"type:text;not null;default:'';uniqueIndex:idx_applicant_identity"`
	// free-text comments left by the applicant
	Comments *string `json:"comments" gorm:"type:text;not null;default:'';uniqueIndex:idx_applicant_identity"`
	// DateKey is the record date text as written, "" when absent. It
	// identifies the row even when the date is not a real calendar day.
	DateKey string `json:"-" gorm:"type:text;not null;default:'';uniqueIndex:idx_applicant_identity"`
	// the decision date; nil when the record date is not a real calendar day
	DateAdded *time.Time `json:"dateAdded" gorm:"type:date"`

	URL               *string `json:"url" gorm:"type:text"`
	Status            *string `json:"status" gorm:"type:text"`
	Term              *string `json:"term" gorm:"type:text"`
	USOrInternational *string `json:"usOrInternational" gorm:"type:text;column:us_or_international"`

	GPA   *float64 `json:"gpa,omitempty"`
	GRE   *float64 `json:"gre,omitempty"`
	GREV  *float64 `json:"greV,omitempty" gorm:"column:gre_v"`
	GREAW *float64 `json:"greAW,omitempty" gorm:"column:gre_aw"`

	Degree                 *string `json:"degree" gorm:"type:text"`
	LLMGeneratedProgram    *string `json:"llmGeneratedProgram" gorm:"type:text;column:llm_generated_program"`
	LLMGeneratedUniversity *string `json:"llmGeneratedUniversity" gorm:"type:text;column:llm_generated_university"`
}

// TableName keeps the table name stable for the analytics queries.
func (Applicant) TableName() string { return "applicants" }

// NewApplicant maps a cleaned record into its typed row.
func NewApplicant(rec CleanedRecord) Applicant {
	a := Applicant{
		Program:                keyText(Deref(rec.ProgramName)),
		University:             keyText(Deref(rec.University)),
		Comments:               keyText(rec.Comments),
		URL:                    cleanText(rec.URL),
		Status:                 cleanText((*string)(&rec.Status)),
		Term:                   cleanText(rec.Term),
		USOrInternational:      cleanText(rec.Origin),
		GPA:                    rec.GPA,
		GRE:                    rec.GRE,
		GREV:                   rec.GREVerbal,
		GREAW:                  rec.GREAW,
		Degree:                 cleanText(rec.Degree),
		LLMGeneratedProgram:    cleanText(rec.LLMProgram),
		LLMGeneratedUniversity: cleanText(rec.LLMUniversity),
	}
	if rec.DateAdded != nil {
		a.DateKey = strings.Join(strings.Fields(*rec.DateAdded), " ")
		if t, ok := ParseRecordDate(*rec.DateAdded); ok {
			a.DateAdded = &t
		}
	}
	return a
}

// cleanText strips NUL bytes, which text columns reject, and maps blanks to nil.
func cleanText(s *string) *string {
	if s == nil {
		return nil
	}
	return StringPtr(strings.TrimSpace(strings.ReplaceAll(*s, "\x00", "")))
}

// keyText is cleanText for the identity columns: blanks become "", never nil.
func keyText(s string) *string {
	c := strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	return &c
}

// IngestionWatermark remembers the newest decision date ingested per source.
type IngestionWatermark struct {
	Source    string    `gorm:"primaryKey;type:text"`
	LastSeen  string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName implements gorm's tabler.
func (IngestionWatermark) TableName() string { return "ingestion_watermarks" }

// AnalysisSnapshot is one cached run of the analytics question set, stored as JSON.
type AnalysisSnapshot struct {
	ID        uint      `gorm:"primaryKey"`
	Data      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName implements gorm's tabler.
func (AnalysisSnapshot) TableName() string { return "analysis_cache" }
