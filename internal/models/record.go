package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the admission decision carried by a result.
type Status string

const (
	StatusAccepted   Status = "Accepted"
	StatusRejected   Status = "Rejected"
	StatusWaitlisted Status = "Waitlisted"
	StatusInterview  Status = "Interview"
	StatusOther      Status = "Other"
)

// RecordDateLayout is the canonical "D Mon YYYY" form of every record date.
const RecordDateLayout = "2 Jan 2006"

// DateAddedKey is the corpus key of the normalized decision date.
const DateAddedKey = "Date of Information Added to Grad Café"

// CleanedRecord is the canonical applicant record. A nil field is omitted when
// the record is serialized; Comments is always written, possibly empty.
type CleanedRecord struct {
	ProgramName   *string  `json:"Program Name,omitempty"`
	University    *string  `json:"University,omitempty"`
	Comments      string   `json:"Comments"`
	DateAdded     *string  `json:"Date of Information Added to Grad Café,omitempty"`
	URL           *string  `json:"URL link to applicant entry,omitempty"`
	Status        Status   `json:"Applicant Status,omitempty"`
	Accepted      *string  `json:"Accepted,omitempty"`
	Rejected      *string  `json:"Rejected,omitempty"`
	Term          *string  `json:"Semester and Year of Program Start,omitempty"`
	Origin        *string  `json:"International / American Student,omitempty"`
	GRE           *float64 `json:"GRE Score,omitempty"`
	GREVerbal     *float64 `json:"GRE V Score,omitempty"`
	GREAW         *float64 `json:"GRE AW,omitempty"`
	Degree        *string  `json:"Masters or PhD,omitempty"`
	GPA           *float64 `json:"GPA,omitempty"`
	LLMProgram    *string  `json:"llm_generated_program,omitempty"`
	LLMUniversity *string  `json:"llm_generated_university,omitempty"`
}

// Read aliases for cleaned corpora. The mis-encoded date keys were written by
// earlier exports that round-tripped the file through the wrong codec.
var (
	recordProgramKeys    = []string{"Program Name", "program"}
	recordUniversityKeys = []string{"University", "university"}
	recordCommentKeys    = []string{"Comments", "comments"}
	recordDateKeys       = []string{
		DateAddedKey,
		"Date of Information Added to Grad CafÃ©",
		"Date of Information Added to Grad CafÃƒÂ©",
		"Date of Information Added to Grad CafÃƒÆ’Ã‚Â©",
		"date_added",
	}
	recordURLKeys       = []string{"URL link to applicant entry", "url"}
	recordStatusKeys    = []string{"Applicant Status", "status"}
	recordTermKeys      = []string{"Semester and Year of Program Start", "term"}
	recordOriginKeys    = []string{"International / American Student", "us_or_international"}
	recordGREKeys       = []string{"GRE Score", "gre"}
	recordGREVerbalKeys = []string{"GRE V Score", "gre_v"}
	recordGREAWKeys     = []string{"GRE AW", "gre_aw"}
	recordDegreeKeys    = []string{"Masters or PhD", "degree"}
	recordGPAKeys       = []string{"GPA", "gpa"}
)

// UnmarshalJSON resolves every field through its alias list so that corpora
// written with legacy or column-style key names load without loss.
func (r *CleanedRecord) UnmarshalJSON(data []byte) error {
	var raw RawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = CleanedRecord{
		ProgramName:   StringPtr(ToString(raw.First(recordProgramKeys...))),
		University:    StringPtr(ToString(raw.First(recordUniversityKeys...))),
		Comments:      ToString(raw.First(recordCommentKeys...)),
		DateAdded:     StringPtr(ToString(raw.First(recordDateKeys...))),
		URL:           StringPtr(ToString(raw.First(recordURLKeys...))),
		Status:        Status(ToString(raw.First(recordStatusKeys...))),
		Accepted:      StringPtr(ToString(raw.First("Accepted"))),
		Rejected:      StringPtr(ToString(raw.First("Rejected"))),
		Term:          StringPtr(ToString(raw.First(recordTermKeys...))),
		Origin:        StringPtr(ToString(raw.First(recordOriginKeys...))),
		GRE:           ToFloat(raw.First(recordGREKeys...)),
		GREVerbal:     ToFloat(raw.First(recordGREVerbalKeys...)),
		GREAW:         ToFloat(raw.First(recordGREAWKeys...)),
		Degree:        StringPtr(ToString(raw.First(recordDegreeKeys...))),
		GPA:           ToFloat(raw.First(recordGPAKeys...)),
		LLMProgram:    StringPtr(ToString(raw.First("llm_generated_program"))),
		LLMUniversity: StringPtr(ToString(raw.First("llm_generated_university"))),
	}
	return nil
}

// StringPtr returns nil for a blank string and a pointer to s otherwise.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParseRecordDate parses a "D Mon YYYY" record date. Dates that do not exist on
// the calendar, like 29 Feb 2023, are rejected.
func ParseRecordDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(RecordDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
