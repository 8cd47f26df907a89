package service

import (
	"regexp"
	"strconv"
	"strings"

	"gradcafe_scraper/internal/models"
)

// --- Regular Expressions (Field Extraction) ---
// Each field is searched independently over the same blob; the first match wins.
var (
	// 'on 30 Jan' - day then month abbreviation
	dayMonthRegex = regexp.MustCompile(`(?i)on\s+(\d{1,2})\s+([A-Za-z]{3})`)

	// 'on Jan 30' - month abbreviation then day, reordered to day-month
	monthDayRegex = regexp.MustCompile(`(?i)on\s+([A-Za-z]{3})\s+(\d{1,2})`)

	seasonRegex = regexp.MustCompile(`(?i)(Fall|Spring|Summer|Winter)\s+\d{4}`)

	gpaRegex = regexp.MustCompile(`(?i)GPA\s*:?\s*(\d\.\d+)`)

	greTotalRegex  = regexp.MustCompile(`(?i)GRE\s*:?\s*(\d{3})`)
	greVerbalRegex = regexp.MustCompile(`(?i)V\s*(\d{3})`)
	greAWRegex     = regexp.MustCompile(`(?i)AW\s*(\d(?:\.\d)?)`)
)

// Extraction holds every field pattern-matched out of one free-text blob.
// Empty strings and nil pointers mean the pattern was not found.
type Extraction struct {
	Status       models.Status
	DateFragment string
	Season       string
	Origin       string
	GPA          *float64
	GRE          GREScores
}

// GREScores are the three independently matched GRE values.
type GREScores struct {
	Total  *float64
	Verbal *float64
	AW     *float64
}

// Extract runs every field extractor over text.
func Extract(text string) Extraction {
	status, fragment := ExtractStatusDate(text)
	return Extraction{
		Status:       status,
		DateFragment: fragment,
		Season:       ExtractSeason(text),
		Origin:       ExtractOrigin(text),
		GPA:          ExtractGPA(text),
		GRE:          ExtractGRE(text),
	}
}

// ExtractStatusDate resolves the decision status by fixed precedence and finds
// an un-annotated "D Mon" date fragment.
func ExtractStatusDate(text string) (models.Status, string) {
	lower := strings.ToLower(text)

	status := models.StatusOther
	switch {
	case strings.Contains(lower, "accepted"):
		status = models.StatusAccepted
	case strings.Contains(lower, "rejected"):
		status = models.StatusRejected
	case strings.Contains(lower, "wait"):
		status = models.StatusWaitlisted
	case strings.Contains(lower, "interview"):
		status = models.StatusInterview
	}

	if m := dayMonthRegex.FindStringSubmatch(text); m != nil {
		return status, m[1] + " " + m[2]
	}
	if m := monthDayRegex.FindStringSubmatch(text); m != nil {
		return status, m[2] + " " + m[1]
	}
	return status, ""
}

// ExtractSeason returns the first "Fall 2026"-style term, as written.
func ExtractSeason(text string) string {
	return seasonRegex.FindString(text)
}

// ExtractOrigin returns "International" or "American"; international wins when
// both appear.
func ExtractOrigin(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "international") {
		return "International"
	}
	if strings.Contains(lower, "american") {
		return "American"
	}
	return ""
}

// ExtractGPA returns the first "GPA 3.85" value.
func ExtractGPA(text string) *float64 {
	return firstFloat(gpaRegex, text)
}

// ExtractGRE searches total, verbal and analytical writing independently.
// Unrelated text can satisfy a pattern (a stray "V 123"); that is accepted.
func ExtractGRE(text string) GREScores {
	if text == "" {
		return GREScores{}
	}
	return GREScores{
		Total:  firstFloat(greTotalRegex, text),
		Verbal: firstFloat(greVerbalRegex, text),
		AW:     firstFloat(greAWRegex, text),
	}
}

func firstFloat(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
