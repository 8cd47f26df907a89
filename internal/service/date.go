package service

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultYear is the admission cycle assumed when a date fragment carries no year.
const DefaultYear = 2026

var (
	yearRegex  = regexp.MustCompile(`\d{4}`)
	monthRegex = regexp.MustCompile(`[A-Za-z]{3,}`)
	dayRegex   = regexp.MustCompile(`\d{1,2}`)
)

var monthAbbrev = map[string]string{
	"jan": "Jan",
	"feb": "Feb",
	"mar": "Mar",
	"apr": "Apr",
	"may": "May",
	"jun": "Jun",
	"jul": "Jul",
	"aug": "Aug",
	"sep": "Sep",
	"oct": "Oct",
	"nov": "Nov",
	"dec": "Dec",
}

// DateNormalizer rewrites heterogeneous date fragments into "D Mon YYYY".
type DateNormalizer struct {
	DefaultYear int
}

// NewDateNormalizer returns a normalizer that fills in defaultYear when a
// fragment has no year. A non-positive year falls back to DefaultYear.
func NewDateNormalizer(defaultYear int) DateNormalizer {
	if defaultYear <= 0 {
		defaultYear = DefaultYear
	}
	return DateNormalizer{DefaultYear: defaultYear}
}

// Normalize returns "" when no month word or no day number can be found.
// It does not check that the day exists in that month.
func (n DateNormalizer) Normalize(fragment string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(fragment, ",", ""))
	if cleaned == "" {
		return ""
	}

	year := strconv.Itoa(n.DefaultYear)
	if y := yearRegex.FindString(cleaned); y != "" {
		year = y
	}

	word := monthRegex.FindString(cleaned)
	if word == "" {
		return ""
	}
	short := strings.ToLower(word)[:3]
	month, ok := monthAbbrev[short]
	if !ok {
		month = strings.ToUpper(short[:1]) + short[1:]
	}

	// The year digits go first so "2026" can never be read as day 20.
	day := dayRegex.FindString(strings.ReplaceAll(cleaned, year, ""))
	if day == "" {
		return ""
	}

	return day + " " + month + " " + year
}
