package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys written by the listing page parser.
const (
	KeyInstitution  = "raw_inst"
	KeyProgram      = "raw_prog"
	KeyDegree       = "raw_degree"
	KeyText         = "raw_text"
	KeyComments     = "raw_comments"
	KeyURL          = "url"
	KeyDecisionHint = "raw_decision_hint"
	KeyDate         = "raw_date"
)

// Ordered candidate keys per logical field. The scraper-native key always comes
// first; the rest are names used by older exports of the survey data.
var (
	ProgramKeys    = []string{KeyProgram, "Program Name"}
	UniversityKeys = []string{KeyInstitution, "University"}
	CommentKeys    = []string{KeyComments, "Comments"}
	URLKeys        = []string{KeyURL, "URL link"}
	DegreeKeys     = []string{KeyDegree, "Masters or PhD"}
	DateAddedKeys  = []string{KeyDate, "Date of Information Added", "raw_date_added"}
	SeasonKeys     = []string{"Season"}
	OriginKeys     = []string{"International / American Student"}
	GREKeys        = []string{"GRE Score"}
	GREVerbalKeys  = []string{"GRE V Score"}
	GREAWKeys      = []string{"GRE AW"}
	GPAKeys        = []string{"GPA"}

	// TextKeys lists every field whose text takes part in field extraction, in
	// concatenation order.
	TextKeys = []string{KeyText, "Decision Details", "raw_decision", KeyComments, "Comments"}
)

// RawEntry is one scraped, uncleaned result as reconstructed from listing
// markup. It is a loose map because corpora written by older tools use
// different key names for the same value.
type RawEntry map[string]any

// First returns the value of the first key that is present with a non-empty
// value, or nil.
func (e RawEntry) First(keys ...string) any {
	for _, key := range keys {
		v, ok := e[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return v
	}
	return nil
}

// String returns the value stored under key rendered as text.
func (e RawEntry) String(key string) string {
	return ToString(e[key])
}

// ToString renders a loosely typed JSON value as text. nil becomes "".
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// ToFloat coerces a loosely typed JSON value into a number. Strings are parsed
// after trimming; anything else yields nil.
func ToFloat(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case int:
		f := float64(val)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
