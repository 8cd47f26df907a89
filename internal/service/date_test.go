package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gradcafe_scraper/internal/models"
)

func TestNormalize(t *testing.T) {
	n := NewDateNormalizer(DefaultYear)

	tests := []struct {
		in   string
		want string
	}{
		{"30 Jan", "30 Jan 2026"},
		{"January 31, 2026", "31 Jan 2026"},
		{"29 Feb 2023", "29 Feb 2023"},
		{"29 Feb 2024", "29 Feb 2024"},
		{"sept 5", "5 Sep 2026"},
		{"5 Foo 2025", "5 Foo 2025"},
		{"20 Jan 2020", "20 Jan 2020"},
		{"Jan 2020", ""},
		{"12 34", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizeConfiguredYear(t *testing.T) {
	assert.Equal(t, "3 Mar 2031", NewDateNormalizer(2031).Normalize("3 Mar"))
	assert.Equal(t, DefaultYear, NewDateNormalizer(0).DefaultYear)
}

func TestNormalizedDatesAgainstCalendar(t *testing.T) {
	n := NewDateNormalizer(DefaultYear)

	_, ok := models.ParseRecordDate(n.Normalize("29 Feb 2023"))
	assert.False(t, ok, "29 Feb 2023 is not a calendar day")

	_, ok = models.ParseRecordDate(n.Normalize("29 Feb 2024"))
	assert.True(t, ok)
}
