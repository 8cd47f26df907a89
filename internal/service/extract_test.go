package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradcafe_scraper/internal/models"
)

func TestExtractStatusDatePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		status   models.Status
		fragment string
	}{
		{"accepted beats rejected", "Previously rejected but now accepted on 2 Feb", models.StatusAccepted, "2 Feb"},
		{"rejected", "Rejected on 15 Mar", models.StatusRejected, "15 Mar"},
		{"wait listed", "Wait listed on Jan 30", models.StatusWaitlisted, "30 Jan"},
		{"interview", "Interview on 4 Dec via email", models.StatusInterview, "4 Dec"},
		{"other without date", "Applied, no word yet", models.StatusOther, ""},
		{"case insensitive", "ACCEPTED ON 7 apr", models.StatusAccepted, "7 apr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, fragment := ExtractStatusDate(tt.text)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.fragment, fragment)
		})
	}
}

func TestExtractFields(t *testing.T) {
	got := Extract("Accepted on 30 Jan Fall 2026 International GPA 3.85 GRE 325 V 160 AW 4.5")

	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, "30 Jan", got.DateFragment)
	assert.Equal(t, "Fall 2026", got.Season)
	assert.Equal(t, "International", got.Origin)
	require.NotNil(t, got.GPA)
	assert.Equal(t, 3.85, *got.GPA)
	require.NotNil(t, got.GRE.Total)
	assert.Equal(t, 325.0, *got.GRE.Total)
	require.NotNil(t, got.GRE.Verbal)
	assert.Equal(t, 160.0, *got.GRE.Verbal)
	require.NotNil(t, got.GRE.AW)
	assert.Equal(t, 4.5, *got.GRE.AW)
}

func TestExtractOriginPrefersInternational(t *testing.T) {
	assert.Equal(t, "International", ExtractOrigin("American citizen studying as International"))
	assert.Equal(t, "American", ExtractOrigin("american"))
	assert.Empty(t, ExtractOrigin("unknown"))
}

func TestExtractGPAWithColon(t *testing.T) {
	gpa := ExtractGPA("gpa: 3.9")
	require.NotNil(t, gpa)
	assert.Equal(t, 3.9, *gpa)
	assert.Nil(t, ExtractGPA("GPA 4"))
}

func TestExtractGREIndependentSearches(t *testing.T) {
	// "GRE" is followed by a word, so the total is missing while the other
	// two patterns still match on their own.
	gre := ExtractGRE("GRE General V 158 AW 4")
	assert.Nil(t, gre.Total)
	require.NotNil(t, gre.Verbal)
	assert.Equal(t, 158.0, *gre.Verbal)
	require.NotNil(t, gre.AW)
	assert.Equal(t, 4.0, *gre.AW)

	assert.Equal(t, GREScores{}, ExtractGRE(""))
}
