package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"gradcafe_scraper/internal/repository"
)

// NotAvailable is shown for an aggregate over no rows.
const NotAvailable = "N/A"

// Applicant column names used by the question set.
const (
	colTerm       = "term"
	colOrigin     = "us_or_international"
	colStatus     = "status"
	colGPA        = "gpa"
	colGRE        = "gre"
	colGREV       = "gre_v"
	colGREAW      = "gre_aw"
	colUniversity = "university"
	colProgram    = "program"
	colDegree     = "degree"
	colLLMProgram = "llm_generated_program"
	colLLMUni     = "llm_generated_university"
)

const acceptedPattern = "Accept%"

// AnalysisParams selects the admission cycles the questions talk about.
type AnalysisParams struct {
	Term      string
	PriorTerm string
}

// AnalysisResult is one answered question.
type AnalysisResult struct {
	Key      string `json:"key"`
	Question string `json:"question"`
	Value    string `json:"value"`
}

// Analysis is one full run of the question set.
type Analysis struct {
	ComputedAt time.Time        `json:"computedAt"`
	Results    []AnalysisResult `json:"results"`
}

// Value returns the answer for key, or "" when it is not part of the set.
func (a *Analysis) Value(key string) string {
	for _, r := range a.Results {
		if r.Key == key {
			return r.Value
		}
	}
	return ""
}

// Analyzer runs the fixed read-only question set against the applicant table.
type Analyzer struct {
	repo   repository.AnalyticsRepository
	params AnalysisParams
	logger *slog.Logger
}

func NewAnalyzer(repo repository.AnalyticsRepository, params AnalysisParams, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{repo: repo, params: params, logger: logger}
}

// Analyze answers every question. A failing query does not stop the others:
// its answer reads "SQL Error: ..." and the errors are returned joined.
func (a *Analyzer) Analyze(ctx context.Context) (*Analysis, error) {
	term, prior := a.params.Term, a.params.PriorTerm
	termYear := "%" + yearRegex.FindString(term) + "%"
	accepted := repository.Like(colStatus, acceptedPattern)

	var errs []error
	out := &Analysis{ComputedAt: time.Now().UTC()}
	add := func(key, question, value string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			a.logger.Warn("analysis query failed", "key", key, "err", err)
			value = "SQL Error: " + err.Error()
		}
		out.Results = append(out.Results, AnalysisResult{Key: key, Question: question, Value: value})
	}

	// 1. Volume and origin
	n, err := a.repo.Count(ctx, repository.Eq(colTerm, term))
	add("q1", fmt.Sprintf("How many entries applied for %s?", term), formatCount(n), err)

	pct, err := a.repo.Percent(ctx, repository.Eq(colOrigin, "International"))
	add("q2", "What percentage of entries are from international students?", formatFloat(pct, 2), err)

	// 2. Score averages
	var parts []string
	var avgErr error
	for _, c := range []struct{ label, column string }{
		{"GPA", colGPA}, {"GRE", colGRE}, {"Verbal", colGREV}, {"AW", colGREAW},
	} {
		avg, err := a.repo.Average(ctx, c.column)
		if err != nil {
			avgErr = errors.Join(avgErr, err)
		}
		parts = append(parts, c.label+": "+formatFloat(avg, 2))
	}
	add("q3", "What is the average GPA, GRE, GRE V and GRE AW of applicants who provided them?", strings.Join(parts, ", "), avgErr)

	avg, err := a.repo.Average(ctx, colGPA, repository.Eq(colTerm, term), repository.Eq(colOrigin, "American"))
	add("q4", fmt.Sprintf("What is the average GPA of American students in %s?", term), formatFloat(avg, 2), err)

	// 3. Acceptance
	pct, err = a.repo.Percent(ctx, accepted, repository.Eq(colTerm, prior))
	add("q5", fmt.Sprintf("What percent of entries for %s are acceptances?", prior), formatFloat(pct, 2), err)

	avg, err = a.repo.Average(ctx, colGPA, repository.Eq(colTerm, term), accepted)
	add("q6", fmt.Sprintf("What is the average GPA of applicants accepted for %s?", term), formatFloat(avg, 2), err)

	// 4. Program-specific counts
	n, err = a.repo.Count(ctx,
		repository.Like(colUniversity, "%Johns Hopkins%"),
		repository.Like(colProgram, "%Computer Science%"),
		repository.Eq(colDegree, "Masters"),
	)
	add("q7", "How many entries applied to JHU for a masters degree in Computer Science?", formatCount(n), err)

	n, err = a.repo.Count(ctx,
		repository.Like(colTerm, termYear),
		accepted,
		repository.Eq(colDegree, "PhD"),
		repository.Like(colProgram, "%Computer Science%"),
		repository.AnyLike(colUniversity, "%Georgetown%", "%MIT%", "%Stanford%", "%Carnegie Mellon%"),
	)
	add("q8", "How many acceptances for PhD Computer Science at Georgetown, MIT, Stanford or CMU?", formatCount(n), err)

	program := repository.Coalesce(colLLMProgram, colProgram)
	university := repository.Coalesce(colLLMUni, colUniversity)
	n, err = a.repo.Count(ctx,
		repository.Like(colTerm, termYear),
		accepted,
		repository.Eq(colDegree, "PhD"),
		repository.Like(program, "%Computer Science%"),
		repository.AnyLike(university, "%Georgetown%", "%Massachusetts Institute of Technology%", "%MIT%", "%Stanford%", "%Carnegie Mellon%"),
	)
	add("q9", "Same as the previous question, using the standardized program and university names.", formatCount(n), err)

	// 5. Extras
	groups, err := a.repo.AverageByGroup(ctx, colGRE, colDegree)
	add("cq1", "What is the average GRE score by degree type?", formatGroups(groups), err)

	n, err = a.repo.Count(ctx)
	add("cq2", "How many entries are in the database?", formatCount(n), err)

	return out, errors.Join(errs...)
}

// Refresh runs Analyze and stores the result as the newest snapshot.
func (a *Analyzer) Refresh(ctx context.Context) (*Analysis, error) {
	analysis, err := a.Analyze(ctx)
	if err != nil {
		return analysis, err
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return analysis, fmt.Errorf("encode analysis: %w", err)
	}
	if err := a.repo.SaveAnalysis(ctx, string(data)); err != nil {
		return analysis, err
	}
	return analysis, nil
}

// Latest returns the newest stored snapshot, or nil when there is none.
func (a *Analyzer) Latest(ctx context.Context) (*Analysis, error) {
	snap, err := a.repo.LatestAnalysis(ctx)
	if err != nil || snap == nil {
		return nil, err
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(snap.Data), &analysis); err != nil {
		return nil, fmt.Errorf("decode stored analysis %d: %w", snap.ID, err)
	}
	return &analysis, nil
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatFloat(v *float64, places int) string {
	if v == nil {
		return NotAvailable
	}
	scale := math.Pow10(places)
	return strconv.FormatFloat(math.Round(*v*scale)/scale, 'f', places, 64)
}

func formatGroups(groups []repository.GroupAverage) string {
	if len(groups) == 0 {
		return NotAvailable
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, g.Group+": "+formatFloat(g.Average, 0))
	}
	return strings.Join(parts, ", ")
}
