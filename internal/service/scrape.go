package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"gradcafe_scraper/internal/models"
	"gradcafe_scraper/internal/parser"
	"gradcafe_scraper/internal/repository"
)

// SurveyBaseURL is the paginated listing endpoint.
const SurveyBaseURL = "https://www.thegradcafe.com/survey/index.php"

// Run limits used when the options leave them unset.
const (
	DefaultTargetCount       = 50000
	DefaultMaxPages          = 10000
	DefaultIncrementalPages  = 5
	DefaultSaveEveryPages    = 8
	DefaultMaxEmptyPages     = 10
	sessionSignatureTextSize = 50
)

// BlockMarkers are substrings of anti-automation interstitials.
var BlockMarkers = []string{"Just a moment", "Cloudflare", "You have been blocked"}

// StopReason says why a scrape run ended. None of them is an error.
type StopReason string

const (
	StopTargetReached StopReason = "target_reached"
	StopPageLimit     StopReason = "page_limit"
	StopWatermark     StopReason = "watermark"
	StopBlocked       StopReason = "blocked"
	StopEmptyStreak   StopReason = "empty_streak"
	StopInterrupted   StopReason = "interrupted"
)

// WatermarkSource supplies a watermark when the raw corpus has none.
type WatermarkSource interface {
	LastSeen(ctx context.Context) (string, error)
}

// ScrapeOptions bounds one run. Zero values fall back to the defaults above;
// a zero MaxPages means 5 pages when a watermark exists and 10000 otherwise.
type ScrapeOptions struct {
	BaseURL        string
	TargetCount    int
	MaxPages       int
	SaveEveryPages int
	MaxEmptyPages  int
	// Watermarks is consulted only when the raw corpus holds no dated entry.
	Watermarks WatermarkSource
}

// ScrapeResult is the outcome of one run.
type ScrapeResult struct {
	// New holds the entries collected by this run, newest first.
	New []models.RawEntry
	// All is New followed by the prior raw corpus.
	All        []models.RawEntry
	Watermark  string
	Pages      int
	LastPage   int
	StopReason StopReason
}

// ScrapeService defines the incremental scrape contract.
type ScrapeService interface {
	Scrape(ctx context.Context) (*ScrapeResult, error)
}

// scrapeService walks the listing newest first and stops at the first entry
// that was already ingested.
type scrapeService struct {
	Repo   repository.ResultsRepository
	Parser parser.ResultParser
	// Corpus may be nil, in which case nothing is read or persisted.
	Corpus *repository.CorpusStore[models.RawEntry]
	opts   ScrapeOptions
	logger *slog.Logger
}

// NewScrapeService creates a new controller with its dependencies.
func NewScrapeService(repo repository.ResultsRepository, p parser.ResultParser, corpus *repository.CorpusStore[models.RawEntry], opts ScrapeOptions, logger *slog.Logger) ScrapeService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = SurveyBaseURL
	}
	if opts.TargetCount <= 0 {
		opts.TargetCount = DefaultTargetCount
	}
	if opts.SaveEveryPages <= 0 {
		opts.SaveEveryPages = DefaultSaveEveryPages
	}
	if opts.MaxEmptyPages <= 0 {
		opts.MaxEmptyPages = DefaultMaxEmptyPages
	}
	return &scrapeService{
		Repo:   repo,
		Parser: p,
		Corpus: corpus,
		opts:   opts,
		logger: logger,
	}
}

type sessionSignature struct {
	institution string
	program     string
	textPrefix  string
}

func signatureOf(e models.RawEntry) sessionSignature {
	text := []rune(e.String(models.KeyText))
	if len(text) > sessionSignatureTextSize {
		text = text[:sessionSignatureTextSize]
	}
	return sessionSignature{
		institution: e.String(models.KeyInstitution),
		program:     e.String(models.KeyProgram),
		textPrefix:  string(text),
	}
}

// Watermark returns the raw date of the newest dated entry, or "".
func Watermark(entries []models.RawEntry) string {
	for _, e := range entries {
		if d := strings.TrimSpace(e.String(models.KeyDate)); d != "" {
			return d
		}
	}
	return ""
}

// PageURL builds the listing URL for a 1-based page number.
func PageURL(base string, page int) string {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Sprintf("%s?q=%%2A&t=a&o=&page=%d", base, page)
	}
	q := u.Query()
	q.Set("q", "*")
	q.Set("t", "a")
	q.Set("o", "")
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Scrape runs the page loop. Cancelling ctx ends the run after the page in
// flight; the collected entries are persisted either way. The only error
// returned is a failure to persist the final corpus.
func (s *scrapeService) Scrape(ctx context.Context) (*ScrapeResult, error) {
	// 1. Prior history and watermark
	var prior []models.RawEntry
	if s.Corpus != nil {
		prior = s.Corpus.Load()
	}
	watermark := Watermark(prior)
	if watermark == "" && s.opts.Watermarks != nil {
		wm, err := s.opts.Watermarks.LastSeen(ctx)
		if err != nil {
			s.logger.Warn("could not read stored watermark", "err", err)
		}
		watermark = strings.TrimSpace(wm)
	}

	maxPages := s.opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
		if watermark != "" {
			maxPages = DefaultIncrementalPages
		}
	}
	s.logger.Info("starting scrape",
		"watermark", watermark, "max_pages", maxPages, "target", s.opts.TargetCount, "prior", len(prior))

	// 2. Page loop
	var collected []models.RawEntry
	seen := make(map[sessionSignature]struct{})
	page, pagesScraped, emptyStreak := 1, 0, 0
	reason := StopPageLimit

loop:
	for {
		if ctx.Err() != nil {
			reason = StopInterrupted
			break
		}
		if len(collected) >= s.opts.TargetCount {
			reason = StopTargetReached
			break
		}
		if pagesScraped >= maxPages {
			reason = StopPageLimit
			break
		}

		pageURL := PageURL(s.opts.BaseURL, page)
		result, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				reason = StopInterrupted
				break
			}
			emptyStreak++
			s.logger.Warn("page fetch failed, skipping", "page", page, "empty_streak", emptyStreak, "err", err)
			if emptyStreak >= s.opts.MaxEmptyPages {
				reason = StopEmptyStreak
				break
			}
			page++
			continue
		}

		if marker := blockMarker(result.Text); marker != "" {
			s.logger.Warn("block page detected, stopping", "page", page, "marker", marker)
			reason = StopBlocked
			break
		}

		if len(result.Entries) == 0 {
			emptyStreak++
			s.logger.Warn("page produced no entries", "page", page, "empty_streak", emptyStreak)
			if emptyStreak >= s.opts.MaxEmptyPages {
				reason = StopEmptyStreak
				break
			}
			page++
			continue
		}
		emptyStreak = 0

		added := 0
		for _, entry := range result.Entries {
			if watermark != "" && strings.TrimSpace(entry.String(models.KeyDate)) == watermark {
				s.logger.Info("reached watermark", "page", page, "watermark", watermark)
				pagesScraped++
				reason = StopWatermark
				break loop
			}
			sig := signatureOf(entry)
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			collected = append(collected, entry)
			added++
		}

		pagesScraped++
		s.logger.Info("page scraped", "page", page, "added", added, "collected", len(collected))

		if pagesScraped%s.opts.SaveEveryPages == 0 {
			if err := s.persist(collected, prior); err != nil {
				s.logger.Warn("checkpoint failed", "page", page, "err", err)
			}
		}
		page++
	}

	// 3. Final persist, regardless of how the loop ended
	res := &ScrapeResult{
		New:        collected,
		All:        combine(collected, prior),
		Watermark:  watermark,
		Pages:      pagesScraped,
		LastPage:   page,
		StopReason: reason,
	}
	s.logger.Info("scrape finished", "reason", reason, "pages", pagesScraped, "new", len(collected), "total", len(res.All))

	if err := s.persist(collected, prior); err != nil {
		return res, fmt.Errorf("persist raw corpus: %w", err)
	}
	return res, nil
}

func (s *scrapeService) fetchPage(ctx context.Context, pageURL string) (*parser.Page, error) {
	htmlReader, err := s.Repo.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if closer, ok := htmlReader.(io.Closer); ok {
		defer closer.Close()
	}

	result, err := s.Parser.ParsePage(ctx, htmlReader, pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return result, nil
}

func (s *scrapeService) persist(collected, prior []models.RawEntry) error {
	if s.Corpus == nil {
		return nil
	}
	return s.Corpus.Save(combine(collected, prior))
}

func combine(collected, prior []models.RawEntry) []models.RawEntry {
	all := make([]models.RawEntry, 0, len(collected)+len(prior))
	all = append(all, collected...)
	return append(all, prior...)
}

func blockMarker(text string) string {
	for _, m := range BlockMarkers {
		if strings.Contains(text, m) {
			return m
		}
	}
	return ""
}
