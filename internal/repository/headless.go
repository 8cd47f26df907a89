package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"gradcafe_scraper/pkg/headless"
)

const (
	surveyRowSelector     = "table tr"
	surveyExtractSelector = "html"
	// surveyRowWait bounds how long we wait for result rows; a block page
	// never renders them and must still be returned for inspection.
	surveyRowWait = 15 * time.Second
)

// headlessResultsRepository renders listing pages in headless Chrome for
// sites that refuse plain HTTP clients.
type headlessResultsRepository struct {
	opts headless.Options
}

// NewHeadlessResultsRepository creates a browser-backed fetcher.
func NewHeadlessResultsRepository(timeout time.Duration, logger *slog.Logger) ResultsRepository {
	return &headlessResultsRepository{
		opts: headless.Options{
			Timeout:    timeout,
			WaitBuffer: time.Second,
			Logger:     logger,
		},
	}
}

func (r *headlessResultsRepository) Fetch(ctx context.Context, url string) (io.Reader, error) {
	return headless.FetchRenderedContent(ctx, url, SurveyWaitStrategy, surveyExtractSelector, r.opts)
}

// SurveyWaitStrategy navigates to the listing and waits for the body, then
// gives the result table a bounded chance to render.
func SurveyWaitStrategy(ctx context.Context, url string) error {
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => false, configurable: true});`, nil),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("could not navigate to '%s': %w", url, err)
	}

	rowCtx, cancel := context.WithTimeout(ctx, surveyRowWait)
	defer cancel()
	if err := chromedp.Run(rowCtx, chromedp.WaitVisible(surveyRowSelector, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// No rows: an empty page or a challenge page. The parser decides.
		slog.Debug("survey rows did not render", "url", url, "err", err)
	}
	return nil
}
