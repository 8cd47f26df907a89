package headless

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DataHenHQ/useragent"
	"github.com/chromedp/chromedp"
)

// Default settings for headless browser operation.
const (
	DefaultTimeout    = 45 * time.Second
	DefaultWaitBuffer = 2 * time.Second
)

// WaitStrategy performs the navigation and whatever waiting a page needs
// before its markup is complete.
type WaitStrategy func(ctx context.Context, url string) error

// Options tunes a rendered fetch. Zero values use the defaults above.
type Options struct {
	Timeout    time.Duration
	WaitBuffer time.Duration
	Logger     *slog.Logger
}

// FetchRenderedContent navigates to url in a fresh headless Chrome, runs the
// wait strategy, and returns the outer HTML of extractionSelector.
func FetchRenderedContent(parentCtx context.Context, url string, strategy WaitStrategy, extractionSelector string, opts Options) (io.Reader, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WaitBuffer < 0 {
		opts.WaitBuffer = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ua, err := useragent.Desktop()
	if err != nil {
		return nil, fmt.Errorf("could not generate random UA: %w", err)
	}

	ctx, cancel := context.WithTimeout(parentCtx, opts.Timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.Headless,
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("no-first-run", true),

		// required inside containers
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	logf := func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logf))
	defer chromeCancel()

	if err := strategy(chromeCtx, url); err != nil {
		return nil, fmt.Errorf("wait strategy failed for %s: %w", url, err)
	}

	var fullHTML string
	tasks := chromedp.Tasks{
		chromedp.Sleep(opts.WaitBuffer),
		chromedp.OuterHTML(extractionSelector, &fullHTML, chromedp.ByQuery),
	}
	if err := chromedp.Run(chromeCtx, tasks); err != nil {
		logger.Warn("extraction failed", "url", url, "length", len(fullHTML), "err", err)
		return nil, fmt.Errorf("failed to extract HTML from selector '%s': %w", extractionSelector, err)
	}

	return bytes.NewReader([]byte(fullHTML)), nil
}
