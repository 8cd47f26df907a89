package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/DataHenHQ/useragent"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
)

var (
	// ErrUnexpectedStatus is returned for a final response with status >= 400.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrNotHTML is returned when the response declares a non-HTML content type.
	ErrNotHTML = errors.New("response is not HTML")
)

// ResultsRepository defines the contract for fetching listing pages.
// This is the interface the scrape controller is tested against.
type ResultsRepository interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// FetchOptions configures the HTTP fetcher.
type FetchOptions struct {
	Timeout time.Duration
	// MaxAttempts counts the first request; 1 disables retries.
	MaxAttempts      int
	RetryWait        time.Duration
	RetryMaxWait     time.Duration
	CloudflareBypass bool
	// UserAgent overrides the random desktop user agent.
	UserAgent string
}

// httpResultsRepository is the concrete implementation that performs HTTP requests.
type httpResultsRepository struct {
	client *resty.Client
}

// NewResultsRepository creates a fetcher that retries transient failures
// (transport errors, 429 and 5xx gateway statuses) with backoff.
func NewResultsRepository(opts FetchOptions) (ResultsRepository, error) {
	ua := opts.UserAgent
	if ua == "" {
		var err error
		ua, err = useragent.Desktop()
		if err != nil {
			return nil, fmt.Errorf("could not generate random UA: %w", err)
		}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(opts.MaxAttempts - 1)
	client.SetRetryWaitTime(opts.RetryWait)
	client.SetRetryMaxWaitTime(opts.RetryMaxWait)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return isRetryableStatus(res.StatusCode())
	})
	client.SetHeaders(map[string]string{
		"User-Agent":      ua,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	})
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &httpResultsRepository{client: client}, nil
}

// Fetch returns the page body decoded to UTF-8 on a best-effort basis.
func (r *httpResultsRepository) Fetch(ctx context.Context, url string) (io.Reader, error) {
	res, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, res.StatusCode(), url)
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("%w: %s for %s", ErrNotHTML, contentType, url)
	}

	body := res.Body()
	decoded, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return bytes.NewReader(body), nil
	}
	return decoded, nil
}

// isRetryableStatus reports the transient statuses worth another attempt.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}
