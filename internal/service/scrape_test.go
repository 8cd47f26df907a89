package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradcafe_scraper/internal/models"
	"gradcafe_scraper/internal/parser"
	"gradcafe_scraper/internal/repository"
)

const testBaseURL = "https://example.test/survey/index.php"

type listing struct {
	inst, prog, date string
}

// listingPage renders survey rows the way the results table lays them out.
func listingPage(rows ...listing) string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td><div class="tw-font-medium">%s</div></td><td><span>%s</span><span>PhD</span></td><td>%s</td><td>Accepted on 2 Feb</td></tr>`,
			r.inst, r.prog, r.date)
		fmt.Fprintf(&b, `<tr><td colspan="4"><p>comment for %s</p></td></tr>`, r.prog)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

// fakeResults serves pages by number and counts fetches. onFetch runs
// before a page is returned.
type fakeResults struct {
	mu      sync.Mutex
	pages   map[int]string
	errs    map[int]error
	fetched []int
	onFetch func(page int)
}

func (f *fakeResults) Fetch(ctx context.Context, rawURL string) (io.Reader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	var page int
	fmt.Sscanf(u.Query().Get("page"), "%d", &page)

	f.mu.Lock()
	f.fetched = append(f.fetched, page)
	f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch(page)
	}
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	body, ok := f.pages[page]
	if !ok {
		body = "<html><body><p>No results</p></body></html>"
	}
	return strings.NewReader(body), nil
}

func newTestScraper(t *testing.T, fake *fakeResults, opts ScrapeOptions, prior []models.RawEntry) (ScrapeService, *repository.CorpusStore[models.RawEntry]) {
	t.Helper()
	corpus := repository.NewRawCorpus(filepath.Join(t.TempDir(), "raw.json"), nil)
	if prior != nil {
		require.NoError(t, corpus.Save(prior))
	}
	if opts.BaseURL == "" {
		opts.BaseURL = testBaseURL
	}
	return NewScrapeService(fake, parser.NewResultParser(), corpus, opts, nil), corpus
}

func institutions(entries []models.RawEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.String(models.KeyInstitution))
	}
	return out
}

func TestScrapeStopsAtWatermark(t *testing.T) {
	prior := []models.RawEntry{
		{models.KeyInstitution: "Old School", models.KeyDate: "", models.KeyText: "undated"},
		{models.KeyInstitution: "Older School", models.KeyDate: "3 Jan 2026", models.KeyText: "seen"},
	}
	fake := &fakeResults{pages: map[int]string{
		1: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}, listing{"Beta", "Math", "4 Jan 2026"}),
		2: listingPage(listing{"Gamma", "EE", "3 Jan 2026"}, listing{"Delta", "Bio", "2 Jan 2026"}),
		3: listingPage(listing{"Epsilon", "Art", "1 Jan 2026"}),
	}}
	s, corpus := newTestScraper(t, fake, ScrapeOptions{}, prior)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopWatermark, res.StopReason)
	assert.Equal(t, "3 Jan 2026", res.Watermark)
	assert.Equal(t, []string{"Alpha", "Beta"}, institutions(res.New))
	assert.Equal(t, []string{"Alpha", "Beta", "Old School", "Older School"}, institutions(res.All))
	assert.Equal(t, []int{1, 2}, fake.fetched)

	assert.Equal(t, institutions(res.All), institutions(corpus.Load()))
}

func TestScrapeUsesStoredWatermarkWhenCorpusHasNone(t *testing.T) {
	fake := &fakeResults{pages: map[int]string{
		1: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}, listing{"Beta", "Math", "4 Jan 2026"}),
	}}
	s, _ := newTestScraper(t, fake, ScrapeOptions{Watermarks: staticWatermark("4 Jan 2026")}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopWatermark, res.StopReason)
	assert.Equal(t, []string{"Alpha"}, institutions(res.New))
}

func TestScrapeBlockPageStopsRun(t *testing.T) {
	fake := &fakeResults{pages: map[int]string{
		1: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}),
		2: "<html><body><h1>Just a moment...</h1>" + listingPage(listing{"Trap", "CS", "4 Jan 2026"}) + "</body></html>",
		3: listingPage(listing{"Gamma", "EE", "3 Jan 2026"}),
	}}
	s, _ := newTestScraper(t, fake, ScrapeOptions{}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopBlocked, res.StopReason)
	assert.Equal(t, []string{"Alpha"}, institutions(res.New))
	assert.Equal(t, []int{1, 2}, fake.fetched)
}

func TestScrapeEmptyStreak(t *testing.T) {
	fake := &fakeResults{
		pages: map[int]string{},
		errs:  map[int]error{2: errors.New("connection reset")},
	}
	s, _ := newTestScraper(t, fake, ScrapeOptions{MaxEmptyPages: 3}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopEmptyStreak, res.StopReason)
	assert.Equal(t, 0, res.Pages)
	assert.Equal(t, []int{1, 2, 3}, fake.fetched)
	assert.Empty(t, res.New)
}

func TestScrapeEmptyStreakResets(t *testing.T) {
	fake := &fakeResults{pages: map[int]string{
		2: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}),
	}}
	s, _ := newTestScraper(t, fake, ScrapeOptions{MaxEmptyPages: 2}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopEmptyStreak, res.StopReason)
	assert.Equal(t, []int{1, 2, 3, 4}, fake.fetched)
	assert.Equal(t, []string{"Alpha"}, institutions(res.New))
}

func TestScrapeSessionDedup(t *testing.T) {
	page := listingPage(listing{"Alpha", "CS", "5 Jan 2026"})
	fake := &fakeResults{pages: map[int]string{1: page, 2: page}}
	s, _ := newTestScraper(t, fake, ScrapeOptions{MaxPages: 2}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopPageLimit, res.StopReason)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, res.New, 1)
}

func TestScrapeTargetReached(t *testing.T) {
	fake := &fakeResults{pages: map[int]string{
		1: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}, listing{"Beta", "Math", "4 Jan 2026"}),
		2: listingPage(listing{"Gamma", "EE", "3 Jan 2026"}),
	}}
	s, _ := newTestScraper(t, fake, ScrapeOptions{TargetCount: 1}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopTargetReached, res.StopReason)
	assert.Len(t, res.New, 2)
	assert.Equal(t, []int{1}, fake.fetched)
}

func TestScrapeAutoPageLimitWithWatermark(t *testing.T) {
	pages := map[int]string{}
	for i := 1; i <= 8; i++ {
		pages[i] = listingPage(listing{fmt.Sprintf("School %d", i), "CS", "9 Jan 2026"})
	}
	prior := []models.RawEntry{{models.KeyInstitution: "Old", models.KeyDate: "1 Jan 2020"}}
	fake := &fakeResults{pages: pages}
	s, _ := newTestScraper(t, fake, ScrapeOptions{}, prior)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopPageLimit, res.StopReason)
	assert.Equal(t, DefaultIncrementalPages, res.Pages)
}

func TestScrapeInterruptPersistsProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeResults{
		pages: map[int]string{
			1: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}),
			2: listingPage(listing{"Beta", "Math", "4 Jan 2026"}),
			3: listingPage(listing{"Gamma", "EE", "3 Jan 2026"}),
		},
		onFetch: func(page int) {
			if page == 2 {
				cancel()
			}
		},
	}
	s, corpus := newTestScraper(t, fake, ScrapeOptions{}, nil)

	res, err := s.Scrape(ctx)
	require.NoError(t, err)
	assert.Equal(t, StopInterrupted, res.StopReason)
	assert.Equal(t, []string{"Alpha", "Beta"}, institutions(res.New))
	assert.Equal(t, []string{"Alpha", "Beta"}, institutions(corpus.Load()))
}

func TestScrapeCheckpointsEverySaveInterval(t *testing.T) {
	var corpus *repository.CorpusStore[models.RawEntry]
	onDisk := map[int][]string{}

	fake := &fakeResults{
		pages: map[int]string{
			1: listingPage(listing{"Alpha", "CS", "5 Jan 2026"}),
			2: listingPage(listing{"Beta", "Math", "4 Jan 2026"}),
			3: listingPage(listing{"Gamma", "EE", "3 Jan 2026"}),
			4: listingPage(listing{"Delta", "Bio", "2 Jan 2026"}),
		},
		onFetch: func(page int) {
			onDisk[page] = institutions(corpus.Load())
		},
	}
	var s ScrapeService
	s, corpus = newTestScraper(t, fake, ScrapeOptions{MaxPages: 4, SaveEveryPages: 2}, nil)

	res, err := s.Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StopPageLimit, res.StopReason)

	assert.Empty(t, onDisk[2])
	assert.Equal(t, []string{"Alpha", "Beta"}, onDisk[3])
	assert.Equal(t, []string{"Alpha", "Beta"}, onDisk[4])
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma", "Delta"}, institutions(corpus.Load()))
}

func TestPageURL(t *testing.T) {
	u, err := url.Parse(PageURL(SurveyBaseURL, 7))
	require.NoError(t, err)
	assert.Equal(t, "www.thegradcafe.com", u.Host)
	assert.Equal(t, "*", u.Query().Get("q"))
	assert.Equal(t, "a", u.Query().Get("t"))
	assert.Equal(t, "7", u.Query().Get("page"))
}

type staticWatermark string

func (s staticWatermark) LastSeen(context.Context) (string, error) { return string(s), nil }
