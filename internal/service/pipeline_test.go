package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradcafe_scraper/internal/models"
	"gradcafe_scraper/internal/repository"
)

// stubScraper returns a fixed result.
type stubScraper struct {
	res *ScrapeResult
	err error
}

func (s stubScraper) Scrape(context.Context) (*ScrapeResult, error) { return s.res, s.err }

func rawEntry(inst, prog, text, date string) models.RawEntry {
	return models.RawEntry{
		models.KeyInstitution: inst,
		models.KeyProgram:     prog,
		models.KeyText:        text,
		models.KeyComments:    "",
		models.KeyDate:        date,
	}
}

func newTestPipeline(t *testing.T, scraper ScrapeService, loader *Loader, analyzer *Analyzer) *Pipeline {
	t.Helper()
	cleaned := repository.NewCleanedCorpus(filepath.Join(t.TempDir(), "applicant_data.json"), nil)
	return NewPipeline(scraper, NewCleaner(DefaultYear, nil), cleaned, loader, analyzer, nil)
}

func TestRunIngestionRebuildsFromFullHistory(t *testing.T) {
	fresh := rawEntry("MIT", "EECS", "Accepted on 5 Jan", "5 Jan 2026")
	old := rawEntry("Yale", "History", "Rejected on 1 Jan", "1 Jan 2026")
	p := newTestPipeline(t, stubScraper{res: &ScrapeResult{
		New: []models.RawEntry{fresh},
		All: []models.RawEntry{fresh, old},
	}}, nil, nil)

	res, err := p.RunIngestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merge.Added)

	stored := p.Cleaned.Load()
	require.Len(t, stored, 2)
	assert.Equal(t, "MIT", models.Deref(stored[0].University))
	assert.Equal(t, "Yale", models.Deref(stored[1].University))
}

func TestRunIngestionCleansOnlyNewWhenCorpusExists(t *testing.T) {
	fresh := rawEntry("MIT", "EECS", "Accepted on 5 Jan", "5 Jan 2026")
	old := rawEntry("Yale", "History", "Rejected on 1 Jan", "1 Jan 2026")
	p := newTestPipeline(t, stubScraper{res: &ScrapeResult{
		New: []models.RawEntry{fresh},
		All: []models.RawEntry{fresh, old},
	}}, nil, nil)
	require.NoError(t, p.Cleaned.Save([]models.CleanedRecord{record("CMU", "Robotics", "2 Jan 2026", "")}))

	res, err := p.RunIngestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merge.Cleaned)
	assert.Equal(t, 2, res.Merge.Total)
}

func TestRunIngestionScrapeError(t *testing.T) {
	p := newTestPipeline(t, stubScraper{res: &ScrapeResult{}, err: errors.New("disk full")}, nil, nil)

	_, err := p.RunIngestion(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, p.Cleaned.Load())
}

func TestRunIngestionLoadsDatabase(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	loader := NewLoader(repo, nil)
	analyzer := NewAnalyzer(repo, AnalysisParams{Term: "Spring 2026", PriorTerm: "Spring 2025"}, nil)

	fresh := rawEntry("MIT", "Computer Science", "Accepted on 5 Jan Spring 2026", "5 Jan 2026")
	p := newTestPipeline(t, stubScraper{res: &ScrapeResult{
		New: []models.RawEntry{fresh},
		All: []models.RawEntry{fresh},
	}}, loader, analyzer)

	res, err := p.RunIngestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, "1", res.Analysis.Value("q1"))

	wm, err := loader.LastSeen(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5 Jan 2026", wm)

	// a second identical run inserts nothing
	res, err = p.RunIngestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Loaded)
}

func TestRunIngestionLoadsOnlyAddedRecords(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(newTestRepository(t), nil)

	fresh := rawEntry("MIT", "EECS", "Accepted on 5 Jan", "5 Jan 2026")
	p := newTestPipeline(t, stubScraper{res: &ScrapeResult{
		New: []models.RawEntry{fresh},
		All: []models.RawEntry{fresh},
	}}, loader, nil)
	require.NoError(t, p.Cleaned.Save([]models.CleanedRecord{record("CMU", "Robotics", "", "")}))

	res, err := p.RunIngestion(ctx)
	require.NoError(t, err)
	require.Len(t, res.Merge.New, 1)
	assert.Equal(t, "MIT", models.Deref(res.Merge.New[0].University))
	assert.Equal(t, 1, res.Loaded)

	count, err := loader.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunIngestionInterruptedStillLoads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := newTestRepository(t)
	loader := NewLoader(repo, nil)
	analyzer := NewAnalyzer(repo, AnalysisParams{Term: "Spring 2026", PriorTerm: "Spring 2025"}, nil)

	fresh := rawEntry("MIT", "EECS", "Accepted on 5 Jan", "5 Jan 2026")
	p := newTestPipeline(t, stubScraper{res: &ScrapeResult{
		New:        []models.RawEntry{fresh},
		All:        []models.RawEntry{fresh},
		StopReason: StopInterrupted,
	}}, loader, analyzer)

	res, err := p.RunIngestion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Loaded)
	assert.Nil(t, res.Analysis)

	wm, err := loader.LastSeen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5 Jan 2026", wm)
}

func TestMergeBatch(t *testing.T) {
	p := newTestPipeline(t, nil, nil, nil)
	batch := []models.RawEntry{
		rawEntry("MIT", "EECS", "Accepted on 5 Jan", ""),
		rawEntry("MIT", "EECS", "Accepted on 5 Jan", ""),
	}

	res, err := p.MergeBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cleaned)
	assert.Equal(t, 1, res.Added)

	res, err = p.MergeBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 1, res.Total)
}
