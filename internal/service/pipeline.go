package service

import (
	"context"
	"fmt"
	"log/slog"

	"gradcafe_scraper/internal/models"
	"gradcafe_scraper/internal/repository"
)

// Pipeline wires the two ingestion entry points: a full incremental run and
// a merge of an already scraped raw batch.
type Pipeline struct {
	Scraper ScrapeService
	Cleaner *Cleaner
	Cleaned *repository.CorpusStore[models.CleanedRecord]
	// Loader and Analyzer are optional; without them the run stops after the
	// cleaned corpus is written.
	Loader   *Loader
	Analyzer *Analyzer
	logger   *slog.Logger
}

// NewPipeline creates a pipeline; loader and analyzer may be nil.
func NewPipeline(scraper ScrapeService, cleaner *Cleaner, cleaned *repository.CorpusStore[models.CleanedRecord], loader *Loader, analyzer *Analyzer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Scraper:  scraper,
		Cleaner:  cleaner,
		Cleaned:  cleaned,
		Loader:   loader,
		Analyzer: analyzer,
		logger:   logger,
	}
}

// MergeResult summarizes one merge into the cleaned corpus.
type MergeResult struct {
	Cleaned int
	Added   int
	Total   int
	Records []models.CleanedRecord
	// New holds the records this merge added, newest first.
	New []models.CleanedRecord
}

// IngestionResult summarizes RunIngestion.
type IngestionResult struct {
	Scrape   *ScrapeResult
	Merge    *MergeResult
	Loaded   int
	Analysis *Analysis
}

// RunIngestion scrapes new entries, cleans them, merges them into the
// cleaned corpus and, when a loader is set, loads the database, advances the
// watermark and refreshes the analysis.
func (p *Pipeline) RunIngestion(ctx context.Context) (*IngestionResult, error) {
	// 1. Scrape
	scrape, err := p.Scraper.Scrape(ctx)
	res := &IngestionResult{Scrape: scrape}
	if err != nil {
		return res, fmt.Errorf("scrape: %w", err)
	}

	// 2. Clean and merge; a missing cleaned corpus is rebuilt from the full raw history
	existing := p.Cleaned.Load()
	batch := scrape.New
	if len(existing) == 0 {
		batch = scrape.All
	}
	res.Merge, err = p.merge(existing, batch)
	if err != nil {
		return res, err
	}

	if p.Loader == nil {
		return res, nil
	}

	// 3. Database; an interrupted scrape still records what it saved
	dbCtx := ctx
	interrupted := scrape.StopReason == StopInterrupted
	if interrupted {
		dbCtx = context.WithoutCancel(ctx)
	}
	res.Loaded, err = p.Loader.Load(dbCtx, res.Merge.New, false)
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}
	if newest := Watermark(scrape.New); newest != "" {
		if err := p.Loader.UpdateWatermark(dbCtx, newest); err != nil {
			return res, fmt.Errorf("update watermark: %w", err)
		}
	}

	// 4. Analysis
	if interrupted {
		p.logger.Info("run interrupted, analysis refresh skipped", "loaded", res.Loaded)
		return res, nil
	}
	if p.Analyzer != nil {
		res.Analysis, err = p.Analyzer.Refresh(ctx)
		if err != nil {
			return res, fmt.Errorf("analysis: %w", err)
		}
	}
	return res, nil
}

// MergeBatch cleans raw and merges it into the cleaned corpus.
func (p *Pipeline) MergeBatch(ctx context.Context, raw []models.RawEntry) (*MergeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.merge(p.Cleaned.Load(), raw)
}

func (p *Pipeline) merge(existing []models.CleanedRecord, raw []models.RawEntry) (*MergeResult, error) {
	cleaned := p.Cleaner.Clean(raw)
	merged := Merge(existing, cleaned)
	added := merged[:len(merged)-len(existing)]

	if err := p.Cleaned.Save(merged); err != nil {
		return nil, fmt.Errorf("persist cleaned corpus: %w", err)
	}

	res := &MergeResult{
		Cleaned: len(cleaned),
		Added:   len(added),
		Total:   len(merged),
		Records: merged,
		New:     added,
	}
	p.logger.Info("merged batch", "cleaned", res.Cleaned, "added", res.Added, "total", res.Total)
	return res, nil
}
