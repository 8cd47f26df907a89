// Package app assembles the pipeline from configuration. Both the CLI and the
// dashboard server build their dependencies through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gradcafe_scraper/internal/config"
	"gradcafe_scraper/internal/models"
	"gradcafe_scraper/internal/parser"
	"gradcafe_scraper/internal/repository"
	"gradcafe_scraper/internal/service"
)

// ErrNoDatabase is returned by operations that need DATABASE_URL or DB_*.
var ErrNoDatabase = errors.New("no database configured (set DATABASE_URL or DB_HOST/DB_USER/DB_NAME)")

// App holds the wired components. Loader and Analyzer are nil without a database.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	RawCorpus *repository.CorpusStore[models.RawEntry]
	Cleaned   *repository.CorpusStore[models.CleanedRecord]
	Loader    *service.Loader
	Analyzer  *service.Analyzer
	Pipeline  *service.Pipeline
}

// New connects to the database when one is configured and wires the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		RawCorpus: repository.NewRawCorpus(cfg.Paths.RawCorpus, logger),
		Cleaned:   repository.NewCleanedCorpus(cfg.Paths.CleanedCorpus, logger),
	}

	// 1. Database (optional)
	if cfg.DBConn != "" {
		db, err := gorm.Open(postgres.Open(cfg.DBConn), &gorm.Config{
			PrepareStmt: true,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.DB = db
		logger.Info("connected to PostgreSQL")

		repo := repository.NewGormApplicantRepository(db)
		if err := repo.Init(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.Loader = service.NewLoader(repo, logger)
		a.Analyzer = service.NewAnalyzer(repo, service.AnalysisParams{
			Term:      cfg.Analysis.Term,
			PriorTerm: cfg.Analysis.PriorTerm,
		}, logger)
	}

	// 2. Fetcher
	fetcher, err := newResultsRepository(cfg.Scrape, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 3. Scrape controller and pipeline
	opts := service.ScrapeOptions{
		BaseURL:        cfg.Scrape.BaseURL,
		TargetCount:    cfg.Scrape.TargetCount,
		MaxPages:       cfg.Scrape.MaxPages,
		SaveEveryPages: cfg.Scrape.SaveEveryPages,
		MaxEmptyPages:  cfg.Scrape.MaxEmptyPages,
	}
	if a.Loader != nil {
		opts.Watermarks = a.Loader
	}
	scraper := service.NewScrapeService(fetcher, parser.NewResultParser(), a.RawCorpus, opts, logger)
	cleaner := service.NewCleaner(cfg.Clean.DefaultYear, logger)
	a.Pipeline = service.NewPipeline(scraper, cleaner, a.Cleaned, a.Loader, a.Analyzer, logger)

	return a, nil
}

func newResultsRepository(s config.ScrapeConfig, logger *slog.Logger) (repository.ResultsRepository, error) {
	if s.FetchMode == config.FetchModeHeadless {
		return repository.NewHeadlessResultsRepository(s.Timeout(), logger), nil
	}
	repo, err := repository.NewResultsRepository(repository.FetchOptions{
		Timeout:          s.Timeout(),
		MaxAttempts:      s.Retry.MaxAttempts,
		RetryWait:        time.Duration(s.Retry.WaitMs) * time.Millisecond,
		RetryMaxWait:     time.Duration(s.Retry.MaxWaitMs) * time.Millisecond,
		CloudflareBypass: s.CloudflareBypass,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	return repo, nil
}

// RequireDB returns ErrNoDatabase when no database is configured.
func (a *App) RequireDB() error {
	if a.Loader == nil {
		return ErrNoDatabase
	}
	return nil
}

// Close releases the database connection pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
