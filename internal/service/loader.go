package service

import (
	"context"
	"fmt"
	"log/slog"

	"gradcafe_scraper/internal/models"
	"gradcafe_scraper/internal/repository"
)

// WatermarkSourceName keys this pipeline's row in ingestion_watermarks.
const WatermarkSourceName = "gradcafe"

// Loader moves cleaned records into the relational store.
type Loader struct {
	repo   repository.ApplicantRepository
	logger *slog.Logger
}

// NewLoader creates a loader over repo.
func NewLoader(repo repository.ApplicantRepository, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{repo: repo, logger: logger}
}

// Load inserts records, skipping rows already present. With reset the
// applicant table is dropped and recreated first. It returns the number of
// rows inserted.
func (l *Loader) Load(ctx context.Context, records []models.CleanedRecord, reset bool) (int, error) {
	if err := l.repo.Init(ctx); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	if reset {
		if err := l.repo.Reset(ctx); err != nil {
			return 0, err
		}
		l.logger.Info("applicant table reset")
	}

	rows := make([]models.Applicant, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.NewApplicant(rec))
	}

	inserted, err := l.repo.InsertApplicants(ctx, rows)
	if err != nil {
		return 0, err
	}
	l.logger.Info("records loaded", "offered", len(rows), "inserted", inserted)
	return inserted, nil
}

// SeedIfEmpty loads records only when the applicant table has no rows. It
// returns the number of rows inserted, zero when the table was populated.
func (l *Loader) SeedIfEmpty(ctx context.Context, records []models.CleanedRecord) (int, error) {
	if err := l.repo.Init(ctx); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	n, err := l.repo.CountApplicants(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Debug("applicant table already seeded", "rows", n)
		return 0, nil
	}
	return l.Load(ctx, records, false)
}

// Count returns the number of stored applicants.
func (l *Loader) Count(ctx context.Context) (int, error) {
	return l.repo.CountApplicants(ctx)
}

// LastSeen implements WatermarkSource over the stored watermark.
func (l *Loader) LastSeen(ctx context.Context) (string, error) {
	if err := l.repo.Init(ctx); err != nil {
		return "", fmt.Errorf("migrate: %w", err)
	}
	return l.repo.LastSeen(ctx, WatermarkSourceName)
}

// UpdateWatermark stores date as the newest ingested decision date. A blank
// date is ignored.
func (l *Loader) UpdateWatermark(ctx context.Context, date string) error {
	if date == "" {
		return nil
	}
	return l.repo.UpdateWatermark(ctx, WatermarkSourceName, date)
}
