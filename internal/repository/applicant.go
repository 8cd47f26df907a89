package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gradcafe_scraper/internal/models"
)

// ApplicantRepository defines the interface for persisting applicant rows and
// the ingestion watermark.
type ApplicantRepository interface {
	// Init creates or migrates every table the pipeline uses.
	Init(ctx context.Context) error
	// Reset drops and recreates the applicant table.
	Reset(ctx context.Context) error
	InsertApplicants(ctx context.Context, rows []models.Applicant) (int, error)
	CountApplicants(ctx context.Context) (int, error)
	LastSeen(ctx context.Context, source string) (string, error)
	UpdateWatermark(ctx context.Context, source, lastSeen string) error
}

// GormApplicantRepository implements ApplicantRepository and AnalyticsRepository
// on any gorm dialect. Production uses PostgreSQL; tests use SQLite.
type GormApplicantRepository struct {
	db *gorm.DB
}

// NewGormApplicantRepository creates a new instance.
func NewGormApplicantRepository(db *gorm.DB) *GormApplicantRepository {
	return &GormApplicantRepository{
		db: db,
	}
}

func (r *GormApplicantRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&models.Applicant{},
		&models.IngestionWatermark{},
		&models.AnalysisSnapshot{},
	)
}

func (r *GormApplicantRepository) Reset(ctx context.Context) error {
	m := r.db.WithContext(ctx).Migrator()
	if err := m.DropTable(&models.Applicant{}); err != nil {
		return fmt.Errorf("drop applicants: %w", err)
	}
	if err := m.AutoMigrate(&models.Applicant{}); err != nil {
		return fmt.Errorf("recreate applicants: %w", err)
	}
	return nil
}

// InsertApplicants bulk inserts rows; rows whose signature already exists are
// skipped. The returned count is the number of rows actually inserted.
func (r *GormApplicantRepository) InsertApplicants(ctx context.Context, rows []models.Applicant) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm bulk insert failed: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *GormApplicantRepository) CountApplicants(ctx context.Context) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Applicant{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm count failed: %w", result.Error)
	}
	return int(count), nil
}

// LastSeen returns the stored watermark for source, or "" when none exists.
func (r *GormApplicantRepository) LastSeen(ctx context.Context, source string) (string, error) {
	var wm models.IngestionWatermark
	err := r.db.WithContext(ctx).Where("source = ?", source).First(&wm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read watermark: %w", err)
	}
	return wm.LastSeen, nil
}

func (r *GormApplicantRepository) UpdateWatermark(ctx context.Context, source, lastSeen string) error {
	wm := models.IngestionWatermark{Source: source, LastSeen: lastSeen, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "updated_at"}),
	}).Create(&wm).Error
	if err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}
