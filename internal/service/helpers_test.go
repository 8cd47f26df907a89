package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gradcafe_scraper/internal/repository"
)

// newTestRepository opens a private in-memory SQLite database.
func newTestRepository(t *testing.T) *repository.GormApplicantRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, or every new connection sees a fresh empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := repository.NewGormApplicantRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}
