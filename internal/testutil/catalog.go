// Package testutil provides shared helpers for catalog package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/dlnad/internal/models"
)

// OpenCatalog opens an in-memory catalog database with the schema
// migrated and the well-known root containers seeded.
func OpenCatalog(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Detail{},
		&models.Object{},
		&models.Caption{},
		&models.Setting{},
	))

	SeedRoots(t, db)
	return db
}

// SeedRoots inserts the containers every catalog starts with.
func SeedRoots(t *testing.T, db *gorm.DB) {
	t.Helper()
	roots := []models.Object{
		{ObjectID: models.RootID, ParentID: models.RootParentID, Class: models.ClassStorageFolder, Name: "root"},
		{ObjectID: models.AllVideoID, ParentID: models.RootID, Class: models.ClassStorageFolder, Name: "Video"},
		{ObjectID: models.BrowseDirID, ParentID: models.RootID, Class: models.ClassStorageFolder, Name: "Browse Folders"},
	}
	for i := range roots {
		require.NoError(t, db.Create(&roots[i]).Error)
	}
}
