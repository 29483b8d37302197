// Package migrations provides database migration management for dlnad.
package migrations

import (
	"github.com/jmylchreest/dlnad/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
// - 001: Schema creation using GORM AutoMigrate
// - 002: Root container hierarchy and schema version marker
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002RootContainers(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Detail{},
				&models.Object{},
				&models.Caption{},
				&models.Setting{},
			)
		},
		Down: func(tx *gorm.DB) error {
			tables := []string{"captions", "objects", "details", "settings"}
			for _, table := range tables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// migration002RootContainers seeds the well-known container hierarchy and
// records the schema version.
func migration002RootContainers() Migration {
	return Migration{
		Version:     "002",
		Description: "Seed root containers and schema version",
		Up: func(tx *gorm.DB) error {
			containers := []models.Object{
				{ObjectID: models.RootID, ParentID: models.RootParentID, Class: models.ClassStorageFolder, Name: "root"},
				{ObjectID: models.AllVideoID, ParentID: models.RootID, Class: models.ClassStorageFolder, Name: "Video"},
				{ObjectID: models.BrowseDirID, ParentID: models.RootID, Class: models.ClassStorageFolder, Name: "Browse Folders"},
			}
			for i := range containers {
				if err := tx.Where("object_id = ?", containers[i].ObjectID).
					FirstOrCreate(&containers[i]).Error; err != nil {
					return err
				}
			}

			setting := models.Setting{Key: models.SettingSchemaVersion, Value: models.SchemaVersion}
			return tx.Where("key = ?", setting.Key).FirstOrCreate(&setting).Error
		},
		Down: func(tx *gorm.DB) error {
			ids := []string{models.BrowseDirID, models.AllVideoID, models.RootID}
			for _, id := range ids {
				if err := tx.Where("object_id = ?", id).Delete(&models.Object{}).Error; err != nil {
					return err
				}
			}
			return tx.Where("key = ?", models.SettingSchemaVersion).Delete(&models.Setting{}).Error
		},
	}
}
