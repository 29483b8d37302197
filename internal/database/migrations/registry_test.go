package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db
}

func TestAllMigrations_VersionsAreUnique(t *testing.T) {
	migrations := AllMigrations()
	versions := make(map[string]bool)

	for _, m := range migrations {
		assert.False(t, versions[m.Version], "duplicate version: %s", m.Version)
		versions[m.Version] = true
	}
}

func TestAllMigrations_VersionsAreOrdered(t *testing.T) {
	migrations := AllMigrations()

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version,
			"migrations should be in ascending version order")
	}
}

func TestMigrator_Up_AllMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("details"))
	assert.True(t, db.Migrator().HasTable("objects"))
	assert.True(t, db.Migrator().HasTable("captions"))
	assert.True(t, db.Migrator().HasTable("settings"))
}

func TestMigrator_Up_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	// Run migrations twice - should not error
	err := migrator.Up(ctx)
	require.NoError(t, err)

	err = migrator.Up(ctx)
	require.NoError(t, err)

	// Root containers are not duplicated
	var count int64
	require.NoError(t, db.Model(&models.Object{}).Where("object_id = ?", models.RootID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMigrator_Up_SeedsRootContainers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	var root models.Object
	require.NoError(t, db.Where("object_id = ?", models.RootID).First(&root).Error)
	assert.Equal(t, models.RootParentID, root.ParentID)
	assert.True(t, root.IsContainer())

	var children []models.Object
	require.NoError(t, db.Where("parent_id = ?", models.RootID).Order("object_id").Find(&children).Error)
	require.Len(t, children, 2)
	assert.Equal(t, models.AllVideoID, children[0].ObjectID)
	assert.Equal(t, models.BrowseDirID, children[1].ObjectID)

	var setting models.Setting
	require.NoError(t, db.Where("key = ?", models.SettingSchemaVersion).First(&setting).Error)
	assert.Equal(t, models.SchemaVersion, setting.Value)
}

func TestMigrator_Status(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, len(AllMigrations()))

	for _, s := range statuses {
		assert.False(t, s.Applied)
		assert.Nil(t, s.AppliedAt)
	}

	err = migrator.Up(ctx)
	require.NoError(t, err)

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)

	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.NotNil(t, s.AppliedAt)
	}
}

func TestMigrator_Down_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	// Roll back 002 (seed data)
	require.NoError(t, migrator.Down(ctx))
	var count int64
	require.NoError(t, db.Model(&models.Object{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.True(t, db.Migrator().HasTable("objects"))

	// Roll back 001 (schema)
	require.NoError(t, migrator.Down(ctx))
	assert.False(t, db.Migrator().HasTable("objects"))
	assert.False(t, db.Migrator().HasTable("details"))
}

func TestMigrations_CanInsertData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())
	require.NoError(t, migrator.Up(ctx))

	path := "/srv/video/example.mkv"
	detail := &models.Detail{
		Path:      &path,
		Size:      1024,
		Title:     "example",
		Mime:      "video/x-matroska",
		MediaKind: models.MediaKindVideo,
	}
	require.NoError(t, db.Create(detail).Error)
	assert.NotZero(t, detail.ID)

	obj := &models.Object{
		ObjectID: models.ChildID(models.BrowseDirID, 0),
		ParentID: models.BrowseDirID,
		Class:    models.ClassVideoItem,
		Name:     "example",
		DetailID: &detail.ID,
	}
	require.NoError(t, db.Create(obj).Error)

	caption := &models.Caption{DetailID: detail.ID, Path: "/srv/video/example.srt"}
	require.NoError(t, db.Create(caption).Error)

	var loaded models.Object
	require.NoError(t, db.Preload("Detail").Where("object_id = ?", obj.ObjectID).First(&loaded).Error)
	require.NotNil(t, loaded.Detail)
	assert.Equal(t, "video/x-matroska", loaded.Detail.Mime)
}
