package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dlnad/internal/models"
)

func TestOpenCatalog(t *testing.T) {
	db := OpenCatalog(t)

	var count int64
	require.NoError(t, db.Model(&models.Object{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	var root models.Object
	require.NoError(t, db.Where("object_id = ?", models.RootID).First(&root).Error)
	assert.Equal(t, models.RootParentID, root.ParentID)
}
