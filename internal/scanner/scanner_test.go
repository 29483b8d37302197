package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/jmylchreest/dlnad/internal/probe"
	"github.com/jmylchreest/dlnad/internal/repository"
	"github.com/jmylchreest/dlnad/internal/testutil"
)

// stubProber records the probed Detail straight from the file metadata so
// tests exercise the scanner without real media parsing.
type stubProber struct {
	calls atomic.Int64
}

func (p *stubProber) File(_ context.Context, path, name string) (*models.Detail, error) {
	p.calls.Add(1)
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &models.Detail{
		Path:      &path,
		Size:      st.Size(),
		Timestamp: st.ModTime().Unix(),
		Title:     probe.StripExt(name),
		Mime:      "video/x-matroska",
		MediaKind: models.MediaKindVideo,
	}, nil
}

type scanEnv struct {
	db       *gorm.DB
	objects  repository.ObjectRepository
	details  repository.DetailRepository
	captions repository.CaptionRepository
	prober   *stubProber
	scanner  *Scanner
}

func setupScanner(t *testing.T, roots []config.MediaRoot) *scanEnv {
	t.Helper()

	db := testutil.OpenCatalog(t)
	env := &scanEnv{
		db:       db,
		objects:  repository.NewObjectRepository(db),
		details:  repository.NewDetailRepository(db),
		captions: repository.NewCaptionRepository(db),
		prober:   &stubProber{},
	}
	env.scanner = New(
		env.objects,
		env.details,
		env.captions,
		repository.NewSettingRepository(db),
		env.prober,
		roots,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanAll_BuildsHierarchy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "shows", "pilot.mkv"), "video")
	writeFile(t, filepath.Join(dir, "bravo.mkv"), "video")
	writeFile(t, filepath.Join(dir, "alpha.mkv"), "video")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not media")
	writeFile(t, filepath.Join(dir, ".hidden.mkv"), "hidden")

	env := setupScanner(t, []config.MediaRoot{{Path: dir, Types: "V"}})
	ctx := context.Background()
	require.NoError(t, env.scanner.ScanAll(ctx))

	// One root folder under the browse hierarchy.
	rootKids, total, err := env.objects.ListChildren(ctx, models.BrowseDirID, "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	rootID := rootKids[0].ObjectID
	assert.Equal(t, models.ChildID(models.BrowseDirID, 0), rootID)
	assert.Equal(t, filepath.Base(dir), rootKids[0].Name)

	// Children appear in collated order with sequential ordinals. The text
	// file and the hidden entry are filtered out.
	kids, total, err := env.objects.ListChildren(ctx, rootID, "o.object_id", 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	assert.Equal(t, "alpha", kids[0].Name)
	assert.Equal(t, "bravo", kids[1].Name)
	assert.Equal(t, "shows", kids[2].Name)
	assert.Equal(t, models.ChildID(rootID, 0), kids[0].ObjectID)
	assert.Equal(t, models.ChildID(rootID, 1), kids[1].ObjectID)
	assert.Equal(t, models.ChildID(rootID, 2), kids[2].ObjectID)
	assert.Equal(t, models.ClassStorageFolder, kids[2].Class)

	// The nested file lives under the shows folder.
	nested, _, err := env.objects.ListChildren(ctx, kids[2].ObjectID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "pilot", nested[0].Name)

	// Every video also has a virtual entry in the All Video container
	// referencing the real object.
	virtual, total, err := env.objects.ListChildren(ctx, models.AllVideoID, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, v := range virtual {
		require.NotNil(t, v.RefID)
		ref, err := env.objects.GetByObjectID(ctx, *v.RefID)
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, v.DetailID, ref.DetailID)
	}

	// A completed scan records the schema version.
	val, err := repository.NewSettingRepository(env.db).Get(ctx, models.SettingSchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, models.SchemaVersion, val)
}

func TestScanAll_SkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	writeFile(t, path, "video")

	env := setupScanner(t, []config.MediaRoot{{Path: dir, Types: "V"}})
	ctx := context.Background()

	require.NoError(t, env.scanner.ScanAll(ctx))
	assert.Equal(t, int64(1), env.prober.calls.Load())

	require.NoError(t, env.scanner.ScanAll(ctx))
	assert.Equal(t, int64(1), env.prober.calls.Load())

	// No duplicate rows on rescan.
	_, total, err := env.objects.ListChildren(ctx, models.AllVideoID, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestScanAll_ReprobesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	writeFile(t, path, "video")

	env := setupScanner(t, []config.MediaRoot{{Path: dir, Types: "V"}})
	ctx := context.Background()
	require.NoError(t, env.scanner.ScanAll(ctx))

	writeFile(t, path, "longer replacement content")
	older := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, older, older))

	require.NoError(t, env.scanner.ScanAll(ctx))
	assert.Equal(t, int64(2), env.prober.calls.Load())

	detail, err := env.details.GetByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, int64(len("longer replacement content")), detail.Size)

	// Still exactly one real and one virtual entry.
	_, total, err := env.objects.ListChildren(ctx, models.AllVideoID, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestScanAll_PairsCaptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "movie.mkv"), "video")
	writeFile(t, filepath.Join(dir, "movie.smi"), "sami")
	writeFile(t, filepath.Join(dir, "movie.srt"), "subrip")

	env := setupScanner(t, []config.MediaRoot{{Path: dir, Types: "V"}})
	ctx := context.Background()
	require.NoError(t, env.scanner.ScanAll(ctx))

	detail, err := env.details.GetByPath(ctx, filepath.Join(dir, "movie.mkv"))
	require.NoError(t, err)
	require.NotNil(t, detail)

	caption, err := env.captions.GetByDetailID(ctx, detail.ID)
	require.NoError(t, err)
	require.NotNil(t, caption)
	assert.Equal(t, filepath.Join(dir, "movie.srt"), caption.Path)
}

func TestRemovePath_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mkv")
	writeFile(t, path, "video")
	writeFile(t, filepath.Join(dir, "movie.srt"), "subrip")

	env := setupScanner(t, []config.MediaRoot{{Path: dir, Types: "V"}})
	ctx := context.Background()
	require.NoError(t, env.scanner.ScanAll(ctx))

	detail, err := env.details.GetByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, detail)

	require.NoError(t, env.scanner.RemovePath(ctx, path))

	gone, err := env.details.GetByPath(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, total, err := env.objects.ListChildren(ctx, models.AllVideoID, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	caption, err := env.captions.GetByDetailID(ctx, detail.ID)
	require.NoError(t, err)
	assert.Nil(t, caption)
}

func TestRemovePath_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "shows")
	writeFile(t, filepath.Join(sub, "pilot.mkv"), "video")
	writeFile(t, filepath.Join(dir, "movie.mkv"), "video")

	env := setupScanner(t, []config.MediaRoot{{Path: dir, Types: "V"}})
	ctx := context.Background()
	require.NoError(t, env.scanner.ScanAll(ctx))

	require.NoError(t, env.scanner.RemovePath(ctx, sub))

	rootKids, _, err := env.objects.ListChildren(ctx, models.BrowseDirID, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, rootKids, 1)

	kids, total, err := env.objects.ListChildren(ctx, rootKids[0].ObjectID, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "movie", kids[0].Name)
}

func TestScanAll_RejectsConcurrentScan(t *testing.T) {
	env := setupScanner(t, nil)
	env.scanner.scanning.Store(true)
	assert.True(t, env.scanner.Scanning())
	assert.Error(t, env.scanner.ScanAll(context.Background()))
	env.scanner.scanning.Store(false)
	assert.False(t, env.scanner.Scanning())
}
