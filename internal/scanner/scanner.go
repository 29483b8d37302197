// Package scanner walks the configured media roots and populates the
// catalog with Detail and Object rows mirroring the filesystem hierarchy.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jmylchreest/dlnad/internal/config"
	"github.com/jmylchreest/dlnad/internal/models"
	"github.com/jmylchreest/dlnad/internal/probe"
	"github.com/jmylchreest/dlnad/internal/repository"
)

// FileProber probes a media file into a Detail record.
type FileProber interface {
	File(ctx context.Context, path, name string) (*models.Detail, error)
}

// Scanner builds the catalog from the media roots.
type Scanner struct {
	objects  repository.ObjectRepository
	details  repository.DetailRepository
	captions repository.CaptionRepository
	settings repository.SettingRepository
	prober   FileProber
	roots    []config.MediaRoot
	logger   *slog.Logger
	collator *collate.Collator

	scanning atomic.Bool
}

// New creates a Scanner over the given repositories and media roots.
func New(
	objects repository.ObjectRepository,
	details repository.DetailRepository,
	captions repository.CaptionRepository,
	settings repository.SettingRepository,
	prober FileProber,
	roots []config.MediaRoot,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		objects:  objects,
		details:  details,
		captions: captions,
		settings: settings,
		prober:   prober,
		roots:    roots,
		logger:   logger.With("component", "scanner"),
		collator: collate.New(language.Und, collate.IgnoreCase),
	}
}

// Scanning reports whether a scan is currently in progress. The SOAP layer
// exposes this through the X_ContainerUpdateIDs-adjacent state variables.
func (s *Scanner) Scanning() bool {
	return s.scanning.Load()
}

// ScanAll walks every configured media root. Per-file failures are logged
// and skipped; a scan never aborts for one bad file. On completion the
// schema version marker is written so the next startup can tell a finished
// catalog from an interrupted build.
func (s *Scanner) ScanAll(ctx context.Context) error {
	if !s.scanning.CompareAndSwap(false, true) {
		return fmt.Errorf("scan already in progress")
	}
	defer s.scanning.Store(false)

	s.logger.Info("starting media scan", "roots", len(s.roots))
	var files, dirs int
	for _, root := range s.roots {
		f, d, err := s.scanRoot(ctx, root)
		files += f
		dirs += d
		if err != nil {
			return err
		}
	}

	if err := s.settings.Set(ctx, models.SettingSchemaVersion, models.SchemaVersion); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	s.logger.Info("media scan complete", "files", files, "directories", dirs)
	return nil
}

// scanRoot ensures the root's storage folder exists under the browse
// hierarchy and recurses into it.
func (s *Scanner) scanRoot(ctx context.Context, root config.MediaRoot) (int, int, error) {
	abs, err := filepath.Abs(root.Path)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving media root %s: %w", root.Path, err)
	}
	mask := models.ParseTypeMask(root.Types)

	objectID, err := s.ensureFolder(ctx, models.BrowseDirID, abs, filepath.Base(abs), int64(mask))
	if err != nil {
		return 0, 0, err
	}
	return s.scanDir(ctx, objectID, abs)
}

// scanDir recurses into a directory, minting deterministic child ordinals
// from the collated entry order.
func (s *Scanner) scanDir(ctx context.Context, parentID, dir string) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("cannot read directory", "path", dir, "error", err)
		return 0, 0, nil
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for _, entry := range entries {
		if !s.acceptEntry(entry) {
			continue
		}
		names = append(names, entry.Name())
		byName[entry.Name()] = entry
	}
	sort.SliceStable(names, func(i, j int) bool {
		return s.collator.CompareString(names[i], names[j]) < 0
	})

	var files, dirs int
	for _, name := range names {
		entry := byName[name]
		path := filepath.Join(dir, name)
		if isDir(entry, path) {
			childID, err := s.ensureFolder(ctx, parentID, path, name, 0)
			if err != nil {
				s.logger.Warn("skipping directory", "path", path, "error", err)
				continue
			}
			f, d, err := s.scanDir(ctx, childID, path)
			files += f
			dirs += d + 1
			if err != nil {
				return files, dirs, err
			}
			continue
		}
		if err := s.scanFile(ctx, parentID, path, name); err != nil {
			s.logger.Warn("skipping file", "path", path, "error", err)
			continue
		}
		files++
	}
	return files, dirs, nil
}

// acceptEntry filters hidden entries and regular files without a video
// extension. Directories, symlinks, and irregular entries pass through so
// link-following roots keep working.
func (s *Scanner) acceptEntry(entry os.DirEntry) bool {
	name := entry.Name()
	if strings.HasPrefix(name, ".") {
		return false
	}
	if entry.Type().IsRegular() {
		return probe.IsVideoFile(name)
	}
	return true
}

// isDir resolves whether an entry is a directory, following symlinks.
func isDir(entry os.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink != 0 {
		st, err := os.Stat(path)
		return err == nil && st.IsDir()
	}
	return false
}

// ensureFolder returns the object ID of the storage folder for path under
// parentID, creating the Object and its Detail row when absent. A non-zero
// mask is stored in the Detail's timestamp field, which is how media-root
// folders carry their allowed media kinds.
func (s *Scanner) ensureFolder(ctx context.Context, parentID, path, name string, mask int64) (string, error) {
	existing, err := s.findByPath(ctx, parentID, path)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ObjectID, nil
	}

	detail := &models.Detail{
		Path:      &path,
		Timestamp: mask,
		Title:     name,
		MediaKind: models.MediaKindNone,
	}

	if err := s.details.Create(ctx, detail); err != nil {
		return "", fmt.Errorf("creating folder detail for %s: %w", path, err)
	}

	var objectID string
	err = s.objects.Transaction(ctx, func(objects repository.ObjectRepository) error {
		ordinal, err := objects.NextOrdinal(ctx, parentID)
		if err != nil {
			return err
		}
		objectID = models.ChildID(parentID, ordinal)
		return objects.Create(ctx, &models.Object{
			ObjectID: objectID,
			ParentID: parentID,
			Class:    models.ClassStorageFolder,
			Name:     name,
			DetailID: &detail.ID,
		})
	})
	if err != nil {
		return "", fmt.Errorf("creating folder object for %s: %w", path, err)
	}
	return objectID, nil
}

// scanFile probes one file and inserts its Detail, its real Object, and a
// virtual entry in the All Video container referencing the real one.
// Unchanged files already in the catalog are left alone.
func (s *Scanner) scanFile(ctx context.Context, parentID, path, name string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	existing, err := s.details.GetByPath(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Timestamp == st.ModTime().Unix() && existing.Size == st.Size() {
			return nil
		}
		// Changed on disk: drop the stale rows and reinsert fresh ones.
		if err := s.RemovePath(ctx, path); err != nil {
			return err
		}
	}

	detail, err := s.prober.File(ctx, path, name)
	if err != nil {
		return err
	}
	if detail.MediaKind == models.MediaKindNone {
		return nil
	}

	if err := s.details.Create(ctx, detail); err != nil {
		return fmt.Errorf("creating detail for %s: %w", path, err)
	}

	err = s.objects.Transaction(ctx, func(objects repository.ObjectRepository) error {
		ordinal, err := objects.NextOrdinal(ctx, parentID)
		if err != nil {
			return err
		}
		realID := models.ChildID(parentID, ordinal)
		if err := objects.Create(ctx, &models.Object{
			ObjectID: realID,
			ParentID: parentID,
			Class:    models.ClassVideoItem,
			Name:     detail.Title,
			DetailID: &detail.ID,
		}); err != nil {
			return err
		}

		virtualOrdinal, err := objects.NextOrdinal(ctx, models.AllVideoID)
		if err != nil {
			return err
		}
		return objects.Create(ctx, &models.Object{
			ObjectID: models.ChildID(models.AllVideoID, virtualOrdinal),
			ParentID: models.AllVideoID,
			RefID:    &realID,
			Class:    models.ClassVideoItem,
			Name:     detail.Title,
			DetailID: &detail.ID,
		})
	})
	if err != nil {
		return fmt.Errorf("inserting %s: %w", path, err)
	}

	s.pairCaption(ctx, path, detail.ID)
	return nil
}

// pairCaption records a sibling subtitle file for a freshly inserted video.
// SubRip is preferred over SAMI when both exist.
func (s *Scanner) pairCaption(ctx context.Context, path string, detailID int64) {
	base := probe.StripExt(path)
	for _, ext := range []string{".srt", ".smi"} {
		captionPath := base + ext
		if _, err := os.Stat(captionPath); err != nil {
			continue
		}
		err := s.captions.Create(ctx, &models.Caption{DetailID: detailID, Path: captionPath})
		if err != nil {
			s.logger.Warn("cannot record caption", "path", captionPath, "error", err)
		}
		return
	}
}

// ScanPath inserts or refreshes the catalog rows for one path inside a
// media root, ensuring the folder chain above it exists first. The
// filesystem monitor calls this when something appears or changes.
func (s *Scanner) ScanPath(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	root, ok := s.rootFor(abs)
	if !ok {
		return fmt.Errorf("%s is outside every media root", abs)
	}

	rootAbs, err := filepath.Abs(root.Path)
	if err != nil {
		return err
	}
	mask := models.ParseTypeMask(root.Types)
	parentID, err := s.ensureFolder(ctx, models.BrowseDirID, rootAbs, filepath.Base(rootAbs), int64(mask))
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return err
	}
	if rel == "." {
		_, _, err := s.scanDir(ctx, parentID, rootAbs)
		return err
	}

	segments := strings.Split(rel, string(filepath.Separator))
	dir := rootAbs
	for _, seg := range segments[:len(segments)-1] {
		dir = filepath.Join(dir, seg)
		parentID, err = s.ensureFolder(ctx, parentID, dir, seg, 0)
		if err != nil {
			return err
		}
	}

	st, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if st.IsDir() {
		id, err := s.ensureFolder(ctx, parentID, abs, filepath.Base(abs), 0)
		if err != nil {
			return err
		}
		_, _, err = s.scanDir(ctx, id, abs)
		return err
	}
	return s.scanFile(ctx, parentID, abs, filepath.Base(abs))
}

// AddCaption associates a freshly appeared subtitle file with the video
// it names, when that video is already in the catalog.
func (s *Scanner) AddCaption(ctx context.Context, captionPath string) error {
	abs, err := filepath.Abs(captionPath)
	if err != nil {
		return err
	}
	base := probe.StripExt(abs)
	for ext := range probe.VideoExtensions() {
		detail, err := s.details.GetByPath(ctx, base+ext)
		if err != nil {
			return err
		}
		if detail == nil {
			continue
		}
		return s.captions.Create(ctx, &models.Caption{DetailID: detail.ID, Path: abs})
	}
	return nil
}

// rootFor returns the media root containing path.
func (s *Scanner) rootFor(path string) (config.MediaRoot, bool) {
	for _, root := range s.roots {
		abs, err := filepath.Abs(root.Path)
		if err != nil {
			continue
		}
		if path == abs || strings.HasPrefix(path, abs+string(filepath.Separator)) {
			return root, true
		}
	}
	return config.MediaRoot{}, false
}

// RemovePath deletes every object backed by the detail rows describing
// path, then the details themselves. Used for rescans and by the
// filesystem monitor when a file disappears.
func (s *Scanner) RemovePath(ctx context.Context, path string) error {
	matches, _, err := s.objects.Search(ctx, repository.SearchQuery{
		Where: "d.path = ?",
		Args:  []any{path},
	})
	if err != nil {
		return fmt.Errorf("finding objects for %s: %w", path, err)
	}
	for _, obj := range matches {
		if obj.IsContainer() {
			if err := s.objects.DeleteSubtree(ctx, obj.ObjectID); err != nil {
				return err
			}
			continue
		}
		if err := s.objects.DeleteByObjectID(ctx, obj.ObjectID); err != nil {
			return err
		}
		if obj.DetailID != nil {
			if err := s.captions.Delete(ctx, *obj.DetailID); err != nil {
				return err
			}
		}
	}
	return s.details.DeleteByPath(ctx, path)
}

// findByPath locates an existing child of parentID whose detail points at
// path. Folders are looked up this way so rescans reuse their object IDs.
func (s *Scanner) findByPath(ctx context.Context, parentID, path string) (*models.Object, error) {
	matches, _, err := s.objects.Search(ctx, repository.SearchQuery{
		ContainerID: parentID,
		Where:       "d.path = ? AND o.parent_id = ?",
		Args:        []any{path, parentID},
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}
