// Package monitor keeps the catalog synchronized with the media roots
// between scans by watching the filesystem for changes.
package monitor

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/dlnad/internal/probe"
)

// settleDelay is how long a path must stay quiet after its last event
// before it is inserted. Files arriving over the network emit a long
// stream of write events while they grow.
const settleDelay = 2 * time.Second

// Catalog is the slice of the scanner the monitor drives.
type Catalog interface {
	ScanPath(ctx context.Context, path string) error
	AddCaption(ctx context.Context, path string) error
	RemovePath(ctx context.Context, path string) error
}

// Monitor watches the media roots with fsnotify and feeds changes into
// the catalog.
type Monitor struct {
	watcher *fsnotify.Watcher
	catalog Catalog
	roots   []string
	settle  time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Monitor over the given media root paths.
func New(catalog Catalog, roots []string, logger *slog.Logger) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		watcher: watcher,
		catalog: catalog,
		roots:   roots,
		settle:  settleDelay,
		logger:  logger.With("component", "monitor"),
		pending: make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	watched := 0
	for _, root := range roots {
		n, err := m.watchTree(root)
		if err != nil {
			watcher.Close()
			cancel()
			return nil, err
		}
		watched += n
	}
	m.logger.Info("filesystem monitor started", "roots", len(roots), "directories", watched)

	go m.run()
	return m, nil
}

// Close stops the monitor and cancels pending inserts.
func (m *Monitor) Close() {
	m.cancel()
	m.watcher.Close()
	<-m.done

	m.mu.Lock()
	for path, timer := range m.pending {
		timer.Stop()
		delete(m.pending, path)
	}
	m.mu.Unlock()
}

// watchTree registers a watch on dir and every directory below it,
// returning how many were added. Unreadable subdirectories are skipped.
func (m *Monitor) watchTree(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Warn("cannot watch", "path", path, "error", err)
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return fs.SkipDir
		}
		if err := m.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		count++
		return nil
	})
	return count, err
}

func (m *Monitor) run() {
	defer close(m.done)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watcher error", "error", err)
		}
	}
}

func (m *Monitor) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		m.cancelPending(event.Name)
		if err := m.catalog.RemovePath(m.ctx, event.Name); err != nil {
			m.logger.Warn("cannot remove from catalog", "path", event.Name, "error", err)
		}

	case event.Has(fsnotify.Create):
		st, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if st.IsDir() {
			// New directory: watch it and everything moved in with it,
			// then pick up its contents.
			if _, err := m.watchTree(event.Name); err != nil {
				m.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
			m.schedule(event.Name)
			return
		}
		if probe.IsVideoFile(name) || probe.IsCaptionFile(name) {
			m.schedule(event.Name)
		}

	case event.Has(fsnotify.Write):
		if probe.IsVideoFile(name) || probe.IsCaptionFile(name) {
			m.schedule(event.Name)
		}
	}
}

// schedule queues path for insertion once it has stayed quiet for the
// settle delay. A newer event on the same path restarts the clock.
func (m *Monitor) schedule(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timer, ok := m.pending[path]; ok {
		timer.Reset(m.settle)
		return
	}
	m.pending[path] = time.AfterFunc(m.settle, func() {
		m.mu.Lock()
		delete(m.pending, path)
		m.mu.Unlock()
		m.insert(path)
	})
}

func (m *Monitor) cancelPending(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.pending[path]; ok {
		timer.Stop()
		delete(m.pending, path)
	}
}

func (m *Monitor) insert(path string) {
	if err := m.ctx.Err(); err != nil {
		return
	}
	var err error
	if probe.IsCaptionFile(path) {
		err = m.catalog.AddCaption(m.ctx, path)
	} else {
		err = m.catalog.ScanPath(m.ctx, path)
	}
	if err != nil {
		m.logger.Warn("cannot insert into catalog", "path", path, "error", err)
		return
	}
	m.logger.Debug("catalog updated", "path", path)
}
