// Package storage restricts filesystem access to the configured media
// directories. Catalog rows carry absolute paths recorded at scan time;
// the sandbox refuses any path whose real location has since moved
// outside the allowed directories, so a symlink swapped in under a media
// root cannot expose the rest of the filesystem.
package storage

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideRoots is returned when a resolved path does not live under
// any allowed directory.
var ErrOutsideRoots = errors.New("path outside media roots")

// Sandbox validates media paths against a fixed set of directories.
type Sandbox struct {
	allowed []string
}

// NewSandbox builds a sandbox over the given directories. Each directory
// is resolved through symlinks up front so comparisons happen on real
// locations; empty or unresolvable entries are skipped.
func NewSandbox(dirs ...string) *Sandbox {
	allowed := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			resolved, err = filepath.Abs(dir)
			if err != nil {
				continue
			}
		}
		allowed = append(allowed, resolved)
	}
	return &Sandbox{allowed: allowed}
}

// Resolve follows symlinks on path and returns the real location.
// It returns ErrOutsideRoots when the resolved location is not under an
// allowed directory, and the underlying lookup error when the path does
// not exist.
func (s *Sandbox) Resolve(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	if !s.contains(resolved) {
		return "", ErrOutsideRoots
	}
	return resolved, nil
}

func (s *Sandbox) contains(resolved string) bool {
	for _, dir := range s.allowed {
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
