package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_Resolve(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	inside := filepath.Join(root, "movie.mkv")
	require.NoError(t, os.WriteFile(inside, []byte("video"), 0o644))
	secret := filepath.Join(outside, "secret.mkv")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	sandbox := NewSandbox(root)

	t.Run("path under root", func(t *testing.T) {
		resolved, err := sandbox.Resolve(inside)
		require.NoError(t, err)
		st, err := os.Stat(resolved)
		require.NoError(t, err)
		assert.Equal(t, int64(5), st.Size())
	})

	t.Run("symlink escaping root", func(t *testing.T) {
		link := filepath.Join(root, "link.mkv")
		require.NoError(t, os.Symlink(secret, link))

		_, err := sandbox.Resolve(link)
		assert.ErrorIs(t, err, ErrOutsideRoots)
	})

	t.Run("direct outside path", func(t *testing.T) {
		_, err := sandbox.Resolve(secret)
		assert.ErrorIs(t, err, ErrOutsideRoots)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := sandbox.Resolve(filepath.Join(root, "gone.mkv"))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrOutsideRoots)
	})

	t.Run("empty and bogus directories are skipped", func(t *testing.T) {
		s := NewSandbox("", filepath.Join(root, "nope"), root)
		resolved, err := s.Resolve(inside)
		require.NoError(t, err)
		assert.NotEmpty(t, resolved)
	})
}
