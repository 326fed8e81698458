package pathguard

import (
	"os"
	"path/filepath"
	"testing"

	"modkit/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRejectsDotDot(t *testing.T) {
	base := t.TempDir()
	g, err := New(base)
	require.NoError(t, err)

	_, err = g.Resolve("../escape.txt")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPathTraversal))
	assert.Contains(t, err.Error(), "..")
}

func TestResolveRejectsAbsolutePathOutsideBase(t *testing.T) {
	base := t.TempDir()
	g, err := New(base)
	require.NoError(t, err)

	outside := t.TempDir()
	_, err = g.Resolve(filepath.Join(outside, "file.txt"))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPathTraversal))
	assert.NotContains(t, err.Error(), base)
}

func TestResolveAcceptsRelativePathWithinBase(t *testing.T) {
	base := t.TempDir()
	g, err := New(base)
	require.NoError(t, err)

	resolved, err := g.Resolve("subdir/file.txt")
	require.NoError(t, err)
	assert.True(t, filepath_HasPrefix(resolved, g.Base()))
}

func TestResolveRejectsSymlinkEscapingBase(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	escapeTarget := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(escapeTarget, []byte("x"), 0o644))

	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(escapeTarget, link))

	g, err := New(base)
	require.NoError(t, err)

	_, err = g.Resolve("link")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPathTraversal))
}

func TestResolveAcceptsSymlinkWithinBase(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(target, link))

	g, err := New(base)
	require.NoError(t, err)

	resolved, err := g.Resolve("link")
	require.NoError(t, err)
	assert.True(t, filepath_HasPrefix(resolved, g.Base()))
}

func filepath_HasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	return err == nil && rel != ".." && !(len(rel) >= 2 && rel[:2] == "..")
}
