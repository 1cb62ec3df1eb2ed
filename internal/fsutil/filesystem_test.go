package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystemWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "velocities.json")
	var fsys FileSystem = OSFileSystem{}

	require.NoError(t, fsys.WriteFile(name, []byte("first"), 0o644))
	require.NoError(t, fsys.WriteFile(name, []byte("second"), 0o644))

	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	info, err := fsys.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	assert.True(t, fsys.Exists(name))
	assert.False(t, fsys.Exists(filepath.Join(dir, "missing.json")))
}

func TestOSFileSystemWriteFileMissingDir(t *testing.T) {
	err := OSFileSystem{}.WriteFile(filepath.Join(t.TempDir(), "no", "such", "file"), nil, 0o644)
	assert.Error(t, err)
}

func TestOSFileSystemMkdirAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots", "run")
	require.NoError(t, OSFileSystem{}.MkdirAll(dir, 0o755))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMemoryFileSystemRoundTrip(t *testing.T) {
	mfs := NewMemoryFileSystem()

	data := []byte(`{"rotations":[]}`)
	require.NoError(t, mfs.WriteFile("/in/../rot.json", data, 0o644))
	data[0] = 'X'

	got, err := mfs.ReadFile("/rot.json")
	require.NoError(t, err)
	assert.Equal(t, `{"rotations":[]}`, string(got), "stored data must be a copy")

	info, err := mfs.Stat("/rot.json")
	require.NoError(t, err)
	assert.Equal(t, "rot.json", info.Name())
	assert.Equal(t, int64(len(data)), info.Size())
	assert.False(t, info.IsDir())
	assert.Equal(t, []string{"/rot.json"}, mfs.Files())
}

func TestMemoryFileSystemDirectories(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/out/plots/v.png", []byte("png"), 0o644)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	require.NoError(t, mfs.MkdirAll("/out/plots", 0o755))
	assert.True(t, mfs.Exists("/out"))
	require.NoError(t, mfs.WriteFile("/out/plots/v.png", []byte("png"), 0o644))

	info, err := mfs.Stat("/out/plots")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Error(t, mfs.WriteFile("/out", nil, 0o644))
	assert.Error(t, mfs.MkdirAll("/out/plots/v.png/x", 0o755))
}

func TestMemoryFileSystemMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = mfs.Stat("missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, mfs.Exists("missing.json"))

	// Relative names resolve against the implicit working directory.
	require.NoError(t, mfs.WriteFile("local.json", []byte("{}"), 0o644))
	assert.True(t, mfs.Exists("./local.json"))
}
