package file

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.xml")
	require.NoError(t, os.WriteFile(path, []byte("<oks/>"), 0o644))

	f, err := Open("schema.xml", path, FormatSchema)
	require.NoError(t, err)

	require.NoError(t, f.Lock())
	assert.True(t, f.Locked())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // original + lock sibling

	require.NoError(t, f.Unlock())
	assert.False(t, f.Locked())
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckReadOnlyDetectsWritableDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(path, []byte("<oks/>"), 0o644))

	f, err := Open("data.xml", path, FormatData)
	require.NoError(t, err)
	assert.False(t, f.CheckReadOnly())
}

func TestWriteAtomicReplacesContentAndPreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o640))

	f, err := Open("data.xml", path, FormatData)
	require.NoError(t, err)

	err = f.WriteAtomic(func(w io.Writer) error {
		_, werr := w.Write([]byte("new content"))
		return werr
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.False(t, f.Updated())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1) // no leftover tmp sibling
}

func TestWriteAtomicRollsBackOnWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	f, err := Open("data.xml", path, FormatData)
	require.NoError(t, err)

	err = f.WriteAtomic(func(w io.Writer) error {
		return assert.AnError
	})
	assert.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateStatusClassification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	f, err := Open("data.xml", path, FormatData)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, f.UpdateStatus())

	require.NoError(t, os.WriteFile(path, []byte("changed content"), 0o644))
	assert.Equal(t, StatusModified, f.UpdateStatus())

	require.NoError(t, os.Remove(path))
	assert.Equal(t, StatusRemoved, f.UpdateStatus())
}

func TestSaveAsRewindsOnFailure(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.xml")
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0o644))

	f, err := Open("old.xml", oldPath, FormatData)
	require.NoError(t, err)

	newPath := filepath.Join(dir, "missing-dir", "new.xml")
	err = f.SaveAs(newPath, func(w io.Writer) error {
		_, werr := w.Write([]byte("x"))
		return werr
	})
	assert.Error(t, err)
	assert.Equal(t, oldPath, f.FullName())
}
