package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchFile(t *testing.T, dir, name string, ageDays int, size int) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	mtime := time.Now().Add(-time.Duration(ageDays) * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCleanupStorage(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, dir, "old.xml", 31, 100)
	touchFile(t, dir, "ancient.xml", 90, 50)
	touchFile(t, dir, "recent.xml", 29, 200)
	touchFile(t, dir, "old.txt", 90, 10)

	imp, _ := newTestImporter(dir)
	result := imp.CleanupStorage(0)

	assert.Equal(t, 2, result.DeletedFiles)
	assert.Equal(t, int64(150), result.DeletedBytes)
	assert.Empty(t, result.Errors)

	_, err := os.Stat(filepath.Join(dir, "old.xml"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "ancient.xml"))
	assert.True(t, os.IsNotExist(err))
	// still inside the retention window
	_, err = os.Stat(filepath.Join(dir, "recent.xml"))
	assert.NoError(t, err)
	// non xml files are never touched
	_, err = os.Stat(filepath.Join(dir, "old.txt"))
	assert.NoError(t, err)
}

func TestCleanupStorageCustomAge(t *testing.T) {
	dir := t.TempDir()
	touchFile(t, dir, "week.xml", 8, 100)
	touchFile(t, dir, "fresh.xml", 2, 100)

	imp, _ := newTestImporter(dir)
	result := imp.CleanupStorage(7)

	assert.Equal(t, 1, result.DeletedFiles)
	_, err := os.Stat(filepath.Join(dir, "fresh.xml"))
	assert.NoError(t, err)
}

func TestCleanupStorageMissingDirectory(t *testing.T) {
	imp, _ := newTestImporter(filepath.Join(t.TempDir(), "missing"))
	result := imp.CleanupStorage(0)

	assert.Equal(t, 0, result.DeletedFiles)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "could not list report files")
}

func TestCleanupStorageEmptyDirectory(t *testing.T) {
	imp, _ := newTestImporter(t.TempDir())
	result := imp.CleanupStorage(0)

	assert.Equal(t, 0, result.DeletedFiles)
	assert.Equal(t, int64(0), result.DeletedBytes)
	assert.Empty(t, result.Errors)
}
