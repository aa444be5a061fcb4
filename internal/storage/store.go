// Package storage is a thin directory backed store for report files. The
// importer and the retention sweeper only ever need to enumerate .xml files,
// read them, look at their mtime and delete them.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one stored report file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store gives access to a single directory of report files.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store points at.
func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether the store directory exists.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// ListXML returns every file with an .xml extension in the store, sorted by
// name. Enumeration is non recursive, sub directories are ignored.
func (s *Store) ListXML() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", s.dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("could not stat %s: %w", entry.Name(), err)
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Stat returns the info of a single file in the store.
func (s *Store) Stat(name string) (FileInfo, error) {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Read returns the raw content of a file in the store.
func (s *Store) Read(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name)) // nolint: gosec
}

// Remove deletes a file from the store.
func (s *Store) Remove(name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}
