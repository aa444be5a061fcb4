package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListXML(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xml", "a.xml", "c.XML", "notes.txt", "report.xml.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.xml"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := New(dir).ListXML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a.xml", "b.xml", "c.XML"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(files))
	}
	for i, f := range files {
		if f.Name != want[i] {
			t.Errorf("file %d: expected %q, got %q", i, want[i], f.Name)
		}
		if f.Size != 1 {
			t.Errorf("file %s: expected size 1, got %d", f.Name, f.Size)
		}
	}
}

func TestListXMLMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).ListXML()
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !New(dir).Exists() {
		t.Error("expected existing directory")
	}
	if New(filepath.Join(dir, "nope")).Exists() {
		t.Error("expected missing directory")
	}
	// a plain file is not a store
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if New(file).Exists() {
		t.Error("expected a plain file to not count as a store")
	}
}

func TestReadStatRemove(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "r.xml"), []byte("<feedback/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "r.xml"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	st := New(dir)
	content, err := st.Read("r.xml")
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(content) != "<feedback/>" {
		t.Errorf("unexpected content %q", content)
	}

	info, err := st.Stat("r.xml")
	if err != nil {
		t.Fatalf("unexpected stat error: %v", err)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}
	if info.ModTime.Sub(mtime).Abs() > time.Second {
		t.Errorf("expected mtime %s, got %s", mtime, info.ModTime)
	}

	if err := st.Remove("r.xml"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if _, err := st.Stat("r.xml"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected file to be gone, got %v", err)
	}
}
