package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestOSFilesystem_Exists(t *testing.T) {
	dir := t.TempDir()
	m := NewOSFilesystem()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "a.txt"), true},
		{dir, true},
		{filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		got, err := m.Exists(tt.path)
		if err != nil {
			t.Fatalf("Exists(%q) error = %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	isDir, err := m.IsDir(dir)
	if err != nil || !isDir {
		t.Errorf("IsDir(dir) = %v, %v, want true", isDir, err)
	}
	isDir, err = m.IsDir(filepath.Join(dir, "a.txt"))
	if err != nil || isDir {
		t.Errorf("IsDir(file) = %v, %v, want false", isDir, err)
	}
}

func TestOSFilesystem_Move(t *testing.T) {
	t.Run("moves a directory tree", func(t *testing.T) {
		dir := t.TempDir()
		m := NewOSFilesystem()
		writeFile(t, filepath.Join(dir, "docs", "sub", "b.txt"), "b")

		if err := m.Move(filepath.Join(dir, "docs"), filepath.Join(dir, "moved")); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "moved", "sub", "b.txt")); err != nil {
			t.Errorf("moved file missing: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "docs")); !os.IsNotExist(err) {
			t.Errorf("source still present: %v", err)
		}
	})

	t.Run("refuses to replace destination", func(t *testing.T) {
		dir := t.TempDir()
		m := NewOSFilesystem()
		writeFile(t, filepath.Join(dir, "a.txt"), "a")
		writeFile(t, filepath.Join(dir, "b.txt"), "b")

		err := m.Move(filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"))
		if !errors.Is(err, iofs.ErrExist) {
			t.Fatalf("Move() error = %v, want ErrExist", err)
		}
		data, _ := os.ReadFile(filepath.Join(dir, "b.txt"))
		if string(data) != "b" {
			t.Errorf("destination overwritten: %q", data)
		}
	})
}

func TestOSFilesystem_Remove(t *testing.T) {
	dir := t.TempDir()
	m := NewOSFilesystem()
	writeFile(t, filepath.Join(dir, "docs", "a.txt"), "a")

	if err := m.Remove(filepath.Join(dir, "missing"), false); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
	if err := m.Remove(filepath.Join(dir, "docs"), false); err == nil {
		t.Error("Remove(non-empty, false) expected error")
	}
	if err := m.Remove(filepath.Join(dir, "docs"), true); err != nil {
		t.Fatalf("Remove(recursive) error = %v", err)
	}
	if exists, _ := m.Exists(filepath.Join(dir, "docs")); exists {
		t.Error("directory still present after recursive Remove()")
	}
}

func TestOSFilesystem_CreateAndOpen(t *testing.T) {
	dir := t.TempDir()
	m := NewOSFilesystem()
	path := filepath.Join(dir, "upload.txt")

	n, err := m.Create(path, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Create() = %d, want 5", n)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}

	if _, err := m.Create(path, strings.NewReader("again")); !errors.Is(err, iofs.ErrExist) {
		t.Errorf("Create() over existing error = %v, want ErrExist", err)
	}

	rc, err := m.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}

	if _, err := m.Open(dir); err == nil {
		t.Error("Open(dir) expected error")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestOSFilesystem_Create_FailedUploadLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	m := NewOSFilesystem()

	if _, err := m.Create(filepath.Join(dir, "upload.txt"), failingReader{}); err == nil {
		t.Fatal("Create() expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected empty directory, found %d entries", len(entries))
	}
}

func TestOSFilesystem_Walk(t *testing.T) {
	dir := t.TempDir()
	m := NewOSFilesystem()
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "a", "z.txt"), "z")
	writeFile(t, filepath.Join(dir, "a", "deep", "y.txt"), "y")
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := m.Walk(dir)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	root := filepath.ToSlash(dir)
	want := []string{root + "/a/deep/y.txt", root + "/a/z.txt", root + "/b.txt"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Walk() = %v, want %v", got, want)
	}

	if _, err := m.Walk(filepath.Join(dir, "missing")); err == nil {
		t.Error("Walk(missing) expected error")
	}
}
