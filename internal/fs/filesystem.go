package fs

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charlievieth/fastwalk"

	"drive-go/internal/drive"
)

// OSFilesystem is the real filesystem implementation of drive.Filesystem.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem that operates on the real disk.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// Exists reports whether anything, including a dangling symlink, is at path.
func (m *OSFilesystem) Exists(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether path is a directory. Missing paths are not.
func (m *OSFilesystem) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (m *OSFilesystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// Move renames src to dst, refusing to replace anything at dst.
func (m *OSFilesystem) Move(src, dst string) error {
	exists, err := m.Exists(dst)
	if err != nil {
		return fmt.Errorf("checking destination: %w", err)
	}
	if exists {
		return fmt.Errorf("moving %s: %s: %w", src, dst, iofs.ErrExist)
	}
	return os.Rename(src, dst)
}

func (m *OSFilesystem) Remove(path string, recursive bool) error {
	if recursive {
		return os.RemoveAll(path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}

// Create writes r to a temp file beside path and renames it into place, so a
// partial upload never appears under its final name.
func (m *OSFilesystem) Create(path string, r io.Reader) (int64, error) {
	exists, err := m.Exists(path)
	if err != nil {
		return 0, fmt.Errorf("checking destination: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("creating %s: %w", path, iofs.ErrExist)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

// Open opens a regular file for reading.
func (m *OSFilesystem) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return f, nil
}

// Walk returns the regular files beneath root, slash-separated and sorted.
// Symlinks are not followed. Any unreadable entry fails the walk.
func (m *OSFilesystem) Walk(root string) ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}

	// fastwalk calls back from several goroutines.
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		mu.Lock()
		paths = append(paths, filepath.ToSlash(p))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	slices.Sort(paths)
	return paths, nil
}

// Compile-time check that OSFilesystem implements drive.Filesystem
var _ drive.Filesystem = (*OSFilesystem)(nil)
