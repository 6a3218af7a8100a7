package testutil

import (
	"bytes"
	"fmt"
	"io"
	iofs "io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"drive-go/internal/drive"
)

type memEntry struct {
	dir  bool
	data []byte
}

// MemFilesystem is an in-memory drive.Filesystem for testing. The error
// fields inject failures into the matching operations.
type MemFilesystem struct {
	mu      sync.Mutex
	entries map[string]*memEntry

	MoveErr   error
	RemoveErr error
	CreateErr error
	// OpenErr fails Open for specific paths.
	OpenErr map[string]error
}

// NewMemFilesystem creates an empty filesystem containing only "/".
func NewMemFilesystem() *MemFilesystem {
	return &MemFilesystem{
		entries: map[string]*memEntry{"/": {dir: true}},
		OpenErr: make(map[string]error),
	}
}

func clean(p string) string {
	return path.Clean("/" + drive.NormalizePath(p))
}

// AddDirectory creates a directory and its parents.
func (m *MemFilesystem) AddDirectory(p string) {
	if err := m.MkdirAll(p); err != nil {
		panic(err)
	}
}

// AddFile creates a file, and its parents, with the given content.
func (m *MemFilesystem) AddFile(p string, content []byte) {
	m.AddDirectory(path.Dir(clean(p)))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[clean(p)] = &memEntry{data: bytes.Clone(content)}
}

// ReadFile returns a file's content and whether it exists.
func (m *MemFilesystem) ReadFile(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[clean(p)]
	if !ok || e.dir {
		return nil, false
	}
	return bytes.Clone(e.data), true
}

// Paths returns every path in the filesystem, sorted.
func (m *MemFilesystem) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for p := range m.entries {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (m *MemFilesystem) Exists(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[clean(p)]
	return ok, nil
}

func (m *MemFilesystem) IsDir(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[clean(p)]
	return ok && e.dir, nil
}

func (m *MemFilesystem) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAll(clean(p))
}

func (m *MemFilesystem) mkdirAll(p string) error {
	if e, ok := m.entries[p]; ok {
		if !e.dir {
			return fmt.Errorf("mkdir %s: not a directory", p)
		}
		return nil
	}
	if err := m.mkdirAll(path.Dir(p)); err != nil {
		return err
	}
	m.entries[p] = &memEntry{dir: true}
	return nil
}

func (m *MemFilesystem) parentIsDir(p string) bool {
	e, ok := m.entries[path.Dir(p)]
	return ok && e.dir
}

// subtree returns p and every path beneath it.
func (m *MemFilesystem) subtree(p string) []string {
	prefix := strings.TrimSuffix(p, "/") + "/"
	out := []string{p}
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

func (m *MemFilesystem) Move(src, dst string) error {
	if m.MoveErr != nil {
		return m.MoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, dst = clean(src), clean(dst)
	if _, ok := m.entries[src]; !ok {
		return fmt.Errorf("move %s: %w", src, iofs.ErrNotExist)
	}
	if _, ok := m.entries[dst]; ok {
		return fmt.Errorf("move to %s: %w", dst, iofs.ErrExist)
	}
	if !m.parentIsDir(dst) {
		return fmt.Errorf("move to %s: parent %w", dst, iofs.ErrNotExist)
	}
	if drive.IsDescendant(src, dst) {
		return fmt.Errorf("move %s into itself", src)
	}

	for _, k := range m.subtree(src) {
		m.entries[dst+k[len(src):]] = m.entries[k]
		delete(m.entries, k)
	}
	return nil
}

func (m *MemFilesystem) Remove(p string, recursive bool) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if _, ok := m.entries[p]; !ok {
		return nil
	}
	keys := m.subtree(p)
	if len(keys) > 1 && !recursive {
		return fmt.Errorf("remove %s: directory not empty", p)
	}
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemFilesystem) Create(p string, r io.Reader) (int64, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if _, ok := m.entries[p]; ok {
		return 0, fmt.Errorf("create %s: %w", p, iofs.ErrExist)
	}
	if !m.parentIsDir(p) {
		return 0, fmt.Errorf("create %s: parent %w", p, iofs.ErrNotExist)
	}
	m.entries[p] = &memEntry{data: data}
	return int64(len(data)), nil
}

func (m *MemFilesystem) Open(p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = clean(p)
	if err := m.OpenErr[p]; err != nil {
		return nil, err
	}
	e, ok := m.entries[p]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, iofs.ErrNotExist)
	}
	if e.dir {
		return nil, fmt.Errorf("cannot open directory as file: %s", p)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(e.data))), nil
}

func (m *MemFilesystem) Walk(root string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root = clean(root)
	e, ok := m.entries[root]
	if !ok {
		return nil, fmt.Errorf("walk %s: %w", root, iofs.ErrNotExist)
	}
	if !e.dir {
		return nil, fmt.Errorf("walk %s: not a directory", root)
	}

	var files []string
	for _, k := range m.subtree(root)[1:] {
		if !m.entries[k].dir {
			files = append(files, k)
		}
	}
	slices.Sort(files)
	return files, nil
}

// Compile-time check that MemFilesystem implements drive.Filesystem
var _ drive.Filesystem = (*MemFilesystem)(nil)
