// Package archive streams directory trees as zip archives.
package archive

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"drive-go/internal/drive"
)

// Source lists and reads files. drive.Filesystem satisfies it.
type Source interface {
	Walk(root string) ([]string, error)
	Open(path string) (io.ReadCloser, error)
}

// Excluder decides which relative paths stay out of an archive.
type Excluder interface {
	Match(relativePath string) bool
}

// Builder writes zip archives of directories read from a Source.
type Builder struct {
	src     Source
	exclude Excluder
	clock   drive.Clock
}

// NewBuilder creates a Builder. exclude may be nil.
func NewBuilder(src Source, exclude Excluder, clock drive.Clock) *Builder {
	return &Builder{src: src, exclude: exclude, clock: clock}
}

// WriteZip streams every file beneath dir into a deflated zip on w. Entry
// names are slash-separated and relative to dir; directories are implied by
// their files. Any file that cannot be read aborts the archive with
// drive.ErrIOFailure before the central directory is written.
func (b *Builder) WriteZip(dir string, w io.Writer) error {
	dir = strings.TrimSuffix(drive.NormalizePath(dir), "/")

	files, err := b.src.Walk(dir)
	if err != nil {
		return fmt.Errorf("%w: listing %s: %w", drive.ErrIOFailure, dir, err)
	}

	zw := zip.NewWriter(w)
	modified := b.clock.Now()

	for _, p := range files {
		p = drive.NormalizePath(p)
		if !drive.IsDescendant(dir, p) {
			continue
		}
		rel := p[len(dir)+1:]
		if b.exclude != nil && b.exclude.Match(rel) {
			continue
		}
		if err := b.add(zw, p, rel, modified); err != nil {
			// zw stays open so no central directory is ever written.
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finishing archive: %w", drive.ErrIOFailure, err)
	}
	return nil
}

func (b *Builder) add(zw *zip.Writer, p, rel string, modified time.Time) error {
	name, err := entryName(rel)
	if err != nil {
		return err
	}

	f, err := b.src.Open(p)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", drive.ErrIOFailure, p, err)
	}
	defer f.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("%w: adding %s: %w", drive.ErrIOFailure, name, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("%w: reading %s: %w", drive.ErrIOFailure, p, err)
	}
	return nil
}

var _ drive.Archiver = (*Builder)(nil)

// entryName guards against entries that would unpack outside the archive root.
func entryName(rel string) (string, error) {
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("%w: unsafe archive entry %q", drive.ErrInvalidPath, rel)
	}
	return clean, nil
}
