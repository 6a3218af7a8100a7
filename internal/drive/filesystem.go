package drive

import "io"

// Filesystem is the byte store under the storage root. Paths are absolute
// and forward-slash separated.
type Filesystem interface {
	Exists(path string) (bool, error)
	IsDir(path string) (bool, error)
	MkdirAll(path string) error

	// Move renames src to dst. The parent of dst must exist and dst must not.
	Move(src, dst string) error

	// Remove deletes path. Missing paths are not an error. A non-empty
	// directory requires recursive.
	Remove(path string, recursive bool) error

	// Create writes r to a new file at path and returns the bytes written.
	Create(path string, r io.Reader) (int64, error)

	Open(path string) (io.ReadCloser, error)

	// Walk returns every regular file beneath root in lexical order.
	Walk(root string) ([]string, error)
}

// Archiver streams a zip of a directory tree.
type Archiver interface {
	WriteZip(dir string, w io.Writer) error
}
