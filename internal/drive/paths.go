package drive

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// TrashDirName is the directory under the storage root that holds every
// owner's trash.
const TrashDirName = ".trash"

// PathResolver turns user-supplied names into storage paths and guarantees
// that every path it hands out stays strictly inside the storage root.
type PathResolver struct {
	root string
}

// NewPathResolver makes root absolute and clean.
func NewPathResolver(root string) (*PathResolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: storage root is empty", ErrInvalidPath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving storage root: %w", ErrInvalidPath, err)
	}
	return &PathResolver{root: NormalizePath(filepath.ToSlash(filepath.Clean(abs)))}, nil
}

// Root returns the storage root.
func (p *PathResolver) Root() string { return p.root }

// SafeName reduces name to its last path segment and rejects names that
// could not be used as a single directory entry.
func SafeName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: name contains NUL", ErrInvalidPath)
	}
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	switch name {
	case "", ".", "..":
		return "", fmt.Errorf("%w: unusable name %q", ErrInvalidPath, name)
	}
	return name, nil
}

// Contains cleans p and verifies it lies strictly inside the root.
func (p *PathResolver) Contains(candidate string) (string, error) {
	c := NormalizePath(candidate)
	if !path.IsAbs(c) {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, candidate)
	}
	c = path.Clean(c)
	if !IsDescendant(p.root, c) {
		return "", fmt.Errorf("%w: %q escapes the storage root", ErrInvalidPath, candidate)
	}
	return c, nil
}

// Child composes parent and the safe form of name. parent may be the root
// itself or any path inside it. TrashDirName is reserved at every depth.
func (p *PathResolver) Child(parent, name string) (string, error) {
	safe, err := SafeName(name)
	if err != nil {
		return "", err
	}
	if safe == TrashDirName {
		return "", fmt.Errorf("%w: %q is a reserved name", ErrInvalidPath, safe)
	}
	base := path.Clean(NormalizePath(parent))
	if base != p.root {
		if base, err = p.Contains(base); err != nil {
			return "", err
		}
	}
	return p.Contains(path.Join(base, safe))
}

// UniqueName prefixes the safe form of name with token so concurrent
// uploads of the same name never share a storage path.
func (p *PathResolver) UniqueName(token, name string) (string, error) {
	safe, err := SafeName(name)
	if err != nil {
		return "", err
	}
	if t, err := SafeName(token); err != nil || t != token {
		return "", fmt.Errorf("%w: unusable name token %q", ErrInvalidPath, token)
	}
	return token + "_" + safe, nil
}

// TrashRoot returns the trash directory of ownerID.
func (p *PathResolver) TrashRoot(ownerID string) (string, error) {
	seg, err := SafeName(ownerID)
	if err != nil || seg != ownerID {
		return "", fmt.Errorf("%w: owner id %q is not a path segment", ErrInvalidPath, ownerID)
	}
	return path.Join(p.root, TrashDirName, seg), nil
}

// EnsureNonConflictingPath returns desired if nothing exists there, otherwise
// the first free "name (n).ext" sibling, counting from 1. The extension is
// the suffix from the last dot, unless that dot is the first or last
// character of the name. The result is only free at the time of the check.
func EnsureNonConflictingPath(fsys Filesystem, desired string) (string, error) {
	exists, err := fsys.Exists(desired)
	if err != nil {
		return "", fmt.Errorf("%w: checking %s: %w", ErrIOFailure, desired, err)
	}
	if !exists {
		return desired, nil
	}

	dir, base := path.Split(desired)
	stem, ext := base, ""
	if dot := strings.LastIndex(base, "."); dot > 0 && dot < len(base)-1 {
		stem, ext = base[:dot], base[dot:]
	}

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s%s (%d)%s", dir, stem, n, ext)
		exists, err := fsys.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("%w: checking %s: %w", ErrIOFailure, candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
}
