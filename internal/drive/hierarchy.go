package drive

import (
	"path"
	"slices"
	"sort"
	"strings"
)

// NormalizePath converts backslashes to forward slashes. Case is preserved.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// IsDescendant reports whether candidate lies beneath ancestor. A path is not
// its own descendant.
func IsDescendant(ancestor, candidate string) bool {
	prefix := strings.TrimSuffix(NormalizePath(ancestor), "/") + "/"
	c := NormalizePath(candidate)
	return len(c) > len(prefix) && strings.HasPrefix(c, prefix)
}

// Rebase moves p from under oldPrefix to under newPrefix. Paths outside
// oldPrefix are returned unchanged.
func Rebase(p, oldPrefix, newPrefix string) string {
	p = NormalizePath(p)
	oldPrefix = NormalizePath(oldPrefix)
	if p == oldPrefix {
		return newPrefix
	}
	if !IsDescendant(oldPrefix, p) {
		return p
	}
	return strings.TrimSuffix(newPrefix, "/") + p[len(strings.TrimSuffix(oldPrefix, "/")):]
}

// Index holds a set of records keyed by id with a sorted path index. All
// descendants of a path occupy one contiguous run of the sorted index.
type Index struct {
	byID   map[string]*FileRecord
	keys   []string
	sorted []*FileRecord
}

// NewIndex builds an index. When ids repeat, the first record wins.
func NewIndex(records []*FileRecord) *Index {
	x := &Index{byID: make(map[string]*FileRecord, len(records))}
	for _, r := range records {
		if _, ok := x.byID[r.ID]; ok {
			continue
		}
		x.byID[r.ID] = r
		x.sorted = append(x.sorted, r)
	}
	slices.SortFunc(x.sorted, func(a, b *FileRecord) int {
		return strings.Compare(NormalizePath(a.StoragePath), NormalizePath(b.StoragePath))
	})
	x.keys = make([]string, len(x.sorted))
	for i, r := range x.sorted {
		x.keys[i] = NormalizePath(r.StoragePath)
	}
	return x
}

func (x *Index) Len() int { return len(x.sorted) }

// Get returns the record with id, or nil.
func (x *Index) Get(id string) *FileRecord { return x.byID[id] }

// Records returns all records in path order.
func (x *Index) Records() []*FileRecord { return slices.Clone(x.sorted) }

// Descendants returns the records beneath p in path order.
func (x *Index) Descendants(p string) []*FileRecord {
	prefix := strings.TrimSuffix(NormalizePath(p), "/") + "/"
	i := sort.SearchStrings(x.keys, prefix)
	var out []*FileRecord
	for ; i < len(x.keys) && strings.HasPrefix(x.keys[i], prefix); i++ {
		if len(x.keys[i]) > len(prefix) {
			out = append(out, x.sorted[i])
		}
	}
	return out
}

// DirectorySize sums the sizes of the files beneath p that pass filter.
func (x *Index) DirectorySize(p string, filter StateFilter) int64 {
	var total int64
	for _, r := range x.Descendants(p) {
		if r.Kind == KindFile && filter.Matches(r) {
			total += r.Size
		}
	}
	return total
}

// TopLevel returns the records that have no ancestor in the index.
func (x *Index) TopLevel() []*FileRecord {
	present := make(map[string]bool, len(x.keys))
	for _, k := range x.keys {
		present[k] = true
	}
	var out []*FileRecord
	for i, r := range x.sorted {
		nested := false
		for dir := path.Dir(x.keys[i]); dir != "/" && dir != "."; dir = path.Dir(dir) {
			if present[dir] {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r)
		}
	}
	return out
}
