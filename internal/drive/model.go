package drive

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes plain files from directories.
type Kind string

const (
	KindFile      Kind = "FILE"
	KindDirectory Kind = "DIRECTORY"
)

// DirectoryContentType is stored as the content type of directory records.
const DirectoryContentType = "directory"

// FileRecord is the metadata for one file or directory under the storage root.
//
// StoragePath is an absolute, forward-slash path inside the root and doubles
// as the hierarchy key: a record is a descendant of a directory when its path
// starts with the directory's path followed by "/".
type FileRecord struct {
	ID          string
	Name        string
	Kind        Kind
	ContentType string
	// Size is authoritative for files only. Directory sizes are derived from
	// active descendants whenever they are reported.
	Size         int64
	StoragePath  string
	OriginalPath string // set only while trashed
	DeletedAt    *time.Time
	OwnerID      string
	UploadedAt   time.Time
	UpdatedAt    time.Time
}

// IsDir reports whether the record is a directory.
func (r *FileRecord) IsDir() bool { return r.Kind == KindDirectory }

// Trashed reports whether the record is in the trash.
func (r *FileRecord) Trashed() bool { return r.DeletedAt != nil }

// Clone returns a copy that can be modified without touching r.
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// Permission is the level of access a share grant confers.
type Permission string

const (
	PermissionView     Permission = "VIEW"
	PermissionDownload Permission = "DOWNLOAD"
	PermissionEdit     Permission = "EDIT"
	PermissionAll      Permission = "ALL"
)

var permissionRank = map[Permission]int{
	PermissionView:     1,
	PermissionDownload: 2,
	PermissionEdit:     3,
	PermissionAll:      4,
}

// ParsePermission accepts a permission name in any case.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := permissionRank[p]; !ok {
		return "", fmt.Errorf("%w: unknown permission %q", ErrInvalidState, s)
	}
	return p, nil
}

// Valid reports whether p is one of the known permissions.
func (p Permission) Valid() bool {
	_, ok := permissionRank[p]
	return ok
}

// AllowsDownload reports whether content may be read through this permission.
func (p Permission) AllowsDownload() bool {
	return permissionRank[p] >= permissionRank[PermissionDownload]
}

// AllowsEdit reports whether content may be added or removed through this permission.
func (p Permission) AllowsEdit() bool { return p == PermissionEdit || p == PermissionAll }

// Outranks reports whether p grants strictly more than other.
func (p Permission) Outranks(other Permission) bool { return permissionRank[p] > permissionRank[other] }

// ShareGrant gives a recipient access to one record owned by someone else.
// There is at most one grant per (FileID, RecipientID).
type ShareGrant struct {
	ID           string
	FileID       string
	OwnerID      string
	RecipientID  string
	Permission   Permission
	ShareLink    string
	PasswordHash string
	ExpireAt     *time.Time
	CreatedAt    time.Time
}

// User is the subset of account data the drive needs.
type User struct {
	ID       string
	Username string
	Email    string
}

// ShareContext tags a visible record that reached the viewer through sharing.
type ShareContext struct {
	Permission       Permission
	SharedByUsername string
}

// VisibleFile is one entry of a user's effective file list.
type VisibleFile struct {
	Record *FileRecord
	// Share is nil for plain owned records.
	Share *ShareContext
}

// ActivityEntry is a persisted notification.
type ActivityEntry struct {
	ID          int64
	UserID      string
	FileID      string
	Action      string
	Description string
	CreatedAt   time.Time
}
