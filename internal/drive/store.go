package drive

// StateFilter restricts record queries by lifecycle state.
type StateFilter int

const (
	AnyState StateFilter = iota
	ActiveOnly
	TrashedOnly
)

// Matches reports whether r passes the filter.
func (f StateFilter) Matches(r *FileRecord) bool {
	switch f {
	case ActiveOnly:
		return !r.Trashed()
	case TrashedOnly:
		return r.Trashed()
	default:
		return true
	}
}

// MetadataStore persists file records. Find methods return (nil, nil) when
// nothing matches.
type MetadataStore interface {
	FindFileByID(id string) (*FileRecord, error)

	// FindFilesByOwner returns the owner's records ordered by upload time.
	FindFilesByOwner(ownerID string, filter StateFilter) ([]*FileRecord, error)

	// FindFilesByPathPrefix returns records whose storage path equals prefix
	// or lies beneath it. LIKE wildcards in prefix are matched literally.
	FindFilesByPathPrefix(prefix string, filter StateFilter) ([]*FileRecord, error)

	// SaveFile inserts or updates one record.
	SaveFile(record *FileRecord) error

	// SaveFiles inserts or updates all records in a single transaction.
	SaveFiles(records []*FileRecord) error

	// DeleteFile removes a record and any share grants referencing it.
	DeleteFile(id string) error

	// DeleteFiles removes all records and their grants in a single transaction.
	DeleteFiles(ids []string) error
}

// ShareStore persists share grants.
type ShareStore interface {
	FindShareByID(id string) (*ShareGrant, error)
	FindShareByLink(link string) (*ShareGrant, error)
	FindShareByFileAndRecipient(fileID, recipientID string) (*ShareGrant, error)
	FindSharesByRecipient(recipientID string) ([]*ShareGrant, error)
	FindSharesByOwner(ownerID string) ([]*ShareGrant, error)
	FindSharesByFile(fileID string) ([]*ShareGrant, error)
	SaveShare(grant *ShareGrant) error
	DeleteShare(id string) error
}

// UserDirectory looks up accounts managed outside the drive.
type UserDirectory interface {
	FindUserByID(id string) (*User, error)
	FindUserByEmail(email string) (*User, error)
}
