package drive

import (
	"fmt"
	"time"
)

// Store is the full persistence surface the service needs.
type Store interface {
	MetadataStore
	ShareStore
	UserDirectory
}

// Service owns the file lifecycle under one storage root: uploads and
// folders, the trash, sharing and downloads. Every operation takes the
// acting user explicitly.
type Service struct {
	paths    *PathResolver
	files    MetadataStore
	shares   ShareStore
	users    UserDirectory
	fsys     Filesystem
	archiver Archiver
	notifier Notifier
	metrics  Metrics
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier sets where committed mutations are announced.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics sets the operation observer.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service with the provided dependencies. Notifications
// and metrics are discarded unless set through options.
func NewService(paths *PathResolver, store Store, fsys Filesystem, archiver Archiver, logger Logger, clock Clock, idgen IDGenerator, opts ...Option) *Service {
	s := &Service{
		paths:    paths,
		files:    store,
		shares:   store,
		users:    store,
		fsys:     fsys,
		archiver: archiver,
		notifier: NopNotifier{},
		metrics:  NopMetrics{},
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the storage root.
func (s *Service) Root() string { return s.paths.Root() }

func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, *err, time.Since(start))
}

func (s *Service) emit(userID string, rec *FileRecord, action string) {
	ev := Event{UserID: userID, Action: action, At: s.clock.Now()}
	if rec != nil {
		ev.FileID = rec.ID
		ev.Name = rec.Name
	}
	s.notifier.Notify(ev)
}

// findFile loads a record and maps absence to ErrNotFound.
func (s *Service) findFile(id string) (*FileRecord, error) {
	rec, err := s.files.FindFileByID(id)
	if err != nil {
		return nil, fmt.Errorf("finding file %s: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	return rec, nil
}

// subtree returns the records strictly beneath p that pass filter.
func (s *Service) subtree(p string, filter StateFilter) ([]*FileRecord, error) {
	records, err := s.files.FindFilesByPathPrefix(p, filter)
	if err != nil {
		return nil, fmt.Errorf("finding records under %s: %w", p, err)
	}
	out := records[:0]
	for _, r := range records {
		if IsDescendant(p, r.StoragePath) {
			out = append(out, r)
		}
	}
	return out, nil
}

// activeDirectory reports whether p is the storage path of an ACTIVE
// directory record.
func (s *Service) activeDirectory(p string) (bool, error) {
	records, err := s.files.FindFilesByPathPrefix(p, ActiveOnly)
	if err != nil {
		return false, fmt.Errorf("finding records under %s: %w", p, err)
	}
	for _, r := range records {
		if r.StoragePath == p {
			return r.IsDir(), nil
		}
	}
	return false, nil
}

// access is what an actor may do with one record.
type access struct {
	owns         bool
	ownsAncestor bool
	// best permission granted on the record or on a directory above it
	permission Permission
	// best permission granted on a directory above the record only
	inherited Permission
}

func (a access) canEdit() bool {
	return a.owns || a.ownsAncestor || a.permission.AllowsEdit()
}

func (a access) canDownload() bool {
	return a.owns || a.ownsAncestor || a.permission.AllowsDownload()
}

func best(a, b Permission) Permission {
	if b.Outranks(a) {
		return b
	}
	return a
}

// accessFor works out the actor's standing on rec from ownership, direct
// grants and grants or ownership of active ancestor directories.
func (s *Service) accessFor(actor string, rec *FileRecord) (access, error) {
	var a access
	if rec.OwnerID == actor {
		a.owns = true
		return a, nil
	}

	grants, err := s.shares.FindSharesByRecipient(actor)
	if err != nil {
		return a, fmt.Errorf("finding shares for %s: %w", actor, err)
	}
	for _, g := range grants {
		if g.FileID == rec.ID {
			a.permission = best(a.permission, g.Permission)
			continue
		}
		dir, err := s.files.FindFileByID(g.FileID)
		if err != nil {
			return a, fmt.Errorf("finding shared file %s: %w", g.FileID, err)
		}
		if dir == nil || !dir.IsDir() || dir.Trashed() {
			continue
		}
		if IsDescendant(dir.StoragePath, rec.StoragePath) {
			a.permission = best(a.permission, g.Permission)
			a.inherited = best(a.inherited, g.Permission)
		}
	}

	owned, err := s.files.FindFilesByOwner(actor, ActiveOnly)
	if err != nil {
		return a, fmt.Errorf("finding files of %s: %w", actor, err)
	}
	for _, d := range owned {
		if d.IsDir() && IsDescendant(d.StoragePath, rec.StoragePath) {
			a.ownsAncestor = true
			break
		}
	}
	return a, nil
}
