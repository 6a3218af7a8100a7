package drive

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of an upload is inspected for its content type.
const sniffLen = 3072

// Upload stores r as a new file of actor at the top of the storage root.
func (s *Service) Upload(actor, name string, r io.Reader) (rec *FileRecord, err error) {
	defer s.observe("upload", time.Now(), &err)
	return s.storeUpload(actor, s.paths.Root(), name, r)
}

// UploadToFolder stores r inside an existing folder. The actor must own the
// folder or hold EDIT or ALL on it or on a folder above it. The uploader owns
// the new file.
func (s *Service) UploadToFolder(actor, folderID, name string, r io.Reader) (rec *FileRecord, err error) {
	defer s.observe("upload", time.Now(), &err)

	folder, err := s.writableFolder(actor, folderID)
	if err != nil {
		return nil, err
	}
	return s.storeUpload(actor, folder.StoragePath, name, r)
}

// CreateFolder makes a new directory named name, at the root when parentID
// is empty. An existing folder of the same name is kept and the new one gets
// a " (n)" suffix; an existing file of that name is a conflict.
func (s *Service) CreateFolder(actor, parentID, name string) (rec *FileRecord, err error) {
	defer s.observe("create_folder", time.Now(), &err)

	parent := s.paths.Root()
	if parentID != "" {
		folder, err := s.writableFolder(actor, parentID)
		if err != nil {
			return nil, err
		}
		parent = folder.StoragePath
	}

	target, err := s.paths.Child(parent, name)
	if err != nil {
		return nil, err
	}

	exists, err := s.fsys.Exists(target)
	if err != nil {
		return nil, fmt.Errorf("%w: checking %s: %w", ErrIOFailure, target, err)
	}
	if exists {
		isDir, err := s.fsys.IsDir(target)
		if err != nil {
			return nil, fmt.Errorf("%w: checking %s: %w", ErrIOFailure, target, err)
		}
		if !isDir {
			return nil, fmt.Errorf("%w: a file named %q already exists", ErrConflict, path.Base(target))
		}
		if target, err = EnsureNonConflictingPath(s.fsys, target); err != nil {
			return nil, err
		}
	}

	if err := s.fsys.MkdirAll(target); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIOFailure, target, err)
	}

	now := s.clock.Now()
	rec = &FileRecord{
		ID:          s.idgen.New(),
		Name:        path.Base(target),
		Kind:        KindDirectory,
		ContentType: DirectoryContentType,
		StoragePath: target,
		OwnerID:     actor,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if err := s.files.SaveFile(rec); err != nil {
		s.logger.Error("folder created without metadata", "path", target, "error", err)
		return nil, fmt.Errorf("%w: saving folder %s: %w", ErrInconsistentState, target, err)
	}

	s.logger.Info("folder created", "id", rec.ID, "path", target, "owner", actor)
	s.emit(actor, rec, ActionCreateFolder)
	return rec, nil
}

// writableFolder loads an active folder the actor may add content to.
func (s *Service) writableFolder(actor, folderID string) (*FileRecord, error) {
	folder, err := s.findFile(folderID)
	if err != nil {
		return nil, err
	}
	if folder.Trashed() {
		return nil, fmt.Errorf("%w: folder %s is in the trash", ErrNotFound, folderID)
	}
	if !folder.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a folder", ErrInvalidState, folderID)
	}
	if _, err := s.paths.Contains(folder.StoragePath); err != nil {
		return nil, err
	}

	acc, err := s.accessFor(actor, folder)
	if err != nil {
		return nil, err
	}
	if !acc.canEdit() {
		return nil, fmt.Errorf("%w: %s may not add content to folder %s", ErrForbidden, actor, folderID)
	}
	return folder, nil
}

func (s *Service) storeUpload(actor, dir, name string, r io.Reader) (*FileRecord, error) {
	safe, err := SafeName(name)
	if err != nil {
		return nil, err
	}
	unique, err := s.paths.UniqueName(s.idgen.New(), safe)
	if err != nil {
		return nil, err
	}
	target, err := s.paths.Child(dir, unique)
	if err != nil {
		return nil, err
	}

	if err := s.fsys.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIOFailure, dir, err)
	}

	br := bufio.NewReaderSize(r, sniffLen)
	// Short inputs return io.EOF here; real read errors surface from Create.
	head, _ := br.Peek(sniffLen)
	contentType := mimetype.Detect(head).String()

	n, err := s.fsys.Create(target, br)
	if err != nil {
		return nil, fmt.Errorf("%w: writing %s: %w", ErrIOFailure, target, err)
	}

	now := s.clock.Now()
	rec := &FileRecord{
		ID:          s.idgen.New(),
		Name:        safe,
		Kind:        KindFile,
		ContentType: contentType,
		Size:        n,
		StoragePath: target,
		OwnerID:     actor,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if err := s.files.SaveFile(rec); err != nil {
		s.logger.Error("upload stored without metadata", "path", target, "error", err)
		return nil, fmt.Errorf("%w: saving metadata for %s: %w", ErrInconsistentState, target, err)
	}

	s.logger.Info("file uploaded", "id", rec.ID, "path", target, "size", n, "type", contentType)
	s.emit(actor, rec, ActionUpload)
	return rec, nil
}
