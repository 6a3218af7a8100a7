package drive

import (
	"fmt"
	"path"
	"time"
)

// DeleteKind says what a delete request resolved to.
type DeleteKind int

const (
	// DeleteUnshare removes the actor's own grant and leaves the record alone.
	DeleteUnshare DeleteKind = iota + 1
	// DeleteSoftDelete moves the record and its subtree to the owner's trash.
	DeleteSoftDelete
)

func (k DeleteKind) String() string {
	switch k {
	case DeleteUnshare:
		return "unshare"
	case DeleteSoftDelete:
		return "soft-delete"
	default:
		return "unknown"
	}
}

// ResolvedAction is the outcome of authorizing a delete request.
type ResolvedAction struct {
	Kind   DeleteKind
	Record *FileRecord
	Grant  *ShareGrant // set for DeleteUnshare
}

// ResolveDelete decides what deleting id means for actor without changing
// anything. A record shared directly with the actor resolves to removing
// that grant. Owners, and holders of EDIT or ALL on a folder above the
// record, move it to the trash. Anyone else is forbidden.
func (s *Service) ResolveDelete(actor, id string) (ResolvedAction, error) {
	rec, err := s.findFile(id)
	if err != nil {
		return ResolvedAction{}, err
	}

	grant, err := s.shares.FindShareByFileAndRecipient(id, actor)
	if err != nil {
		return ResolvedAction{}, fmt.Errorf("finding share of %s for %s: %w", id, actor, err)
	}
	if grant != nil {
		return ResolvedAction{Kind: DeleteUnshare, Record: rec, Grant: grant}, nil
	}

	acc, err := s.accessFor(actor, rec)
	if err != nil {
		return ResolvedAction{}, err
	}
	if acc.owns || acc.ownsAncestor || acc.inherited.AllowsEdit() {
		return ResolvedAction{Kind: DeleteSoftDelete, Record: rec}, nil
	}
	return ResolvedAction{}, fmt.Errorf("%w: %s may not delete %s", ErrForbidden, actor, id)
}

// SoftDelete resolves and performs a delete request. The returned action
// reports whether a grant was removed or the record went to the trash.
func (s *Service) SoftDelete(actor, id string) (action ResolvedAction, err error) {
	defer s.observe("soft_delete", time.Now(), &err)

	action, err = s.ResolveDelete(actor, id)
	if err != nil {
		return ResolvedAction{}, err
	}

	switch action.Kind {
	case DeleteUnshare:
		if err := s.removeGrant(actor, action.Grant, action.Record); err != nil {
			return ResolvedAction{}, err
		}
	case DeleteSoftDelete:
		moved, err := s.moveToTrash(actor, action.Record)
		if err != nil {
			return ResolvedAction{}, err
		}
		action.Record = moved
	}
	return action, nil
}

func (s *Service) moveToTrash(actor string, rec *FileRecord) (*FileRecord, error) {
	if rec.Trashed() {
		return nil, fmt.Errorf("%w: %s is already in the trash", ErrInvalidState, rec.ID)
	}
	current, err := s.paths.Contains(rec.StoragePath)
	if err != nil {
		return nil, err
	}

	trashRoot, err := s.paths.TrashRoot(rec.OwnerID)
	if err != nil {
		return nil, err
	}
	if err := s.fsys.MkdirAll(trashRoot); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIOFailure, trashRoot, err)
	}
	target, err := s.paths.Child(trashRoot, rec.Name)
	if err != nil {
		return nil, err
	}
	if target, err = EnsureNonConflictingPath(s.fsys, target); err != nil {
		return nil, err
	}

	var descendants []*FileRecord
	if rec.IsDir() {
		if descendants, err = s.subtree(current, ActiveOnly); err != nil {
			return nil, err
		}
	}

	if err := s.fsys.Move(current, target); err != nil {
		return nil, fmt.Errorf("%w: moving %s to trash: %w", ErrIOFailure, current, err)
	}

	now := s.clock.Now()
	root := rec.Clone()
	root.OriginalPath = current
	root.StoragePath = target
	root.DeletedAt = &now
	root.UpdatedAt = now

	updated := append(make([]*FileRecord, 0, len(descendants)+1), root)
	for _, d := range descendants {
		c := d.Clone()
		c.OriginalPath = d.StoragePath
		c.StoragePath = Rebase(d.StoragePath, current, target)
		c.DeletedAt = &now
		c.UpdatedAt = now
		updated = append(updated, c)
	}

	if err := s.files.SaveFiles(updated); err != nil {
		s.logger.Error("trash commit failed after move", "id", rec.ID, "from", current, "to", target, "error", err)
		return nil, fmt.Errorf("%w: recording trash move of %s: %w", ErrInconsistentState, rec.ID, err)
	}

	s.logger.Info("moved to trash", "id", rec.ID, "from", current, "to", target, "descendants", len(descendants))
	s.emit(actor, root, ActionDelete)
	return root, nil
}

// Restore moves a trashed record back to where it was deleted from, or to
// the root when that location is unknown or its folder is no longer active.
// A taken location gets a " (n)" suffix. Descendants that went to the trash
// with it come back too.
func (s *Service) Restore(actor, id string) (rec *FileRecord, err error) {
	defer s.observe("restore", time.Now(), &err)

	rec, err = s.findFile(id)
	if err != nil {
		return nil, err
	}
	if !rec.Trashed() {
		return nil, fmt.Errorf("%w: %s is not in the trash", ErrInvalidState, id)
	}
	if rec.OwnerID != actor {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrForbidden, actor, id)
	}

	trashPath, err := s.paths.Contains(rec.StoragePath)
	if err != nil {
		return nil, err
	}
	var target string
	if rec.OriginalPath != "" {
		target, err = s.paths.Contains(rec.OriginalPath)
	} else {
		target, err = s.paths.Child(s.paths.Root(), rec.Name)
	}
	if err != nil {
		return nil, err
	}
	// Items whose folder is no longer an active record come back at the root.
	if parent := path.Dir(target); parent != s.paths.Root() {
		ok, err := s.activeDirectory(parent)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Info("original folder is gone, restoring to root", "id", id, "folder", parent)
			target = path.Join(s.paths.Root(), path.Base(target))
		}
	}
	if target, err = EnsureNonConflictingPath(s.fsys, target); err != nil {
		return nil, err
	}

	var descendants []*FileRecord
	if rec.IsDir() {
		if descendants, err = s.subtree(trashPath, TrashedOnly); err != nil {
			return nil, err
		}
	}

	if err := s.fsys.MkdirAll(path.Dir(target)); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrIOFailure, path.Dir(target), err)
	}
	if err := s.fsys.Move(trashPath, target); err != nil {
		return nil, fmt.Errorf("%w: restoring %s: %w", ErrIOFailure, trashPath, err)
	}

	now := s.clock.Now()
	root := rec.Clone()
	root.StoragePath = target
	root.OriginalPath = ""
	root.DeletedAt = nil
	root.UpdatedAt = now

	// Descendants go back to their recorded location only while it still
	// sits under the restored root; otherwise they follow the root.
	backHome := target == rec.OriginalPath
	updated := append(make([]*FileRecord, 0, len(descendants)+1), root)
	for _, d := range descendants {
		c := d.Clone()
		if backHome && IsDescendant(target, d.OriginalPath) {
			c.StoragePath = d.OriginalPath
		} else {
			c.StoragePath = Rebase(d.StoragePath, trashPath, target)
		}
		c.OriginalPath = ""
		c.DeletedAt = nil
		c.UpdatedAt = now
		updated = append(updated, c)
	}

	if err := s.files.SaveFiles(updated); err != nil {
		s.logger.Error("restore commit failed after move", "id", id, "from", trashPath, "to", target, "error", err)
		return nil, fmt.Errorf("%w: recording restore of %s: %w", ErrInconsistentState, id, err)
	}

	s.logger.Info("restored from trash", "id", id, "from", trashPath, "to", target, "descendants", len(descendants))
	s.emit(actor, root, ActionRestore)
	return root, nil
}

// Purge permanently removes a record, its bytes and, for folders, everything
// beneath it. It works on trashed and active records alike.
func (s *Service) Purge(actor, id string) (err error) {
	defer s.observe("purge", time.Now(), &err)

	rec, err := s.findFile(id)
	if err != nil {
		return err
	}
	if rec.OwnerID != actor {
		return fmt.Errorf("%w: %s does not own %s", ErrForbidden, actor, id)
	}
	p, err := s.paths.Contains(rec.StoragePath)
	if err != nil {
		return err
	}

	if !rec.IsDir() {
		if err := s.fsys.Remove(p, false); err != nil {
			return fmt.Errorf("%w: removing %s: %w", ErrIOFailure, p, err)
		}
		if err := s.files.DeleteFile(rec.ID); err != nil {
			s.logger.Error("purge commit failed after remove", "id", id, "path", p, "error", err)
			return fmt.Errorf("%w: deleting record %s: %w", ErrInconsistentState, id, err)
		}
		s.logger.Info("purged", "id", id, "path", p)
		s.emit(actor, rec, ActionPurge)
		return nil
	}

	descendants, err := s.subtree(p, AnyState)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(descendants)+1)
	ids = append(ids, rec.ID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}

	if err := s.fsys.Remove(p, true); err != nil {
		return fmt.Errorf("%w: removing %s: %w", ErrIOFailure, p, err)
	}
	if err := s.files.DeleteFiles(ids); err != nil {
		s.logger.Error("purge commit failed after remove", "id", id, "path", p, "records", len(ids), "error", err)
		return fmt.Errorf("%w: deleting records under %s: %w", ErrInconsistentState, p, err)
	}

	s.logger.Info("purged", "id", id, "path", p, "records", len(ids))
	s.emit(actor, rec, ActionPurge)
	return nil
}

// ListTrash returns the actor's trashed items. Records that went to the
// trash inside a trashed folder are represented by that folder, whose size
// is the total of the files it carries.
func (s *Service) ListTrash(actor string) (items []*FileRecord, err error) {
	defer s.observe("list_trash", time.Now(), &err)

	trashed, err := s.files.FindFilesByOwner(actor, TrashedOnly)
	if err != nil {
		return nil, fmt.Errorf("finding trash of %s: %w", actor, err)
	}
	idx := NewIndex(trashed)
	for _, r := range idx.TopLevel() {
		c := r.Clone()
		if c.IsDir() {
			c.Size = idx.DirectorySize(c.StoragePath, TrashedOnly)
		}
		items = append(items, c)
	}
	return items, nil
}
