package drive

import (
	"fmt"
	"time"
)

// EffectiveFiles lists everything userID can see, each record once, in this
// order of precedence:
//
//  1. active records the user owns, tagged when also shared with the user
//  2. records shared directly with the user
//  3. active descendants of folders shared with the user, tagged with that grant
//  4. active descendants of folders the user owns and has shared, untagged
//
// Directory sizes are the totals of active files beneath them.
func (s *Service) EffectiveFiles(userID string) (files []VisibleFile, err error) {
	defer s.observe("effective_files", time.Now(), &err)

	v := &visibility{
		svc:       s,
		seen:      make(map[string]bool),
		usernames: make(map[string]string),
	}

	received, err := s.shares.FindSharesByRecipient(userID)
	if err != nil {
		return nil, fmt.Errorf("finding shares for %s: %w", userID, err)
	}
	direct := make(map[string]*ShareGrant, len(received))
	for _, g := range received {
		if _, ok := direct[g.FileID]; !ok {
			direct[g.FileID] = g
		}
	}

	owned, err := s.files.FindFilesByOwner(userID, ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("finding files of %s: %w", userID, err)
	}
	for _, r := range owned {
		var ctx *ShareContext
		if g, ok := direct[r.ID]; ok {
			if ctx, err = v.context(g); err != nil {
				return nil, err
			}
		}
		v.add(r, ctx)
	}

	type sharedDir struct {
		rec *FileRecord
		ctx *ShareContext
	}
	var dirs []sharedDir
	for _, g := range received {
		r, err := s.files.FindFileByID(g.FileID)
		if err != nil {
			return nil, fmt.Errorf("finding shared file %s: %w", g.FileID, err)
		}
		if r == nil || r.Trashed() {
			continue
		}
		ctx, err := v.context(g)
		if err != nil {
			return nil, err
		}
		v.add(r, ctx)
		if r.IsDir() {
			dirs = append(dirs, sharedDir{rec: r, ctx: ctx})
		}
	}

	for _, d := range dirs {
		sub, err := v.scan(d.rec.StoragePath)
		if err != nil {
			return nil, err
		}
		for _, r := range sub {
			v.add(r, d.ctx)
		}
	}

	given, err := s.shares.FindSharesByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("finding shares issued by %s: %w", userID, err)
	}
	done := make(map[string]bool)
	for _, g := range given {
		if done[g.FileID] {
			continue
		}
		done[g.FileID] = true
		r, err := s.files.FindFileByID(g.FileID)
		if err != nil {
			return nil, fmt.Errorf("finding shared file %s: %w", g.FileID, err)
		}
		if r == nil || r.Trashed() || !r.IsDir() || r.OwnerID != userID {
			continue
		}
		sub, err := v.scan(r.StoragePath)
		if err != nil {
			return nil, err
		}
		for _, c := range sub {
			v.add(c, nil)
		}
	}

	if err := v.fillSizes(); err != nil {
		return nil, err
	}
	return v.out, nil
}

// visibility accumulates one EffectiveFiles result.
type visibility struct {
	svc       *Service
	out       []VisibleFile
	seen      map[string]bool
	usernames map[string]string
	// every record fetched by subtree scans, and the roots scanned, so
	// sizes can be computed without fetching again
	scannedRoots []string
	scanned      []*FileRecord
}

func (v *visibility) add(r *FileRecord, ctx *ShareContext) {
	if v.seen[r.ID] {
		return
	}
	v.seen[r.ID] = true
	v.out = append(v.out, VisibleFile{Record: r.Clone(), Share: ctx})
}

func (v *visibility) scan(root string) ([]*FileRecord, error) {
	sub, err := v.svc.subtree(root, ActiveOnly)
	if err != nil {
		return nil, err
	}
	v.scannedRoots = append(v.scannedRoots, root)
	v.scanned = append(v.scanned, sub...)
	return sub, nil
}

func (v *visibility) covered(p string) bool {
	for _, root := range v.scannedRoots {
		if p == root || IsDescendant(root, p) {
			return true
		}
	}
	return false
}

func (v *visibility) context(g *ShareGrant) (*ShareContext, error) {
	name, ok := v.usernames[g.OwnerID]
	if !ok {
		u, err := v.svc.users.FindUserByID(g.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("finding user %s: %w", g.OwnerID, err)
		}
		name = g.OwnerID
		if u != nil {
			name = u.Username
		}
		v.usernames[g.OwnerID] = name
	}
	return &ShareContext{Permission: g.Permission, SharedByUsername: name}, nil
}

// fillSizes overwrites directory sizes with their active file totals. Only
// the topmost directories not already scanned are fetched.
func (v *visibility) fillSizes() error {
	var dirs []*FileRecord
	for _, f := range v.out {
		if f.Record.IsDir() {
			dirs = append(dirs, f.Record)
		}
	}
	if len(dirs) == 0 {
		return nil
	}

	for _, top := range NewIndex(dirs).TopLevel() {
		if v.covered(top.StoragePath) {
			continue
		}
		if _, err := v.scan(top.StoragePath); err != nil {
			return err
		}
	}

	idx := NewIndex(v.scanned)
	for _, d := range dirs {
		d.Size = idx.DirectorySize(d.StoragePath, ActiveOnly)
	}
	return nil
}
