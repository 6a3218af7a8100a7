package drive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ShareFolder grants recipientID access to a folder owned by owner. Sharing
// the same folder with the same recipient again only changes the permission.
func (s *Service) ShareFolder(owner, folderID, recipientID string, perm Permission) (grant *ShareGrant, err error) {
	defer s.observe("share", time.Now(), &err)

	if !perm.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidState, perm)
	}
	folder, err := s.findFile(folderID)
	if err != nil {
		return nil, err
	}
	if folder.Trashed() {
		return nil, fmt.Errorf("%w: folder %s is in the trash", ErrNotFound, folderID)
	}
	if !folder.IsDir() {
		return nil, fmt.Errorf("%w: only folders can be shared", ErrInvalidState)
	}
	if folder.OwnerID != owner {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrForbidden, owner, folderID)
	}
	if recipientID == owner {
		return nil, fmt.Errorf("%w: cannot share a folder with its owner", ErrInvalidState)
	}
	recipient, err := s.users.FindUserByID(recipientID)
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", recipientID, err)
	}
	if recipient == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, recipientID)
	}

	grant, err = s.shares.FindShareByFileAndRecipient(folderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("finding existing share: %w", err)
	}
	if grant == nil {
		grant = &ShareGrant{
			ID:          s.idgen.New(),
			FileID:      folderID,
			OwnerID:     owner,
			RecipientID: recipientID,
			ShareLink:   s.idgen.New(),
			CreatedAt:   s.clock.Now(),
		}
	}
	grant.Permission = perm

	if err := s.shares.SaveShare(grant); err != nil {
		return nil, fmt.Errorf("saving share: %w", err)
	}

	s.logger.Info("folder shared", "folder", folderID, "recipient", recipientID, "permission", perm)
	s.emit(recipientID, folder, ActionShare)
	return grant, nil
}

// ShareFolderByEmail is ShareFolder with the recipient looked up by e-mail.
func (s *Service) ShareFolderByEmail(owner, folderID, email string, perm Permission) (*ShareGrant, error) {
	user, err := s.users.FindUserByEmail(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no user with email %q", ErrNotFound, email)
	}
	return s.ShareFolder(owner, folderID, user.ID, perm)
}

// UpdateSharePermission changes the permission of a grant the actor issued.
func (s *Service) UpdateSharePermission(actor, grantID string, perm Permission) (*ShareGrant, error) {
	if !perm.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidState, perm)
	}
	grant, err := s.findShare(grantID)
	if err != nil {
		return nil, err
	}
	if grant.OwnerID != actor {
		return nil, fmt.Errorf("%w: %s did not issue share %s", ErrForbidden, actor, grantID)
	}
	grant.Permission = perm
	if err := s.shares.SaveShare(grant); err != nil {
		return nil, fmt.Errorf("saving share: %w", err)
	}
	return grant, nil
}

// RevokeShare deletes a grant. Either side of the grant may revoke it.
func (s *Service) RevokeShare(actor, grantID string) (err error) {
	defer s.observe("unshare", time.Now(), &err)

	grant, err := s.findShare(grantID)
	if err != nil {
		return err
	}
	if actor != grant.OwnerID && actor != grant.RecipientID {
		return fmt.Errorf("%w: %s is not party to share %s", ErrForbidden, actor, grantID)
	}
	rec, err := s.files.FindFileByID(grant.FileID)
	if err != nil {
		return fmt.Errorf("finding shared file %s: %w", grant.FileID, err)
	}
	return s.removeGrant(actor, grant, rec)
}

// ListFolderShares returns the grants on a folder. Only its owner may ask.
func (s *Service) ListFolderShares(actor, folderID string) ([]*ShareGrant, error) {
	folder, err := s.findFile(folderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != actor {
		return nil, fmt.Errorf("%w: %s does not own %s", ErrForbidden, actor, folderID)
	}
	grants, err := s.shares.FindSharesByFile(folderID)
	if err != nil {
		return nil, fmt.Errorf("finding shares of %s: %w", folderID, err)
	}
	return grants, nil
}

// ProtectShareLink sets or clears the password and expiry of a grant's link.
// An empty password removes the password.
func (s *Service) ProtectShareLink(actor, grantID, password string, expireAt *time.Time) (*ShareGrant, error) {
	grant, err := s.findShare(grantID)
	if err != nil {
		return nil, err
	}
	if grant.OwnerID != actor {
		return nil, fmt.Errorf("%w: %s did not issue share %s", ErrForbidden, actor, grantID)
	}

	grant.PasswordHash = ""
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing link password: %w", err)
		}
		grant.PasswordHash = string(hash)
	}
	grant.ExpireAt = expireAt

	if err := s.shares.SaveShare(grant); err != nil {
		return nil, fmt.Errorf("saving share: %w", err)
	}
	return grant, nil
}

// OpenShareLink resolves a share link to its record, checking expiry and
// password.
func (s *Service) OpenShareLink(link, password string) (*FileRecord, *ShareGrant, error) {
	grant, err := s.shares.FindShareByLink(link)
	if err != nil {
		return nil, nil, fmt.Errorf("finding share link: %w", err)
	}
	if grant == nil {
		return nil, nil, fmt.Errorf("%w: share link", ErrNotFound)
	}
	if grant.ExpireAt != nil && !s.clock.Now().Before(*grant.ExpireAt) {
		return nil, nil, fmt.Errorf("%w: share link expired", ErrForbidden)
	}
	if grant.PasswordHash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(grant.PasswordHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, fmt.Errorf("%w: wrong share link password", ErrForbidden)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("checking share link password: %w", err)
		}
	}

	rec, err := s.findFile(grant.FileID)
	if err != nil {
		return nil, nil, err
	}
	if rec.Trashed() {
		return nil, nil, fmt.Errorf("%w: shared file is in the trash", ErrNotFound)
	}
	return rec, grant, nil
}

func (s *Service) findShare(id string) (*ShareGrant, error) {
	grant, err := s.shares.FindShareByID(id)
	if err != nil {
		return nil, fmt.Errorf("finding share %s: %w", id, err)
	}
	if grant == nil {
		return nil, fmt.Errorf("%w: share %s", ErrNotFound, id)
	}
	return grant, nil
}

// removeGrant deletes one grant. rec may be nil when the file is gone.
func (s *Service) removeGrant(actor string, grant *ShareGrant, rec *FileRecord) error {
	if err := s.shares.DeleteShare(grant.ID); err != nil {
		return fmt.Errorf("deleting share %s: %w", grant.ID, err)
	}
	s.logger.Info("share removed", "share", grant.ID, "file", grant.FileID, "by", actor)
	s.emit(actor, rec, ActionUnshare)
	return nil
}
