package database

import (
	"database/sql"
	"errors"
	"fmt"

	"drive-go/internal/drive"
)

const shareColumns = `id, file_id, owner_id, recipient_id, permission, share_link, password_hash, expire_at, created_at`

func scanShare(row rowScanner) (*drive.ShareGrant, error) {
	var (
		g      drive.ShareGrant
		perm   string
		expire sql.NullTime
	)
	err := row.Scan(&g.ID, &g.FileID, &g.OwnerID, &g.RecipientID, &perm,
		&g.ShareLink, &g.PasswordHash, &expire, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Permission = drive.Permission(perm)
	if expire.Valid {
		t := expire.Time
		g.ExpireAt = &t
	}
	return &g, nil
}

func (s *SQLiteDatabase) findShare(where string, args ...any) (*drive.ShareGrant, error) {
	g, err := scanShare(s.db.QueryRow(`SELECT `+shareColumns+` FROM shares WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return g, nil
}

func (s *SQLiteDatabase) findShares(where string, args ...any) ([]*drive.ShareGrant, error) {
	rows, err := s.db.Query(`SELECT `+shareColumns+` FROM shares WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*drive.ShareGrant
	for rows.Next() {
		g, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *SQLiteDatabase) FindShareByID(id string) (*drive.ShareGrant, error) {
	g, err := s.findShare(`id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("finding share by id: %w", err)
	}
	return g, nil
}

func (s *SQLiteDatabase) FindShareByLink(link string) (*drive.ShareGrant, error) {
	g, err := s.findShare(`share_link = ?`, link)
	if err != nil {
		return nil, fmt.Errorf("finding share by link: %w", err)
	}
	return g, nil
}

func (s *SQLiteDatabase) FindShareByFileAndRecipient(fileID, recipientID string) (*drive.ShareGrant, error) {
	g, err := s.findShare(`file_id = ? AND recipient_id = ?`, fileID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("finding share by file and recipient: %w", err)
	}
	return g, nil
}

func (s *SQLiteDatabase) FindSharesByRecipient(recipientID string) ([]*drive.ShareGrant, error) {
	grants, err := s.findShares(`recipient_id = ?`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("finding shares by recipient: %w", err)
	}
	return grants, nil
}

func (s *SQLiteDatabase) FindSharesByOwner(ownerID string) ([]*drive.ShareGrant, error) {
	grants, err := s.findShares(`owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("finding shares by owner: %w", err)
	}
	return grants, nil
}

func (s *SQLiteDatabase) FindSharesByFile(fileID string) ([]*drive.ShareGrant, error) {
	grants, err := s.findShares(`file_id = ?`, fileID)
	if err != nil {
		return nil, fmt.Errorf("finding shares by file: %w", err)
	}
	return grants, nil
}

func (s *SQLiteDatabase) SaveShare(g *drive.ShareGrant) error {
	_, err := s.db.Exec(`
		INSERT INTO shares (`+shareColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			permission = excluded.permission,
			share_link = excluded.share_link,
			password_hash = excluded.password_hash,
			expire_at = excluded.expire_at`,
		g.ID, g.FileID, g.OwnerID, g.RecipientID, string(g.Permission),
		g.ShareLink, g.PasswordHash, nullTime(g.ExpireAt), g.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving share %s: %w", g.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteShare(id string) error {
	if _, err := s.db.Exec(`DELETE FROM shares WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting share %s: %w", id, err)
	}
	return nil
}
