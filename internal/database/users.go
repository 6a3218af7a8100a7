package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"drive-go/internal/drive"
)

// User operations

func (s *SQLiteDatabase) findUser(where string, arg string) (*drive.User, error) {
	var u drive.User
	err := s.db.QueryRow(`SELECT id, username, email FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteDatabase) FindUserByID(id string) (*drive.User, error) {
	u, err := s.findUser(`id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return u, nil
}

// FindUserByEmail matches e-mail addresses case-insensitively.
func (s *SQLiteDatabase) FindUserByEmail(email string) (*drive.User, error) {
	u, err := s.findUser(`email = ? COLLATE NOCASE`, email)
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return u, nil
}

// CreateUser registers an account. Accounts are normally owned by an
// external auth service; this exists for the CLI and tests.
func (s *SQLiteDatabase) CreateUser(u *drive.User) error {
	_, err := s.db.Exec(`INSERT INTO users (id, username, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.Username, err)
	}
	return nil
}

// Activity operations

// CreateActivity appends an entry and sets its ID.
func (s *SQLiteDatabase) CreateActivity(e *drive.ActivityEntry) error {
	res, err := s.db.Exec(`
		INSERT INTO activity_logs (user_id, file_id, action, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.UserID, nullString(e.FileID), e.Action, e.Description, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("creating activity entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading activity entry id: %w", err)
	}
	e.ID = id
	return nil
}

// ListActivity returns the most recent entries of a user, newest first.
func (s *SQLiteDatabase) ListActivity(userID string, limit int) ([]*drive.ActivityEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, file_id, action, description, created_at
		FROM activity_logs
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var entries []*drive.ActivityEntry
	for rows.Next() {
		var (
			e      drive.ActivityEntry
			fileID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &fileID, &e.Action, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.FileID = fileID.String
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return entries, nil
}
