package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"drive-go/internal/database/migrations"
	"drive-go/internal/drive"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the drive stores using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ drive.Store = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	// DSN parameters apply to every connection the pool opens, unlike a
	// one-off PRAGMA. LIKE must not fold case: storage paths are compared
	// byte for byte.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_case_sensitive_like=true")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite has a single writer, and every connection to
	// ":memory:" would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CheckMigrations reports an error unless the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate applies pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// MigrationStatus reports the schema version against the embedded migrations.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Schema returns the CREATE statements of the migrated schema, tables first.
// The migration bookkeeping table is left out.
func (s *SQLiteDatabase) Schema() (string, error) {
	rows, err := s.db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name
	`)
	if err != nil {
		return "", fmt.Errorf("querying schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString("\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}

// File operations

const fileColumns = `id, name, kind, content_type, size, storage_path, original_path, deleted_at, owner_id, uploaded_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func scanFile(row rowScanner) (*drive.FileRecord, error) {
	var (
		r        drive.FileRecord
		kind     string
		original sql.NullString
		deleted  sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Name, &kind, &r.ContentType, &r.Size, &r.StoragePath,
		&original, &deleted, &r.OwnerID, &r.UploadedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = drive.Kind(kind)
	r.OriginalPath = original.String
	if deleted.Valid {
		t := deleted.Time
		r.DeletedAt = &t
	}
	return &r, nil
}

func stateClause(filter drive.StateFilter) string {
	switch filter {
	case drive.ActiveOnly:
		return " AND deleted_at IS NULL"
	case drive.TrashedOnly:
		return " AND deleted_at IS NOT NULL"
	default:
		return ""
	}
}

// escapeLike makes LIKE wildcards in s match literally under ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *SQLiteDatabase) queryFiles(query string, args ...any) ([]*drive.FileRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*drive.FileRecord
	for rows.Next() {
		r, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteDatabase) FindFileByID(id string) (*drive.FileRecord, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	r, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding file by id: %w", err)
	}
	return r, nil
}

func (s *SQLiteDatabase) FindFilesByOwner(ownerID string, filter drive.StateFilter) ([]*drive.FileRecord, error) {
	records, err := s.queryFiles(
		`SELECT `+fileColumns+` FROM files WHERE owner_id = ?`+stateClause(filter)+` ORDER BY uploaded_at, id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("finding files by owner: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) FindFilesByPathPrefix(prefix string, filter drive.StateFilter) ([]*drive.FileRecord, error) {
	prefix = strings.TrimSuffix(prefix, "/")
	records, err := s.queryFiles(
		`SELECT `+fileColumns+` FROM files
		WHERE (storage_path = ? OR storage_path LIKE ? ESCAPE '\')`+stateClause(filter)+`
		ORDER BY storage_path`,
		prefix, escapeLike(prefix)+"/%")
	if err != nil {
		return nil, fmt.Errorf("finding files by path prefix: %w", err)
	}
	return records, nil
}

func upsertFile(e execer, r *drive.FileRecord) error {
	_, err := e.Exec(`
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			content_type = excluded.content_type,
			size = excluded.size,
			storage_path = excluded.storage_path,
			original_path = excluded.original_path,
			deleted_at = excluded.deleted_at,
			owner_id = excluded.owner_id,
			uploaded_at = excluded.uploaded_at,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, string(r.Kind), r.ContentType, r.Size, r.StoragePath,
		nullString(r.OriginalPath), nullTime(r.DeletedAt), r.OwnerID,
		r.UploadedAt.UTC(), r.UpdatedAt.UTC())
	return err
}

func (s *SQLiteDatabase) SaveFile(record *drive.FileRecord) error {
	if err := upsertFile(s.db, record); err != nil {
		return fmt.Errorf("saving file %s: %w", record.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) SaveFiles(records []*drive.FileRecord) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if err := upsertFile(tx, r); err != nil {
			return fmt.Errorf("saving file %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteFile(id string) error {
	// Grants go with the file through ON DELETE CASCADE.
	if _, err := s.db.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteFiles(ids []string) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting file %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
