package testutil

import (
	"testing"

	"drive-go/internal/database"
	"drive-go/internal/drive"
)

// NewTestDatabase creates a new in-memory SQLite database with migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// AddUsers registers accounts whose id, username and e-mail local part are
// all the given name.
func AddUsers(t *testing.T, db *database.SQLiteDatabase, names ...string) {
	t.Helper()
	for _, name := range names {
		u := &drive.User{ID: name, Username: name, Email: name + "@example.com"}
		if err := db.CreateUser(u); err != nil {
			t.Fatalf("creating user %s: %v", name, err)
		}
	}
}
