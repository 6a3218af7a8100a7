package database

import (
	"strings"
	"testing"
	"time"

	"drive-go/internal/drive"
)

// newTestDB creates a new in-memory database with migrations applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newRecord(id, path string, kind drive.Kind, size int64) *drive.FileRecord {
	return &drive.FileRecord{
		ID:          id,
		Name:        path[strings.LastIndex(path, "/")+1:],
		Kind:        kind,
		Size:        size,
		StoragePath: path,
		OwnerID:     "alice",
		UploadedAt:  testTime,
		UpdatedAt:   testTime,
	}
}

func mustSave(t *testing.T, db *SQLiteDatabase, records ...*drive.FileRecord) {
	t.Helper()
	if err := db.SaveFiles(records); err != nil {
		t.Fatalf("SaveFiles() error = %v", err)
	}
}

func ids(records []*drive.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestSQLiteDatabase_FindFileByID(t *testing.T) {
	t.Run("returns nil when file not found", func(t *testing.T) {
		db := newTestDB(t)

		rec, err := db.FindFileByID("missing")
		if err != nil {
			t.Fatalf("FindFileByID() error = %v", err)
		}
		if rec != nil {
			t.Errorf("FindFileByID() = %v, want nil", rec)
		}
	})

	t.Run("round trips every field", func(t *testing.T) {
		db := newTestDB(t)

		deleted := testTime.Add(time.Hour)
		want := newRecord("f-1", "/srv/.trash/alice/a.txt", drive.KindFile, 42)
		want.ContentType = "text/plain; charset=utf-8"
		want.OriginalPath = "/srv/a.txt"
		want.DeletedAt = &deleted
		if err := db.SaveFile(want); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		got, err := db.FindFileByID("f-1")
		if err != nil {
			t.Fatalf("FindFileByID() error = %v", err)
		}
		if got == nil {
			t.Fatal("FindFileByID() = nil")
		}
		if got.Name != "a.txt" || got.Kind != drive.KindFile || got.Size != 42 {
			t.Errorf("got %+v", got)
		}
		if got.ContentType != want.ContentType {
			t.Errorf("ContentType = %q, want %q", got.ContentType, want.ContentType)
		}
		if got.OriginalPath != "/srv/a.txt" {
			t.Errorf("OriginalPath = %q, want /srv/a.txt", got.OriginalPath)
		}
		if got.DeletedAt == nil || !got.DeletedAt.Equal(deleted) {
			t.Errorf("DeletedAt = %v, want %v", got.DeletedAt, deleted)
		}
		if !got.UploadedAt.Equal(testTime) {
			t.Errorf("UploadedAt = %v, want %v", got.UploadedAt, testTime)
		}
	})

	t.Run("save updates an existing record", func(t *testing.T) {
		db := newTestDB(t)

		rec := newRecord("f-1", "/srv/a.txt", drive.KindFile, 1)
		mustSave(t, db, rec)

		rec.StoragePath = "/srv/b.txt"
		rec.Size = 2
		if err := db.SaveFile(rec); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}

		got, _ := db.FindFileByID("f-1")
		if got.StoragePath != "/srv/b.txt" || got.Size != 2 {
			t.Errorf("got path=%q size=%d, want /srv/b.txt 2", got.StoragePath, got.Size)
		}
		if got.DeletedAt != nil {
			t.Errorf("DeletedAt = %v, want nil", got.DeletedAt)
		}
	})
}

func TestSQLiteDatabase_FindFilesByPathPrefix(t *testing.T) {
	db := newTestDB(t)

	deleted := testTime
	trashed := newRecord("t-1", "/srv/docs/old.txt", drive.KindFile, 1)
	trashed.DeletedAt = &deleted

	mustSave(t, db,
		newRecord("d-1", "/srv/docs", drive.KindDirectory, 0),
		newRecord("f-1", "/srv/docs/a.txt", drive.KindFile, 10),
		newRecord("f-2", "/srv/docs/sub/b.txt", drive.KindFile, 20),
		newRecord("f-3", "/srv/docs2/c.txt", drive.KindFile, 30),
		newRecord("f-4", "/srv/docsXa.txt", drive.KindFile, 40),
		newRecord("d-2", "/srv/100%_x", drive.KindDirectory, 0),
		newRecord("f-5", "/srv/100%_x/in.txt", drive.KindFile, 50),
		newRecord("f-6", "/srv/100abc/out.txt", drive.KindFile, 60),
		newRecord("f-7", "/srv/Docs/z.txt", drive.KindFile, 70),
		trashed,
	)

	tests := []struct {
		name   string
		prefix string
		filter drive.StateFilter
		want   []string
	}{
		{
			name:   "includes the prefix itself and everything beneath",
			prefix: "/srv/docs",
			filter: drive.AnyState,
			want:   []string{"d-1", "f-1", "t-1", "f-2"},
		},
		{
			name:   "active only",
			prefix: "/srv/docs",
			filter: drive.ActiveOnly,
			want:   []string{"d-1", "f-1", "f-2"},
		},
		{
			name:   "trashed only",
			prefix: "/srv/docs",
			filter: drive.TrashedOnly,
			want:   []string{"t-1"},
		},
		{
			name:   "trailing slash is ignored",
			prefix: "/srv/docs/",
			filter: drive.ActiveOnly,
			want:   []string{"d-1", "f-1", "f-2"},
		},
		{
			name:   "wildcards in the prefix match literally",
			prefix: "/srv/100%_x",
			filter: drive.AnyState,
			want:   []string{"d-2", "f-5"},
		},
		{
			name:   "case is significant",
			prefix: "/srv/Docs",
			filter: drive.AnyState,
			want:   []string{"f-7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindFilesByPathPrefix(tt.prefix, tt.filter)
			if err != nil {
				t.Fatalf("FindFilesByPathPrefix() error = %v", err)
			}
			if g := strings.Join(ids(got), ","); g != strings.Join(tt.want, ",") {
				t.Errorf("FindFilesByPathPrefix(%q) = %s, want %s", tt.prefix, g, strings.Join(tt.want, ","))
			}
		})
	}
}

func TestSQLiteDatabase_FindFilesByOwner(t *testing.T) {
	db := newTestDB(t)

	first := newRecord("f-1", "/srv/a", drive.KindFile, 1)
	second := newRecord("f-2", "/srv/b", drive.KindFile, 1)
	second.UploadedAt = testTime.Add(time.Minute)
	other := newRecord("f-3", "/srv/c", drive.KindFile, 1)
	other.OwnerID = "bob"
	deleted := testTime
	trashed := newRecord("f-4", "/srv/.trash/alice/d", drive.KindFile, 1)
	trashed.DeletedAt = &deleted
	mustSave(t, db, second, first, other, trashed)

	active, err := db.FindFilesByOwner("alice", drive.ActiveOnly)
	if err != nil {
		t.Fatalf("FindFilesByOwner() error = %v", err)
	}
	if got := strings.Join(ids(active), ","); got != "f-1,f-2" {
		t.Errorf("active = %s, want f-1,f-2", got)
	}

	all, err := db.FindFilesByOwner("alice", drive.AnyState)
	if err != nil {
		t.Fatalf("FindFilesByOwner() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestSQLiteDatabase_SaveFiles_Atomic(t *testing.T) {
	db := newTestDB(t)

	mustSave(t, db, newRecord("f-1", "/srv/a", drive.KindFile, 1))

	good := newRecord("f-1", "/srv/moved", drive.KindFile, 1)
	bad := newRecord("f-2", "/srv/bad", drive.Kind("LINK"), 1)
	if err := db.SaveFiles([]*drive.FileRecord{good, bad}); err == nil {
		t.Fatal("SaveFiles() expected error for invalid kind")
	}

	got, _ := db.FindFileByID("f-1")
	if got.StoragePath != "/srv/a" {
		t.Errorf("StoragePath = %q, want /srv/a (batch must roll back)", got.StoragePath)
	}
}

func TestSQLiteDatabase_DeleteFiles(t *testing.T) {
	db := newTestDB(t)

	mustSave(t, db,
		newRecord("d-1", "/srv/docs", drive.KindDirectory, 0),
		newRecord("f-1", "/srv/docs/a", drive.KindFile, 1),
		newRecord("f-2", "/srv/b", drive.KindFile, 1),
	)
	grant := &drive.ShareGrant{
		ID: "s-1", FileID: "d-1", OwnerID: "alice", RecipientID: "bob",
		Permission: drive.PermissionView, ShareLink: "link-1", CreatedAt: testTime,
	}
	if err := db.SaveShare(grant); err != nil {
		t.Fatalf("SaveShare() error = %v", err)
	}

	if err := db.DeleteFiles([]string{"d-1", "f-1"}); err != nil {
		t.Fatalf("DeleteFiles() error = %v", err)
	}

	for _, id := range []string{"d-1", "f-1"} {
		if rec, _ := db.FindFileByID(id); rec != nil {
			t.Errorf("record %s still present", id)
		}
	}
	if rec, _ := db.FindFileByID("f-2"); rec == nil {
		t.Error("unrelated record f-2 was deleted")
	}
	if g, _ := db.FindShareByID("s-1"); g != nil {
		t.Error("grant on deleted folder still present")
	}
}

func TestSQLiteDatabase_Shares(t *testing.T) {
	db := newTestDB(t)
	mustSave(t, db, newRecord("d-1", "/srv/docs", drive.KindDirectory, 0))

	expire := testTime.Add(24 * time.Hour)
	grant := &drive.ShareGrant{
		ID: "s-1", FileID: "d-1", OwnerID: "alice", RecipientID: "bob",
		Permission: drive.PermissionView, ShareLink: "link-1", CreatedAt: testTime,
	}
	if err := db.SaveShare(grant); err != nil {
		t.Fatalf("SaveShare() error = %v", err)
	}

	t.Run("finds by every key", func(t *testing.T) {
		lookups := map[string]func() (*drive.ShareGrant, error){
			"id":   func() (*drive.ShareGrant, error) { return db.FindShareByID("s-1") },
			"link": func() (*drive.ShareGrant, error) { return db.FindShareByLink("link-1") },
			"file": func() (*drive.ShareGrant, error) { return db.FindShareByFileAndRecipient("d-1", "bob") },
		}
		for name, find := range lookups {
			g, err := find()
			if err != nil {
				t.Fatalf("%s lookup error = %v", name, err)
			}
			if g == nil || g.ID != "s-1" {
				t.Errorf("%s lookup = %v, want s-1", name, g)
			}
		}

		byRecipient, _ := db.FindSharesByRecipient("bob")
		byOwner, _ := db.FindSharesByOwner("alice")
		byFile, _ := db.FindSharesByFile("d-1")
		if len(byRecipient) != 1 || len(byOwner) != 1 || len(byFile) != 1 {
			t.Errorf("list lookups = %d,%d,%d, want 1,1,1", len(byRecipient), len(byOwner), len(byFile))
		}
	})

	t.Run("missing grant is nil", func(t *testing.T) {
		g, err := db.FindShareByFileAndRecipient("d-1", "carol")
		if err != nil {
			t.Fatalf("FindShareByFileAndRecipient() error = %v", err)
		}
		if g != nil {
			t.Errorf("FindShareByFileAndRecipient() = %v, want nil", g)
		}
	})

	t.Run("save updates permission and link protection", func(t *testing.T) {
		grant.Permission = drive.PermissionEdit
		grant.PasswordHash = "hash"
		grant.ExpireAt = &expire
		if err := db.SaveShare(grant); err != nil {
			t.Fatalf("SaveShare() error = %v", err)
		}

		got, _ := db.FindShareByID("s-1")
		if got.Permission != drive.PermissionEdit {
			t.Errorf("Permission = %s, want EDIT", got.Permission)
		}
		if got.PasswordHash != "hash" {
			t.Errorf("PasswordHash = %q, want hash", got.PasswordHash)
		}
		if got.ExpireAt == nil || !got.ExpireAt.Equal(expire) {
			t.Errorf("ExpireAt = %v, want %v", got.ExpireAt, expire)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := db.DeleteShare("s-1"); err != nil {
			t.Fatalf("DeleteShare() error = %v", err)
		}
		if g, _ := db.FindShareByID("s-1"); g != nil {
			t.Error("grant still present after DeleteShare()")
		}
	})
}

func TestSQLiteDatabase_Users(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateUser(&drive.User{ID: "u-1", Username: "alice", Email: "Alice@Example.com"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	u, err := db.FindUserByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail() error = %v", err)
	}
	if u == nil || u.ID != "u-1" {
		t.Errorf("FindUserByEmail() = %v, want u-1", u)
	}

	u, err = db.FindUserByID("u-1")
	if err != nil {
		t.Fatalf("FindUserByID() error = %v", err)
	}
	if u == nil || u.Username != "alice" {
		t.Errorf("FindUserByID() = %v, want alice", u)
	}

	if u, _ := db.FindUserByID("missing"); u != nil {
		t.Errorf("FindUserByID(missing) = %v, want nil", u)
	}

	if err := db.CreateUser(&drive.User{ID: "u-2", Username: "alice", Email: "other@example.com"}); err == nil {
		t.Error("CreateUser() expected error for duplicate username")
	}
}

func TestSQLiteDatabase_Activity(t *testing.T) {
	db := newTestDB(t)

	for i, action := range []string{drive.ActionUpload, drive.ActionDelete, drive.ActionRestore} {
		e := &drive.ActivityEntry{
			UserID:    "alice",
			FileID:    "f-1",
			Action:    action,
			CreatedAt: testTime.Add(time.Duration(i) * time.Minute),
		}
		if err := db.CreateActivity(e); err != nil {
			t.Fatalf("CreateActivity() error = %v", err)
		}
		if e.ID == 0 {
			t.Error("CreateActivity() did not set ID")
		}
	}
	if err := db.CreateActivity(&drive.ActivityEntry{UserID: "bob", Action: drive.ActionPurge, CreatedAt: testTime}); err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}

	entries, err := db.ListActivity("alice", 2)
	if err != nil {
		t.Fatalf("ListActivity() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Action != drive.ActionRestore || entries[1].Action != drive.ActionDelete {
		t.Errorf("entries = %s,%s, want restore,delete", entries[0].Action, entries[1].Action)
	}
	if entries[0].FileID != "f-1" {
		t.Errorf("FileID = %q, want f-1", entries[0].FileID)
	}
}

func TestSQLiteDatabase_Schema(t *testing.T) {
	db := newTestDB(t)

	schema, err := db.Schema()
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	for _, want := range []string{"CREATE TABLE files", "CREATE TABLE shares", "CREATE INDEX idx_files_storage_path"} {
		if !strings.Contains(schema, want) {
			t.Errorf("Schema() missing %q", want)
		}
	}
	if strings.Contains(schema, "schema_migrations") {
		t.Error("Schema() should not include the migrations table")
	}
}

func TestSQLiteDatabase_CheckMigrations(t *testing.T) {
	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	defer db.Close()

	if err := db.CheckMigrations(); err == nil {
		t.Error("CheckMigrations() expected error before migrating")
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() after Migrate() error = %v", err)
	}

	st, err := db.MigrationStatus()
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if !st.UpToDate() || st.Current != 1 {
		t.Errorf("MigrationStatus() = %+v, want up to date at version 1", st)
	}
}
