package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"drive-go/internal/archive"
	"drive-go/internal/config"
	"drive-go/internal/database"
	"drive-go/internal/database/migrations"
	"drive-go/internal/drive"
	"drive-go/internal/fs"
	"drive-go/internal/metrics"
	"drive-go/internal/notify"
)

// DriveApp is the application layer between the CLI and drive.Service.
// It constructs all dependencies from config, resolves the acting user,
// and flushes notifications and metrics on Close.
type DriveApp struct {
	cfg        *config.Config
	db         *database.SQLiteDatabase
	service    *drive.Service
	dispatcher *notify.Dispatcher
	metrics    *metrics.Metrics
	logger     drive.Logger
	logFile    *os.File
}

// NewDriveApp creates a fully wired DriveApp from the given config.
// verbose mirrors the log to stderr and includes debug records.
// The caller must call Close when done.
func NewDriveApp(cfg *config.Config, verbose bool) (*DriveApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	paths, err := drive.NewPathResolver(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	fsys := fs.NewOSFilesystem()
	if err := fsys.MkdirAll(paths.Root()); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run `drive db migrate`): %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	l, logFile, err := newLogger(cfg.LogDir, runID, verbose)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(
		cfg.Notifications.Buffer,
		logger,
		[]notify.Sink{notify.NewLogSink(logger), NewActivitySink(db)},
		notify.WithDropHook(m.NotificationDropped),
	)

	exclude := fs.NewExcludeMatcher(cfg.Filesystem.Exclude)
	svc := drive.NewService(
		paths,
		db,
		fsys,
		archive.NewBuilder(fsys, exclude, drive.RealClock{}),
		logger,
		drive.RealClock{},
		drive.UUIDGenerator{},
		drive.WithNotifier(dispatcher),
		drive.WithMetrics(m),
	)

	return &DriveApp{
		cfg:        cfg,
		db:         db,
		service:    svc,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		logFile:    logFile,
	}, nil
}

// OpenDatabase opens the configured database without checking its schema.
// An in-memory database is migrated straight away, since it starts empty
// on every run.
func OpenDatabase(cfg *config.Config) (*database.SQLiteDatabase, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if cfg.Database.Type == "memory" {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
	}
	return db, nil
}

// Service exposes the wired service.
func (a *DriveApp) Service() *drive.Service {
	return a.service
}

// ResolveUser finds an account by id or, failing that, by e-mail.
func (a *DriveApp) ResolveUser(idOrEmail string) (*drive.User, error) {
	u, err := a.db.FindUserByID(idOrEmail)
	if err != nil {
		return nil, err
	}
	if u == nil && strings.Contains(idOrEmail, "@") {
		if u, err = a.db.FindUserByEmail(idOrEmail); err != nil {
			return nil, err
		}
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %q", drive.ErrNotFound, idOrEmail)
	}
	return u, nil
}

// AddUser registers an account with a generated id.
func (a *DriveApp) AddUser(username, email string) (*drive.User, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a username and an e-mail address are required", drive.ErrInvalidState)
	}
	existing, err := a.db.FindUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: e-mail %s is already registered", drive.ErrConflict, email)
	}

	u := &drive.User{ID: uuid.New().String(), Username: username, Email: email}
	if err := a.db.CreateUser(u); err != nil {
		return nil, err
	}
	a.logger.Info("user added", "id", u.ID, "username", username)
	return u, nil
}

// Upload stores a local file for actor, at the top level or inside folderID.
func (a *DriveApp) Upload(actor, localPath, folderID string) (*drive.FileRecord, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	if folderID == "" {
		return a.service.Upload(actor, name, f)
	}
	return a.service.UploadToFolder(actor, folderID, name, f)
}

// Download writes the record to outPath, or to its own name in the current
// directory when outPath is empty. The partial file is removed on failure.
func (a *DriveApp) Download(actor, id, outPath string) (string, error) {
	d, err := a.service.PrepareDownload(actor, id)
	if err != nil {
		return "", err
	}
	if outPath == "" {
		outPath = d.Name
	}

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", outPath, err)
	}
	if err := d.Stream(f); err != nil {
		f.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("closing %s: %w", outPath, err)
	}
	return outPath, nil
}

// StreamTo writes a download to w, for piping to stdout.
func (a *DriveApp) StreamTo(actor, id string, w io.Writer) error {
	d, err := a.service.PrepareDownload(actor, id)
	if err != nil {
		return err
	}
	return d.Stream(w)
}

// History returns the actor's most recent activity.
func (a *DriveApp) History(actor string, limit int) ([]*drive.ActivityEntry, error) {
	// Events still queued would be missing from the log.
	a.dispatcher.Close()
	return a.db.ListActivity(actor, limit)
}

// Close flushes pending notifications, exports metrics and closes all
// resources.
func (a *DriveApp) Close() error {
	var firstErr error

	// Sinks write to the database, so they drain before it closes.
	a.dispatcher.Close()

	if p := a.cfg.Metrics.TextfilePath; p != "" {
		if err := a.metrics.WriteTextfile(p); err != nil {
			firstErr = err
		}
	}

	if err := a.db.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// MigrationStatus reports the configured database's schema version.
func MigrationStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return migrations.Status{}, err
	}
	defer db.Close()
	return db.MigrationStatus()
}

// Migrate applies pending migrations to the configured database.
func Migrate(cfg *config.Config) error {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate()
}

// Schema prints the schema of a freshly migrated in-memory database.
func Schema() (string, error) {
	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		return "", err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return "", fmt.Errorf("migrating: %w", err)
	}
	return db.Schema()
}
