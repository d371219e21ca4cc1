package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"wikiwatch/internal/archive"
	"wikiwatch/internal/config"
	"wikiwatch/internal/database"
	"wikiwatch/internal/database/sqlc"
	"wikiwatch/internal/encryption"
	"wikiwatch/internal/watch"
	"wikiwatch/internal/wikipedia"
)

// ErrBehindArchive is returned when a write is attempted while the archive
// holds a newer snapshot than the local database.
var ErrBehindArchive = errors.New("local database is behind archive")

// SnapshotName is the archive object holding the latest database snapshot.
const SnapshotName = "wikiwatch.db.snapshot"

// Deps overrides the collaborators NewWatchApp would otherwise build from
// config. Zero fields keep the default.
type Deps struct {
	Source    watch.WikiSource
	Archive   watch.Archive
	Encryptor watch.Encryptor
	Clock     watch.Clock
	IDGen     watch.IDGenerator
	Stderr    io.Writer
}

// WatchApp is the application layer between the CLI and WatchService.
// It constructs all dependencies from config, journals mutating commands,
// and snapshots the database to the archive on Close.
type WatchApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	archive   watch.Archive
	encryptor watch.Encryptor
	service   *watch.WatchService
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
	pushed    bool
}

// NewWatchApp creates a fully wired WatchApp from the given config.
// operation names the CLI command being run and args are its arguments.
// The caller must call Close when done.
func NewWatchApp(ctx context.Context, cfg *config.Config, operation string, args []string) (*WatchApp, error) {
	return NewWatchAppWithDeps(ctx, cfg, operation, args, Deps{})
}

// NewWatchAppWithDeps is NewWatchApp with injectable collaborators.
func NewWatchAppWithDeps(ctx context.Context, cfg *config.Config, operation string, args []string, deps Deps) (*WatchApp, error) {
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Clock == nil {
		deps.Clock = watch.RealClock{}
	}
	if deps.IDGen == nil {
		deps.IDGen = watch.UUIDGenerator{}
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, deps.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	wlog := &slogAdapter{l: logger}

	fail := func(err error, closers ...io.Closer) (*WatchApp, error) {
		for _, c := range closers {
			c.Close()
		}
		logFile.Close()
		return nil, err
	}

	arch := deps.Archive
	if arch == nil {
		if arch, err = archive.NewArchiveFromConfig(ctx, cfg.Archive); err != nil {
			return fail(fmt.Errorf("creating archive: %w", err))
		}
	}

	enc := deps.Encryptor
	if enc == nil {
		if enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption); err != nil {
			return fail(fmt.Errorf("creating encryptor: %w", err))
		}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fail(fmt.Errorf("creating database: %w", err))
	}

	if err := db.CheckMigrations(); err != nil {
		return fail(fmt.Errorf("database schema out of date: %w", err), db)
	}

	source := deps.Source
	if source == nil {
		source = wikipedia.NewClientFromConfig(cfg.Wiki, wlog)
	}

	policy := watch.Policy{
		StaleAfter: cfg.Wiki.StaleAfter.Duration,
		PageSize:   cfg.Wiki.PageSize,
		Workers:    cfg.Wiki.Workers,
	}
	svc := watch.NewWatchService(db, source, wlog, deps.Clock, deps.IDGen, policy)

	logger.Debug("app started", "operation", operation, "database", db.Path())

	return &WatchApp{
		cfg:       cfg,
		db:        db,
		archive:   arch,
		encryptor: enc,
		service:   svc,
		logger:    logger,
		op:        NewOperation(operation, args),
		logFile:   logFile,
	}, nil
}

// Operation returns the operation being run.
func (a *WatchApp) Operation() *Operation {
	return a.op
}

// persistOperation journals the operation, giving it an auto-increment ID.
// Only commands that write to the database call it.
func (a *WatchApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	if err := a.checkArchiveVersion(context.Background()); err != nil {
		return err
	}
	row, err := a.db.CreateOperation(a.op.Name, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("journaling operation: %w", err)
	}
	a.op.ID = row.ID
	return nil
}

// checkArchiveVersion refuses to write when the archive holds a snapshot
// newer than the local journal, since the next push would overwrite it.
func (a *WatchApp) checkArchiveVersion(ctx context.Context) error {
	if a.archive == nil {
		return nil
	}
	remote, err := a.archive.SnapshotVersion(ctx, SnapshotName)
	if err != nil {
		return fmt.Errorf("checking archived snapshot version: %w", err)
	}
	local, err := a.db.MaxOperationID()
	if err != nil {
		return fmt.Errorf("checking local journal: %w", err)
	}
	if remote > local {
		return fmt.Errorf("%w (local=%d, archive=%d): run snapshot restore first", ErrBehindArchive, local, remote)
	}
	return nil
}

// AddArticle starts tracking title on the wiki named by region (code or name).
func (a *WatchApp) AddArticle(ctx context.Context, title, region string) (*watch.Article, error) {
	r, err := watch.ParseRegion(region)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.AddArticle(ctx, title, r)
}

// RemoveArticle stops tracking an article.
func (a *WatchApp) RemoveArticle(ref string) (*watch.Article, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.RemoveArticle(ref)
}

// ListArticles returns article summaries without contacting the wiki.
func (a *WatchApp) ListArticles(filter watch.ArticleFilter) ([]*watch.ArticleSummary, error) {
	return a.service.ListArticles(filter)
}

// OpenArticle returns an article, refreshing it first when stale.
func (a *WatchApp) OpenArticle(ctx context.Context, ref string) (*watch.Article, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.OpenArticle(ctx, ref)
}

// RefreshArticle refreshes one article; force ignores staleness.
func (a *WatchApp) RefreshArticle(ctx context.Context, ref string, force bool) (*watch.Article, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.RefreshArticle(ctx, ref, force)
}

// RefreshAll refreshes every tracked article and returns the number of new revisions.
func (a *WatchApp) RefreshAll(ctx context.Context, force bool) (int, error) {
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	return a.service.RefreshAll(ctx, force)
}

// MarkAllSeen sets the seen flag on every revision of an article.
func (a *WatchApp) MarkAllSeen(ref string, value bool) (*watch.Article, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.MarkAllSeen(ref, value)
}

// ViewRevision returns the index-th most recent revision and marks it seen.
func (a *WatchApp) ViewRevision(ref string, index int) (*watch.Article, watch.Revision, error) {
	if err := a.persistOperation(); err != nil {
		return nil, watch.Revision{}, err
	}
	return a.service.ViewRevision(ref, index)
}

// MarkRevisionSeen sets the seen flag of the revision by user at ts.
func (a *WatchApp) MarkRevisionSeen(ref, user string, ts time.Time, value bool) (*watch.Article, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.MarkRevisionSeen(ref, user, ts, value)
}

// SetNotes replaces the notes of an article.
func (a *WatchApp) SetNotes(ref, notes string) (*watch.Article, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	return a.service.SetNotes(ref, notes)
}

// GetHistory returns the most recent journaled operations.
func (a *WatchApp) GetHistory(limit int) ([]*sqlc.Operation, error) {
	return a.service.GetHistory(limit)
}

// LocalVersion returns the highest journaled operation ID.
func (a *WatchApp) LocalVersion() (int64, error) {
	return a.db.MaxOperationID()
}

// Policy returns the effective refresh policy.
func (a *WatchApp) Policy() watch.Policy {
	return a.service.Policy()
}

// InitKeys generates the snapshot key pair.
func (a *WatchApp) InitKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled (encryption.type = %q)", a.cfg.Encryption.Type)
	}
	return a.encryptor.Setup(passphrase)
}

// PushSnapshot uploads a snapshot now instead of waiting for Close.
// It returns the snapshot version.
func (a *WatchApp) PushSnapshot(ctx context.Context) (int64, error) {
	if a.archive == nil {
		return 0, fmt.Errorf("no archive configured")
	}
	if err := a.persistOperation(); err != nil {
		return 0, err
	}
	if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
		return 0, fmt.Errorf("finishing operation: %w", err)
	}
	if err := a.pushSnapshot(ctx); err != nil {
		return 0, err
	}
	a.pushed = true
	return a.op.ID, nil
}

// CheckArchive verifies the archive is reachable and returns the version of
// the latest snapshot (0 when there is none).
func (a *WatchApp) CheckArchive(ctx context.Context) (int64, error) {
	if a.archive == nil {
		return 0, fmt.Errorf("no archive configured")
	}
	if err := a.archive.ValidateSetup(ctx); err != nil {
		return 0, err
	}
	return a.archive.SnapshotVersion(ctx, SnapshotName)
}

// RestoreSnapshot downloads the archived snapshot and writes the decrypted
// database to destPath, which must not exist. passphrase unlocks the private
// key and is ignored when encryption is disabled.
func (a *WatchApp) RestoreSnapshot(ctx context.Context, destPath, passphrase string) error {
	if a.archive == nil {
		return fmt.Errorf("no archive configured")
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("refusing to overwrite %s", destPath)
	}

	var dec watch.DecryptionContext
	if a.encryptor != nil {
		var err error
		dec, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking snapshot key: %w", err)
		}
	}

	sealed, err := os.CreateTemp("", "wikiwatch-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	if err := a.archive.GetSnapshot(ctx, SnapshotName, sealed); err != nil {
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding snapshot: %w", err)
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}

	if dec != nil {
		err = dec.Decrypt(sealed, out)
	} else {
		_, err = io.Copy(out, sealed)
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("writing restored database: %w", err)
	}

	a.logger.Info("snapshot restored", "path", destPath)
	return nil
}

// Close finalizes the operation and closes all resources.
// For journaled operations it records the final status and, when an archive
// is configured, uploads a snapshot with version = operation ID.
func (a *WatchApp) Close() error {
	var errs []error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}
		if a.archive != nil && !a.pushed {
			if err := a.pushSnapshot(context.Background()); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("close failed", "error", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

// pushSnapshot copies the database with VACUUM INTO, seals it when an
// encryptor is configured, and uploads it under SnapshotName.
func (a *WatchApp) pushSnapshot(ctx context.Context) error {
	plain, err := os.CreateTemp("", "wikiwatch-db-*.db")
	if err != nil {
		return fmt.Errorf("creating temp file for snapshot: %w", err)
	}
	plainPath := plain.Name()
	plain.Close()
	defer os.Remove(plainPath)

	if err := a.db.BackupTo(plainPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}

	uploadPath := plainPath
	if a.encryptor != nil {
		sealedPath, err := a.seal(plainPath)
		if err != nil {
			return err
		}
		defer os.Remove(sealedPath)
		uploadPath = sealedPath
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	if err := a.archive.PutSnapshot(ctx, SnapshotName, f, info.Size(), a.op.ID); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}

	a.logger.Info("snapshot uploaded", "version", a.op.ID, "bytes", info.Size())
	return nil
}

func (a *WatchApp) seal(plainPath string) (string, error) {
	in, err := os.Open(plainPath)
	if err != nil {
		return "", fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "wikiwatch-db-*.sealed")
	if err != nil {
		return "", fmt.Errorf("creating temp file for sealed snapshot: %w", err)
	}

	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("closing sealed snapshot: %w", err)
	}
	return out.Name(), nil
}
