package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"wikiwatch/internal/database/migrations"
	"wikiwatch/internal/database/sqlc"
	"wikiwatch/internal/watch"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the watch.Store interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		path:    "",
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive across calls and
	// serialises writers, so refreshes of different articles never hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Article operations

func (s *SQLiteDatabase) InsertArticle(article *watch.Article) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	err = qtx.InsertArticle(ctx, sqlc.InsertArticleParams{
		ID:             article.ID,
		Name:           article.Name,
		Region:         article.Region.Code(),
		AddedAt:        article.Added.UTC(),
		LastReloadedAt: nullTime(article.LastReloaded()),
		Notes:          article.Notes(),
	})
	if err != nil {
		return fmt.Errorf("inserting article: %w", err)
	}

	if err := upsertRevisions(ctx, qtx, article); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveArticle writes the article state and merges its revisions in one
// transaction. Revisions already stored keep their size and comment; only
// their seen flag is updated.
func (s *SQLiteDatabase) SaveArticle(article *watch.Article) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	if _, err := qtx.GetArticleByID(ctx, article.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", watch.ErrArticleNotFound, article.ID)
		}
		return fmt.Errorf("finding article: %w", err)
	}

	err = qtx.UpdateArticleState(ctx, sqlc.UpdateArticleStateParams{
		LastReloadedAt: nullTime(article.LastReloaded()),
		Notes:          article.Notes(),
		ID:             article.ID,
	})
	if err != nil {
		return fmt.Errorf("updating article: %w", err)
	}

	if err := upsertRevisions(ctx, qtx, article); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func upsertRevisions(ctx context.Context, qtx *sqlc.Queries, article *watch.Article) error {
	for _, r := range article.Revisions() {
		err := qtx.UpsertRevision(ctx, sqlc.UpsertRevisionParams{
			ArticleID: article.ID,
			UserName:  r.User,
			EditedAt:  r.Timestamp.UTC(),
			Size:      r.Size,
			Comment:   r.Comment,
			Seen:      r.Seen,
		})
		if err != nil {
			return fmt.Errorf("storing revision by %s at %s: %w", r.User, r.Timestamp.Format(time.RFC3339), err)
		}
	}
	return nil
}

func (s *SQLiteDatabase) DeleteArticle(id string) error {
	if err := s.queries.DeleteArticleByID(context.Background(), id); err != nil {
		return fmt.Errorf("deleting article: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindArticleByID(id string) (*watch.Article, error) {
	ctx := context.Background()
	row, err := s.queries.GetArticleByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding article by id: %w", err)
	}
	return s.loadArticle(ctx, row)
}

func (s *SQLiteDatabase) FindArticleByName(name string, region watch.Region) (*watch.Article, error) {
	ctx := context.Background()
	row, err := s.queries.GetArticleByNameAndRegion(ctx, sqlc.GetArticleByNameAndRegionParams{
		Name:   name,
		Region: region.Code(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding article by name: %w", err)
	}
	return s.loadArticle(ctx, row)
}

// ListArticles builds its query dynamically since every filter field is optional.
func (s *SQLiteDatabase) ListArticles(filter watch.ArticleFilter) ([]*watch.Article, error) {
	ctx := context.Background()

	q := sq.Select("id", "name", "region", "added_at", "last_reloaded_at", "notes").
		From("articles").
		OrderBy("name", "region")
	if filter.Name != "" {
		q = q.Where(sq.Eq{"name": filter.Name})
	}
	if filter.Region != nil {
		q = q.Where(sq.Eq{"region": filter.Region.Code()})
	}
	if filter.UnseenOnly {
		q = q.Where("EXISTS (SELECT 1 FROM revisions r WHERE r.article_id = articles.id AND r.seen = 0)")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building article query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}

	// Collect every row before loading revisions: the pool holds one
	// connection and it is busy until rows is closed.
	var found []sqlc.Article
	for rows.Next() {
		var a sqlc.Article
		if err := rows.Scan(&a.ID, &a.Name, &a.Region, &a.AddedAt, &a.LastReloadedAt, &a.Notes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		found = append(found, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("closing article rows: %w", err)
	}

	result := make([]*watch.Article, 0, len(found))
	for _, row := range found {
		a, err := s.loadArticle(ctx, row)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// loadArticle attaches the stored revisions to an article row.
func (s *SQLiteDatabase) loadArticle(ctx context.Context, row sqlc.Article) (*watch.Article, error) {
	region, err := watch.ParseRegion(row.Region)
	if err != nil {
		return nil, fmt.Errorf("article %s: %w", row.ID, err)
	}

	revRows, err := s.queries.GetRevisionsByArticleID(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("loading revisions: %w", err)
	}

	revisions := make([]watch.Revision, len(revRows))
	for i, r := range revRows {
		revisions[i] = watch.Revision{
			User:      r.UserName,
			Timestamp: r.EditedAt,
			Size:      r.Size,
			Comment:   r.Comment,
			Seen:      r.Seen,
		}
	}

	var lastReloaded time.Time
	if row.LastReloadedAt.Valid {
		lastReloaded = row.LastReloadedAt.Time
	}

	return watch.RestoreArticle(row.ID, row.Name, region, row.AddedAt, lastReloaded, row.Notes, revisions), nil
}

// nullTime maps the zero "never" time to NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Operation journal

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*sqlc.Operation, error) {
	ctx := context.Background()
	startedAt := time.Now().UTC()
	id, err := s.queries.InsertOperation(ctx, sqlc.InsertOperationParams{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return &sqlc.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	err := s.queries.UpdateOperationFinished(context.Background(), sqlc.UpdateOperationFinishedParams{
		FinishedAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindOperationByID(id int64) (*sqlc.Operation, error) {
	op, err := s.queries.GetOperationByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding operation: %w", err)
	}
	return &op, nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*sqlc.Operation, error) {
	ops, err := s.queries.GetOperations(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}

	result := make([]*sqlc.Operation, len(ops))
	for i := range ops {
		result[i] = &ops[i]
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	id, err := s.queries.GetMaxOperationID(context.Background())
	if err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate brings the schema up to date.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements watch.Store interface
var _ watch.Store = (*SQLiteDatabase)(nil)
