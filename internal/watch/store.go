package watch

import "wikiwatch/internal/database/sqlc"

// ArticleFilter narrows ListArticles. Zero values match everything.
type ArticleFilter struct {
	Name       string
	Region     *Region
	UnseenOnly bool
}

// Store persists tracked articles and the operation journal.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	// Article operations

	// InsertArticle stores a new article together with its revisions.
	InsertArticle(article *Article) error

	// SaveArticle writes the mutable state of an article: LastReloaded,
	// Notes, seen flags and any revisions not stored yet. Stored revision
	// content is never overwritten.
	SaveArticle(article *Article) error

	// DeleteArticle removes an article and every revision it owns.
	DeleteArticle(id string) error

	// FindArticleByID returns the article with the given ID.
	FindArticleByID(id string) (*Article, error)

	// FindArticleByName returns the article tracking title on region.
	FindArticleByName(name string, region Region) (*Article, error)

	// ListArticles returns matching articles ordered by name.
	ListArticles(filter ArticleFilter) ([]*Article, error)

	// Operation journal

	// CreateOperation records the start of a mutating CLI operation.
	CreateOperation(operation string, parameters string) (*sqlc.Operation, error)

	// FinishOperation stamps the finish time and final status.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*sqlc.Operation, error)

	// MaxOperationID returns the highest operation ID, or 0.
	MaxOperationID() (int64, error)

	// Close closes the underlying connection.
	Close() error
}
