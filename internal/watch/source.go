package watch

import (
	"context"
	"time"
)

// RawRevision is a revision record as returned by the remote wiki, before merge.
type RawRevision struct {
	User      string
	Timestamp time.Time
	Size      int64
	// Comment is rendered HTML with wiki links already made absolute.
	Comment string
}

// WikiSource fetches revision data from a remote wiki.
type WikiSource interface {
	// Exists reports whether the page exists on the region's wiki.
	// It never fails: any error is reported as false.
	Exists(ctx context.Context, title string, region Region) bool

	// FetchRevisions returns at most limit of the most recent revisions of a page.
	// Every failure wraps ErrFetchFailed.
	FetchRevisions(ctx context.Context, title string, region Region, limit int) ([]RawRevision, error)
}
