package watch

import "errors"

var (
	// ErrFetchFailed is returned by WikiSource implementations for any failed
	// revision fetch: transport errors, malformed responses and pages without
	// revision data all collapse into it.
	ErrFetchFailed = errors.New("fetching revisions failed")

	// ErrPageNotFound means the remote existence check returned false.
	// A failed check is indistinguishable from a missing page.
	ErrPageNotFound = errors.New("page does not exist")

	ErrArticleNotFound = errors.New("article not found")
	ErrAlreadyTracked  = errors.New("article already tracked")
	ErrAmbiguousRef    = errors.New("article reference is ambiguous")
)
