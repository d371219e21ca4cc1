package testutil

import (
	"wikiwatch/internal/archive"
	"wikiwatch/internal/watch"
)

// NewTestArchive creates a new in-memory archive for testing.
func NewTestArchive() watch.Archive {
	return archive.NewMemoryArchive("test-archive")
}
