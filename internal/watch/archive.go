package watch

import (
	"context"
	"io"
)

// Archive stores encrypted snapshots of the local database.
// All operations stream through io.Reader/io.Writer.
type Archive interface {
	// PutSnapshot stores a named snapshot. size is the number of bytes that
	// will be read from r; version is stored alongside for ordering.
	PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the named snapshot to w.
	GetSnapshot(ctx context.Context, name string, w io.Writer) error

	// SnapshotVersion returns the stored version, or 0 if none exists.
	SnapshotVersion(ctx context.Context, name string) (int64, error)

	// ValidateSetup verifies that the archive is reachable.
	ValidateSetup(ctx context.Context) error
}
