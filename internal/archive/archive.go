// Package archive stores encrypted database snapshots away from the local
// machine: in memory, in a directory, or in an S3 bucket.
package archive

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSnapshotNotFound is returned by GetSnapshot for unknown names.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// validateName rejects names that could escape the archive root.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid snapshot name: %q", name)
	}
	return nil
}
