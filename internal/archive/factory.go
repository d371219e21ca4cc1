package archive

import (
	"context"
	"fmt"

	"wikiwatch/internal/config"
	"wikiwatch/internal/watch"
)

// NewArchiveFromConfig creates an Archive based on the archive config type.
// Type "none" (or empty) disables snapshots and returns a nil Archive.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig) (watch.Archive, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryArchive(cfg.Name), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		a, err := NewFileSystemArchive(cfg.Name, cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "s3":
		a, err := NewS3Archive(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
