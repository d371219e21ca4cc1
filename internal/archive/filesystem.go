package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wikiwatch/internal/watch"
)

// FileSystemArchive stores snapshots as files, typically on a mounted
// backup disk:
//
//	<root>/
//	  snapshots/
//	    <name>          (snapshot bytes)
//	    <name>.version  (decimal version)
type FileSystemArchive struct {
	name string
	root string
	dir  string
}

var _ watch.Archive = (*FileSystemArchive)(nil)

// NewFileSystemArchive creates the directory layout under root if needed.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	dir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSystemArchive{name: name, root: root, dir: dir}, nil
}

func (a *FileSystemArchive) PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := a.writeFile(filepath.Join(a.dir, name), r, size); err != nil {
		return err
	}

	versionPath := filepath.Join(a.dir, name+".version")
	if err := os.WriteFile(versionPath, []byte(strconv.FormatInt(version, 10)), 0644); err != nil {
		return fmt.Errorf("writing version file: %w", err)
	}
	return nil
}

func (a *FileSystemArchive) GetSnapshot(ctx context.Context, name string, w io.Writer) error {
	if err := validateName(name); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(a.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns 0 if no version file exists.
func (a *FileSystemArchive) SnapshotVersion(ctx context.Context, name string) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(filepath.Join(a.dir, name+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the snapshot directory is accessible.
func (a *FileSystemArchive) ValidateSetup(ctx context.Context) error {
	for _, dir := range []string{a.root, a.dir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("archive directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("archive path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes r to destPath via a temp file and rename, so a reader
// never sees a half-written snapshot.
func (a *FileSystemArchive) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}
