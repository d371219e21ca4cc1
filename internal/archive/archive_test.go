package archive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"wikiwatch/internal/watch"
)

// archiveContract runs the behaviour every backend must share.
func archiveContract(t *testing.T, newArchive func(t *testing.T) watch.Archive) {
	ctx := context.Background()

	t.Run("put and get snapshot", func(t *testing.T) {
		a := newArchive(t)
		data := "sqlite snapshot bytes"

		if err := a.PutSnapshot(ctx, "wikiwatch.db", strings.NewReader(data), int64(len(data)), 7); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		var buf bytes.Buffer
		if err := a.GetSnapshot(ctx, "wikiwatch.db", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetSnapshot() = %q, want %q", buf.String(), data)
		}

		version, err := a.SnapshotVersion(ctx, "wikiwatch.db")
		if err != nil {
			t.Fatalf("SnapshotVersion() error = %v", err)
		}
		if version != 7 {
			t.Errorf("SnapshotVersion() = %d, want 7", version)
		}
	})

	t.Run("overwrite replaces content and version", func(t *testing.T) {
		a := newArchive(t)
		for i, data := range []string{"first", "second"} {
			if err := a.PutSnapshot(ctx, "wikiwatch.db", strings.NewReader(data), int64(len(data)), int64(i+1)); err != nil {
				t.Fatalf("PutSnapshot(%d) error = %v", i, err)
			}
		}

		var buf bytes.Buffer
		if err := a.GetSnapshot(ctx, "wikiwatch.db", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != "second" {
			t.Errorf("GetSnapshot() = %q, want %q", buf.String(), "second")
		}
		if v, _ := a.SnapshotVersion(ctx, "wikiwatch.db"); v != 2 {
			t.Errorf("SnapshotVersion() = %d, want 2", v)
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		a := newArchive(t)

		var buf bytes.Buffer
		err := a.GetSnapshot(ctx, "absent.db", &buf)
		if !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("GetSnapshot() error = %v, want ErrSnapshotNotFound", err)
		}

		version, err := a.SnapshotVersion(ctx, "absent.db")
		if err != nil {
			t.Fatalf("SnapshotVersion() error = %v", err)
		}
		if version != 0 {
			t.Errorf("SnapshotVersion() = %d, want 0", version)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		a := newArchive(t)
		err := a.PutSnapshot(ctx, "wikiwatch.db", strings.NewReader("short"), 100, 1)
		if err == nil {
			t.Error("PutSnapshot() expected error for size mismatch")
		}
	})

	t.Run("rejects path-like names", func(t *testing.T) {
		a := newArchive(t)
		for _, name := range []string{"", "..", "../escape.db", `dir\file`} {
			if err := a.PutSnapshot(ctx, name, strings.NewReader("x"), 1, 1); err == nil {
				t.Errorf("PutSnapshot(%q) expected error", name)
			}
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		a := newArchive(t)
		if err := a.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func TestMemoryArchive(t *testing.T) {
	archiveContract(t, func(t *testing.T) watch.Archive {
		return NewMemoryArchive("test")
	})
}

func TestFileSystemArchive(t *testing.T) {
	archiveContract(t, func(t *testing.T) watch.Archive {
		a, err := NewFileSystemArchive("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemArchive() error = %v", err)
		}
		return a
	})
}

func TestS3Archive(t *testing.T) {
	archiveContract(t, func(t *testing.T) watch.Archive {
		fake := newFakeS3()
		return newS3Archive("test", "bucket", "backups/", fake, fake)
	})
}
