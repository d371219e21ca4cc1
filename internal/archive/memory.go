package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"wikiwatch/internal/watch"
)

// MemoryArchive keeps snapshots in memory. It is safe for concurrent use
// and intended for tests and dry runs.
type MemoryArchive struct {
	name      string
	mu        sync.RWMutex
	snapshots map[string][]byte
	versions  map[string]int64
}

var _ watch.Archive = (*MemoryArchive)(nil)

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{
		name:      name,
		snapshots: make(map[string][]byte),
		versions:  make(map[string]int64),
	}
}

func (m *MemoryArchive) PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := validateName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[name] = data
	m.versions[name] = version
	return nil
}

func (m *MemoryArchive) GetSnapshot(ctx context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (m *MemoryArchive) SnapshotVersion(ctx context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[name], nil
}

// ValidateSetup always succeeds.
func (m *MemoryArchive) ValidateSetup(ctx context.Context) error {
	return nil
}
