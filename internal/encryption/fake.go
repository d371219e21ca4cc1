package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"wikiwatch/internal/watch"
)

// snapshotMarker prefixes every snapshot sealed by TestEncryptor.
var snapshotMarker = []byte("WWSNAP\x00\x01")

// TestEncryptor frames data with a fixed marker instead of encrypting it.
// Output is deterministic and differs from the input, which is all the
// snapshot plumbing needs from it in tests.
type TestEncryptor struct {
	configured bool
}

var _ watch.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(snapshotMarker); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying snapshot: %w", err)
	}
	return nil
}

// Unlock accepts any passphrase.
func (e *TestEncryptor) Unlock(passphrase string) (watch.DecryptionContext, error) {
	return markerStripper{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

type markerStripper struct{}

func (markerStripper) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(snapshotMarker))
	if err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(head, snapshotMarker) {
		return fmt.Errorf("snapshot was not sealed by the test encryptor")
	}
	if _, err := br.Discard(len(snapshotMarker)); err != nil {
		return fmt.Errorf("skipping marker: %w", err)
	}
	if _, err := io.Copy(w, br); err != nil {
		return fmt.Errorf("copying snapshot: %w", err)
	}
	return nil
}
