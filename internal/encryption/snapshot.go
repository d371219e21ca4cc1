package encryption

import (
	"fmt"
	"io"

	"filippo.io/age"

	"wikiwatch/internal/config"
	"wikiwatch/internal/watch"
)

// SnapshotEncryptor seals database snapshots with age. Sealing needs only
// the public key, so routine snapshot pushes never prompt for a passphrase.
type SnapshotEncryptor struct {
	keys keyPair
}

var _ watch.Encryptor = (*SnapshotEncryptor)(nil)

func NewSnapshotEncryptor(cfg config.EncryptionConfig) *SnapshotEncryptor {
	return &SnapshotEncryptor{keys: keyPair{
		recipientPath: cfg.PublicKeyPath,
		identityPath:  cfg.PrivateKeyPath,
	}}
}

// Setup creates the key pair. It refuses to replace existing keys, since
// snapshots sealed with them would become unreadable.
func (e *SnapshotEncryptor) Setup(passphrase string) error {
	if e.keys.exists() {
		return fmt.Errorf("%w: %s", ErrKeysExist, e.keys.recipientPath)
	}
	return e.keys.generate(passphrase)
}

func (e *SnapshotEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.keys.recipient()
	if err != nil {
		return err
	}

	sealed, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(sealed, r); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

func (e *SnapshotEncryptor) Unlock(passphrase string) (watch.DecryptionContext, error) {
	identity, err := e.keys.identity(passphrase)
	if err != nil {
		return nil, err
	}
	return &unlockedKey{identity: identity}, nil
}

func (e *SnapshotEncryptor) IsConfigured() bool {
	return e.keys.exists()
}

// unlockedKey keeps the private key in memory for one restore.
type unlockedKey struct {
	identity age.Identity
}

func (u *unlockedKey) Decrypt(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, u.identity)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return nil
}
