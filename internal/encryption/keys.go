package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// ErrKeysExist is returned by Setup when a key pair is already on disk.
var ErrKeysExist = errors.New("snapshot keys already exist")

// minPassphraseLen guards the scrypt-wrapped private key.
const minPassphraseLen = 8

// keyPair locates the two key files on disk. The recipient file holds the
// public key in plaintext; the identity file holds the private key wrapped
// with an scrypt passphrase.
type keyPair struct {
	recipientPath string
	identityPath  string
	// workFactor is the scrypt log2 cost; zero keeps age's default.
	workFactor int
}

func (k keyPair) exists() bool {
	for _, p := range []string{k.recipientPath, k.identityPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// generate writes a fresh X25519 pair. The identity file is written first so
// a crash never leaves a public key without its private half.
func (k keyPair) generate(passphrase string) error {
	if len(passphrase) < minPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters", minPassphraseLen)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{k.recipientPath, k.identityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	wrap, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if k.workFactor > 0 {
		wrap.SetWorkFactor(k.workFactor)
	}

	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, wrap)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("sealing private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing private key: %w", err)
	}

	if err := os.WriteFile(k.identityPath, sealed.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(k.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

func (k keyPair) recipient() (age.Recipient, error) {
	data, err := os.ReadFile(k.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in %s", k.recipientPath)
	}
	return recipients[0], nil
}

func (k keyPair) identity(passphrase string) (age.Identity, error) {
	sealed, err := os.Open(k.identityPath)
	if err != nil {
		return nil, fmt.Errorf("opening private key: %w", err)
	}
	defer sealed.Close()

	unwrap, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(sealed, unwrap)
	if err != nil {
		return nil, fmt.Errorf("unsealing private key (wrong passphrase?): %w", err)
	}

	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in %s", k.identityPath)
	}
	return identities[0], nil
}
