package watch

import "io"

// Encryptor encrypts snapshots before they leave the machine.
// Encryption needs only the public key; decryption needs the passphrase.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a session DecryptionContext.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
