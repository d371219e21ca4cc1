package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"wikiwatch/internal/config"
)

const testPassphrase = "correct horse battery"

func newTestSnapshotEncryptor(t *testing.T) *SnapshotEncryptor {
	t.Helper()
	dir := t.TempDir()
	e := NewSnapshotEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "wikiwatch.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "wikiwatch.key"),
	})
	// Keep scrypt cheap in tests.
	e.keys.workFactor = 10
	return e
}

func TestSnapshotEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("writes both key files", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		if e.IsConfigured() {
			t.Fatal("IsConfigured() = true before Setup")
		}

		if err := e.Setup(testPassphrase); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup")
		}

		info, err := os.Stat(e.keys.identityPath)
		if err != nil {
			t.Fatalf("stat private key: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("private key mode = %o, want 600", perm)
		}
	})

	t.Run("refuses to overwrite keys", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		if err := e.Setup(testPassphrase); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		before, _ := os.ReadFile(e.keys.recipientPath)

		err := e.Setup(testPassphrase)
		if !errors.Is(err, ErrKeysExist) {
			t.Errorf("second Setup() error = %v, want ErrKeysExist", err)
		}
		after, _ := os.ReadFile(e.keys.recipientPath)
		if !bytes.Equal(before, after) {
			t.Error("public key changed after refused Setup")
		}
	})

	t.Run("rejects short passphrase", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		if err := e.Setup("short"); err == nil {
			t.Error("Setup() with short passphrase expected error")
		}
		if e.IsConfigured() {
			t.Error("IsConfigured() = true after failed Setup")
		}
	})
}

func TestSnapshotEncryptor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "sqlite header", input: []byte("SQLite format 3\x00")},
		{name: "empty", input: []byte{}},
		{name: "large", input: bytes.Repeat([]byte("revision"), 20000)},
	}

	e := newTestSnapshotEncryptor(t)
	if err := e.Setup(testPassphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	key, err := e.Unlock(testPassphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sealed bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(sealed.Bytes(), tt.input) {
				t.Error("ciphertext contains plaintext")
			}

			var plain bytes.Buffer
			if err := key.Decrypt(&sealed, &plain); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(plain.Bytes(), tt.input) {
				t.Errorf("round trip returned %d bytes, want %d", plain.Len(), len(tt.input))
			}
		})
	}
}

func TestSnapshotEncryptor_Errors(t *testing.T) {
	t.Parallel()

	t.Run("wrong passphrase", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		if err := e.Setup(testPassphrase); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if _, err := e.Unlock("not the passphrase"); err == nil {
			t.Error("Unlock() with wrong passphrase expected error")
		}
	})

	t.Run("encrypt before setup", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		var buf bytes.Buffer
		if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); err == nil {
			t.Error("Encrypt() before Setup expected error")
		}
	})

	t.Run("unlock before setup", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		if _, err := e.Unlock(testPassphrase); err == nil {
			t.Error("Unlock() before Setup expected error")
		}
	})

	t.Run("decrypt tampered snapshot", func(t *testing.T) {
		t.Parallel()
		e := newTestSnapshotEncryptor(t)
		if err := e.Setup(testPassphrase); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		var sealed bytes.Buffer
		if err := e.Encrypt(bytes.NewReader([]byte("payload")), &sealed); err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		data := sealed.Bytes()
		data[len(data)-1] ^= 0xff

		key, err := e.Unlock(testPassphrase)
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		var out bytes.Buffer
		if err := key.Decrypt(bytes.NewReader(data), &out); err == nil {
			t.Error("Decrypt() of tampered snapshot expected error")
		}
	})
}
