package testutil

import (
	"wikiwatch/internal/encryption"
	"wikiwatch/internal/watch"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() watch.Encryptor {
	return encryption.NewTestEncryptor()
}
