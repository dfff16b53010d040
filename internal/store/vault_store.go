package store

import (
	"context"
	"errors"
	"fmt"
)

// Entry names of the two records the vault persists. They live in separate
// stores so clearing credentials never touches the encryption key.
const (
	EncryptionKeyName  = "skhoolar_encryption_key"
	CredentialBlobName = "skhoolar_encrypted_api_keys"
)

var (
	// ErrNotFound is returned when the named entry does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrUnavailable is returned when the backing store cannot be opened or used
	// (missing directory permissions, keychain locked, database down, ...).
	ErrUnavailable = errors.New("storage unavailable")
)

// Unavailable wraps a backend failure so callers can match it with errors.Is(err, ErrUnavailable).
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// KeyStore persists encryption key descriptors (exported JWKs).
type KeyStore interface {
	// GetKey returns the descriptor stored under name, or ErrNotFound.
	GetKey(ctx context.Context, name string) ([]byte, error)

	// CreateKey stores desc under name only if no descriptor exists yet.
	// It returns the descriptor that is persisted once the call completes:
	// desc when this caller won, the existing descriptor otherwise.
	CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error)

	Close() error
}

// BlobStore persists encrypted credential blobs.
type BlobStore interface {
	// GetBlob returns the blob stored under name, or ErrNotFound.
	GetBlob(ctx context.Context, name string) (string, error)
	// PutBlob stores blob under name, replacing any previous value.
	PutBlob(ctx context.Context, name, blob string) error
	// DeleteBlob removes name. Deleting a missing entry is not an error.
	DeleteBlob(ctx context.Context, name string) error
	// HasBlob reports whether name exists without reading it.
	HasBlob(ctx context.Context, name string) (bool, error)

	Close() error
}
