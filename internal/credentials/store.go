package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skhoolar/skhoolar/internal/store"
	"github.com/skhoolar/skhoolar/internal/vault"
)

var (
	// ErrNotConfigured means no credential has been saved. It is a normal
	// state, not a failure.
	ErrNotConfigured = errors.New("no credential configured")

	// ErrIntegrity means a stored credential exists but cannot be decrypted
	// or parsed. The stored data is left untouched.
	ErrIntegrity = errors.New("stored credential is corrupted or unreadable")

	// ErrStorageUnavailable means the key store or blob store failed.
	ErrStorageUnavailable = store.ErrUnavailable
)

// State is where a profile sits in the credential lifecycle.
type State int

const (
	// Uninitialized: no key, no credential.
	Uninitialized State = iota
	// KeyOnly: the vault key exists but no credential is saved.
	KeyOnly
	// Configured: a credential is saved and readable.
	Configured
	// Corrupted: a credential is saved but cannot be read.
	Corrupted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case KeyOnly:
		return "key-only"
	case Configured:
		return "configured"
	case Corrupted:
		return "corrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Store saves, loads and clears the single credential record.
type Store struct {
	vault *vault.Vault
	blobs store.BlobStore
	name  string
}

// NewStore creates a Store over v and blobs.
func NewStore(v *vault.Vault, blobs store.BlobStore) *Store {
	return &Store{vault: v, blobs: blobs, name: store.CredentialBlobName}
}

// Save validates r and replaces any previously stored record.
func (s *Store) Save(ctx context.Context, r Record) error {
	plaintext, err := Encode(r)
	if err != nil {
		return err
	}
	blob, err := s.vault.Encrypt(ctx, string(plaintext))
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	if err := s.blobs.PutBlob(ctx, s.name, blob); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	slog.Info("credential saved", "record", r)
	return nil
}

// Load returns the stored record, ErrNotConfigured if there is none, or
// ErrIntegrity if it cannot be read.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	blob, err := s.blobs.GetBlob(ctx, s.name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	// A blob without a key can never decrypt; don't mint a fresh key for it.
	hasKey, err := s.vault.HasKey(ctx)
	if err != nil {
		return nil, err
	}
	if !hasKey {
		return nil, fmt.Errorf("%w: encryption key missing", ErrIntegrity)
	}

	plaintext, err := s.vault.Decrypt(ctx, blob)
	if err != nil {
		if errors.Is(err, vault.ErrIntegrity) {
			return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
		}
		return nil, err
	}
	r, err := Decode([]byte(plaintext))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return r, nil
}

// Clear removes the stored record. Clearing an empty store succeeds.
// The vault key is kept.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.blobs.DeleteBlob(ctx, s.name); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	slog.Info("credential cleared")
	return nil
}

// Exists reports whether a record is stored, without decrypting it.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	ok, err := s.blobs.HasBlob(ctx, s.name)
	if err != nil {
		return false, fmt.Errorf("check credential: %w", err)
	}
	return ok, nil
}

// State reports the lifecycle state. It never creates a key.
func (s *Store) State(ctx context.Context) (State, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return Uninitialized, err
	}
	if !exists {
		hasKey, err := s.vault.HasKey(ctx)
		if err != nil {
			return Uninitialized, err
		}
		if hasKey {
			return KeyOnly, nil
		}
		return Uninitialized, nil
	}

	_, err = s.Load(ctx)
	switch {
	case err == nil:
		return Configured, nil
	case errors.Is(err, ErrIntegrity):
		return Corrupted, nil
	case errors.Is(err, ErrNotConfigured):
		// Cleared between Exists and Load.
		return s.State(ctx)
	default:
		return Uninitialized, err
	}
}
