// Package keyring implements the vault stores on the OS credential manager
// (macOS Keychain, Windows Credential Manager, Secret Service on Linux).
package keyring

import (
	"context"
	"errors"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/skhoolar/skhoolar/internal/store"
)

// DefaultService is the base keychain service name. Keys are filed under
// <service>-keys and blobs under <service>-credentials, so the two stores
// never share a namespace.
const DefaultService = "skhoolar"

const (
	keySuffix  = "-keys"
	blobSuffix = "-credentials"
)

func serviceName(base, suffix string) string {
	if base == "" {
		base = DefaultService
	}
	return base + suffix
}

// The OS credential managers offer no insert-if-absent primitive, so
// CreateKey serializes writers within the process and re-reads after
// writing. Two processes racing on an empty keychain can still both write;
// the last write wins and the loser adopts it on its next GetKey.

// KeyStore implements store.KeyStore.
type KeyStore struct {
	service string
	mu      sync.Mutex
}

func NewKeyStore(service string) *KeyStore {
	return &KeyStore{service: serviceName(service, keySuffix)}
}

func (s *KeyStore) GetKey(_ context.Context, name string) ([]byte, error) {
	v, err := get(s.service, name)
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (s *KeyStore) CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetKey(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := keyring.Set(s.service, name, string(desc)); err != nil {
		return nil, store.Unavailable("keyring set", err)
	}
	return s.GetKey(ctx, name)
}

func (s *KeyStore) Close() error { return nil }

// BlobStore implements store.BlobStore.
type BlobStore struct {
	service string
}

func NewBlobStore(service string) *BlobStore {
	return &BlobStore{service: serviceName(service, blobSuffix)}
}

func (s *BlobStore) GetBlob(_ context.Context, name string) (string, error) {
	return get(s.service, name)
}

func (s *BlobStore) PutBlob(_ context.Context, name, blob string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	if err := keyring.Set(s.service, name, blob); err != nil {
		return store.Unavailable("keyring set", err)
	}
	return nil
}

func (s *BlobStore) DeleteBlob(_ context.Context, name string) error {
	err := keyring.Delete(s.service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return store.Unavailable("keyring delete", err)
	}
	return nil
}

func (s *BlobStore) HasBlob(ctx context.Context, name string) (bool, error) {
	_, err := s.GetBlob(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *BlobStore) Close() error { return nil }

func get(service, name string) (string, error) {
	v, err := keyring.Get(service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", store.Unavailable("keyring get", err)
	}
	return v, nil
}
