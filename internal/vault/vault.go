// Package vault owns the single long-lived AES-256-GCM key of a profile.
//
// The key is generated lazily on first use, persisted as a JWK in a
// store.KeyStore and cached for the life of the Vault. No caller ever sees
// the raw key material.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skhoolar/skhoolar/internal/crypto"
	"github.com/skhoolar/skhoolar/internal/store"
)

// ErrIntegrity is returned by Decrypt when a blob fails authentication,
// and by EnsureKey when the persisted key descriptor cannot be imported.
var ErrIntegrity = crypto.ErrIntegrity

// Vault encrypts and decrypts strings with the profile key.
type Vault struct {
	keys    store.KeyStore
	keyName string

	mu  sync.Mutex
	key *crypto.Key
}

// Option configures a Vault.
type Option func(*Vault)

// WithKeyName overrides the key store entry the key is persisted under.
func WithKeyName(name string) Option {
	return func(v *Vault) { v.keyName = name }
}

// New creates a Vault over keys. Nothing is read until the first call.
func New(keys store.KeyStore, opts ...Option) *Vault {
	v := &Vault{keys: keys, keyName: store.EncryptionKeyName}
	for _, o := range opts {
		o(v)
	}
	return v
}

// EnsureKey returns the profile key, generating and persisting it if none
// exists. Concurrent first calls, in this process or another one sharing the
// key store, all end up with the same key.
func (v *Vault) EnsureKey(ctx context.Context) (*crypto.Key, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		return v.key, nil
	}

	desc, err := v.keys.GetKey(ctx, v.keyName)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		desc, err = v.createKey(ctx)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load encryption key: %w", err)
	}

	key, err := crypto.ParseJWK(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: persisted encryption key: %w", ErrIntegrity, err)
	}
	v.key = key
	slog.Debug("vault key loaded", "fingerprint", key.Fingerprint())
	return key, nil
}

func (v *Vault) createKey(ctx context.Context) ([]byte, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	desc, err := key.MarshalJWK()
	if err != nil {
		return nil, fmt.Errorf("export encryption key: %w", err)
	}
	stored, err := v.keys.CreateKey(ctx, v.keyName, desc)
	if err != nil {
		return nil, fmt.Errorf("persist encryption key: %w", err)
	}
	if string(stored) == string(desc) {
		slog.Info("vault key generated", "name", v.keyName, "fingerprint", key.Fingerprint())
	} else {
		slog.Debug("vault key created concurrently, adopting existing", "name", v.keyName)
	}
	return stored, nil
}

// HasKey reports whether a key has been persisted, without creating one.
func (v *Vault) HasKey(ctx context.Context) (bool, error) {
	v.mu.Lock()
	cached := v.key != nil
	v.mu.Unlock()
	if cached {
		return true, nil
	}

	_, err := v.keys.GetKey(ctx, v.keyName)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check encryption key: %w", err)
	}
}

// Encrypt seals plaintext under the profile key, creating the key if needed.
func (v *Vault) Encrypt(ctx context.Context, plaintext string) (string, error) {
	key, err := v.EnsureKey(ctx)
	if err != nil {
		return "", err
	}
	return key.Seal([]byte(plaintext))
}

// Decrypt opens a blob produced by Encrypt.
func (v *Vault) Decrypt(ctx context.Context, blob string) (string, error) {
	key, err := v.EnsureKey(ctx)
	if err != nil {
		return "", err
	}
	plaintext, err := key.Open(blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Fingerprint returns the display fingerprint of the persisted key, or ""
// if none exists yet. It never creates a key.
func (v *Vault) Fingerprint(ctx context.Context) (string, error) {
	ok, err := v.HasKey(ctx)
	if err != nil || !ok {
		return "", err
	}
	key, err := v.EnsureKey(ctx)
	if err != nil {
		return "", err
	}
	return key.Fingerprint(), nil
}
