// Package bootstrap wires configuration into the vault stores, the
// credential store and the provider settings shared by the CLI and the
// HTTP gateway.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skhoolar/skhoolar/internal/config"
	"github.com/skhoolar/skhoolar/internal/credentials"
	"github.com/skhoolar/skhoolar/internal/store"
	"github.com/skhoolar/skhoolar/internal/store/file"
	"github.com/skhoolar/skhoolar/internal/store/keyring"
	"github.com/skhoolar/skhoolar/internal/store/pg"
	"github.com/skhoolar/skhoolar/internal/store/redis"
	"github.com/skhoolar/skhoolar/internal/store/s3store"
	"github.com/skhoolar/skhoolar/internal/store/sqlite"
	"github.com/skhoolar/skhoolar/internal/vault"
)

// StoreConfig converts the file form of a store section.
func StoreConfig(sc config.StoreConfig) store.StoreConfig {
	return store.StoreConfig{
		Backend:  config.NormalizeBackend(sc.Backend),
		Path:     sc.Path,
		DSN:      sc.DSN,
		Addr:     sc.Addr,
		Password: sc.Password,
		DB:       sc.DB,
		Prefix:   sc.Prefix,
		Service:  sc.Service,

		Bucket:    sc.Bucket,
		Region:    sc.Region,
		Endpoint:  sc.Endpoint,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
	}
}

// OpenKeyStore opens the key store selected by sc.
func OpenKeyStore(sc store.StoreConfig) (store.KeyStore, error) {
	switch sc.Backend {
	case store.BackendKeyring:
		return keyring.NewKeyStore(sc.Service), nil
	case store.BackendSQLite:
		return sqlite.NewKeyStore(sc.Path)
	case store.BackendFile:
		return file.NewKeyStore(sc.Path)
	case store.BackendPostgres:
		return pg.NewPGKeyStore(sc.DSN)
	case store.BackendRedis:
		return redis.NewKeyStore(redisOptions(sc))
	case store.BackendS3:
		return s3store.NewKeyStore(context.Background(), s3Options(sc))
	}
	return nil, fmt.Errorf("unknown key store backend %q", sc.Backend)
}

// OpenBlobStore opens the blob store selected by sc.
func OpenBlobStore(sc store.StoreConfig) (store.BlobStore, error) {
	switch sc.Backend {
	case store.BackendKeyring:
		return keyring.NewBlobStore(sc.Service), nil
	case store.BackendSQLite:
		return sqlite.NewBlobStore(sc.Path)
	case store.BackendFile:
		return file.NewBlobStore(sc.Path)
	case store.BackendPostgres:
		return pg.NewPGBlobStore(sc.DSN)
	case store.BackendRedis:
		return redis.NewBlobStore(redisOptions(sc))
	case store.BackendS3:
		return s3store.NewBlobStore(context.Background(), s3Options(sc))
	}
	return nil, fmt.Errorf("unknown blob store backend %q", sc.Backend)
}

func redisOptions(sc store.StoreConfig) redis.Options {
	return redis.Options{Addr: sc.Addr, Password: sc.Password, DB: sc.DB, Prefix: sc.Prefix}
}

func s3Options(sc store.StoreConfig) s3store.Options {
	return s3store.Options{
		Bucket:    sc.Bucket,
		Region:    sc.Region,
		Endpoint:  sc.Endpoint,
		Prefix:    sc.Prefix,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
	}
}

// Vault bundles the opened stores with the vault and credential store over them.
type Vault struct {
	Keys        store.KeyStore
	Blobs       store.BlobStore
	Vault       *vault.Vault
	Credentials *credentials.Store
}

// OpenVault opens both stores described by cfg. The key and the blob are
// always kept in separate stores, even when both use the same backend.
func OpenVault(cfg config.VaultConfig) (*Vault, error) {
	keys, err := OpenKeyStore(StoreConfig(cfg.KeyStore))
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	blobs, err := OpenBlobStore(StoreConfig(cfg.BlobStore))
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	slog.Debug("vault stores opened",
		"key_store", cfg.KeyStore.Backend,
		"blob_store", cfg.BlobStore.Backend,
	)

	v := vault.New(keys)
	return &Vault{
		Keys:        keys,
		Blobs:       blobs,
		Vault:       v,
		Credentials: credentials.NewStore(v, blobs),
	}, nil
}

// Close closes both stores.
func (v *Vault) Close() error {
	return errors.Join(v.Keys.Close(), v.Blobs.Close())
}
