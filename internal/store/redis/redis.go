// Package redis implements the vault stores on a Redis server.
//
// Keys live under <prefix>keys:<name> and blobs under <prefix>blobs:<name>,
// so the two stores can share one server without sharing state.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skhoolar/skhoolar/internal/store"
)

// DefaultPrefix namespaces every key the vault writes.
const DefaultPrefix = "skhoolar:"

const dialTimeout = 5 * time.Second

// Options addresses a Redis server.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func open(opts Options) (*redis.Client, string, error) {
	if opts.Addr == "" {
		return nil, "", store.Unavailable("open redis", errors.New("address not set"))
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, "", store.Unavailable("ping redis", err)
	}

	slog.Debug("redis store connected", "addr", opts.Addr, "db", opts.DB, "prefix", prefix)
	return client, prefix, nil
}

// KeyStore implements store.KeyStore with SETNX for first-writer-wins creation.
type KeyStore struct {
	client *redis.Client
	prefix string
}

func NewKeyStore(opts Options) (*KeyStore, error) {
	client, prefix, err := open(opts)
	if err != nil {
		return nil, err
	}
	return &KeyStore{client: client, prefix: prefix + "keys:"}, nil
}

func (s *KeyStore) GetKey(ctx context.Context, name string) ([]byte, error) {
	desc, err := s.client.Get(ctx, s.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("get key", err)
	}
	return desc, nil
}

func (s *KeyStore) CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	if err := s.client.SetNX(ctx, s.prefix+name, desc, 0).Err(); err != nil {
		return nil, store.Unavailable("create key", err)
	}
	return s.GetKey(ctx, name)
}

func (s *KeyStore) Close() error { return s.client.Close() }

// BlobStore implements store.BlobStore.
type BlobStore struct {
	client *redis.Client
	prefix string
}

func NewBlobStore(opts Options) (*BlobStore, error) {
	client, prefix, err := open(opts)
	if err != nil {
		return nil, err
	}
	return &BlobStore{client: client, prefix: prefix + "blobs:"}, nil
}

func (s *BlobStore) GetBlob(ctx context.Context, name string) (string, error) {
	blob, err := s.client.Get(ctx, s.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", store.Unavailable("get blob", err)
	}
	return blob, nil
}

func (s *BlobStore) PutBlob(ctx context.Context, name, blob string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+name, blob, 0).Err(); err != nil {
		return store.Unavailable("put blob", err)
	}
	return nil
}

func (s *BlobStore) DeleteBlob(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.prefix+name).Err(); err != nil {
		return store.Unavailable("delete blob", err)
	}
	return nil
}

func (s *BlobStore) HasBlob(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+name).Result()
	if err != nil {
		return false, store.Unavailable("check blob", err)
	}
	return n > 0, nil
}

func (s *BlobStore) Close() error { return s.client.Close() }

func (o Options) String() string {
	return fmt.Sprintf("redis://%s/%d", o.Addr, o.DB)
}
