package file

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/skhoolar/skhoolar/internal/store"
)

// KeyStore implements store.KeyStore with one file per key descriptor.
// First writes are published with os.Link, which fails if the target exists,
// so concurrent processes agree on a single key.
type KeyStore struct {
	dir *dir
}

// NewKeyStore opens (creating if needed) the key directory.
func NewKeyStore(path string) (*KeyStore, error) {
	d, err := openDir(path, ".jwk")
	if err != nil {
		return nil, err
	}
	return &KeyStore{dir: d}, nil
}

func (s *KeyStore) GetKey(_ context.Context, name string) ([]byte, error) {
	path, err := s.dir.file(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("read key", err)
	}
	return data, nil
}

func (s *KeyStore) CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error) {
	path, err := s.dir.file(name)
	if err != nil {
		return nil, err
	}

	tmp, err := s.dir.writeTemp(desc)
	if err != nil {
		return nil, store.Unavailable("write key", err)
	}
	defer os.Remove(tmp)

	err = os.Link(tmp, path)
	if errors.Is(err, fs.ErrExist) {
		slog.Debug("file key store: key already present", "name", name)
		return s.GetKey(ctx, name)
	}
	if err != nil {
		return nil, store.Unavailable("publish key", err)
	}
	return desc, nil
}

func (s *KeyStore) Close() error { return nil }
