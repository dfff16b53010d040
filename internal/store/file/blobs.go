package file

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/skhoolar/skhoolar/internal/store"
)

// BlobStore implements store.BlobStore with one file per blob.
// Writes go through a temp file and rename so readers never see a partial blob.
type BlobStore struct {
	dir *dir
}

// NewBlobStore opens (creating if needed) the blob directory.
func NewBlobStore(path string) (*BlobStore, error) {
	d, err := openDir(path, ".blob")
	if err != nil {
		return nil, err
	}
	return &BlobStore{dir: d}, nil
}

func (s *BlobStore) GetBlob(_ context.Context, name string) (string, error) {
	path, err := s.dir.file(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", store.Unavailable("read blob", err)
	}
	return string(data), nil
}

func (s *BlobStore) PutBlob(_ context.Context, name, blob string) error {
	path, err := s.dir.file(name)
	if err != nil {
		return err
	}
	tmp, err := s.dir.writeTemp([]byte(blob))
	if err != nil {
		return store.Unavailable("write blob", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return store.Unavailable("replace blob", err)
	}
	return nil
}

func (s *BlobStore) DeleteBlob(_ context.Context, name string) error {
	path, err := s.dir.file(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return store.Unavailable("delete blob", err)
	}
	return nil
}

func (s *BlobStore) HasBlob(_ context.Context, name string) (bool, error) {
	path, err := s.dir.file(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, store.Unavailable("stat blob", err)
	}
	return true, nil
}

func (s *BlobStore) Close() error { return nil }
