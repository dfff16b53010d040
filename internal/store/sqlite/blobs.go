package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/skhoolar/skhoolar/internal/store"
)

// BlobStore implements store.BlobStore backed by a credential_blobs table.
type BlobStore struct {
	db *sql.DB
}

// NewBlobStore opens the blob database at path.
func NewBlobStore(path string) (*BlobStore, error) {
	db, err := openDB(path, []string{
		`CREATE TABLE IF NOT EXISTS credential_blobs (
			name TEXT PRIMARY KEY,
			blob TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("sqlite blob store opened", "path", path)
	return &BlobStore{db: db}, nil
}

func (s *BlobStore) GetBlob(ctx context.Context, name string) (string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM credential_blobs WHERE name = ?`, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credential_blobs (name, blob, updated_at) VALUES (?, ?, strftime('%s','now'))
		 ON CONFLICT (name) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		name, blob)
	if err != nil {
		return store.Unavailable("put blob", err)
	}
	return nil
}

func (s *BlobStore) DeleteBlob(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential_blobs WHERE name = ?`, name); err != nil {
		return store.Unavailable("delete blob", err)
	}
	return nil
}

func (s *BlobStore) HasBlob(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credential_blobs WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, store.Unavailable("check blob", err)
	}
	return n > 0, nil
}

func (s *BlobStore) Close() error { return s.db.Close() }
