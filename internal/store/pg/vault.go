package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skhoolar/skhoolar/internal/store"
)

// PGKeyStore implements store.KeyStore backed by Postgres.
type PGKeyStore struct {
	db *sqlx.DB
}

func NewPGKeyStore(dsn string) (*PGKeyStore, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &PGKeyStore{db: db}, nil
}

func (s *PGKeyStore) GetKey(ctx context.Context, name string) ([]byte, error) {
	var desc []byte
	err := s.db.GetContext(ctx, &desc, `SELECT descriptor FROM encryption_keys WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("get key", err)
	}
	return desc, nil
}

func (s *PGKeyStore) CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO encryption_keys (name, descriptor, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING`,
		name, desc, time.Now(),
	)
	if err != nil {
		return nil, store.Unavailable("create key", err)
	}
	return s.GetKey(ctx, name)
}

func (s *PGKeyStore) Close() error { return s.db.Close() }

// PGBlobStore implements store.BlobStore backed by Postgres.
type PGBlobStore struct {
	db *sqlx.DB
}

func NewPGBlobStore(dsn string) (*PGBlobStore, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &PGBlobStore{db: db}, nil
}

func (s *PGBlobStore) GetBlob(ctx context.Context, name string) (string, error) {
	var blob string
	err := s.db.GetContext(ctx, &blob, `SELECT blob FROM credential_blobs WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", store.Unavailable("get blob", err)
	}
	return blob, nil
}

func (s *PGBlobStore) PutBlob(ctx context.Context, name, blob string) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credential_blobs (name, blob, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET blob = $2, updated_at = $3`,
		name, blob, time.Now(),
	)
	if err != nil {
		return store.Unavailable("put blob", err)
	}
	return nil
}

func (s *PGBlobStore) DeleteBlob(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential_blobs WHERE name = $1`, name); err != nil {
		return store.Unavailable("delete blob", err)
	}
	return nil
}

func (s *PGBlobStore) HasBlob(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM credential_blobs WHERE name = $1)`, name)
	if err != nil {
		return false, store.Unavailable("check blob", err)
	}
	return exists, nil
}

func (s *PGBlobStore) Close() error { return s.db.Close() }
