package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/skhoolar/skhoolar/internal/store"
)

// KeyStore implements store.KeyStore backed by an encryption_keys table.
type KeyStore struct {
	db *sql.DB
}

// NewKeyStore opens the key database at path.
func NewKeyStore(path string) (*KeyStore, error) {
	db, err := openDB(path, []string{
		`CREATE TABLE IF NOT EXISTS encryption_keys (
			name TEXT PRIMARY KEY,
			descriptor BLOB NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("sqlite key store opened", "path", path)
	return &KeyStore{db: db}, nil
}

func (s *KeyStore) GetKey(ctx context.Context, name string) ([]byte, error) {
	var desc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT descriptor FROM encryption_keys WHERE name = ?`, name).Scan(&desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("get key", err)
	}
	return desc, nil
}

// CreateKey relies on ON CONFLICT DO NOTHING so only the first writer's descriptor lands.
func (s *KeyStore) CreateKey(ctx context.Context, name string, desc []byte) ([]byte, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO encryption_keys (name, descriptor) VALUES (?, ?)
		 ON CONFLICT (name) DO NOTHING`, name, desc)
	if err != nil {
		return nil, store.Unavailable("create key", err)
	}
	return s.GetKey(ctx, name)
}

func (s *KeyStore) Close() error { return s.db.Close() }
