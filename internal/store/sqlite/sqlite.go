// Package sqlite implements the vault stores on an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/skhoolar/skhoolar/internal/store"
)

// openDB opens (or creates) a SQLite database at path and applies stmts.
func openDB(path string, stmts []string) (*sql.DB, error) {
	if path == "" {
		return nil, store.Unavailable("open sqlite", fmt.Errorf("database path not set"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, store.Unavailable("create database directory", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, store.Unavailable("open sqlite", err)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, store.Unavailable("migrate sqlite", fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err))
		}
	}

	// The database only ever holds secrets.
	if err := os.Chmod(path, 0o600); err != nil {
		slog.Warn("sqlite store: could not restrict database permissions", "path", path, "error", err)
	}

	return db, nil
}
