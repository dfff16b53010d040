package pg

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/skhoolar/skhoolar/internal/store"
)

// OpenDB creates a database/sql connection to Postgres using pgx driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("postgres connected", "dsn_len", len(dsn))
	return db, nil
}

// open connects, applies pending migrations and wraps the pool for sqlx.
func open(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, store.Unavailable("open postgres", fmt.Errorf("dsn not set"))
	}
	if err := Migrate(dsn); err != nil {
		return nil, store.Unavailable("migrate postgres", err)
	}
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, store.Unavailable("open postgres", err)
	}
	return sqlx.NewDb(db, "pgx"), nil
}
