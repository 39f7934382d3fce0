package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// SessionTable holds session keys in PostgreSQL.
const SessionTable = "cart_sessions"

const createSessionTable = `
CREATE TABLE IF NOT EXISTS ` + SessionTable + ` (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore keeps session keys in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the key-value table if it does not exist
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := ps.db.ExecContext(ctx, createSessionTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", SessionTable, err)
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := ps.db.QueryRowContext(ctx,
		"SELECT value FROM "+SessionTable+" WHERE key = $1",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (ps *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO `+SessionTable+` (key, value, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key,
		value,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (ps *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := ps.db.ExecContext(ctx, "DELETE FROM "+SessionTable+" WHERE key = $1", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
