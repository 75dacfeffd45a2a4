package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLiteTable = "ping_storage"

// OpenSQLite opens a SQLite database with the modernc driver.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// an in-memory database exists per connection
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// SQLite stores the value under one key of a key/value table.
// Several stores may share the same table as long as their keys differ.
type SQLite[T any] struct {
	db    *sql.DB
	table string
	key   string
}

var _ Storage[string] = (*SQLite[string])(nil)

// SQLiteOption configures a SQLite store
type SQLiteOption func(*sqliteConfig)

type sqliteConfig struct {
	table string
}

// WithTable overrides the table name
func WithTable(table string) SQLiteOption {
	return func(cfg *sqliteConfig) {
		cfg.table = table
	}
}

// NewSQLite initializes the schema and returns a store for key.
func NewSQLite[T any](db *sql.DB, key string, opts ...SQLiteOption) (*SQLite[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	cfg := &sqliteConfig{table: defaultSQLiteTable}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &SQLite[T]{db: db, table: cfg.table, key: key}
	if err := s.initSchema(); err != nil {
		return nil, &Error{Op: "init", Backend: "sqlite", Key: key, Err: err}
	}
	return s, nil
}

func (s *SQLite[T]) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLite[T]) Get(ctx context.Context) (T, bool, error) {
	var zero T
	var data []byte

	row := s.db.QueryRowContext(ctx, `SELECT value FROM `+s.table+` WHERE key = ?`, s.key)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, &Error{Op: "get", Backend: "sqlite", Key: s.key, Err: err}
	}

	value, err := decode[T](data)
	if err != nil {
		return zero, false, &Error{Op: "decode", Backend: "sqlite", Key: s.key, Err: err}
	}
	return value, true, nil
}

func (s *SQLite[T]) Save(ctx context.Context, value T) error {
	data, err := encode(value)
	if err != nil {
		return &Error{Op: "encode", Backend: "sqlite", Key: s.key, Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+s.table+` (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, data, time.Now().Unix(),
	)
	if err != nil {
		return &Error{Op: "save", Backend: "sqlite", Key: s.key, Err: err}
	}
	return nil
}

func (s *SQLite[T]) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = ?`, s.key); err != nil {
		return &Error{Op: "delete", Backend: "sqlite", Key: s.key, Err: err}
	}
	return nil
}
