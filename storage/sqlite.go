package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domreview/dbopen"
)

// Schema is the DDL of the durable channel.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
    key         TEXT PRIMARY KEY,
    value       BLOB NOT NULL,
    updated_at  INTEGER NOT NULL
);
`

// RevisionQuery reads the revision of one key. updated_at strictly grows
// on every write of a key, so it doubles as a change counter.
const RevisionQuery = `SELECT updated_at FROM kv WHERE key = ?`

// SQLite is a Storage backed by an SQLite database.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies Schema.
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &SQLite{DB: db}, nil
}

// NewSQLite wraps an already opened database; Schema must be applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, rev, err := s.Load(ctx, key)
	return v, rev != 0, err
}

func (s *SQLite) Load(ctx context.Context, key string) ([]byte, int64, error) {
	var (
		v   []byte
		rev int64
	)
	err := s.DB.QueryRowContext(ctx, `SELECT value, updated_at FROM kv WHERE key = ?`, key).Scan(&v, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("storage: load %s: %w", key, err)
	}
	return v, rev, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		     updated_at = MAX(excluded.updated_at, kv.updated_at + 1)`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

// Swap is a single conditional statement, so the revision check and the
// write are atomic across connections and processes.
func (s *SQLite) Swap(ctx context.Context, key string, value []byte, rev int64) (int64, error) {
	next := max(time.Now().UnixMilli(), rev+1)
	var (
		res sql.Result
		err error
	)
	if rev == 0 {
		res, err = dbopen.Exec(ctx, s.DB,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value, next)
	} else {
		res, err = dbopen.Exec(ctx, s.DB,
			`UPDATE kv SET value = ?, updated_at = ? WHERE key = ? AND updated_at = ?`,
			value, next, key, rev)
	}
	if err != nil {
		return 0, fmt.Errorf("storage: swap %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: swap %s: %w", key, err)
	}
	if n == 0 {
		return 0, ErrConflict
	}
	return next, nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}
