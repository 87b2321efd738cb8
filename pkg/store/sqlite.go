package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore is a Store backed by a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key BLOB PRIMARY KEY,
		value BLOB NOT NULL,
		version BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEntry(ctx context.Context, q queryer, key []byte) (*Entry, error) {
	e := Entry{Key: key}
	err := q.QueryRowContext(ctx, `SELECT value, version FROM kv WHERE key = ?`, key).Scan(&e.Value, &e.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %x: %w", key, err)
	}
	return &e, nil
}

// Get returns the entry for key.
func (s *SQLiteStore) Get(ctx context.Context, key []byte) (Entry, error) {
	e, err := getEntry(ctx, s.db, key)
	if err != nil {
		return Entry{}, err
	}
	if e == nil {
		return Entry{}, ErrNotFound
	}
	return *e, nil
}

// Put writes entry after the version check.
func (s *SQLiteStore) Put(ctx context.Context, entry Entry, expectedVersion []byte, force bool) error {
	return s.Apply(ctx, []Op{{Type: OpPut, Entry: entry, ExpectedVersion: expectedVersion, Force: force}})
}

// Delete removes key after the version check.
func (s *SQLiteStore) Delete(ctx context.Context, key, expectedVersion []byte, force bool) error {
	return s.Apply(ctx, []Op{{Type: OpDelete, Entry: Entry{Key: key}, ExpectedVersion: expectedVersion, Force: force}})
}

// Apply runs ops in one transaction.
func (s *SQLiteStore) Apply(ctx context.Context, ops []Op) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for i, op := range ops {
		cur, err := getEntry(ctx, tx, op.Entry.Key)
		if err != nil {
			return err
		}
		if err := checkVersion(cur, op.ExpectedVersion, op.Force, op.Type); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Type, err)
		}

		switch op.Type {
		case OpPut:
			value := op.Entry.Value
			if value == nil {
				value = []byte{}
			}
			version := op.Entry.Version
			if version == nil {
				version = []byte{}
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO kv (key, value, version) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version`,
				op.Entry.Key, value, version)
		case OpDelete:
			_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, op.Entry.Key)
		default:
			err = fmt.Errorf("unknown type %d", op.Type)
		}
		if err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Type, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Scan calls fn for every entry in key order.
func (s *SQLiteStore) Scan(ctx context.Context, fn func(Entry) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, version FROM kv ORDER BY key`)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Optimize rebuilds the database file.
func (s *SQLiteStore) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// Reset removes all entries.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
