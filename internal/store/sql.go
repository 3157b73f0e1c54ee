// Package store implements the embedded SQLite index that mirrors the
// filesystem's notes, plus full-text search, typed metadata, the link
// graph tables, and a safe ad-hoc SQL evaluator.
//
// The database is single-writer: SetMaxOpenConns(1) with a
// write-intent journal for crash-safe commits that span both the note
// file and the derived index rows, and a schema-version check on Open
// that triggers a full reindex when the on-disk schema is stale.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

const sqliteBusyTimeoutMillis = 10000

// openSqlite opens the derived index database and applies pragmas tuned
// for a single-writer, durable, WAL-journaled workload.
func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA foreign_keys = ON;
		PRAGMA temp_store = MEMORY;
	`, sqliteBusyTimeoutMillis))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	return nil
}

func storedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

func setSchemaVersion(ctx context.Context, execer execer, version int) error {
	_, err := execer.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	if err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
