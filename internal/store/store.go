package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vfs"
)

const lockTimeout = 10 * time.Second

// Store is the embedded SQLite index for one vault. It owns the notes/note_metadata/notes_fts/note_links/external_links
// tables, a crash-safe WAL coordinating note-file writes with index
// writes, and the ad-hoc SQL evaluator. The markdown files on disk
// remain authoritative; Store can always be rebuilt from them (see
// [Store.ReplaceAll]).
//
// Safe for concurrent use: an in-process RWMutex serializes writers
// against readers (SQLite's own single-connection serializes writers
// against each other), and a cross-process flock on the WAL file
// guards recovery so two processes never replay concurrently.
type Store struct {
	dbPath   string
	sql      *sql.DB
	fs       vfs.FS
	locker   *vfs.Locker
	atomic   *vfs.AtomicWriter
	wal      vfs.File
	walPath  string

	mu sync.RWMutex
}

// Open opens (creating if absent) the index database at indexDir,
// replaying any pending WAL entry first and rebuilding is left to the
// caller (HybridSearch.RebuildIndex) when the schema version changed;
// Open only reports whether a rebuild is needed via the returned bool.
func Open(ctx context.Context, indexDir string) (store *Store, needsRebuild bool, err error) {
	if ctx == nil {
		return nil, false, errors.New("open store: context is nil")
	}

	if indexDir == "" {
		return nil, false, errors.New("open store: indexDir is empty")
	}

	dir := filepath.Clean(indexDir)
	realFS := vfs.NewReal()
	locker := vfs.NewLocker(realFS)
	atomicWriter := vfs.NewAtomicWriter(realFS)

	if err := realFS.MkdirAll(dir, 0o750); err != nil {
		return nil, false, vaulterr.IoError("mkdir_index_dir", dir, err)
	}

	walPath := filepath.Join(dir, "wal")

	walFile, err := realFS.OpenFile(walPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, false, vaulterr.IoError("open_wal", walPath, err)
	}

	dbPath := filepath.Join(dir, "index.db")

	db, err := openSqlite(ctx, dbPath)
	if err != nil {
		_ = walFile.Close()
		return nil, false, vaulterr.IoError("open_sqlite", dbPath, err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		_ = walFile.Close()
		return nil, false, vaulterr.IndexError(err)
	}

	s := &Store{
		dbPath:  dbPath,
		sql:     db,
		fs:      realFS,
		locker:  locker,
		atomic:  atomicWriter,
		wal:     walFile,
		walPath: walPath,
	}

	version, err := storedSchemaVersion(ctx, db)
	if err != nil {
		_ = s.Close()
		return nil, false, vaulterr.IndexError(err)
	}

	lock, err := locker.LockWithTimeout(walPath, lockTimeout)
	if err != nil {
		_ = s.Close()
		return nil, false, vaulterr.IoError("lock_wal", walPath, err)
	}

	recoverErr := s.recoverLocked(ctx)
	closeErr := lock.Close()

	if recoverErr != nil || closeErr != nil {
		_ = s.Close()
		return nil, false, vaulterr.IndexError(errors.Join(recoverErr, closeErr))
	}

	if version != currentSchemaVersion {
		if err := setSchemaVersion(ctx, db, currentSchemaVersion); err != nil {
			_ = s.Close()
			return nil, false, vaulterr.IndexError(err)
		}

		needsRebuild = true
	}

	return s, needsRebuild, nil
}

// Close releases the SQLite and WAL handles. Idempotent; safe on nil.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}

	var errs []error

	if s.sql != nil {
		if err := s.sql.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite: %w", err))
		}

		s.sql = nil
	}

	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close wal: %w", err))
		}

		s.wal = nil
	}

	return errors.Join(errs...)
}

// DB exposes the underlying *sql.DB for packages that build their own
// read-only queries (package search). Mutations must go through
// [Store.UpsertNote]/[Store.DeleteNote] so the WAL stays consistent.
func (s *Store) DB() *sql.DB { return s.sql }

// UpsertNoteInput bundles everything one upsert needs: the note row
// itself, its flattened metadata, and its outgoing link graph, so the
// WAL entry and the SQL transaction stay in lockstep.
type UpsertNoteInput struct {
	Note     model.Note
	Metadata []model.MetadataRow
	Edges    []model.LinkEdge
	External []model.ExternalLink
}

// UpsertNote writes the note file at Note.Path and the derived index
// rows as a single crash-safe unit: write-intent to the WAL, apply to
// the filesystem, apply to SQLite, truncate the WAL. A crash at any
// point is recovered by replaying the WAL on the next [Open].
func (s *Store) UpsertNote(ctx context.Context, in UpsertNoteInput) error {
	return s.withWriteLock(ctx, func() error {
		entry := walEntry{
			Op:       walOpUpsert,
			NoteID:   in.Note.ID,
			Path:     in.Note.Path,
			Content:  in.Note.Content,
			Note:     &in.Note,
			Metadata: in.Metadata,
			Edges:    in.Edges,
			External: in.External,
		}

		if err := writeWAL(s.wal, entry); err != nil {
			return vaulterr.IoError("write_wal", s.walPath, err)
		}

		if err := s.applyEntryToFS(&entry); err != nil {
			return vaulterr.IoError("apply_fs", in.Note.Path, err)
		}

		if err := s.applyEntryToSQL(ctx, &entry); err != nil {
			return vaulterr.IndexError(err)
		}

		if err := truncateWAL(s.wal); err != nil {
			return vaulterr.IoError("truncate_wal", s.walPath, err)
		}

		return nil
	})
}

// DeleteNote removes the note file at path and all of its derived
// index rows as a single crash-safe unit. Callers must have already
// cleared incoming links (see linkgraph.ClearFor) so they become
// broken rather than referencing a row about to vanish.
func (s *Store) DeleteNote(ctx context.Context, noteID, path string) error {
	return s.withWriteLock(ctx, func() error {
		entry := walEntry{Op: walOpDelete, NoteID: noteID, Path: path}

		if err := writeWAL(s.wal, entry); err != nil {
			return vaulterr.IoError("write_wal", s.walPath, err)
		}

		if err := s.applyEntryToFS(&entry); err != nil {
			return vaulterr.IoError("apply_fs", path, err)
		}

		if err := s.applyEntryToSQL(ctx, &entry); err != nil {
			return vaulterr.IndexError(err)
		}

		if err := truncateWAL(s.wal); err != nil {
			return vaulterr.IoError("truncate_wal", s.walPath, err)
		}

		return nil
	})
}

// withWriteLock serializes with other in-process writers and holds the
// cross-process WAL flock for the duration of fn. It does not replay a
// leftover WAL entry; recovery runs only in [Open].
func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := s.locker.LockWithTimeout(s.walPath, lockTimeout)
	if err != nil {
		return vaulterr.Timeout(fmt.Sprintf("acquire wal lock: %v", err))
	}

	defer func() { _ = lock.Close() }()

	return fn()
}

// withReadLock serializes with writers in-process; SQLite's MVCC-like
// WAL-mode journal lets concurrent readers proceed against the
// existing connection without a cross-process lock.
func (s *Store) withReadLock(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn()
}

// MutateLinksTx runs fn inside a dedicated SQL transaction under the
// write lock, for link-graph-only operations (ClearFor, UpdateBroken,
// rewrite-on-rename) that touch no note file and so need no WAL entry:
// SQLite's own transaction already makes them atomic, and they are
// always called from inside a NoteManager operation that is itself
// already WAL-protected for the file+index pair it owns.
func (s *Store) MutateLinksTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withWriteLock(ctx, func() error {
		tx, err := s.sql.BeginTx(ctx, nil)
		if err != nil {
			return vaulterr.IndexError(err)
		}

		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return vaulterr.IndexError(err)
		}

		committed = true

		return nil
	})
}

// QueryTx runs fn under the read lock without a transaction (plain
// queries need no transaction isolation beyond what the single SQLite
// connection already gives).
func (s *Store) QueryTx(fn func() error) error {
	return s.withReadLock(fn)
}
