package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// RebuildItem is one note plus its derived rows, as produced by walking
// the filesystem (package search owns the walk; this package only
// knows how to load the result atomically).
type RebuildItem struct {
	Note     model.Note
	Metadata []model.MetadataRow
	Edges    []model.LinkEdge
	External []model.ExternalLink
}

// ReplaceAll clears every table and reloads items inside one
// transaction, so a rebuild replaces the index atomically and is
// idempotent: the result is a pure function of the filesystem snapshot
// handed in. It holds the write lock for the whole rebuild; that lock
// takes the store's RWMutex exclusively, so other mutators and
// in-process readers both wait until the rebuild finishes.
func (s *Store) ReplaceAll(ctx context.Context, items []RebuildItem) error {
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

		if err := dropAllRows(ctx, tx); err != nil {
			return vaulterr.IndexError(err)
		}

		for _, item := range items {
			if err := upsertNoteTx(ctx, tx, item.Note, item.Metadata, item.Edges, item.External); err != nil {
				return vaulterr.IndexError(fmt.Errorf("note %s: %w", item.Note.ID, err))
			}
		}

		if err := resolveAllEdgesTx(ctx, tx, items); err != nil {
			return vaulterr.IndexError(err)
		}

		if err := tx.Commit(); err != nil {
			return vaulterr.IndexError(err)
		}

		committed = true

		return nil
	})
}

// resolveAllEdgesTx is a no-op placeholder hook: edge target resolution
// happens before ReplaceAll is called (package linkgraph resolves
// against the full note set gathered during the walk), so by the time
// rows are inserted target_note_id is already correct or already null
// (broken). Kept as an explicit step so a future resolution pass that
// needs all rows present first (e.g. cross-referencing two notes
// created in the same rebuild) has an obvious place to run inside the
// same transaction.
func resolveAllEdgesTx(ctx context.Context, tx *sql.Tx, items []RebuildItem) error {
	return nil
}
