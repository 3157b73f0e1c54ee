package linkgraph

import (
	"context"
	"database/sql"

	"github.com/vaultdb/vaultdb/internal/store"
)

// ClearFor breaks every incoming edge targeting noteID (null target,
// target_title preserved) and removes noteID's own outgoing edges and
// external links. Callers run this before deleting or fully rewriting
// a note, so referring notes degrade to broken links instead of
// pointing at a row that is about to disappear.
func ClearFor(ctx context.Context, db *store.Store, noteID string) error {
	return db.MutateLinksTx(ctx, func(tx *sql.Tx) error {
		return store.BreakIncoming(ctx, tx, noteID)
	})
}

// UpdateBroken re-points every broken edge whose target_title equals
// newTitle to newNoteID. Called after a note is created or renamed, so
// links that previously couldn't resolve now do. Returns how many
// edges were retargeted.
func UpdateBroken(ctx context.Context, db *store.Store, newNoteID, newTitle string) (int64, error) {
	var n int64

	err := db.MutateLinksTx(ctx, func(tx *sql.Tx) error {
		count, err := store.RetargetBroken(ctx, tx, newNoteID, newTitle)
		n = count

		return err
	})

	return n, err
}

// RetargetIncoming re-points every edge currently targeting oldNoteID
// to newNoteID, used by moveNote once the note's id has changed.
// Returns how many edges were retargeted.
func RetargetIncoming(ctx context.Context, db *store.Store, oldNoteID, newNoteID string) (int64, error) {
	var n int64

	err := db.MutateLinksTx(ctx, func(tx *sql.Tx) error {
		count, err := store.RetargetIncomingToNewID(ctx, tx, oldNoteID, newNoteID)
		n = count

		return err
	})

	return n, err
}
