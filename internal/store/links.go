package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// Outgoing returns the link edges whose source is noteID.
func (s *Store) Outgoing(ctx context.Context, noteID string) ([]model.LinkEdge, error) {
	return s.queryEdges(ctx, "SELECT source_note_id, target_note_id, target_title, link_text, line_number FROM note_links WHERE source_note_id = ?", noteID)
}

// Incoming returns the link edges whose target is noteID.
func (s *Store) Incoming(ctx context.Context, noteID string) ([]model.LinkEdge, error) {
	return s.queryEdges(ctx, "SELECT source_note_id, target_note_id, target_title, link_text, line_number FROM note_links WHERE target_note_id = ?", noteID)
}

// Broken returns every edge with no resolved target.
func (s *Store) Broken(ctx context.Context) ([]model.LinkEdge, error) {
	return s.queryEdges(ctx, "SELECT source_note_id, target_note_id, target_title, link_text, line_number FROM note_links WHERE target_note_id IS NULL")
}

// BrokenByTitle returns broken edges whose target_title equals title:
// the edges that a note with that title can resolve.
func (s *Store) BrokenByTitle(ctx context.Context, title string) ([]model.LinkEdge, error) {
	return s.queryEdges(ctx, "SELECT source_note_id, target_note_id, target_title, link_text, line_number FROM note_links WHERE target_note_id IS NULL AND target_title = ?", title)
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]model.LinkEdge, error) {
	var edges []model.LinkEdge

	err := s.QueryTx(func() error {
		rows, qerr := s.sql.QueryContext(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			var e model.LinkEdge
			var target, linkText sql.NullString

			if err := rows.Scan(&e.SourceNoteID, &target, &e.TargetTitle, &linkText, &e.LineNumber); err != nil {
				return err
			}

			e.TargetNoteID = target.String
			e.LinkText = linkText.String
			edges = append(edges, e)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, vaulterr.IndexError(err)
	}

	return edges, nil
}

// RetargetBroken repoints every broken edge whose target_title equals
// title to newNoteID, inside tx. Used by LinkGraph.UpdateBroken.
func RetargetBroken(ctx context.Context, tx *sql.Tx, newNoteID, title string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE note_links SET target_note_id = ? WHERE target_note_id IS NULL AND target_title = ?",
		newNoteID, title)
	if err != nil {
		return 0, fmt.Errorf("retarget broken: %w", err)
	}

	return res.RowsAffected()
}

// BreakIncoming sets every edge currently targeting noteID to broken
// (null target, target_title preserved) and removes noteID's own
// outgoing edges/external links. Used by LinkGraph.ClearFor, which runs
// before a note's file is deleted or rewritten so incoming references
// degrade to broken links rather than dangling on a vanished id.
func BreakIncoming(ctx context.Context, tx *sql.Tx, noteID string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE note_links SET target_note_id = NULL WHERE target_note_id = ?", noteID); err != nil {
		return fmt.Errorf("break incoming links: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM note_links WHERE source_note_id = ?", noteID); err != nil {
		return fmt.Errorf("clear outgoing links: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM external_links WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("clear external links: %w", err)
	}

	return nil
}

// RetargetIncomingToNewID re-points every edge targeting oldNoteID to
// newNoteID, used by moveNote.
func RetargetIncomingToNewID(ctx context.Context, tx *sql.Tx, oldNoteID, newNoteID string) (int64, error) {
	res, err := tx.ExecContext(ctx, "UPDATE note_links SET target_note_id = ? WHERE target_note_id = ?", newNoteID, oldNoteID)
	if err != nil {
		return 0, fmt.Errorf("retarget incoming: %w", err)
	}

	return res.RowsAffected()
}
