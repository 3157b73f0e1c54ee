package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vaultdb/vaultdb/internal/model"
)

// upsertNoteTx replaces the notes row, wholesale-replaces its metadata
// rows, refreshes the FTS entry, and replaces its outgoing link rows,
// all within tx. Incoming edges that were broken and now resolve to
// this note are NOT touched here (see RetargetBroken); this is pure
// single-note replacement.
func upsertNoteTx(ctx context.Context, tx *sql.Tx, note model.Note, metadata []model.MetadataRow, edges []model.LinkEdge, external []model.ExternalLink) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, type, filename, path, created, updated, size, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content, type=excluded.type,
			filename=excluded.filename, path=excluded.path, created=excluded.created,
			updated=excluded.updated, size=excluded.size, content_hash=excluded.content_hash
	`, note.ID, note.Title, note.Content, note.Type, note.Filename, note.Path,
		note.Created.Format(rfc3339), note.Updated.Format(rfc3339), note.Size, note.ContentHash)
	if err != nil {
		return fmt.Errorf("upsert note row: %w", err)
	}

	if err := replaceMetadataTx(ctx, tx, note.ID, metadata); err != nil {
		return err
	}

	if err := replaceFTSTx(ctx, tx, note, metadata); err != nil {
		return err
	}

	if err := replaceOutgoingLinksTx(ctx, tx, note.ID, edges, external); err != nil {
		return err
	}

	return nil
}

func replaceMetadataTx(ctx context.Context, tx *sql.Tx, noteID string, rows []model.MetadataRow) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM note_metadata WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}

	for _, row := range rows {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO note_metadata (note_id, key, value, value_type) VALUES (?, ?, ?, ?)",
			noteID, row.Key, row.Value, string(row.ValueType))
		if err != nil {
			return fmt.Errorf("insert metadata %s: %w", row.Key, err)
		}
	}

	return nil
}

func replaceFTSTx(ctx context.Context, tx *sql.Tx, note model.Note, metadata []model.MetadataRow) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM notes_fts WHERE note_id = ?", note.ID); err != nil {
		return fmt.Errorf("clear fts: %w", err)
	}

	tags := ""
	for _, row := range metadata {
		if row.Key == "tags" {
			tags = row.Value
		}
	}

	_, err := tx.ExecContext(ctx,
		"INSERT INTO notes_fts (note_id, title, content, tags) VALUES (?, ?, ?, ?)",
		note.ID, note.Title, note.Content, tags)
	if err != nil {
		return fmt.Errorf("insert fts: %w", err)
	}

	return nil
}

func replaceOutgoingLinksTx(ctx context.Context, tx *sql.Tx, noteID string, edges []model.LinkEdge, external []model.ExternalLink) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM note_links WHERE source_note_id = ?", noteID); err != nil {
		return fmt.Errorf("clear outgoing links: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM external_links WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("clear external links: %w", err)
	}

	for _, e := range edges {
		var target any
		if e.TargetNoteID != "" {
			target = e.TargetNoteID
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO note_links (source_note_id, target_note_id, target_title, link_text, line_number) VALUES (?, ?, ?, ?, ?)",
			noteID, target, e.TargetTitle, nullableString(e.LinkText), e.LineNumber)
		if err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}

	for _, ext := range external {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO external_links (note_id, url, title, line_number, link_type) VALUES (?, ?, ?, ?, ?)",
			noteID, ext.URL, nullableString(ext.Title), ext.LineNumber, string(ext.Kind))
		if err != nil {
			return fmt.Errorf("insert external link: %w", err)
		}
	}

	return nil
}

// deleteNoteTx removes a note's row, metadata, fts entry, and outgoing
// links/external links. It does NOT touch incoming edges (callers must
// call linkgraph.ClearFor first so they become broken rather than
// dangling on a deleted target).
func deleteNoteTx(ctx context.Context, tx *sql.Tx, noteID string) error {
	for _, stmt := range []string{
		"DELETE FROM notes WHERE id = ?",
		"DELETE FROM note_metadata WHERE note_id = ?",
		"DELETE FROM notes_fts WHERE note_id = ?",
		"DELETE FROM note_links WHERE source_note_id = ?",
		"DELETE FROM external_links WHERE note_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, noteID); err != nil {
			return fmt.Errorf("delete note rows: %w", err)
		}
	}

	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

const rfc3339 = "2006-01-02T15:04:05.999999999Z07:00"
