package store

import (
	"context"
	"database/sql"
	"fmt"
)

// currentSchemaVersion is bumped whenever the table/index shape below
// changes. Open() reports needsRebuild when the stored PRAGMA
// user_version does not match; vaultctx then reindexes from the
// filesystem when the vault's rebuild_on_gap setting is on.
const currentSchemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS notes (
	id       TEXT PRIMARY KEY,
	title    TEXT NOT NULL,
	content  TEXT NOT NULL,
	type     TEXT NOT NULL,
	filename TEXT NOT NULL,
	path     TEXT NOT NULL,
	created  TEXT NOT NULL,
	updated  TEXT NOT NULL,
	size     INTEGER NOT NULL,
	content_hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_type ON notes(type);
CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated);

CREATE TABLE IF NOT EXISTS note_metadata (
	note_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	value_type TEXT NOT NULL,
	FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_meta_note ON note_metadata(note_id);
CREATE INDEX IF NOT EXISTS idx_meta_key_value ON note_metadata(key, value);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	note_id UNINDEXED,
	title,
	content,
	tags
);

CREATE TABLE IF NOT EXISTS note_links (
	source_note_id TEXT NOT NULL,
	target_note_id TEXT,
	target_title   TEXT NOT NULL,
	link_text      TEXT,
	line_number    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_links_source ON note_links(source_note_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON note_links(target_note_id);
CREATE INDEX IF NOT EXISTS idx_links_title ON note_links(target_title);

CREATE TABLE IF NOT EXISTS external_links (
	note_id     TEXT NOT NULL,
	url         TEXT NOT NULL,
	title       TEXT,
	line_number INTEGER,
	link_type   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_external_note ON external_links(note_id);
CREATE INDEX IF NOT EXISTS idx_external_url ON external_links(url);
`

// ensureSchema creates the tables/indexes if absent. Safe to call
// repeatedly; every statement is IF NOT EXISTS.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

// dropAllRows removes every row from every table, used as the first
// step of a full rebuild. Table structure is left intact.
func dropAllRows(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"notes", "note_metadata", "notes_fts", "note_links", "external_links"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
