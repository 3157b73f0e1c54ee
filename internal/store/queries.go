package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// GetNote reads one note row by id. Returns vaulterr NotFound if absent.
func (s *Store) GetNote(ctx context.Context, id string) (model.Note, error) {
	var note model.Note

	err := s.QueryTx(func() error {
		row := s.sql.QueryRowContext(ctx, `
			SELECT id, title, content, type, filename, path, created, updated, size, content_hash
			FROM notes WHERE id = ?`, id)

		var created, updated string

		scanErr := row.Scan(&note.ID, &note.Title, &note.Content, &note.Type, &note.Filename,
			&note.Path, &created, &updated, &note.Size, &note.ContentHash)
		if scanErr == sql.ErrNoRows {
			return vaulterr.NotFound(fmt.Sprintf("note %q not found", id))
		}

		if scanErr != nil {
			return vaulterr.IndexError(scanErr)
		}

		note.Created, _ = time.Parse(rfc3339, created)
		note.Updated, _ = time.Parse(rfc3339, updated)

		return nil
	})
	if err != nil {
		return model.Note{}, err
	}

	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return model.Note{}, err
	}

	note.Metadata = metadataRowsToValues(meta)

	return note, nil
}

// FindNoteByTitle resolves an exact, case-sensitive title match.
// Returns the empty string, false if no note
// has that title (not an error: callers treat this as "unresolved").
func (s *Store) FindNoteByTitle(ctx context.Context, title string) (string, bool, error) {
	var id string

	err := s.QueryTx(func() error {
		row := s.sql.QueryRowContext(ctx, "SELECT id FROM notes WHERE title = ? LIMIT 1", title)

		scanErr := row.Scan(&id)
		if scanErr == sql.ErrNoRows {
			return nil
		}

		return scanErr
	})
	if err != nil {
		return "", false, vaulterr.IndexError(err)
	}

	return id, id != "", nil
}

// FindNoteByFilenameStem resolves rule 3: filename stem match across
// all note types, ignoring an optional ".md" suffix on stem.
func (s *Store) FindNoteByFilenameStem(ctx context.Context, stem string) (string, bool, error) {
	var id string

	err := s.QueryTx(func() error {
		row := s.sql.QueryRowContext(ctx, "SELECT id FROM notes WHERE filename = ? LIMIT 1", strings.TrimSuffix(stem, ".md")+".md")

		scanErr := row.Scan(&id)
		if scanErr == sql.ErrNoRows {
			return nil
		}

		return scanErr
	})
	if err != nil {
		return "", false, vaulterr.IndexError(err)
	}

	return id, id != "", nil
}

// GetMetadata returns the flattened metadata rows for one note.
func (s *Store) GetMetadata(ctx context.Context, noteID string) ([]model.MetadataRow, error) {
	var rows []model.MetadataRow

	err := s.QueryTx(func() error {
		r, qerr := s.sql.QueryContext(ctx, "SELECT note_id, key, value, value_type FROM note_metadata WHERE note_id = ?", noteID)
		if qerr != nil {
			return qerr
		}
		defer r.Close()

		for r.Next() {
			var row model.MetadataRow
			var valueType string

			if err := r.Scan(&row.NoteID, &row.Key, &row.Value, &valueType); err != nil {
				return err
			}

			row.ValueType = model.FieldType(valueType)
			rows = append(rows, row)
		}

		return r.Err()
	})
	if err != nil {
		return nil, vaulterr.IndexError(err)
	}

	return rows, nil
}

func metadataRowsToValues(rows []model.MetadataRow) map[string]*model.Value {
	out := make(map[string]*model.Value, len(rows))

	for _, row := range rows {
		out[row.Key] = valueFromRow(row)
	}

	return out
}

func valueFromRow(row model.MetadataRow) *model.Value {
	switch row.ValueType {
	case model.FieldNumber:
		var f float64
		fmt.Sscanf(row.Value, "%g", &f)
		return model.Number(f)
	case model.FieldBoolean:
		return model.Boolean(row.Value == "true")
	case model.FieldDate:
		return model.Date(row.Value)
	case model.FieldArray:
		return model.Array(decodeJSONArray(row.Value))
	default:
		return model.String(row.Value)
	}
}

func decodeJSONArray(s string) []string {
	s = trimBrackets(s)
	if s == "" {
		return nil
	}

	var items []string
	cur := []byte{}
	inStr := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case c == ',' && !inStr:
			items = append(items, string(cur))
			cur = nil
		default:
			cur = append(cur, c)
		}
	}

	if len(cur) > 0 || len(items) > 0 {
		items = append(items, string(cur))
	}

	for i, it := range items {
		items[i] = unquote(it)
	}

	return items
}

func trimBrackets(s string) string {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}

	return s
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}

	return s
}

// ListAll returns every note, ordered by updated descending, the same
// ordering an empty search query serves.
func (s *Store) ListAll(ctx context.Context, typeFilter string, limit int) ([]model.Note, error) {
	query := "SELECT id FROM notes"

	args := []any{}
	if typeFilter != "" {
		query += " WHERE type = ?"
		args = append(args, typeFilter)
	}

	query += " ORDER BY updated DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var ids []string

	err := s.QueryTx(func() error {
		rows, qerr := s.sql.QueryContext(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}

			ids = append(ids, id)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, vaulterr.IndexError(err)
	}

	out := make([]model.Note, 0, len(ids))

	for _, id := range ids {
		note, err := s.GetNote(ctx, id)
		if err != nil {
			return nil, err
		}

		out = append(out, note)
	}

	return out, nil
}
