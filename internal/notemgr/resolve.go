package notemgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// Manager implements linkgraph.Resolver so wikilink targets resolve
// through the same three-rule order GetNote identifiers do.

// ExactTypeFilename resolves "type/filename" (optionally ".md"),
// resolution rule 1.
func (m *Manager) ExactTypeFilename(ctx context.Context, raw string) (string, bool, error) {
	id := strings.TrimSuffix(raw, ".md")

	if _, err := m.db.GetNote(ctx, id); err != nil {
		if vaulterr.KindOf(err) == vaulterr.KindNotFound {
			return "", false, nil
		}

		return "", false, err
	}

	return id, true, nil
}

// ByTitle resolves an exact title match across all notes, rule 2.
func (m *Manager) ByTitle(ctx context.Context, title string) (string, bool, error) {
	return m.db.FindNoteByTitle(ctx, title)
}

// ByFilenameStem resolves a bare filename stem, rule 3.
func (m *Manager) ByFilenameStem(ctx context.Context, stem string) (string, bool, error) {
	return m.db.FindNoteByFilenameStem(ctx, stem)
}

// TitleOf returns the current title of noteID.
func (m *Manager) TitleOf(ctx context.Context, noteID string) (string, bool, error) {
	note, err := m.db.GetNote(ctx, noteID)
	if err != nil {
		if vaulterr.KindOf(err) == vaulterr.KindNotFound {
			return "", false, nil
		}

		return "", false, err
	}

	return note.Title, true, nil
}

// resolveIdentifier maps a caller-facing identifier to a note id using
// the wikilink resolution order: exact "type/filename" first, then
// exact title, then bare filename stem.
func (m *Manager) resolveIdentifier(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", vaulterr.ValidationFailed("identifier must not be empty")
	}

	if strings.Contains(identifier, "/") {
		if id, ok, err := m.ExactTypeFilename(ctx, identifier); err != nil {
			return "", err
		} else if ok {
			return id, nil
		}
	}

	if id, ok, err := m.ByTitle(ctx, identifier); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	if id, ok, err := m.ByFilenameStem(ctx, strings.TrimSuffix(identifier, ".md")); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	return "", vaulterr.NotFound(fmt.Sprintf("note %q not found", identifier))
}
