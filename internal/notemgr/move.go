package notemgr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaultdb/vaultdb/internal/frontmatter"
	"github.com/vaultdb/vaultdb/internal/linkgraph"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// MoveResult reports the outcome of MoveNote.
type MoveResult struct {
	OldID                 string
	NewID                 string
	OldType               string
	NewType               string
	Filename              string
	Title                 string
	LinksUpdated          int
	NotesWithUpdatedLinks int
	Timestamp             time.Time
}

// MoveNote moves a note to a different type: the filename is kept, so
// the note's id changes from "oldType/stem" to "newType/stem". Incoming
// edges are re-pointed at the new id, wikilinks that spelled out the
// old "type/filename" form are rewritten in referring notes, and the
// old file is removed. Fails with AlreadyExists if the target type
// already holds a note with this filename.
func (m *Manager) MoveNote(ctx context.Context, identifier, newType, contentHash string) (MoveResult, error) {
	note, err := m.GetNote(ctx, identifier)
	if err != nil {
		return MoveResult{}, err
	}

	if err := m.checkHash(note, contentHash); err != nil {
		return MoveResult{}, err
	}

	if newType == note.Type {
		return MoveResult{}, vaulterr.ValidationFailed(fmt.Sprintf("note is already of type %q", newType))
	}

	nt, err := m.types.GetDescription(ctx, newType)
	if err != nil {
		return MoveResult{}, err
	}

	newPath, err := m.ws.NotePath(newType, note.Filename)
	if err != nil {
		return MoveResult{}, err
	}

	exists, err := m.fs.Exists(newPath)
	if err != nil {
		return MoveResult{}, vaulterr.IoError("stat_note", newPath, err)
	}

	if exists {
		return MoveResult{}, vaulterr.AlreadyExists(fmt.Sprintf("note already exists at %s/%s", newType, note.Filename))
	}

	oldID := note.ID
	oldType := note.Type
	oldPath := note.Path
	stem := strings.TrimSuffix(note.Filename, ".md")

	parsed, err := frontmatter.Parse(note.Content)
	if err != nil {
		return MoveResult{}, err
	}

	now := m.now().UTC()

	moved, err := m.buildNote(newType, note.Filename, note.Title, parsed.Body, userMetadata(note.Metadata), nt.MetadataSchema, note.Created, now)
	if err != nil {
		return MoveResult{}, err
	}

	if err := m.persist(ctx, moved); err != nil {
		return MoveResult{}, err
	}

	if _, err := linkgraph.RetargetIncoming(ctx, m.db, oldID, moved.ID); err != nil {
		return MoveResult{}, err
	}

	// Remove the old row before rewriting referrers: re-extraction in
	// the rewrite resolves titles against the index, and the old id
	// must not shadow the new one.
	if err := m.db.DeleteNote(ctx, oldID, oldPath); err != nil {
		return MoveResult{}, err
	}

	notesUpdated, linksUpdated, err := m.rewriteReferrers(ctx, moved.ID, func(body string) (string, int) {
		return linkgraph.RewriteTypeFilenamePrefix(body, oldType, stem, newType, stem)
	})
	if err != nil {
		return MoveResult{}, err
	}

	return MoveResult{
		OldID:                 oldID,
		NewID:                 moved.ID,
		OldType:               oldType,
		NewType:               newType,
		Filename:              note.Filename,
		Title:                 note.Title,
		LinksUpdated:          linksUpdated,
		NotesWithUpdatedLinks: notesUpdated,
		Timestamp:             now,
	}, nil
}
