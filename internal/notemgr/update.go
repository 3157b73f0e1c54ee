package notemgr

import (
	"context"

	"github.com/vaultdb/vaultdb/internal/frontmatter"
	"github.com/vaultdb/vaultdb/internal/hashing"
	"github.com/vaultdb/vaultdb/internal/linkgraph"
	"github.com/vaultdb/vaultdb/internal/metaval"
	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// UpdateNote replaces the note's body, keeping its metadata. The caller
// must supply the content hash from its last read; a stale hash fails
// with ContentHashMismatch and leaves file, index, and graph unchanged.
func (m *Manager) UpdateNote(ctx context.Context, identifier, content, contentHash string) (model.NoteInfo, error) {
	return m.UpdateNoteWithMetadata(ctx, identifier, content, nil, contentHash, false)
}

// UpdateNoteWithMetadata replaces the note's body and merges metadata
// changes under the same optimistic-concurrency check. Protected fields
// are rejected unless bypassProtection is set (reserved for the
// internal rename/move paths).
func (m *Manager) UpdateNoteWithMetadata(ctx context.Context, identifier, content string, metadata map[string]*model.Value, contentHash string, bypassProtection bool) (model.NoteInfo, error) {
	note, err := m.GetNote(ctx, identifier)
	if err != nil {
		return model.NoteInfo{}, err
	}

	if err := m.checkHash(note, contentHash); err != nil {
		return model.NoteInfo{}, err
	}

	if !bypassProtection {
		if err := rejectProtected(metadata); err != nil {
			return model.NoteInfo{}, err
		}
	}

	nt, err := m.types.GetDescription(ctx, note.Type)
	if err != nil {
		return model.NoteInfo{}, err
	}

	merged := userMetadata(note.Metadata)
	for k, v := range metadata {
		if v == nil {
			delete(merged, k)
			continue
		}

		merged[k] = v
	}

	if err := metaval.ValidateMetadata(nt.MetadataSchema, merged); err != nil {
		return model.NoteInfo{}, err
	}

	updated, err := m.buildNote(note.Type, note.Filename, note.Title, content, merged, nt.MetadataSchema, note.Created, m.now().UTC())
	if err != nil {
		return model.NoteInfo{}, err
	}

	if err := m.persist(ctx, updated); err != nil {
		return model.NoteInfo{}, err
	}

	return noteInfo(updated), nil
}

// RenameResult reports how far a rename's wikilink rewrite reached.
type RenameResult struct {
	Info         model.NoteInfo
	NotesUpdated int
	LinksUpdated int
}

// RenameNote changes the note's title in-file and in the index. The
// filename (and therefore the note id) stays the same so links by id
// keep working; wikilinks referring to the old title are rewritten in
// every referring note, and broken links matching the new title are
// repaired.
func (m *Manager) RenameNote(ctx context.Context, identifier, newTitle, contentHash string) (RenameResult, error) {
	note, err := m.GetNote(ctx, identifier)
	if err != nil {
		return RenameResult{}, err
	}

	if err := m.checkHash(note, contentHash); err != nil {
		return RenameResult{}, err
	}

	if newTitle == "" {
		return RenameResult{}, vaulterr.ValidationFailed("new title must not be empty")
	}

	oldTitle := note.Title

	nt, err := m.types.GetDescription(ctx, note.Type)
	if err != nil {
		return RenameResult{}, err
	}

	parsed, err := frontmatter.Parse(note.Content)
	if err != nil {
		return RenameResult{}, err
	}

	renamed, err := m.buildNote(note.Type, note.Filename, newTitle, parsed.Body, userMetadata(note.Metadata), nt.MetadataSchema, note.Created, m.now().UTC())
	if err != nil {
		return RenameResult{}, err
	}

	if err := m.persist(ctx, renamed); err != nil {
		return RenameResult{}, err
	}

	if _, err := linkgraph.UpdateBroken(ctx, m.db, renamed.ID, newTitle); err != nil {
		return RenameResult{}, err
	}

	notesUpdated, linksUpdated, err := m.rewriteReferrers(ctx, renamed.ID, func(body string) (string, int) {
		return linkgraph.RewriteWikilinksByTitle(body, oldTitle, newTitle)
	})
	if err != nil {
		return RenameResult{}, err
	}

	return RenameResult{Info: noteInfo(renamed), NotesUpdated: notesUpdated, LinksUpdated: linksUpdated}, nil
}

// rewriteReferrers applies rewrite to the body of every note with an
// edge into targetID, re-extracting and re-storing each changed source
// so edge rows track the rewritten text.
func (m *Manager) rewriteReferrers(ctx context.Context, targetID string, rewrite func(body string) (string, int)) (notesUpdated, linksUpdated int, err error) {
	incoming, err := m.db.Incoming(ctx, targetID)
	if err != nil {
		return 0, 0, err
	}

	seen := make(map[string]bool, len(incoming))

	for _, edge := range incoming {
		src := edge.SourceNoteID
		if src == targetID || seen[src] {
			continue
		}

		seen[src] = true

		source, err := m.db.GetNote(ctx, src)
		if err != nil {
			return notesUpdated, linksUpdated, err
		}

		parsed, err := frontmatter.Parse(source.Content)
		if err != nil {
			return notesUpdated, linksUpdated, err
		}

		newBody, changed := rewrite(parsed.Body)
		if changed == 0 {
			continue
		}

		source.Content = frontmatter.Marshal(parsed.Fields, parsed.Order, newBody)
		source.Size = int64(len(source.Content))
		source.ContentHash = hashing.NoteHash([]byte(source.Content))

		if err := m.persist(ctx, source); err != nil {
			return notesUpdated, linksUpdated, err
		}

		notesUpdated++
		linksUpdated += changed
	}

	return notesUpdated, linksUpdated, nil
}

func (m *Manager) checkHash(note model.Note, provided string) error {
	if provided == "" {
		return vaulterr.MissingContentHash()
	}

	if provided != note.ContentHash {
		return vaulterr.ContentHashMismatch(note.ContentHash, provided)
	}

	return nil
}

// userMetadata strips the core-managed keys out of a stored metadata
// map so buildNote can re-stamp them.
func userMetadata(metadata map[string]*model.Value) map[string]*model.Value {
	out := make(map[string]*model.Value, len(metadata))

	for k, v := range metadata {
		if model.ProtectedFieldNames[k] || k == "type" {
			continue
		}

		out[k] = v
	}

	return out
}
