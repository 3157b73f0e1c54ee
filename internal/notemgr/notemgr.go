// Package notemgr implements the create/get/update/rename/move/delete
// lifecycle for notes, orchestrating the note file, the index rows,
// and the link graph under the content-hash optimistic concurrency
// protocol. Every mutation validates first, then writes the file and
// the derived rows as one crash-safe unit; batch operations accumulate
// per-item failures and never abort siblings.
package notemgr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vaultdb/vaultdb/internal/frontmatter"
	"github.com/vaultdb/vaultdb/internal/hashing"
	"github.com/vaultdb/vaultdb/internal/linkgraph"
	"github.com/vaultdb/vaultdb/internal/metaval"
	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/notetype"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vfs"
	"github.com/vaultdb/vaultdb/internal/vlog"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

// protectedFrontmatterOrder fixes the leading key order of every note
// file the manager emits: protected fields first, then schema fields,
// then alphabetic extras (frontmatter.Marshal appends the extras).
var protectedFrontmatterOrder = []string{"title", "type", "created", "updated"}

// Manager owns all note mutations for one vault.
type Manager struct {
	ws    *workspace.Workspace
	db    *store.Store
	types *notetype.Manager
	fs    vfs.FS
	log   *vlog.Logger

	now func() time.Time
}

// New builds a Manager over the vault's workspace, store, and note-type
// manager. log may be nil (discards).
func New(ws *workspace.Workspace, db *store.Store, types *notetype.Manager, log *vlog.Logger) *Manager {
	if log == nil {
		log = vlog.Discard()
	}

	return &Manager{ws: ws, db: db, types: types, fs: vfs.NewReal(), log: log, now: time.Now}
}

// CreateInput is one note creation request.
type CreateInput struct {
	Type     string
	Title    string
	Content  string // markdown body; frontmatter is generated by the manager
	Metadata map[string]*model.Value
}

// CreateNote creates a note of the given type: resolves a slugified
// filename (suffixing -2, -3, ... on collision), merges caller metadata
// with schema defaults, writes the file atomically, and upserts the
// derived index rows in one crash-safe unit. Protected fields (title,
// filename, created, updated) are set by the manager and rejected in
// caller metadata.
func (m *Manager) CreateNote(ctx context.Context, in CreateInput) (model.NoteInfo, error) {
	nt, err := m.types.GetDescription(ctx, in.Type)
	if err != nil {
		return model.NoteInfo{}, err
	}

	if in.Title == "" {
		return model.NoteInfo{}, vaulterr.ValidationFailed("title must not be empty")
	}

	if err := rejectProtected(in.Metadata); err != nil {
		return model.NoteInfo{}, err
	}

	merged := mergeDefaults(nt.MetadataSchema, in.Metadata)

	if err := metaval.ValidateMetadata(nt.MetadataSchema, merged); err != nil {
		return model.NoteInfo{}, err
	}

	filename, err := m.resolveFilename(ctx, in.Type, in.Title)
	if err != nil {
		return model.NoteInfo{}, err
	}

	now := m.now().UTC()
	note, err := m.buildNote(in.Type, filename, in.Title, in.Content, merged, nt.MetadataSchema, now, now)
	if err != nil {
		return model.NoteInfo{}, err
	}

	if err := m.persist(ctx, note); err != nil {
		return model.NoteInfo{}, err
	}

	// Links that couldn't resolve before this note existed can now.
	if _, err := linkgraph.UpdateBroken(ctx, m.db, note.ID, note.Title); err != nil {
		return model.NoteInfo{}, err
	}

	return noteInfo(note), nil
}

// BatchResult is one per-item outcome of BatchCreateNotes.
type BatchResult struct {
	Input CreateInput
	Info  model.NoteInfo
	Err   error
}

// BatchCreateNotes creates each note independently; a failing item
// never aborts its siblings.
func (m *Manager) BatchCreateNotes(ctx context.Context, inputs []CreateInput) []BatchResult {
	results := make([]BatchResult, len(inputs))

	for i, in := range inputs {
		info, err := m.CreateNote(ctx, in)
		results[i] = BatchResult{Input: in, Info: info, Err: err}
	}

	return results
}

// GetNote resolves identifier ("type/filename[.md]", bare filename, or
// title, in the same order wikilinks resolve) and returns the full
// note with its current content hash.
func (m *Manager) GetNote(ctx context.Context, identifier string) (model.Note, error) {
	id, err := m.resolveIdentifier(ctx, identifier)
	if err != nil {
		return model.Note{}, err
	}

	return m.db.GetNote(ctx, id)
}

// GetResult is one per-id outcome of GetNotes.
type GetResult struct {
	Identifier string
	Note       model.Note
	Err        error
}

// GetNotes fetches each identifier concurrently, best-effort: a missing
// note yields an error record for that id only.
func (m *Manager) GetNotes(ctx context.Context, identifiers []string) []GetResult {
	results := make([]GetResult, len(identifiers))

	var wg sync.WaitGroup

	for i, ident := range identifiers {
		wg.Add(1)

		go func(i int, ident string) {
			defer wg.Done()

			note, err := m.GetNote(ctx, ident)
			results[i] = GetResult{Identifier: ident, Note: note, Err: err}
		}(i, ident)
	}

	wg.Wait()

	return results
}

// ListIDsByType returns the ids of every note of the given type,
// newest first. Used by NoteTypeManager's migrate/delete actions.
func (m *Manager) ListIDsByType(ctx context.Context, noteType string) ([]string, error) {
	notes, err := m.db.ListAll(ctx, noteType, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}

	return ids, nil
}

// resolveFilename slugifies title and finds the first free filename in
// the type's directory, suffixing -2, -3, ... on collision. Collisions
// are checked against both the filesystem and the index so a file that
// exists but is not yet indexed still counts.
func (m *Manager) resolveFilename(ctx context.Context, noteType, title string) (string, error) {
	slug := Slugify(title)

	for n := 1; ; n++ {
		candidate := slug
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", slug, n)
		}

		path, err := m.ws.NotePath(noteType, candidate+".md")
		if err != nil {
			return "", err
		}

		exists, err := m.fs.Exists(path)
		if err != nil {
			return "", vaulterr.IoError("stat_note", path, err)
		}

		if exists {
			continue
		}

		if _, err := m.db.GetNote(ctx, noteType+"/"+candidate); err == nil {
			continue
		}

		return candidate + ".md", nil
	}
}

// buildNote assembles the full note file (frontmatter + body), hashes
// it, and returns the model.Note ready for persist.
func (m *Manager) buildNote(noteType, filename, title, body string, metadata map[string]*model.Value, schema model.MetadataSchema, created, updated time.Time) (model.Note, error) {
	stem := strings.TrimSuffix(filename, ".md")

	path, err := m.ws.NotePath(noteType, filename)
	if err != nil {
		return model.Note{}, err
	}

	fields := make(map[string]*model.Value, len(metadata)+4)
	for k, v := range metadata {
		fields[k] = v
	}

	fields["title"] = model.String(title)
	fields["type"] = model.String(noteType)
	fields["created"] = model.Date(created.Format(time.RFC3339))
	fields["updated"] = model.Date(updated.Format(time.RFC3339))

	content := frontmatter.Marshal(fields, frontmatterOrder(schema), body)

	return model.Note{
		ID:          noteType + "/" + stem,
		Type:        noteType,
		Title:       title,
		Filename:    filename,
		Path:        path,
		Content:     content,
		Metadata:    fields,
		Created:     created,
		Updated:     updated,
		Size:        int64(len(content)),
		ContentHash: hashing.NoteHash([]byte(content)),
	}, nil
}

// persist extracts links from the note's body, resolves them, and
// hands the whole unit (file + rows + edges) to the store's crash-safe
// upsert.
func (m *Manager) persist(ctx context.Context, note model.Note) error {
	parsed, err := frontmatter.Parse(note.Content)
	if err != nil {
		return err
	}

	extraction := linkgraph.Extract(parsed.Body)

	edges, err := linkgraph.Resolve(ctx, note.ID, extraction.Wikilinks, m)
	if err != nil {
		return err
	}

	external := make([]model.ExternalLink, len(extraction.External))
	for i, ext := range extraction.External {
		ext.NoteID = note.ID
		external[i] = ext
	}

	return m.db.UpsertNote(ctx, store.UpsertNoteInput{
		Note:     note,
		Metadata: model.FlattenMetadata(note.ID, note.Metadata),
		Edges:    edges,
		External: external,
	})
}

// frontmatterOrder returns the emitted key order: protected fields
// first, then schema fields in declaration order. Extras are appended
// alphabetically by frontmatter.Marshal.
func frontmatterOrder(schema model.MetadataSchema) []string {
	order := make([]string, 0, len(protectedFrontmatterOrder)+len(schema.Fields))
	order = append(order, protectedFrontmatterOrder...)

	for _, f := range schema.Fields {
		order = append(order, f.Name)
	}

	return order
}

func rejectProtected(metadata map[string]*model.Value) error {
	for k := range metadata {
		if model.ProtectedFieldNames[k] || k == "type" {
			return vaulterr.ProtectedField(fmt.Sprintf("metadata field %q is managed by the core", k))
		}
	}

	return nil
}

func mergeDefaults(schema model.MetadataSchema, metadata map[string]*model.Value) map[string]*model.Value {
	merged := make(map[string]*model.Value, len(metadata)+len(schema.Fields))

	for k, v := range metadata {
		merged[k] = v
	}

	for _, f := range schema.Fields {
		if f.Default == nil {
			continue
		}

		if _, ok := merged[f.Name]; !ok {
			merged[f.Name] = f.Default
		}
	}

	return merged
}

func noteInfo(n model.Note) model.NoteInfo {
	return model.NoteInfo{
		ID:          n.ID,
		Type:        n.Type,
		Title:       n.Title,
		Filename:    n.Filename,
		Path:        n.Path,
		Created:     n.Created,
		ContentHash: n.ContentHash,
	}
}

// Slugify lowercases title and maps every run of characters outside
// [a-z0-9] to a single "-", trimming leading/trailing dashes. An empty
// result slugs to "untitled".
func Slugify(title string) string {
	var b strings.Builder

	lastDash := true // suppress a leading dash

	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)

			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')

				lastDash = true
			}
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "untitled"
	}

	return slug
}
