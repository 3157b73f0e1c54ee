// Package notetype implements CRUD and schema enforcement for note
// types and their metadata schemas, backed by a directory per type and
// a fixed "_description.md" document holding the purpose text, agent
// instructions, and metadata schema. Create validates before touching
// disk; update requires the caller's content hash to match the current
// state before the document is re-emitted.
package notetype

import (
	"context"
	"fmt"

	"github.com/vaultdb/vaultdb/internal/hashing"
	"github.com/vaultdb/vaultdb/internal/metaval"
	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/registry"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vfs"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

// DeleteAction enumerates how NoteTypeManager.Delete handles notes that
// still belong to the type being removed.
type DeleteAction string

const (
	// ActionError refuses the delete if any notes of this type exist.
	ActionError DeleteAction = "error"
	// ActionMigrate moves every note of this type to a target type.
	ActionMigrate DeleteAction = "migrate"
	// ActionDelete removes every note of this type (optionally backed
	// up first, per the vault's deletion policy).
	ActionDelete DeleteAction = "delete"
)

// NoteOps is the subset of NoteManager's contract NoteTypeManager needs
// to migrate or remove notes during a type deletion. notemgr imports
// notetype, so notetype never imports notemgr; internal/vaultctx
// supplies an adapter over notemgr.Manager through SetNoteOps.
type NoteOps interface {
	ListIDsByType(ctx context.Context, noteType string) ([]string, error)
	MoveNote(ctx context.Context, identifier, newType, contentHash string) error
	DeleteNote(ctx context.Context, identifier string, confirm bool) error
}

// Manager owns the note types of one vault.
type Manager struct {
	ws    *workspace.Workspace
	db    *store.Store
	fs    vfs.FS
	atomic *vfs.AtomicWriter
	notes NoteOps
}

// New builds a Manager. notes may be nil until the vault's NoteManager
// is constructed; Delete with action migrate/delete requires it.
func New(ws *workspace.Workspace, db *store.Store, notes NoteOps) *Manager {
	fsys := vfs.NewReal()

	return &Manager{ws: ws, db: db, fs: fsys, atomic: vfs.NewAtomicWriter(fsys), notes: notes}
}

// SetNoteOps wires the NoteManager in after construction, breaking the
// notetype<->notemgr construction cycle (vaultctx builds both, then
// calls this once notemgr exists).
func (m *Manager) SetNoteOps(notes NoteOps) { m.notes = notes }

// Create validates name and schema, rejects a duplicate type, creates
// the type directory, and writes its description document.
func (m *Manager) Create(ctx context.Context, name, description, instructions string, schema model.MetadataSchema) (model.NoteType, error) {
	if err := registry.ValidateSlug(name); err != nil {
		return model.NoteType{}, err
	}

	if err := metaval.ValidateSchema(schema); err != nil {
		return model.NoteType{}, err
	}

	descPath, err := m.ws.DescriptionPath(name)
	if err != nil {
		return model.NoteType{}, err
	}

	exists, err := m.fs.Exists(descPath)
	if err != nil {
		return model.NoteType{}, vaulterr.IoError("stat_note_type", descPath, err)
	}

	if exists {
		return model.NoteType{}, vaulterr.AlreadyExists(fmt.Sprintf("note type %q already exists", name))
	}

	dir, err := m.ws.NoteTypeDir(name)
	if err != nil {
		return model.NoteType{}, err
	}

	if err := m.fs.MkdirAll(dir, 0o750); err != nil {
		return model.NoteType{}, vaulterr.IoError("mkdir_note_type", dir, err)
	}

	nt := model.NoteType{Name: name, Description: description, AgentInstructions: instructions, MetadataSchema: schema}

	if err := m.write(nt); err != nil {
		return model.NoteType{}, err
	}

	return m.GetDescription(ctx, name)
}

// List returns every note type's name.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.ws.ListNoteTypeDirs()
}

// GetDescription reads and parses the note type's description document,
// returning it with a freshly computed content hash.
func (m *Manager) GetDescription(ctx context.Context, name string) (model.NoteType, error) {
	descPath, err := m.ws.DescriptionPath(name)
	if err != nil {
		return model.NoteType{}, err
	}

	data, err := m.fs.ReadFile(descPath)
	if err != nil {
		if vfsIsNotExist(err) {
			return model.NoteType{}, vaulterr.NotFound(fmt.Sprintf("note type %q not found", name))
		}

		return model.NoteType{}, vaulterr.IoError("read_note_type", descPath, err)
	}

	parsed, err := parseDoc(string(data))
	if err != nil {
		return model.NoteType{}, vaulterr.ValidationFailed(err.Error())
	}

	hash, err := contentHash(parsed.Description, parsed.Instructions, parsed.Schema)
	if err != nil {
		return model.NoteType{}, vaulterr.IndexError(err)
	}

	return model.NoteType{
		Name:              name,
		Description:       parsed.Description,
		AgentInstructions: parsed.Instructions,
		MetadataSchema:    parsed.Schema,
		ContentHash:       hash,
	}, nil
}

// UpdateInput carries only the fields the caller wants to change; nil
// means "keep the current value".
type UpdateInput struct {
	Description  *string
	Instructions *string
	Schema       *model.MetadataSchema
}

// Update requires a fresh content_hash matching the type's current
// state, re-emitting the description document with unchanged sections
// preserved.
func (m *Manager) Update(ctx context.Context, name string, in UpdateInput, contentHash string) (model.NoteType, error) {
	if contentHash == "" {
		return model.NoteType{}, vaulterr.MissingContentHash()
	}

	current, err := m.GetDescription(ctx, name)
	if err != nil {
		return model.NoteType{}, err
	}

	if current.ContentHash != contentHash {
		return model.NoteType{}, vaulterr.ContentHashMismatch(current.ContentHash, contentHash)
	}

	next := current

	if in.Description != nil {
		next.Description = *in.Description
	}

	if in.Instructions != nil {
		next.AgentInstructions = *in.Instructions
	}

	if in.Schema != nil {
		if err := metaval.ValidateSchema(*in.Schema); err != nil {
			return model.NoteType{}, err
		}

		next.MetadataSchema = *in.Schema
	}

	if err := m.write(next); err != nil {
		return model.NoteType{}, err
	}

	return m.GetDescription(ctx, name)
}

// DeleteResult reports what Delete did to existing notes of the type.
type DeleteResult struct {
	Action       DeleteAction
	NotesHandled int
	Failures     map[string]string
}

// Delete removes a note type per action: error refuses if any notes of
// this type exist; migrate moves each existing note to targetType;
// delete removes each existing note (subject to the vault's deletion
// policy). confirm must be true when the vault's policy requires it.
func (m *Manager) Delete(ctx context.Context, name string, action DeleteAction, targetType string, confirm bool) (DeleteResult, error) {
	if m.ws.Config().Deletion.Confirm && !confirm {
		return DeleteResult{}, vaulterr.PolicyDenied("deletion requires confirm=true")
	}

	if !m.ws.Config().Deletion.AllowTypeDelete {
		return DeleteResult{}, vaulterr.PolicyDenied("note type deletion is disabled by vault policy")
	}

	var ids []string

	if m.notes != nil {
		var err error

		ids, err = m.notes.ListIDsByType(ctx, name)
		if err != nil {
			return DeleteResult{}, err
		}
	}

	result := DeleteResult{Action: action, Failures: map[string]string{}}

	switch action {
	case ActionError:
		if len(ids) > 0 {
			return DeleteResult{}, vaulterr.PolicyDenied(fmt.Sprintf("note type %q still has %d notes", name, len(ids)))
		}
	case ActionMigrate:
		if targetType == "" || targetType == name {
			return DeleteResult{}, vaulterr.ValidationFailed("migrate requires a different target_type")
		}

		if _, err := m.GetDescription(ctx, targetType); err != nil {
			return DeleteResult{}, err
		}

		for _, id := range ids {
			if err := m.migrateOne(ctx, id, targetType); err != nil {
				result.Failures[id] = err.Error()
				continue
			}

			result.NotesHandled++
		}
	case ActionDelete:
		for _, id := range ids {
			if err := m.notes.DeleteNote(ctx, id, confirm); err != nil {
				result.Failures[id] = err.Error()
				continue
			}

			result.NotesHandled++
		}
	default:
		return DeleteResult{}, vaulterr.ValidationFailed(fmt.Sprintf("unknown delete action %q", action))
	}

	if len(result.Failures) > 0 {
		return result, nil
	}

	dir, err := m.ws.NoteTypeDir(name)
	if err != nil {
		return result, err
	}

	if err := m.fs.RemoveAll(dir); err != nil {
		return result, vaulterr.IoError("remove_note_type_dir", dir, err)
	}

	return result, nil
}

func (m *Manager) migrateOne(ctx context.Context, id, targetType string) error {
	note, err := m.db.GetNote(ctx, id)
	if err != nil {
		return err
	}

	return m.notes.MoveNote(ctx, id, targetType, note.ContentHash)
}

func (m *Manager) write(nt model.NoteType) error {
	descPath, err := m.ws.DescriptionPath(nt.Name)
	if err != nil {
		return err
	}

	doc := buildDoc(nt.Description, nt.AgentInstructions, nt.MetadataSchema)

	if err := m.atomic.WriteWithDefaults(descPath, stringsReader(doc)); err != nil {
		return vaulterr.IoError("write_note_type", descPath, err)
	}

	return nil
}

func contentHash(description, instructions string, schema model.MetadataSchema) (string, error) {
	fields := make([]hashing.NoteTypeField, len(schema.Fields))

	for i, f := range schema.Fields {
		defText := ""
		if f.Default != nil {
			defText = f.Default.Text()
		}

		fields[i] = hashing.NoteTypeField{
			Name:        f.Name,
			Type:        string(f.Type),
			Required:    f.Required,
			DefaultText: defText,
			Min:         f.Constraints.Min,
			Max:         f.Constraints.Max,
			Pattern:     f.Constraints.Pattern,
			Options:     f.Constraints.Options,
		}
	}

	return hashing.NoteTypeHash(hashing.NoteTypeInput{
		Description:       description,
		AgentInstructions: instructions,
		Fields:            fields,
	})
}
