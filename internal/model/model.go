// Package model holds the plain data structures shared across vaultdb's
// components: vaults, note types, notes, link graph rows, and the
// dynamic metadata value variant. None of these types carry behavior
// beyond small accessors; validation and persistence live in the
// packages that own each entity (workspace, notetype, store, ...).
package model

import (
	"sort"
	"time"
)

// VaultRecord is one entry in the GlobalRegistry.
type VaultRecord struct {
	ID           string
	Name         string
	Path         string
	Description  string
	Created      time.Time
	LastAccessed time.Time
}

// DeletionPolicy controls how NoteManager and NoteTypeManager handle
// destructive operations.
type DeletionPolicy struct {
	Confirm       bool
	BackupPath    string
	AllowTypeDelete bool
	MaxBulk       int
}

// DatabaseConfig controls the embedded index database.
type DatabaseConfig struct {
	FileName     string
	FTSEnabled   bool
	RebuildOnGap bool
}

// VaultConfig is the per-vault configuration persisted at
// <root>/<config-dir>/config.yml.
type VaultConfig struct {
	SchemaVersion   int
	DefaultNoteType string
	Deletion        DeletionPolicy
	SearchEnabled   bool
	Database        DatabaseConfig
}

// FieldType enumerates the supported metadata field types.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldArray   FieldType = "array"
	FieldSelect  FieldType = "select"
)

// FieldConstraints bounds the values a field may take.
type FieldConstraints struct {
	Min     *float64
	Max     *float64
	Pattern string
	Options []string
}

// FieldDef describes one metadata schema field.
type FieldDef struct {
	Name        string
	Type        FieldType
	Required    bool
	Default     *Value
	Constraints FieldConstraints
}

// MetadataSchema is an ordered list of field definitions plus whether
// unknown keys are rejected.
type MetadataSchema struct {
	Fields []FieldDef
	Closed bool
}

// ProtectedFieldNames are metadata keys the core manages; schemas may
// not redeclare them.
var ProtectedFieldNames = map[string]bool{
	"title": true, "filename": true, "created": true, "updated": true,
}

// NoteType is a user-defined note category, backed by a directory.
type NoteType struct {
	Name                string
	Description         string
	AgentInstructions   string
	MetadataSchema      MetadataSchema
	ContentHash         string
}

// Note is a single markdown file plus its parsed frontmatter metadata.
type Note struct {
	ID          string // "<type>/<filename-without-ext>"
	Type        string
	Title       string
	Filename    string
	Path        string // absolute path on disk
	Content     string // full file contents (frontmatter + body)
	Metadata    map[string]*Value
	Created     time.Time
	Updated     time.Time
	Size        int64
	ContentHash string
}

// NoteInfo is the minimal result returned by mutating NoteManager calls.
type NoteInfo struct {
	ID          string
	Type        string
	Title       string
	Filename    string
	Path        string
	Created     time.Time
	ContentHash string
}

// LinkEdge is an internal wikilink edge. TargetNoteID is empty for a
// broken link.
type LinkEdge struct {
	SourceNoteID string
	TargetNoteID string
	TargetTitle  string
	LinkText     string
	LineNumber   int
}

// LinkKind distinguishes external link flavors.
type LinkKind string

const (
	LinkURL   LinkKind = "url"
	LinkImage LinkKind = "image"
)

// ExternalLink is a link to something outside the vault.
type ExternalLink struct {
	NoteID     string
	URL        string
	Title      string
	LineNumber int
	Kind       LinkKind
}

// SearchRow mirrors Note for the full text index.
type SearchRow struct {
	NoteID  string
	Title   string
	Content string
	Type    string
	Updated time.Time
}

// MetadataRow is one (note, key) => typed value pair, the flattened
// form of Note.Metadata used by DatabaseStore.
type MetadataRow struct {
	NoteID    string
	Key       string
	Value     string
	ValueType FieldType
}

// FlattenMetadata converts a note's metadata map into the ordered rows
// DatabaseStore stores, one per key, sorted by key so callers (WAL
// entries, rebuilds) get a deterministic row order.
func FlattenMetadata(noteID string, metadata map[string]*Value) []MetadataRow {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	rows := make([]MetadataRow, 0, len(keys))

	for _, k := range keys {
		v := metadata[k]
		if v == nil {
			// Null values collapse to an empty string row so the key
			// remains queryable.
			rows = append(rows, MetadataRow{NoteID: noteID, Key: k, Value: "", ValueType: FieldString})
			continue
		}

		rows = append(rows, MetadataRow{NoteID: noteID, Key: k, Value: v.Text(), ValueType: v.FieldType()})
	}

	return rows
}
