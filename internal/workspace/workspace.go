// Package workspace owns one vault
// directory, initializing or upgrading its VaultConfig, and exposing
// the filesystem layout note types and notes live at.
//
// Config handling follows a load-or-seed, merge-missing-keys idiom:
// user values are preserved, absent keys are filled from defaults, and
// the file is rewritten atomically only when something was added.
package workspace

import (
	"bytes"
	"path/filepath"

	natomic "github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/registry"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vfs"
)

// ConfigDirName is the fixed subdirectory holding config, the index
// database, and backups.
const ConfigDirName = ".vaultdb"

// ConfigFileName is the fixed config file name inside ConfigDirName.
const ConfigFileName = "config.yml"

// IndexDirName is where the embedded database and its WAL live;
// internal/store.Open is pointed at this directory.
const IndexDirName = "index"

// BackupsDirName holds pre-delete backups, when the deletion policy
// requests them.
const BackupsDirName = "backups"

// DescriptionFileName is the fixed note-type description document name
// inside every note-type directory.
const DescriptionFileName = "_description.md"

// defaultNoteTypes is seeded by InitializeVault: a minimal, generally
// useful starting set.
var defaultNoteTypes = []string{"note", "daily"}

// Workspace owns one vault's directory layout and VaultConfig.
type Workspace struct {
	root   string
	fs     vfs.FS
	atomic *vfs.AtomicWriter
	config model.VaultConfig
}

// Root returns the vault's absolute root directory.
func (w *Workspace) Root() string { return w.root }

// Config returns the currently loaded VaultConfig.
func (w *Workspace) Config() model.VaultConfig { return w.config }

// ConfigDir returns `<root>/.vaultdb`.
func (w *Workspace) ConfigDir() string { return filepath.Join(w.root, ConfigDirName) }

// ConfigPath returns `<root>/.vaultdb/config.yml`.
func (w *Workspace) ConfigPath() string { return filepath.Join(w.ConfigDir(), ConfigFileName) }

// IndexDir returns the directory internal/store.Open should be pointed
// at for this vault's database + WAL.
func (w *Workspace) IndexDir() string { return filepath.Join(w.ConfigDir(), IndexDirName) }

// BackupsDir returns the directory deletion backups are written under.
func (w *Workspace) BackupsDir() string {
	if w.config.Deletion.BackupPath != "" {
		if filepath.IsAbs(w.config.Deletion.BackupPath) {
			return w.config.Deletion.BackupPath
		}

		return filepath.Join(w.ConfigDir(), w.config.Deletion.BackupPath)
	}

	return filepath.Join(w.ConfigDir(), BackupsDirName)
}

// NoteTypeDir returns `<root>/<type>`.
func (w *Workspace) NoteTypeDir(noteType string) (string, error) {
	if err := registry.ValidateSlug(noteType); err != nil {
		return "", err
	}

	return registry.SafeJoin(w.root, noteType)
}

// NotePath returns `<root>/<type>/<filename>`.
func (w *Workspace) NotePath(noteType, filename string) (string, error) {
	dir, err := w.NoteTypeDir(noteType)
	if err != nil {
		return "", err
	}

	return registry.SafeJoin(dir, filename)
}

// DescriptionPath returns `<root>/<type>/_description.md`.
func (w *Workspace) DescriptionPath(noteType string) (string, error) {
	dir, err := w.NoteTypeDir(noteType)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, DescriptionFileName), nil
}

// ListNoteTypeDirs returns the names of every subdirectory of root that
// looks like a note type (has a _description.md file), used by
// NoteTypeManager.List and HybridSearch.RebuildIndex.
func (w *Workspace) ListNoteTypeDirs() ([]string, error) {
	entries, err := w.fs.ReadDir(w.root)
	if err != nil {
		return nil, vaulterr.IoError("list_note_types", w.root, err)
	}

	var types []string

	for _, e := range entries {
		if !e.IsDir() || e.Name() == ConfigDirName {
			continue
		}

		descPath := filepath.Join(w.root, e.Name(), DescriptionFileName)

		exists, err := w.fs.Exists(descPath)
		if err != nil {
			return nil, vaulterr.IoError("stat_description", descPath, err)
		}

		if exists {
			types = append(types, e.Name())
		}
	}

	return types, nil
}

// Initialize loads an existing vault's config, merging in any missing
// default keys and rewriting atomically iff something changed. It
// assumes the vault directory already exists; use InitializeVault to
// create a brand-new vault.
func Initialize(root string) (*Workspace, error) {
	return initialize(root, vfs.NewReal())
}

func initialize(root string, fsys vfs.FS) (*Workspace, error) {
	root = filepath.Clean(root)

	exists, err := fsys.Exists(root)
	if err != nil {
		return nil, vaulterr.IoError("stat_vault_root", root, err)
	}

	if !exists {
		return nil, vaulterr.NotFound("vault root does not exist: " + root)
	}

	w := &Workspace{root: root, fs: fsys, atomic: vfs.NewAtomicWriter(fsys)}

	if err := w.loadOrSeedConfig(); err != nil {
		return nil, err
	}

	return w, nil
}

// InitializeVault creates a brand-new vault directory, writes its
// default config, and seeds a default set of note types.
func InitializeVault(root string) (*Workspace, error) {
	return initializeVault(root, vfs.NewReal())
}

func initializeVault(root string, fsys vfs.FS) (*Workspace, error) {
	root = filepath.Clean(root)

	if err := fsys.MkdirAll(root, 0o750); err != nil {
		return nil, vaulterr.IoError("mkdir_vault_root", root, err)
	}

	w := &Workspace{root: root, fs: fsys, atomic: vfs.NewAtomicWriter(fsys)}

	if err := w.loadOrSeedConfig(); err != nil {
		return nil, err
	}

	for _, nt := range defaultNoteTypes {
		if err := w.seedNoteTypeDir(nt); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *Workspace) seedNoteTypeDir(noteType string) error {
	dir, err := w.NoteTypeDir(noteType)
	if err != nil {
		return err
	}

	if err := w.fs.MkdirAll(dir, 0o750); err != nil {
		return vaulterr.IoError("mkdir_note_type", dir, err)
	}

	descPath, err := w.DescriptionPath(noteType)
	if err != nil {
		return err
	}

	exists, err := w.fs.Exists(descPath)
	if err != nil {
		return vaulterr.IoError("stat_description", descPath, err)
	}

	if exists {
		return nil
	}

	doc := "# Purpose\n\nGeneral-purpose " + noteType + " notes.\n\n# Agent Instructions\n\n(none)\n\n# Metadata Schema\n\n(none)\n"

	if err := w.atomic.WriteWithDefaults(descPath, bytes.NewReader([]byte(doc))); err != nil {
		return vaulterr.IoError("write_description", descPath, err)
	}

	return nil
}

// DefaultConfig returns the default VaultConfig seeded into a new
// vault or merged into an existing one missing keys.
func DefaultConfig() model.VaultConfig {
	return model.VaultConfig{
		SchemaVersion:   1,
		DefaultNoteType: "note",
		Deletion: model.DeletionPolicy{
			Confirm:         true,
			BackupPath:      BackupsDirName,
			AllowTypeDelete: false,
			MaxBulk:         100,
		},
		SearchEnabled: true,
		Database: model.DatabaseConfig{
			FileName:     "index.db",
			FTSEnabled:   true,
			RebuildOnGap: true,
		},
	}
}

// configFile is the on-disk YAML shape; kept separate from
// model.VaultConfig so yaml tags don't leak into the domain type and so
// we can detect which keys were present vs. merged-in from defaults.
type configFile struct {
	SchemaVersion   *int    `yaml:"schema_version"`
	DefaultNoteType *string `yaml:"default_note_type"`
	Deletion        *struct {
		Confirm         *bool   `yaml:"confirm"`
		BackupPath      *string `yaml:"backup_path"`
		AllowTypeDelete *bool   `yaml:"allow_type_delete"`
		MaxBulk         *int    `yaml:"max_bulk"`
	} `yaml:"deletion"`
	Search *struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"search"`
	Database *struct {
		FileName     *string `yaml:"file_name"`
		FTSEnabled   *bool   `yaml:"fts_enabled"`
		RebuildOnGap *bool   `yaml:"rebuild_on_gap"`
	} `yaml:"database"`
}

// loadOrSeedConfig loads the config file (or seeds defaults if absent
// or malformed-by-omission), merges in any keys missing from the
// loaded file, and rewrites atomically iff anything was added.
func (w *Workspace) loadOrSeedConfig() error {
	path := w.ConfigPath()

	exists, err := w.fs.Exists(path)
	if err != nil {
		return vaulterr.IoError("stat_config", path, err)
	}

	def := DefaultConfig()

	if !exists {
		w.config = def

		return w.writeConfig()
	}

	data, err := w.fs.ReadFile(path)
	if err != nil {
		return vaulterr.IoError("read_config", path, err)
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return vaulterr.ValidationFailed("workspace: malformed config yaml: " + err.Error())
	}

	merged, changed := mergeConfig(def, cf)
	w.config = merged

	if changed {
		return w.writeConfig()
	}

	return nil
}

// mergeConfig fills in any field missing from cf with def's value,
// reporting whether anything was filled in (so the caller only
// rewrites the file when necessary).
func mergeConfig(def model.VaultConfig, cf configFile) (model.VaultConfig, bool) {
	out := def
	changed := false

	if cf.SchemaVersion != nil {
		out.SchemaVersion = *cf.SchemaVersion
	} else {
		changed = true
	}

	if cf.DefaultNoteType != nil {
		out.DefaultNoteType = *cf.DefaultNoteType
	} else {
		changed = true
	}

	if cf.Deletion != nil {
		if cf.Deletion.Confirm != nil {
			out.Deletion.Confirm = *cf.Deletion.Confirm
		} else {
			changed = true
		}

		if cf.Deletion.BackupPath != nil {
			out.Deletion.BackupPath = *cf.Deletion.BackupPath
		} else {
			changed = true
		}

		if cf.Deletion.AllowTypeDelete != nil {
			out.Deletion.AllowTypeDelete = *cf.Deletion.AllowTypeDelete
		} else {
			changed = true
		}

		if cf.Deletion.MaxBulk != nil {
			out.Deletion.MaxBulk = *cf.Deletion.MaxBulk
		} else {
			changed = true
		}
	} else {
		changed = true
	}

	if cf.Search != nil {
		if cf.Search.Enabled != nil {
			out.SearchEnabled = *cf.Search.Enabled
		} else {
			changed = true
		}
	} else {
		changed = true
	}

	if cf.Database != nil {
		if cf.Database.FileName != nil {
			out.Database.FileName = *cf.Database.FileName
		} else {
			changed = true
		}

		if cf.Database.FTSEnabled != nil {
			out.Database.FTSEnabled = *cf.Database.FTSEnabled
		} else {
			changed = true
		}

		if cf.Database.RebuildOnGap != nil {
			out.Database.RebuildOnGap = *cf.Database.RebuildOnGap
		} else {
			changed = true
		}
	} else {
		changed = true
	}

	return out, changed
}

func (w *Workspace) writeConfig() error {
	cf := toConfigFile(w.config)

	data, err := yaml.Marshal(cf)
	if err != nil {
		return vaulterr.IoError("marshal_config", w.ConfigPath(), err)
	}

	if err := w.fs.MkdirAll(w.ConfigDir(), 0o750); err != nil {
		return vaulterr.IoError("mkdir_config_dir", w.ConfigDir(), err)
	}

	if err := natomic.WriteFile(w.ConfigPath(), bytes.NewReader(data)); err != nil {
		return vaulterr.IoError("write_config", w.ConfigPath(), err)
	}

	return nil
}

func toConfigFile(c model.VaultConfig) map[string]any {
	return map[string]any{
		"schema_version":   c.SchemaVersion,
		"default_note_type": c.DefaultNoteType,
		"deletion": map[string]any{
			"confirm":           c.Deletion.Confirm,
			"backup_path":       c.Deletion.BackupPath,
			"allow_type_delete": c.Deletion.AllowTypeDelete,
			"max_bulk":          c.Deletion.MaxBulk,
		},
		"search": map[string]any{
			"enabled": c.SearchEnabled,
		},
		"database": map[string]any{
			"file_name":      c.Database.FileName,
			"fts_enabled":    c.Database.FTSEnabled,
			"rebuild_on_gap": c.Database.RebuildOnGap,
		},
	}
}
