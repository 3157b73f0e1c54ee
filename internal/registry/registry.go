// Package registry provides path validation/expansion plus the single
// user-level YAML file tracking known vaults and the current
// selection.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	natomic "github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// fileFormat is the on-disk shape of the registry file, kept separate
// from model.VaultRecord so YAML tags don't leak into the domain type.
type fileFormat struct {
	CurrentVaultID string       `yaml:"current_vault_id"`
	Vaults         []vaultEntry `yaml:"vaults"`
}

type vaultEntry struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Path         string    `yaml:"path"`
	Description  string    `yaml:"description,omitempty"`
	Created      time.Time `yaml:"created"`
	LastAccessed time.Time `yaml:"last_accessed"`
}

// Registry is the process-wide vault registry. A single mutex guards
// the read-modify-write cycle on the registry file.
type Registry struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the conventional registry file location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", vaulterr.IoError("registry_default_path", "", err)
	}

	return filepath.Join(dir, "vaultdb", "registry.yml"), nil
}

// Open returns a Registry bound to the file at path without reading it;
// each operation loads the file afresh, and a missing file reads as an
// empty registry.
func Open(path string) (*Registry, error) {
	if path == "" {
		return nil, vaulterr.ValidationFailed("registry path is empty")
	}

	return &Registry{path: path}, nil
}

func (r *Registry) load() (fileFormat, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return fileFormat{}, nil
	}

	if err != nil {
		return fileFormat{}, vaulterr.IoError("registry_read", r.path, err)
	}

	var ff fileFormat

	if err := yaml.Unmarshal(data, &ff); err != nil {
		return fileFormat{}, vaulterr.ValidationFailed(fmt.Sprintf("registry: malformed yaml: %v", err))
	}

	return ff, nil
}

func (r *Registry) save(ff fileFormat) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return vaulterr.IoError("registry_mkdir", r.path, err)
	}

	data, err := yaml.Marshal(ff)
	if err != nil {
		return vaulterr.IoError("registry_marshal", r.path, err)
	}

	if err := natomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		return vaulterr.IoError("registry_write", r.path, err)
	}

	return nil
}

// Register adds a new vault record. Fails with AlreadyExists if id is
// already registered.
func (r *Registry) Register(rec model.VaultRecord) error {
	if err := ValidateSlug(rec.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ff, err := r.load()
	if err != nil {
		return err
	}

	for _, v := range ff.Vaults {
		if v.ID == rec.ID {
			return vaulterr.AlreadyExists(fmt.Sprintf("vault %q already registered", rec.ID))
		}
	}

	ff.Vaults = append(ff.Vaults, toEntry(rec))
	if ff.CurrentVaultID == "" {
		ff.CurrentVaultID = rec.ID
	}

	return r.save(ff)
}

// Unregister removes a vault record from the registry. It never touches
// the vault's files on disk.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ff, err := r.load()
	if err != nil {
		return err
	}

	out := ff.Vaults[:0]
	found := false

	for _, v := range ff.Vaults {
		if v.ID == id {
			found = true
			continue
		}

		out = append(out, v)
	}

	if !found {
		return vaulterr.NotFound(fmt.Sprintf("vault %q not registered", id))
	}

	ff.Vaults = out

	if ff.CurrentVaultID == id {
		ff.CurrentVaultID = ""
	}

	return r.save(ff)
}

// List returns all registered vaults.
func (r *Registry) List() ([]model.VaultRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ff, err := r.load()
	if err != nil {
		return nil, err
	}

	out := make([]model.VaultRecord, len(ff.Vaults))
	for i, v := range ff.Vaults {
		out[i] = fromEntry(v)
	}

	return out, nil
}

// Current returns the currently selected vault, or NotFound if none is
// selected.
func (r *Registry) Current() (model.VaultRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ff, err := r.load()
	if err != nil {
		return model.VaultRecord{}, err
	}

	if ff.CurrentVaultID == "" {
		return model.VaultRecord{}, vaulterr.NotFound("no current vault selected")
	}

	for _, v := range ff.Vaults {
		if v.ID == ff.CurrentVaultID {
			return fromEntry(v), nil
		}
	}

	return model.VaultRecord{}, vaulterr.NotFound(fmt.Sprintf("current vault %q not registered", ff.CurrentVaultID))
}

// SetCurrent selects id as the current vault and bumps its
// last_accessed timestamp.
func (r *Registry) SetCurrent(id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ff, err := r.load()
	if err != nil {
		return err
	}

	found := false

	for i := range ff.Vaults {
		if ff.Vaults[i].ID == id {
			ff.Vaults[i].LastAccessed = now
			found = true

			break
		}
	}

	if !found {
		return vaulterr.NotFound(fmt.Sprintf("vault %q not registered", id))
	}

	ff.CurrentVaultID = id

	return r.save(ff)
}

func toEntry(rec model.VaultRecord) vaultEntry {
	return vaultEntry{
		ID:           rec.ID,
		Name:         rec.Name,
		Path:         rec.Path,
		Description:  rec.Description,
		Created:      rec.Created,
		LastAccessed: rec.LastAccessed,
	}
}

func fromEntry(v vaultEntry) model.VaultRecord {
	return model.VaultRecord{
		ID:           v.ID,
		Name:         v.Name,
		Path:         v.Path,
		Description:  v.Description,
		Created:      v.Created,
		LastAccessed: v.LastAccessed,
	}
}
