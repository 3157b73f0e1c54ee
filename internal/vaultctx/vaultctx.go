// Package vaultctx wires one vault's components together: the
// workspace, store, note-type manager, note manager, and searcher,
// plus the per-vault fair FIFO lock that totally orders mutations. A
// process-wide cache hands out one live context per vault id; the
// registry hands out records, never singletons.
package vaultctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/notemgr"
	"github.com/vaultdb/vaultdb/internal/notetype"
	"github.com/vaultdb/vaultdb/internal/registry"
	"github.com/vaultdb/vaultdb/internal/search"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vlog"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

// Context owns one vault's wired components. Obtain one through a
// [Cache]; close it through the cache so the store handle is released
// exactly once.
type Context struct {
	ID        string
	Workspace *workspace.Workspace
	Store     *store.Store
	Types     *notetype.Manager
	Notes     *notemgr.Manager
	Search    *search.Searcher

	writeLock fifoMutex
	log       *vlog.Logger
}

// WithWrite runs fn while holding the vault's mutation lock. All
// mutating operations on a vault go through here so they are totally
// ordered; reads may bypass it and rely on the store's own
// reader/writer semantics.
func (c *Context) WithWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.writeLock.Lock(ctx); err != nil {
		return err
	}

	defer c.writeLock.Unlock()

	return fn(ctx)
}

// Close releases the vault's store handle.
func (c *Context) Close() error {
	return c.Store.Close()
}

// open builds a fully wired Context for rec, rebuilding the index from
// the filesystem when the store reports a schema gap.
func open(ctx context.Context, rec model.VaultRecord, log *vlog.Logger) (*Context, error) {
	ws, err := workspace.Initialize(rec.Path)
	if err != nil {
		return nil, err
	}

	db, needsRebuild, err := store.Open(ctx, ws.IndexDir())
	if err != nil {
		return nil, err
	}

	types := notetype.New(ws, db, nil)
	notes := notemgr.New(ws, db, types, log)
	types.SetNoteOps(noteOps{notes})
	searcher := search.New(ws, db, log)

	if needsRebuild && ws.Config().Database.RebuildOnGap {
		log.Infof("vault %s: schema gap, rebuilding index", rec.ID)

		if err := searcher.RebuildIndex(ctx, nil); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Context{
		ID:        rec.ID,
		Workspace: ws,
		Store:     db,
		Types:     types,
		Notes:     notes,
		Search:    searcher,
		log:       log,
	}, nil
}

// noteOps adapts notemgr.Manager to the narrow interface
// notetype.Manager needs for migrate/delete actions.
type noteOps struct {
	notes *notemgr.Manager
}

func (a noteOps) ListIDsByType(ctx context.Context, noteType string) ([]string, error) {
	return a.notes.ListIDsByType(ctx, noteType)
}

func (a noteOps) MoveNote(ctx context.Context, identifier, newType, contentHash string) error {
	_, err := a.notes.MoveNote(ctx, identifier, newType, contentHash)

	return err
}

func (a noteOps) DeleteNote(ctx context.Context, identifier string, confirm bool) error {
	return a.notes.DeleteNote(ctx, identifier, confirm)
}

// Cache is the process-wide set of active vault contexts, keyed by
// vault id. It consults the registry on first open and reuses the live
// context afterward.
type Cache struct {
	reg *registry.Registry
	log *vlog.Logger

	mu     sync.Mutex
	active map[string]*Context
}

// NewCache builds a Cache over the given registry. log may be nil
// (discards).
func NewCache(reg *registry.Registry, log *vlog.Logger) *Cache {
	if log == nil {
		log = vlog.Discard()
	}

	return &Cache{reg: reg, log: log, active: make(map[string]*Context)}
}

// Open returns the live context for vaultID, building it from the
// registry record on first use and bumping the vault's last_accessed
// timestamp.
func (c *Cache) Open(ctx context.Context, vaultID string) (*Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vc, ok := c.active[vaultID]; ok {
		return vc, nil
	}

	rec, err := c.lookup(vaultID)
	if err != nil {
		return nil, err
	}

	vc, err := open(ctx, rec, c.log)
	if err != nil {
		return nil, err
	}

	if err := c.reg.SetCurrent(vaultID, time.Now().UTC()); err != nil {
		_ = vc.Close()
		return nil, err
	}

	c.active[vaultID] = vc

	return vc, nil
}

// OpenCurrent opens the registry's currently selected vault.
func (c *Cache) OpenCurrent(ctx context.Context) (*Context, error) {
	rec, err := c.reg.Current()
	if err != nil {
		return nil, err
	}

	return c.Open(ctx, rec.ID)
}

// Close releases vaultID's context, if active.
func (c *Cache) Close(vaultID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	vc, ok := c.active[vaultID]
	if !ok {
		return nil
	}

	delete(c.active, vaultID)

	return vc.Close()
}

// CloseAll releases every active context.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error

	for id, vc := range c.active {
		if err := vc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		delete(c.active, id)
	}

	return firstErr
}

func (c *Cache) lookup(vaultID string) (model.VaultRecord, error) {
	records, err := c.reg.List()
	if err != nil {
		return model.VaultRecord{}, err
	}

	for _, rec := range records {
		if rec.ID == vaultID {
			return rec, nil
		}
	}

	return model.VaultRecord{}, vaulterr.NotFound(fmt.Sprintf("vault %q not registered", vaultID))
}
