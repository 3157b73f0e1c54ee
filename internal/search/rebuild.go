package search

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaultdb/vaultdb/internal/frontmatter"
	"github.com/vaultdb/vaultdb/internal/hashing"
	"github.com/vaultdb/vaultdb/internal/linkgraph"
	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

// ProgressFunc receives (processed, total) after each file during a
// rebuild.
type ProgressFunc func(processed, total int)

// RebuildIndex walks the vault's filesystem, re-derives every note's
// index rows, and replaces the database contents atomically. Files are
// authoritative: the result is a pure function of what is on disk, so
// running a rebuild twice yields identical row sets. Concurrent
// rebuilds on the same Searcher are serialized; ctx cancellation
// between files aborts with Canceled and leaves the old index intact.
func (s *Searcher) RebuildIndex(ctx context.Context, onProgress ProgressFunc) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	types, err := s.ws.ListNoteTypeDirs()
	if err != nil {
		return err
	}

	var paths []notePath

	for _, nt := range types {
		dir, err := s.ws.NoteTypeDir(nt)
		if err != nil {
			return err
		}

		entries, err := s.fs.ReadDir(dir)
		if err != nil {
			return vaulterr.IoError("list_notes", dir, err)
		}

		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".md") || name == workspace.DescriptionFileName {
				continue
			}

			paths = append(paths, notePath{noteType: nt, filename: name, path: filepath.Join(dir, name)})
		}
	}

	total := len(paths)
	loaded := make([]loadedNote, 0, total)

	for i, np := range paths {
		if err := ctx.Err(); err != nil {
			return vaulterr.Canceled("rebuild canceled")
		}

		ln, err := s.loadNote(np)
		if err != nil {
			// A malformed file must not poison the whole rebuild; it
			// simply stays out of the index until fixed.
			s.log.Warnf("rebuild: skipping %s: %v", np.path, err)
		} else {
			loaded = append(loaded, ln)
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	resolver := newMemResolver(loaded)
	items := make([]store.RebuildItem, 0, len(loaded))

	for _, ln := range loaded {
		edges, err := linkgraph.Resolve(ctx, ln.note.ID, ln.extraction.Wikilinks, resolver)
		if err != nil {
			return err
		}

		external := make([]model.ExternalLink, len(ln.extraction.External))
		for i, ext := range ln.extraction.External {
			ext.NoteID = ln.note.ID
			external[i] = ext
		}

		items = append(items, store.RebuildItem{
			Note:     ln.note,
			Metadata: model.FlattenMetadata(ln.note.ID, ln.note.Metadata),
			Edges:    edges,
			External: external,
		})
	}

	s.log.Infof("rebuild: indexing %d notes", len(items))

	return s.db.ReplaceAll(ctx, items)
}

type notePath struct {
	noteType string
	filename string
	path     string
}

type loadedNote struct {
	note       model.Note
	extraction linkgraph.Extraction
}

func (s *Searcher) loadNote(np notePath) (loadedNote, error) {
	data, err := s.fs.ReadFile(np.path)
	if err != nil {
		return loadedNote{}, vaulterr.IoError("read_note", np.path, err)
	}

	parsed, err := frontmatter.Parse(string(data))
	if err != nil {
		return loadedNote{}, err
	}

	stem := strings.TrimSuffix(np.filename, ".md")

	title := stem
	if v := parsed.Fields["title"]; v != nil && v.Str != "" {
		title = v.Str
	}

	created, updated := fileTimes(s, np.path, parsed.Fields)

	note := model.Note{
		ID:          np.noteType + "/" + stem,
		Type:        np.noteType,
		Title:       title,
		Filename:    np.filename,
		Path:        np.path,
		Content:     string(data),
		Metadata:    parsed.Fields,
		Created:     created,
		Updated:     updated,
		Size:        int64(len(data)),
		ContentHash: hashing.NoteHash(data),
	}

	return loadedNote{note: note, extraction: linkgraph.Extract(parsed.Body)}, nil
}

// fileTimes reads created/updated from frontmatter, falling back to the
// file's modification time for externally authored notes missing them.
func fileTimes(s *Searcher, path string, fields map[string]*model.Value) (created, updated time.Time) {
	parse := func(key string) (time.Time, bool) {
		v := fields[key]
		if v == nil {
			return time.Time{}, false
		}

		raw := v.Str
		if v.Kind == model.ValueDateKind {
			raw = v.DateRFC
		}

		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, false
		}

		return t, true
	}

	var fallback time.Time
	if info, err := s.fs.Stat(path); err == nil {
		fallback = info.ModTime().UTC()
	}

	created, ok := parse("created")
	if !ok {
		created = fallback
	}

	updated, ok = parse("updated")
	if !ok {
		updated = fallback
	}

	return created, updated
}

// memResolver resolves wikilinks against the in-flight rebuild set
// instead of the database, which is about to be replaced wholesale.
type memResolver struct {
	byID    map[string]string // id -> title
	byTitle map[string]string // title -> id
	byStem  map[string]string // filename stem -> id
}

func newMemResolver(loaded []loadedNote) *memResolver {
	r := &memResolver{
		byID:    make(map[string]string, len(loaded)),
		byTitle: make(map[string]string, len(loaded)),
		byStem:  make(map[string]string, len(loaded)),
	}

	for _, ln := range loaded {
		n := ln.note
		r.byID[n.ID] = n.Title

		if _, ok := r.byTitle[n.Title]; !ok {
			r.byTitle[n.Title] = n.ID
		}

		stem := strings.TrimSuffix(n.Filename, ".md")
		if _, ok := r.byStem[stem]; !ok {
			r.byStem[stem] = n.ID
		}
	}

	return r
}

func (r *memResolver) ExactTypeFilename(_ context.Context, raw string) (string, bool, error) {
	id := strings.TrimSuffix(raw, ".md")
	_, ok := r.byID[id]

	return id, ok, nil
}

func (r *memResolver) ByTitle(_ context.Context, title string) (string, bool, error) {
	id, ok := r.byTitle[title]

	return id, ok, nil
}

func (r *memResolver) ByFilenameStem(_ context.Context, stem string) (string, bool, error) {
	id, ok := r.byStem[stem]

	return id, ok, nil
}

func (r *memResolver) TitleOf(_ context.Context, noteID string) (string, bool, error) {
	title, ok := r.byID[noteID]

	return title, ok, nil
}
