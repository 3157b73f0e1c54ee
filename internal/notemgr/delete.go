package notemgr

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vaultdb/vaultdb/internal/linkgraph"
	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vfs"
)

// DeleteNote removes a note: writes a backup when the deletion policy
// carries a backup path, breaks incoming links so referring notes
// degrade to broken links, then removes the file and its index rows as
// one crash-safe unit.
func (m *Manager) DeleteNote(ctx context.Context, identifier string, confirm bool) error {
	if m.ws.Config().Deletion.Confirm && !confirm {
		return vaulterr.PolicyDenied("deletion requires confirm=true")
	}

	note, err := m.GetNote(ctx, identifier)
	if err != nil {
		return err
	}

	if m.ws.Config().Deletion.BackupPath != "" {
		if err := m.backupNote(note); err != nil {
			return err
		}
	}

	if err := linkgraph.ClearFor(ctx, m.db, note.ID); err != nil {
		return err
	}

	return m.db.DeleteNote(ctx, note.ID, note.Path)
}

// backupNote writes a timestamped copy of the note into the vault's
// backups directory before deletion.
func (m *Manager) backupNote(note model.Note) error {
	dir := m.ws.BackupsDir()

	if err := m.fs.MkdirAll(dir, 0o750); err != nil {
		return vaulterr.IoError("mkdir_backups", dir, err)
	}

	stamp := m.now().UTC().Format("20060102-150405")
	name := fmt.Sprintf("%s-%s-%s", note.Type, strings.TrimSuffix(note.Filename, ".md"), stamp) + ".md"
	path := filepath.Join(dir, name)

	writer := vfs.NewAtomicWriter(m.fs)
	if err := writer.WriteWithDefaults(path, bytes.NewReader([]byte(note.Content))); err != nil {
		return vaulterr.IoError("write_backup", path, err)
	}

	m.log.Debugf("backed up %s to %s", note.ID, path)

	return nil
}

// BulkDeleteFilter selects the notes BulkDeleteNotes removes. Every
// criterion that is set must match: the note's type equals Type, its
// tags share at least one entry with Tags, and Pattern (a regex)
// matches its title or id. A zero filter is rejected with
// ValidationFailed.
type BulkDeleteFilter struct {
	Type    string
	Tags    []string
	Pattern string
}

// BulkDeleteResult is one per-note outcome of BulkDeleteNotes.
type BulkDeleteResult struct {
	ID  string
	Err error
}

// BulkDeleteNotes deletes every note matching the filter, bounded by
// the deletion policy's max_bulk. Each note is deleted independently;
// a failure never aborts the remaining notes.
func (m *Manager) BulkDeleteNotes(ctx context.Context, filter BulkDeleteFilter, confirm bool) ([]BulkDeleteResult, error) {
	policy := m.ws.Config().Deletion

	if policy.Confirm && !confirm {
		return nil, vaulterr.PolicyDenied("deletion requires confirm=true")
	}

	if filter.Type == "" && len(filter.Tags) == 0 && filter.Pattern == "" {
		return nil, vaulterr.ValidationFailed("bulk delete requires at least one of type, tags, or pattern")
	}

	var pattern *regexp.Regexp

	if filter.Pattern != "" {
		var err error

		pattern, err = regexp.Compile(filter.Pattern)
		if err != nil {
			return nil, vaulterr.ValidationFailed(fmt.Sprintf("invalid pattern: %v", err))
		}
	}

	candidates, err := m.db.ListAll(ctx, filter.Type, 0)
	if err != nil {
		return nil, err
	}

	matched := make([]model.Note, 0, len(candidates))

	for _, note := range candidates {
		if len(filter.Tags) > 0 && !tagsIntersect(note.Metadata["tags"], filter.Tags) {
			continue
		}

		if pattern != nil && !pattern.MatchString(note.Title) && !pattern.MatchString(note.ID) {
			continue
		}

		matched = append(matched, note)
	}

	if policy.MaxBulk > 0 && len(matched) > policy.MaxBulk {
		return nil, vaulterr.PolicyDenied(fmt.Sprintf("bulk delete of %d notes exceeds max_bulk %d", len(matched), policy.MaxBulk))
	}

	results := make([]BulkDeleteResult, len(matched))

	for i, note := range matched {
		results[i] = BulkDeleteResult{ID: note.ID, Err: m.DeleteNote(ctx, note.ID, confirm)}
	}

	return results, nil
}

func tagsIntersect(v *model.Value, want []string) bool {
	if v == nil || v.Kind != model.ValueArrayKind {
		return false
	}

	for _, tag := range v.Arr {
		for _, w := range want {
			if tag == w {
				return true
			}
		}
	}

	return false
}
