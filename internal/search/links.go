package search

import (
	"context"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

// LinkQuery selects notes by their position in the link graph. Each
// populated clause narrows the result; clauses combine with AND.
type LinkQuery struct {
	// HasLinksTo selects notes with an outgoing wikilink to any of
	// these targets (note id or exact title).
	HasLinksTo []string
	// LinkedFrom selects notes that any of these sources (note id or
	// exact title) link to.
	LinkedFrom []string
	// ExternalDomains selects notes with an external link whose URL
	// contains one of these domains.
	ExternalDomains []string
	// BrokenLinks selects notes with at least one unresolved outgoing
	// wikilink.
	BrokenLinks bool
}

// SearchByLinks answers link-graph queries: who links where, which
// notes reference a domain, and which notes carry broken links.
func (s *Searcher) SearchByLinks(ctx context.Context, q LinkQuery) ([]model.Note, error) {
	var sets []map[string]bool

	if len(q.HasLinksTo) > 0 {
		set, err := s.idSet(ctx, `
			SELECT DISTINCT l.source_note_id
			FROM note_links l JOIN notes t ON l.target_note_id = t.id
			WHERE t.id = ? OR t.title = ?`, pairArgs(q.HasLinksTo))
		if err != nil {
			return nil, err
		}

		sets = append(sets, set)
	}

	if len(q.LinkedFrom) > 0 {
		set, err := s.idSet(ctx, `
			SELECT DISTINCT l.target_note_id
			FROM note_links l JOIN notes src ON l.source_note_id = src.id
			WHERE l.target_note_id IS NOT NULL AND (src.id = ? OR src.title = ?)`, pairArgs(q.LinkedFrom))
		if err != nil {
			return nil, err
		}

		sets = append(sets, set)
	}

	if len(q.ExternalDomains) > 0 {
		args := make([][]any, len(q.ExternalDomains))
		for i, domain := range q.ExternalDomains {
			args[i] = []any{"%" + domain + "%"}
		}

		set, err := s.idSet(ctx,
			"SELECT DISTINCT note_id FROM external_links WHERE url LIKE ?", args)
		if err != nil {
			return nil, err
		}

		sets = append(sets, set)
	}

	if q.BrokenLinks {
		set, err := s.idSet(ctx,
			"SELECT DISTINCT source_note_id FROM note_links WHERE target_note_id IS NULL", [][]any{{}})
		if err != nil {
			return nil, err
		}

		sets = append(sets, set)
	}

	if len(sets) == 0 {
		return nil, vaulterr.ValidationFailed("link query requires at least one clause")
	}

	ids := intersect(sets)

	notes := make([]model.Note, 0, len(ids))

	for _, id := range ids {
		note, err := s.db.GetNote(ctx, id)
		if err != nil {
			if vaulterr.KindOf(err) == vaulterr.KindNotFound {
				continue
			}

			return nil, err
		}

		notes = append(notes, note)
	}

	return notes, nil
}

// idSet unions the query results across each arg tuple.
func (s *Searcher) idSet(ctx context.Context, query string, argSets [][]any) (map[string]bool, error) {
	set := make(map[string]bool)

	err := s.db.QueryTx(func() error {
		for _, args := range argSets {
			rows, qerr := s.db.DB().QueryContext(ctx, query, args...)
			if qerr != nil {
				return qerr
			}

			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return err
				}

				set[id] = true
			}

			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}

			rows.Close()
		}

		return nil
	})
	if err != nil {
		return nil, vaulterr.IndexError(err)
	}

	return set, nil
}

func pairArgs(items []string) [][]any {
	out := make([][]any, len(items))
	for i, item := range items {
		out[i] = []any{item, item}
	}

	return out
}

// intersect returns the ids present in every set, in the map iteration
// order of the first set, which is not deterministic.
func intersect(sets []map[string]bool) []string {
	var out []string

	for id := range sets[0] {
		inAll := true

		for _, other := range sets[1:] {
			if !other[id] {
				inAll = false
				break
			}
		}

		if inAll {
			out = append(out, id)
		}
	}

	return out
}
