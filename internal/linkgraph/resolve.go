package linkgraph

import (
	"context"
	"strings"

	"github.com/vaultdb/vaultdb/internal/model"
)

// Resolver looks up notes by the identifier forms wikilink resolution
// needs. Implemented by internal/notemgr (which already knows how to
// parse "type/filename" identifiers) so linkgraph stays independent of
// the note manager's higher-level orchestration.
type Resolver interface {
	// ExactTypeFilename resolves "type/filename" (optionally with a
	// trailing ".md"), rule 1.
	ExactTypeFilename(ctx context.Context, raw string) (noteID string, ok bool, err error)
	// ByTitle resolves an exact title match across all notes, rule 2.
	ByTitle(ctx context.Context, title string) (noteID string, ok bool, err error)
	// ByFilenameStem resolves a bare filename stem, rule 3.
	ByFilenameStem(ctx context.Context, stem string) (noteID string, ok bool, err error)
	// TitleOf returns the current title of noteID, used to normalize
	// target_title when a link resolved via its "type/filename" form
	// rather than by title, so broken-link repair and rename rewriting
	// (both keyed on title) behave the same regardless of link form.
	TitleOf(ctx context.Context, noteID string) (title string, ok bool, err error)
}

// Resolve turns each extracted wikilink into a [model.LinkEdge], trying
// the three resolution rules in order. Unresolved links get an empty
// TargetNoteID (broken).
func Resolve(ctx context.Context, sourceNoteID string, links []ExtractedLink, resolver Resolver) ([]model.LinkEdge, error) {
	edges := make([]model.LinkEdge, 0, len(links))

	for _, link := range links {
		target, title, err := resolveOne(ctx, link.TargetRaw, resolver)
		if err != nil {
			return nil, err
		}

		edges = append(edges, model.LinkEdge{
			SourceNoteID: sourceNoteID,
			TargetNoteID: target,
			TargetTitle:  title,
			LinkText:     link.Display,
			LineNumber:   link.LineNumber,
		})
	}

	return edges, nil
}

func resolveOne(ctx context.Context, raw string, resolver Resolver) (noteID, title string, err error) {
	stem := strings.TrimSuffix(raw, ".md")

	if strings.Contains(stem, "/") {
		if id, ok, err := resolver.ExactTypeFilename(ctx, stem); err != nil {
			return "", raw, err
		} else if ok {
			if title, ok, err := resolver.TitleOf(ctx, id); err == nil && ok {
				return id, title, nil
			}

			return id, raw, nil
		}
	}

	if id, ok, err := resolver.ByTitle(ctx, raw); err != nil {
		return "", raw, err
	} else if ok {
		return id, raw, nil
	}

	if id, ok, err := resolver.ByFilenameStem(ctx, stem); err != nil {
		return "", raw, err
	} else if ok {
		return id, raw, nil
	}

	return "", raw, nil
}
