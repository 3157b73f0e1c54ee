package linkgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/linkgraph"
)

type fakeResolver struct {
	byTypeFilename map[string]string
	byTitle        map[string]string
	byStem         map[string]string
	titles         map[string]string
}

func (f *fakeResolver) ExactTypeFilename(_ context.Context, raw string) (string, bool, error) {
	id, ok := f.byTypeFilename[raw]
	return id, ok, nil
}

func (f *fakeResolver) ByTitle(_ context.Context, title string) (string, bool, error) {
	id, ok := f.byTitle[title]
	return id, ok, nil
}

func (f *fakeResolver) ByFilenameStem(_ context.Context, stem string) (string, bool, error) {
	id, ok := f.byStem[stem]
	return id, ok, nil
}

func (f *fakeResolver) TitleOf(_ context.Context, noteID string) (string, bool, error) {
	title, ok := f.titles[noteID]
	return title, ok, nil
}

func TestResolveByTypeFilenameNormalizesToCurrentTitle(t *testing.T) {
	resolver := &fakeResolver{
		byTypeFilename: map[string]string{"projects/alpha": "note-1"},
		titles:         map[string]string{"note-1": "Alpha Project"},
	}

	edges, err := linkgraph.Resolve(context.Background(), "src", []linkgraph.ExtractedLink{
		{TargetRaw: "projects/alpha", LineNumber: 1},
	}, resolver)

	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "note-1", edges[0].TargetNoteID)
	require.Equal(t, "Alpha Project", edges[0].TargetTitle)
}

func TestResolveByTitleExact(t *testing.T) {
	resolver := &fakeResolver{
		byTitle: map[string]string{"My Note": "note-2"},
	}

	edges, err := linkgraph.Resolve(context.Background(), "src", []linkgraph.ExtractedLink{
		{TargetRaw: "My Note", LineNumber: 3},
	}, resolver)

	require.NoError(t, err)
	require.Equal(t, "note-2", edges[0].TargetNoteID)
	require.Equal(t, "My Note", edges[0].TargetTitle)
}

func TestResolveByFilenameStemFallback(t *testing.T) {
	resolver := &fakeResolver{
		byStem: map[string]string{"deep-work": "note-3"},
	}

	edges, err := linkgraph.Resolve(context.Background(), "src", []linkgraph.ExtractedLink{
		{TargetRaw: "deep-work.md", LineNumber: 5},
	}, resolver)

	require.NoError(t, err)
	require.Equal(t, "note-3", edges[0].TargetNoteID)
}

func TestResolveUnresolvedIsBroken(t *testing.T) {
	resolver := &fakeResolver{}

	edges, err := linkgraph.Resolve(context.Background(), "src", []linkgraph.ExtractedLink{
		{TargetRaw: "Nowhere", LineNumber: 7},
	}, resolver)

	require.NoError(t, err)
	require.Empty(t, edges[0].TargetNoteID)
	require.Equal(t, "Nowhere", edges[0].TargetTitle)
}
