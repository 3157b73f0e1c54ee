package vaultdb_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	vaultdb "github.com/vaultdb/vaultdb"
)

func openVault(t *testing.T) *vaultdb.Context {
	t.Helper()

	base := t.TempDir()

	reg, err := vaultdb.OpenRegistry(filepath.Join(base, "registry.yml"))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, vaultdb.CreateVault(reg, vaultdb.VaultRecord{
		ID:      "main",
		Name:    "Main",
		Path:    filepath.Join(base, "vault"),
		Created: now, LastAccessed: now,
	}))

	cache := vaultdb.NewCache(reg, nil)

	t.Cleanup(func() { _ = cache.CloseAll() })

	vc, err := cache.Open(context.Background(), "main")
	require.NoError(t, err)

	return vc
}

// Exercises the full lifecycle through the public surface: typed
// create, wikilink tracking, rename rewriting, move retargeting, and
// the guarded SQL evaluator.
func TestVaultLifecycle(t *testing.T) {
	vc := openVault(t)
	ctx := context.Background()

	schema := vaultdb.MetadataSchema{Fields: []vaultdb.FieldDef{
		{Name: "rating", Type: "number"},
		{Name: "tags", Type: "array"},
	}}

	_, err := vc.Types.Create(ctx, "reading", "Books", "", schema)
	require.NoError(t, err)

	_, err = vc.Types.Create(ctx, "archive", "Archived", "", vaultdb.MetadataSchema{})
	require.NoError(t, err)

	book, err := vc.Notes.CreateNote(ctx, vaultdb.CreateInput{
		Type:    "reading",
		Title:   "Atomic Habits",
		Content: "Tiny changes.\n",
		Metadata: map[string]*vaultdb.Value{
			"rating": vaultdb.Number(5),
			"tags":   vaultdb.Array([]string{"habits"}),
		},
	})
	require.NoError(t, err)

	_, err = vc.Notes.CreateNote(ctx, vaultdb.CreateInput{
		Type:    "note",
		Title:   "d1",
		Content: "Currently reading [[Atomic Habits]].\n",
	})
	require.NoError(t, err)

	// Structured search over typed metadata.
	rated, err := vc.Search.SearchNotesAdvanced(ctx, vaultdb.AdvancedQuery{
		MetadataFilters: []vaultdb.MetadataFilter{{Key: "rating", Op: ">=", Value: "4"}},
	})
	require.NoError(t, err)
	require.Len(t, rated, 1)
	require.Equal(t, book.ID, rated[0].ID)

	// Rename rewrites the referring note and keeps the filename.
	renamed, err := vc.Notes.RenameNote(ctx, book.ID, "Deep Focus", book.ContentHash)
	require.NoError(t, err)
	require.Equal(t, 1, renamed.NotesUpdated)

	d1, err := vc.Notes.GetNote(ctx, "note/d1")
	require.NoError(t, err)
	require.Contains(t, d1.Content, "[[Deep Focus]]")

	// Move changes the id and retargets edges.
	fresh, err := vc.Notes.GetNote(ctx, book.ID)
	require.NoError(t, err)

	moved, err := vc.Notes.MoveNote(ctx, book.ID, "archive", fresh.ContentHash)
	require.NoError(t, err)
	require.Equal(t, "archive/atomic-habits", moved.NewID)

	_, err = vc.Notes.GetNote(ctx, "reading/atomic-habits")
	require.Equal(t, vaultdb.KindNotFound, vaultdb.ErrorKindOf(err))

	// The SQL evaluator is read-only.
	_, err = vc.Search.SearchNotesSQL(ctx, vaultdb.SQLQueryInput{Query: "DROP TABLE notes"})
	require.Equal(t, vaultdb.KindSqlDenied, vaultdb.ErrorKindOf(err))

	count, err := vc.Search.SearchNotesSQL(ctx, vaultdb.SQLQueryInput{Query: "SELECT COUNT(*) FROM notes"})
	require.NoError(t, err)
	require.Len(t, count.Rows, 1)
	require.Positive(t, count.QueryTimeMS)
}
