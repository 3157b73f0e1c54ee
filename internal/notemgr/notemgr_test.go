package notemgr_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/notemgr"
	"github.com/vaultdb/vaultdb/internal/notetype"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

func newManager(t *testing.T) (*notemgr.Manager, *store.Store, *workspace.Workspace) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "vault")

	ws, err := workspace.InitializeVault(root)
	require.NoError(t, err)

	db, needsRebuild, err := store.Open(context.Background(), ws.IndexDir())
	require.NoError(t, err)
	require.True(t, needsRebuild) // fresh database, never indexed

	t.Cleanup(func() { _ = db.Close() })

	types := notetype.New(ws, db, nil)
	mgr := notemgr.New(ws, db, types, nil)

	schema := model.MetadataSchema{Fields: []model.FieldDef{
		{Name: "rating", Type: model.FieldNumber, Constraints: model.FieldConstraints{Min: f64(0), Max: f64(5)}},
		{Name: "tags", Type: model.FieldArray},
	}}

	_, err = types.Create(context.Background(), "reading", "Books", "", schema)
	require.NoError(t, err)

	_, err = types.Create(context.Background(), "archive", "Archived notes", "", model.MetadataSchema{})
	require.NoError(t, err)

	return mgr, db, ws
}

func f64(v float64) *float64 { return &v }

func TestCreateNoteWritesFileAndIndex(t *testing.T) {
	mgr, db, _ := newManager(t)
	ctx := context.Background()

	info, err := mgr.CreateNote(ctx, notemgr.CreateInput{
		Type:    "reading",
		Title:   "Atomic Habits",
		Content: "Tiny changes, remarkable results.\n",
		Metadata: map[string]*model.Value{
			"rating": model.Number(5),
			"tags":   model.Array([]string{"habits"}),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "reading/atomic-habits", info.ID)
	require.Equal(t, "atomic-habits.md", info.Filename)
	require.True(t, strings.HasPrefix(info.ContentHash, "sha256:"))

	note, err := mgr.GetNote(ctx, "reading/atomic-habits")
	require.NoError(t, err)
	require.Equal(t, "Atomic Habits", note.Title)
	require.Equal(t, info.ContentHash, note.ContentHash)
	require.Equal(t, float64(5), note.Metadata["rating"].Num)

	// The file on disk is the hash's canonical form.
	row, err := db.GetNote(ctx, info.ID)
	require.NoError(t, err)
	require.Contains(t, row.Content, "title: Atomic Habits")
	require.Contains(t, row.Content, "type: reading")
}

func TestCreateNoteRejectsProtectedMetadata(t *testing.T) {
	mgr, _, _ := newManager(t)

	_, err := mgr.CreateNote(context.Background(), notemgr.CreateInput{
		Type:     "reading",
		Title:    "X",
		Metadata: map[string]*model.Value{"created": model.String("2001-01-01")},
	})
	require.Equal(t, vaulterr.KindProtectedField, vaulterr.KindOf(err))
}

func TestCreateNoteRejectsSchemaViolation(t *testing.T) {
	mgr, _, _ := newManager(t)

	_, err := mgr.CreateNote(context.Background(), notemgr.CreateInput{
		Type:     "reading",
		Title:    "X",
		Metadata: map[string]*model.Value{"rating": model.Number(11)},
	})
	require.Equal(t, vaulterr.KindValidationFailed, vaulterr.KindOf(err))
}

func TestCreateNoteSuffixesFilenameCollisions(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()

	first, err := mgr.CreateNote(ctx, notemgr.CreateInput{Type: "reading", Title: "Dune"})
	require.NoError(t, err)
	require.Equal(t, "dune.md", first.Filename)

	second, err := mgr.CreateNote(ctx, notemgr.CreateInput{Type: "reading", Title: "Dune!"})
	require.NoError(t, err)
	require.Equal(t, "dune-2.md", second.Filename)

	third, err := mgr.CreateNote(ctx, notemgr.CreateInput{Type: "reading", Title: "DUNE"})
	require.NoError(t, err)
	require.Equal(t, "dune-3.md", third.Filename)
}

func TestGetNoteResolvesByTitleAndStem(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateNote(ctx, notemgr.CreateInput{Type: "reading", Title: "Atomic Habits"})
	require.NoError(t, err)

	byTitle, err := mgr.GetNote(ctx, "Atomic Habits")
	require.NoError(t, err)
	require.Equal(t, "reading/atomic-habits", byTitle.ID)

	byStem, err := mgr.GetNote(ctx, "atomic-habits")
	require.NoError(t, err)
	require.Equal(t, "reading/atomic-habits", byStem.ID)

	withExt, err := mgr.GetNote(ctx, "reading/atomic-habits.md")
	require.NoError(t, err)
	require.Equal(t, "reading/atomic-habits", withExt.ID)

	_, err = mgr.GetNote(ctx, "no-such-note")
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))
}

func TestUpdateNoteRequiresFreshHash(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()

	info, err := mgr.CreateNote(ctx, notemgr.CreateInput{Type: "reading", Title: "Dune", Content: "v1\n"})
	require.NoError(t, err)

	_, err = mgr.UpdateNote(ctx, info.ID, "v2\n", "")
	require.Equal(t, vaulterr.KindMissingContentHash, vaulterr.KindOf(err))

	_, err = mgr.UpdateNote(ctx, info.ID, "v2\n", "sha256:stale")
	require.Equal(t, vaulterr.KindContentHashMismatch, vaulterr.KindOf(err))

	// A stale hash leaves everything unchanged.
	unchanged, err := mgr.GetNote(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, info.ContentHash, unchanged.ContentHash)

	updated, err := mgr.UpdateNote(ctx, info.ID, "v2\n", info.ContentHash)
	require.NoError(t, err)
	require.NotEqual(t, info.ContentHash, updated.ContentHash)

	note, err := mgr.GetNote(ctx, info.ID)
	require.NoError(t, err)
	require.Contains(t, note.Content, "v2")
}

func TestUpdateWithMetadataMergesAndProtects(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()

	info, err := mgr.CreateNote(ctx, notemgr.CreateInput{
		Type:     "reading",
		Title:    "Dune",
		Content:  "body\n",
		Metadata: map[string]*model.Value{"rating": model.Number(3)},
	})
	require.NoError(t, err)

	_, err = mgr.UpdateNoteWithMetadata(ctx, info.ID, "body\n",
		map[string]*model.Value{"title": model.String("hijack")}, info.ContentHash, false)
	require.Equal(t, vaulterr.KindProtectedField, vaulterr.KindOf(err))

	updated, err := mgr.UpdateNoteWithMetadata(ctx, info.ID, "body\n",
		map[string]*model.Value{"rating": model.Number(4)}, info.ContentHash, false)
	require.NoError(t, err)

	note, err := mgr.GetNote(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, updated.ContentHash, note.ContentHash)
	require.Equal(t, float64(4), note.Metadata["rating"].Num)
}

func TestBatchCreateNeverAbortsSiblings(t *testing.T) {
	mgr, _, _ := newManager(t)

	results := mgr.BatchCreateNotes(context.Background(), []notemgr.CreateInput{
		{Type: "reading", Title: "Good One"},
		{Type: "missing-type", Title: "Bad One"},
		{Type: "reading", Title: "Also Good"},
	})
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
}

func TestGetNotesBestEffort(t *testing.T) {
	mgr, _, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.CreateNote(ctx, notemgr.CreateInput{Type: "reading", Title: "Dune"})
	require.NoError(t, err)

	results := mgr.GetNotes(ctx, []string{"reading/dune", "reading/ghost"})
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Equal(t, "reading/dune", results[0].Note.ID)
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(results[1].Err))
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Atomic Habits":     "atomic-habits",
		"Hello, World!":     "hello-world",
		"  spaced  out  ":   "spaced-out",
		"CamelCase123":      "camelcase123",
		"!!!":               "untitled",
		"déjà vu":           "d-j-vu",
	}

	for in, want := range cases {
		require.Equal(t, want, notemgr.Slugify(in), "slugify(%q)", in)
	}
}
