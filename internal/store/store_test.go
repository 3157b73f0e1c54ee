package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()

	s, needsRebuild, err := store.Open(context.Background(), filepath.Join(dir, ".vaultdb"))
	require.NoError(t, err)
	require.True(t, needsRebuild) // fresh database, never indexed

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func sampleNote(t *testing.T, dir, id string) store.UpsertNoteInput {
	t.Helper()

	path := filepath.Join(dir, id+".md")
	content := "---\ntitle: Sample\ntype: note\n---\nbody\n"

	return store.UpsertNoteInput{
		Note: model.Note{
			ID:          id,
			Type:        "note",
			Title:       "Sample",
			Filename:    id + ".md",
			Path:        path,
			Content:     content,
			Created:     time.Now().UTC(),
			Updated:     time.Now().UTC(),
			Size:        int64(len(content)),
			ContentHash: "sha256:deadbeef",
		},
		Metadata: []model.MetadataRow{{NoteID: id, Key: "title", Value: "Sample", ValueType: model.FieldString}},
	}
}

func TestUpsertThenGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	in := sampleNote(t, dir, "note/sample")

	require.NoError(t, s.UpsertNote(context.Background(), in))

	got, err := s.GetNote(context.Background(), "note/sample")
	require.NoError(t, err)
	require.Equal(t, in.Note.Title, got.Title)
	require.Equal(t, in.Note.ContentHash, got.ContentHash)
	require.Equal(t, in.Note.Content, got.Content)

	data, err := os.ReadFile(in.Note.Path)
	require.NoError(t, err)
	require.Equal(t, in.Note.Content, string(data))
}

func TestGetNoteNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetNote(context.Background(), "note/missing")
	require.Error(t, err)
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))
}

func TestDeleteNoteRemovesFileAndRows(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	in := sampleNote(t, dir, "note/gone")
	require.NoError(t, s.UpsertNote(context.Background(), in))

	require.NoError(t, s.DeleteNote(context.Background(), in.Note.ID, in.Note.Path))

	_, err := s.GetNote(context.Background(), "note/gone")
	require.Error(t, err)

	_, statErr := os.Stat(in.Note.Path)
	require.True(t, os.IsNotExist(statErr))
}

func TestExecuteSQLDeniesWriteTokens(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ExecuteSQL(context.Background(), store.SQLQueryInput{Query: "DROP TABLE notes"})
	require.Error(t, err)
	require.Equal(t, vaulterr.KindSqlDenied, vaulterr.KindOf(err))
}

func TestExecuteSQLAllowsSelectAndReportsTiming(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	require.NoError(t, s.UpsertNote(context.Background(), sampleNote(t, dir, "note/a")))

	result, err := s.ExecuteSQL(context.Background(), store.SQLQueryInput{Query: "SELECT COUNT(*) AS n FROM notes"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.GreaterOrEqual(t, result.QueryTimeMS, 0.0)
}

func TestRebuildIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	items := []store.RebuildItem{
		{Note: sampleNote(t, dir, "note/one").Note},
		{Note: sampleNote(t, dir, "note/two").Note},
	}

	require.NoError(t, s.ReplaceAll(context.Background(), items))
	first, err := s.ListAll(context.Background(), "", 0)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceAll(context.Background(), items))
	second, err := s.ListAll(context.Background(), "", 0)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	require.Len(t, second, 2)
}
