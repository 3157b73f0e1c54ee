package notetype_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/notetype"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

func newManager(t *testing.T) (*notetype.Manager, *store.Store) {
	t.Helper()

	return newManagerAllowingTypeDelete(t, false)
}

func newManagerAllowingTypeDelete(t *testing.T, allow bool) (*notetype.Manager, *store.Store) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "vault")

	ws, err := workspace.InitializeVault(root)
	require.NoError(t, err)

	if allow {
		configPath := filepath.Join(root, workspace.ConfigDirName, workspace.ConfigFileName)
		require.NoError(t, os.WriteFile(configPath, []byte("deletion:\n  confirm: true\n  allow_type_delete: true\n"), 0o644))

		ws, err = workspace.Initialize(root)
		require.NoError(t, err)
	}

	db, needsRebuild, err := store.Open(context.Background(), ws.IndexDir())
	require.NoError(t, err)
	require.True(t, needsRebuild) // fresh database, never indexed

	t.Cleanup(func() { _ = db.Close() })

	return notetype.New(ws, db, nil), db
}

func TestCreateAndGetDescriptionRoundTrips(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	schema := model.MetadataSchema{Fields: []model.FieldDef{
		{Name: "rating", Type: model.FieldNumber, Required: true},
		{Name: "status", Type: model.FieldSelect, Constraints: model.FieldConstraints{Options: []string{"todo", "done"}}},
	}}

	nt, err := mgr.Create(ctx, "reading", "Books I'm reading", "Always set rating.", schema)
	require.NoError(t, err)
	require.Equal(t, "reading", nt.Name)
	require.Contains(t, nt.ContentHash, "sha256:")
	require.Len(t, nt.MetadataSchema.Fields, 2)

	fetched, err := mgr.GetDescription(ctx, "reading")
	require.NoError(t, err)
	require.Equal(t, nt.ContentHash, fetched.ContentHash)
	require.Equal(t, "Books I'm reading", fetched.Description)
	require.Equal(t, "Always set rating.", fetched.AgentInstructions)
	require.ElementsMatch(t, []string{"rating", "status"}, fieldNames(fetched.MetadataSchema))
}

func TestCreateRejectsDuplicate(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "reading", "d", "", model.MetadataSchema{})
	require.NoError(t, err)

	_, err = mgr.Create(ctx, "reading", "d2", "", model.MetadataSchema{})
	require.Equal(t, vaulterr.KindAlreadyExists, vaulterr.KindOf(err))
}

func TestCreateRejectsInvalidSchema(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "reading", "d", "", model.MetadataSchema{Fields: []model.FieldDef{
		{Name: "title", Type: model.FieldString},
	}})
	require.Equal(t, vaulterr.KindSchemaInvalid, vaulterr.KindOf(err))
}

func TestUpdateRequiresMatchingContentHash(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	nt, err := mgr.Create(ctx, "reading", "d", "", model.MetadataSchema{})
	require.NoError(t, err)

	newDesc := "updated description"

	_, err = mgr.Update(ctx, "reading", notetype.UpdateInput{Description: &newDesc}, "sha256:wrong")
	require.Equal(t, vaulterr.KindContentHashMismatch, vaulterr.KindOf(err))

	updated, err := mgr.Update(ctx, "reading", notetype.UpdateInput{Description: &newDesc}, nt.ContentHash)
	require.NoError(t, err)
	require.Equal(t, newDesc, updated.Description)
	require.NotEqual(t, nt.ContentHash, updated.ContentHash)
}

func TestDeleteErrorActionRefusesWithNotes(t *testing.T) {
	mgr, _ := newManagerAllowingTypeDelete(t, true)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "reading", "d", "", model.MetadataSchema{})
	require.NoError(t, err)

	fake := &fakeNoteOps{byType: map[string][]string{"reading": {"reading/a"}}}
	mgr.SetNoteOps(fake)

	_, err = mgr.Delete(ctx, "reading", notetype.ActionError, "", true)
	require.Equal(t, vaulterr.KindPolicyDenied, vaulterr.KindOf(err))
}

func TestDeleteRequiresConfirmWhenPolicyDemandsIt(t *testing.T) {
	mgr, _ := newManagerAllowingTypeDelete(t, true)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "reading", "d", "", model.MetadataSchema{})
	require.NoError(t, err)

	_, err = mgr.Delete(ctx, "reading", notetype.ActionError, "", false)
	require.Equal(t, vaulterr.KindPolicyDenied, vaulterr.KindOf(err))
}

func TestDeleteDisallowedByPolicyByDefault(t *testing.T) {
	mgr, _ := newManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "reading", "d", "", model.MetadataSchema{})
	require.NoError(t, err)

	_, err = mgr.Delete(ctx, "reading", notetype.ActionError, "", true)
	require.Equal(t, vaulterr.KindPolicyDenied, vaulterr.KindOf(err))
}

func fieldNames(s model.MetadataSchema) []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}

	return out
}

type fakeNoteOps struct {
	byType map[string][]string
}

func (f *fakeNoteOps) ListIDsByType(_ context.Context, noteType string) ([]string, error) {
	return f.byType[noteType], nil
}

func (f *fakeNoteOps) MoveNote(_ context.Context, _, _, _ string) error { return nil }
func (f *fakeNoteOps) DeleteNote(_ context.Context, _ string, _ bool) error { return nil }
