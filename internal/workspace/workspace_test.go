package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeVaultSeedsConfigAndDefaultNoteTypes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	w, err := InitializeVault(root)
	require.NoError(t, err)

	require.Equal(t, "note", w.Config().DefaultNoteType)
	require.True(t, w.Config().SearchEnabled)

	for _, nt := range defaultNoteTypes {
		dir, err := w.NoteTypeDir(nt)
		require.NoError(t, err)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())

		descPath, err := w.DescriptionPath(nt)
		require.NoError(t, err)
		require.FileExists(t, descPath)
	}

	require.FileExists(t, w.ConfigPath())
}

func TestInitializeLoadsExistingConfigUnchanged(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	_, err := InitializeVault(root)
	require.NoError(t, err)

	configPath := filepath.Join(root, ConfigDirName, ConfigFileName)

	before, err := os.ReadFile(configPath)
	require.NoError(t, err)

	w2, err := Initialize(root)
	require.NoError(t, err)
	require.Equal(t, "note", w2.Config().DefaultNoteType)

	after, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestInitializeMergesMissingKeysAndRewrites(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ConfigDirName), 0o750))

	partial := "schema_version: 1\ndefault_note_type: custom\n"
	configPath := filepath.Join(root, ConfigDirName, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte(partial), 0o644))

	w, err := Initialize(root)
	require.NoError(t, err)

	require.Equal(t, "custom", w.Config().DefaultNoteType)
	require.Equal(t, BackupsDirName, w.Config().Deletion.BackupPath)
	require.True(t, w.Config().SearchEnabled)
	require.Equal(t, 100, w.Config().Deletion.MaxBulk)

	rewritten, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(rewritten), "deletion")
	require.Contains(t, string(rewritten), "database")
}

func TestInitializeFailsOnMissingRoot(t *testing.T) {
	_, err := Initialize(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestNoteTypeDirRejectsUnsafeNames(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	w, err := InitializeVault(root)
	require.NoError(t, err)

	_, err = w.NoteTypeDir("../escape")
	require.Error(t, err)
}

func TestListNoteTypeDirsFindsOnlyDirsWithDescription(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")

	w, err := InitializeVault(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "stray"), 0o750))

	types, err := w.ListNoteTypeDirs()
	require.NoError(t, err)
	require.ElementsMatch(t, defaultNoteTypes, types)
}
