package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
)

func TestRegistry_RegisterFirstVaultBecomesCurrent(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.yml"))
	require.NoError(t, err)

	rec := model.VaultRecord{ID: "work", Name: "Work", Path: "/vaults/work", Created: time.Now()}
	require.NoError(t, reg.Register(rec))

	cur, err := reg.Current()
	require.NoError(t, err)
	require.Equal(t, "work", cur.ID)
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.yml"))
	require.NoError(t, err)

	rec := model.VaultRecord{ID: "work", Name: "Work", Path: "/vaults/work"}
	require.NoError(t, reg.Register(rec))

	err = reg.Register(rec)
	require.Error(t, err)
	require.Equal(t, vaulterr.KindAlreadyExists, vaulterr.KindOf(err))
}

func TestRegistry_RegisterRejectsInvalidSlug(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.yml"))
	require.NoError(t, err)

	err = reg.Register(model.VaultRecord{ID: "has space", Name: "x", Path: "/x"})
	require.Error(t, err)
	require.Equal(t, vaulterr.KindValidationFailed, vaulterr.KindOf(err))
}

func TestRegistry_UnregisterClearsCurrent(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.yml"))
	require.NoError(t, err)

	require.NoError(t, reg.Register(model.VaultRecord{ID: "work", Name: "Work", Path: "/vaults/work"}))
	require.NoError(t, reg.Unregister("work"))

	_, err = reg.Current()
	require.Error(t, err)
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))

	list, err := reg.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRegistry_SetCurrentBumpsLastAccessedAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yml")
	reg, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, reg.Register(model.VaultRecord{ID: "a", Name: "A", Path: "/a"}))
	require.NoError(t, reg.Register(model.VaultRecord{ID: "b", Name: "B", Path: "/b"}))

	now := time.Now().Truncate(time.Second)
	require.NoError(t, reg.SetCurrent("b", now))

	reopened, err := Open(path)
	require.NoError(t, err)

	cur, err := reopened.Current()
	require.NoError(t, err)
	require.Equal(t, "b", cur.ID)
	require.True(t, cur.LastAccessed.Equal(now))
}

func TestRegistry_SetCurrentUnknownVaultFails(t *testing.T) {
	reg, err := Open(filepath.Join(t.TempDir(), "registry.yml"))
	require.NoError(t, err)

	err = reg.SetCurrent("ghost", time.Now())
	require.Error(t, err)
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))
}

func TestValidateSlug(t *testing.T) {
	require.NoError(t, ValidateSlug("work-notes_2"))
	require.Error(t, ValidateSlug(""))
	require.Error(t, ValidateSlug("has space"))
	require.Error(t, ValidateSlug("slash/es"))
}

func TestSafeJoin_RejectsTraversal(t *testing.T) {
	root := "/vaults/work"

	_, err := SafeJoin(root, "../etc/passwd")
	require.Error(t, err)
	require.Equal(t, vaulterr.KindPathUnsafe, vaulterr.KindOf(err))

	_, err = SafeJoin(root, "/etc/passwd")
	require.Error(t, err)

	joined, err := SafeJoin(root, "notes/a.md")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "notes", "a.md"), joined)
}

func TestExpandPath_ExpandsHome(t *testing.T) {
	p, err := ExpandPath("~")
	require.NoError(t, err)
	require.NotEmpty(t, p)
	require.True(t, filepath.IsAbs(p))
}
