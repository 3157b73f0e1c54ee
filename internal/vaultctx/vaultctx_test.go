package vaultctx_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/notemgr"
	"github.com/vaultdb/vaultdb/internal/registry"
	"github.com/vaultdb/vaultdb/internal/vaultctx"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

func newCache(t *testing.T) (*vaultctx.Cache, string) {
	t.Helper()

	base := t.TempDir()
	vaultRoot := filepath.Join(base, "vault")

	_, err := workspace.InitializeVault(vaultRoot)
	require.NoError(t, err)

	reg, err := registry.Open(filepath.Join(base, "registry.yml"))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, reg.Register(model.VaultRecord{
		ID: "main", Name: "Main", Path: vaultRoot, Created: now, LastAccessed: now,
	}))

	cache := vaultctx.NewCache(reg, nil)

	t.Cleanup(func() { _ = cache.CloseAll() })

	return cache, vaultRoot
}

func TestCacheReturnsSameContextPerVault(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	first, err := cache.Open(ctx, "main")
	require.NoError(t, err)

	second, err := cache.Open(ctx, "main")
	require.NoError(t, err)
	require.Same(t, first, second)

	current, err := cache.OpenCurrent(ctx)
	require.NoError(t, err)
	require.Same(t, first, current)

	_, err = cache.Open(ctx, "ghost")
	require.Equal(t, vaulterr.KindNotFound, vaulterr.KindOf(err))
}

func TestContextWiresManagersOverOneStore(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	vc, err := cache.Open(ctx, "main")
	require.NoError(t, err)

	info, err := vc.Notes.CreateNote(ctx, notemgr.CreateInput{Type: "note", Title: "Hello"})
	require.NoError(t, err)

	results, err := vc.Search.SearchNotes(ctx, "", "", 0, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, info.ID, results[0].Note.ID)

	types, err := vc.Types.List(ctx)
	require.NoError(t, err)
	require.Contains(t, types, "note")
}

func TestConcurrentUpdatesWithSameHashExactlyOneWins(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	vc, err := cache.Open(ctx, "main")
	require.NoError(t, err)

	info, err := vc.Notes.CreateNote(ctx, notemgr.CreateInput{Type: "note", Title: "Contended", Content: "v0\n"})
	require.NoError(t, err)

	errs := make([]error, 2)

	var wg sync.WaitGroup

	for i, body := range []string{"writer-a\n", "writer-b\n"} {
		wg.Add(1)

		go func(i int, body string) {
			defer wg.Done()

			errs[i] = vc.WithWrite(ctx, func(ctx context.Context) error {
				_, err := vc.Notes.UpdateNote(ctx, info.ID, body, info.ContentHash)
				return err
			})
		}(i, body)
	}

	wg.Wait()

	winners := 0

	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}

		require.Equal(t, vaulterr.KindContentHashMismatch, vaulterr.KindOf(err))

		var e *vaulterr.Error
		require.ErrorAs(t, err, &e)

		// The loser sees the winner's hash as current.
		note, gerr := vc.Notes.GetNote(ctx, info.ID)
		require.NoError(t, gerr)
		require.Equal(t, note.ContentHash, e.Current)
		require.Equal(t, info.ContentHash, e.Provided)
	}

	require.Equal(t, 1, winners)
}

func TestWithWriteIsFIFOOrdered(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	vc, err := cache.Open(ctx, "main")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
	)

	release := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_ = vc.WithWrite(ctx, func(context.Context) error {
			<-release
			return nil
		})
	}()

	// Give the holder time to acquire before queueing the rest.
	time.Sleep(50 * time.Millisecond)

	for i := 1; i <= 3; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_ = vc.WithWrite(ctx, func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()

				return nil
			})
		}(i)

		time.Sleep(50 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	require.Equal(t, []int{1, 2, 3}, order)
}

func TestWithWriteHonorsCancellation(t *testing.T) {
	cache, _ := newCache(t)

	vc, err := cache.Open(context.Background(), "main")
	require.NoError(t, err)

	release := make(chan struct{})
	acquired := make(chan struct{})

	go func() {
		_ = vc.WithWrite(context.Background(), func(context.Context) error {
			close(acquired)
			<-release

			return nil
		})
	}()

	<-acquired

	cancelCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = vc.WithWrite(cancelCtx, func(context.Context) error { return nil })
	require.Equal(t, vaulterr.KindCanceled, vaulterr.KindOf(err))

	close(release)
}
