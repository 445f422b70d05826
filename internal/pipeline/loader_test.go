package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/storage"
	"github.com/JakeFAU/program-catalog/internal/storage/memory"
)

const mixedCatalog = `[
  {"programTitle": "Biology BS", "programUrl": "https://catalog.odu.edu/programs/biology-bs/", "department": ""},
  {"programUrl": "https://catalog.odu.edu/programs/no-title/", "department": "History"},
  {"programTitle": "No Department", "programUrl": "https://catalog.odu.edu/programs/no-dept/"},
  {"programTitle": "Nursing MSN", "programUrl": "https://catalog.odu.edu/programs/nursing-msn/", "department": null},
  {"programTitle": "Art BA", "programUrl": "https://catalog.odu.edu/programs/art-ba/", "department": "Art"},
  "not a record"
]`

func newTestLoader(t *testing.T, blobs catalog.BlobStore, items catalog.ItemStore) *Loader {
	t.Helper()
	loader, err := NewLoader(blobs, items, storage.DefaultLayout(), nil)
	require.NoError(t, err)
	return loader
}

func TestLoaderValidatesAndDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := memory.NewBlobStore()
	_, err := blobs.Put(ctx, storage.DefaultLayout().CatalogKey(), storage.ContentTypeJSON, []byte(mixedCatalog))
	require.NoError(t, err)

	items := flakyItemStore{
		ProgramStore: memory.NewProgramStore(),
		reject:       map[string]bool{"https://catalog.odu.edu/programs/art-ba/": true},
	}
	result, err := newTestLoader(t, blobs, items).Load(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 4, result.Failed)
	require.Len(t, result.FailedItems, 1, "only store errors are collected")
	require.Equal(t, "Art BA", result.FailedItems[0].ProgramTitle)

	bio, ok := items.Get("https://catalog.odu.edu/programs/biology-bs/")
	require.True(t, ok)
	require.Equal(t, catalog.DepartmentNotProvided, bio.Department)

	nursing, ok := items.Get("https://catalog.odu.edu/programs/nursing-msn/")
	require.True(t, ok)
	require.Equal(t, catalog.DepartmentNotProvided, nursing.Department)

	_, ok = items.Get("https://catalog.odu.edu/programs/no-dept/")
	require.False(t, ok)
	require.Equal(t, 2, items.Len())
}

func TestLoaderIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := memory.NewBlobStore()
	_, err := blobs.Put(ctx, storage.DefaultLayout().CatalogKey(), storage.ContentTypeJSON, []byte(mixedCatalog))
	require.NoError(t, err)
	items := memory.NewProgramStore()
	loader := newTestLoader(t, blobs, items)

	first, err := loader.Load(ctx)
	require.NoError(t, err)
	second, err := loader.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 3, items.Len())
}

func TestLoaderCatalogUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	key := storage.DefaultLayout().CatalogKey()

	_, err := newTestLoader(t, memory.NewBlobStore(), memory.NewProgramStore()).Load(ctx)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	require.ErrorIs(t, err, storage.ErrNotFound)

	malformed := memory.NewBlobStore()
	_, err = malformed.Put(ctx, key, storage.ContentTypeJSON, []byte(`{"programTitle": "not an array"}`))
	require.NoError(t, err)
	_, err = newTestLoader(t, malformed, memory.NewProgramStore()).Load(ctx)
	require.ErrorIs(t, err, ErrCatalogUnavailable)

	null := memory.NewBlobStore()
	_, err = null.Put(ctx, key, storage.ContentTypeJSON, []byte("null\n"))
	require.NoError(t, err)
	items := memory.NewProgramStore()
	result, err := newTestLoader(t, null, items).Load(ctx)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	require.Zero(t, result.Succeeded)
	require.Zero(t, items.Len())

	denied := keyFailStore{BlobStore: memory.NewBlobStore(), getFail: key}
	_, err = newTestLoader(t, denied, memory.NewProgramStore()).Load(ctx)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestLoaderEmptyCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blobs := memory.NewBlobStore()
	_, err := blobs.Put(ctx, storage.DefaultLayout().CatalogKey(), storage.ContentTypeJSON, []byte("[]"))
	require.NoError(t, err)

	result, err := newTestLoader(t, blobs, memory.NewProgramStore()).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, catalog.LoadResult{FailedItems: []catalog.ProgramRecord{}}, result)
}
