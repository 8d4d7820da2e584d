package wishlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaincatalog "mujthriftz/internal/domain/catalog"
	domainwishlist "mujthriftz/internal/domain/wishlist"
	"mujthriftz/internal/infra/storage/memory"
)

func seedDoc(t *testing.T, repo *memory.CatalogRepository, id, slug string) *domaincatalog.Document {
	t.Helper()
	doc, err := domaincatalog.NewDocument(domaincatalog.CreateParams{
		ID: domaincatalog.DocumentID(id), Kind: domaincatalog.KindListing, Owner: "seller", Slug: slug,
		Attributes: domaincatalog.Attributes{Title: slug}, Now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func TestToggleRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Store: memory.NewKV()}

	saved, set, err := svc.Toggle(ctx, "device-1", "a")
	require.NoError(t, err)
	assert.True(t, saved)
	_, _, err = svc.Toggle(ctx, "device-1", "b")
	require.NoError(t, err)
	saved, set, err = svc.Toggle(ctx, "device-1", "a")
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, []string{"b"}, set.IDs())

	loaded, err := svc.Load(ctx, " device-1 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, loaded.IDs())

	other, err := svc.Load(ctx, "device-2")
	require.NoError(t, err)
	assert.Zero(t, other.Len())
}

func TestScopeAndItemRequired(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Store: memory.NewKV()}
	_, err := svc.Load(ctx, " ")
	assert.ErrorIs(t, err, domainwishlist.ErrScopeRequired)
	_, _, err = svc.Toggle(ctx, "device-1", "")
	assert.ErrorIs(t, err, domainwishlist.ErrItemRequired)
	assert.ErrorIs(t, svc.Invalidate(ctx, ""), domainwishlist.ErrScopeRequired)
}

func TestCorruptValueReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKV()
	require.NoError(t, kv.Put(ctx, "device-1", domainwishlist.Key, []byte("{not json")))
	svc := &Service{Store: kv}

	set, err := svc.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	saved, set, err := svc.Toggle(ctx, "device-1", "a")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, []string{"a"}, set.IDs())
}

func TestResolveSkipsMissingAndInactive(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCatalogRepository()
	seedDoc(t, repo, "live", "lamp")
	hidden := seedDoc(t, repo, "hidden", "chair")
	hidden.Deactivate(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Save(ctx, hidden))

	svc := &Service{Store: memory.NewKV(), Catalog: repo}
	for _, id := range []string{"gone", "hidden", "live"} {
		_, _, err := svc.Toggle(ctx, "device-1", id)
		require.NoError(t, err)
	}

	set, docs, err := svc.Resolve(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len(), "stored ids are left as they are")
	require.Len(t, docs, 1)
	assert.Equal(t, domaincatalog.DocumentID("live"), docs[0].ID)
}

func TestInvalidateClearsScope(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Store: memory.NewKV()}
	_, _, err := svc.Toggle(ctx, "device-1", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, "device-1"))
	set, err := svc.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestConcurrentTogglesKeepEveryID(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Store: memory.NewKV()}
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := svc.Toggle(ctx, "device-1", id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	set, err := svc.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, set.IDs())
}
