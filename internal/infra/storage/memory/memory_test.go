package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "mujthriftz/internal/domain/auth"
	domaincatalog "mujthriftz/internal/domain/catalog"
	domainchat "mujthriftz/internal/domain/chat"
	domainuser "mujthriftz/internal/domain/user"
	domainwishlist "mujthriftz/internal/domain/wishlist"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedConversation(t *testing.T, repo *ChatRepository) *domainchat.Conversation {
	t.Helper()
	conv, err := domainchat.NewConversation(domainchat.StartParams{
		Initiator: "u1", Peer: "u2", ItemID: "prod123", ItemType: "productListing", Now: t0,
	})
	require.NoError(t, err)
	require.NoError(t, repo.CreateConversation(context.Background(), conv))
	return conv
}

func TestChatRepositoryKeepsHistoryOrderedAndCountsUnread(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	conv := seedConversation(t, repo)

	require.ErrorIs(t, repo.CreateConversation(ctx, conv), domainchat.ErrConversationExists)

	for i, at := range []time.Time{t0.Add(2 * time.Minute), t0.Add(time.Minute), t0.Add(3 * time.Minute)} {
		msg, err := domainchat.NewMessage(domainchat.NewMessageParams{
			ID: domainchat.MessageID([]string{"b", "a", "c"}[i]), Conversation: conv, SenderID: "u1", Text: "hi", Timestamp: at,
		})
		require.NoError(t, err)
		require.NoError(t, repo.AppendMessage(ctx, msg))
		require.NoError(t, repo.IncrementUnread(ctx, "u2", conv.ID))
	}

	history, err := repo.Messages(ctx, conv.ID)
	require.NoError(t, err)
	var ids []domainchat.MessageID
	for _, m := range history {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []domainchat.MessageID{"a", "b", "c"}, ids)

	counts, err := repo.UnreadCounts(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[conv.ID])

	prior, err := repo.ResetUnread(ctx, "u2", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, prior)
	prior, err = repo.ResetUnread(ctx, "u2", conv.ID)
	require.NoError(t, err)
	assert.Zero(t, prior)

	changed, err := repo.MarkMessagesRead(ctx, conv.ID, "u2", t0)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
	changed, err = repo.MarkMessagesRead(ctx, conv.ID, "u2", t0)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestChatRepositoryConversationsForParticipant(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	seedConversation(t, repo)

	mine, err := repo.ConversationsFor(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	others, err := repo.ConversationsFor(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = repo.Messages(ctx, "nope")
	assert.ErrorIs(t, err, domainchat.ErrConversationNotFound)
}

func TestCatalogRepositorySlugUniquePerKind(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()
	a := &domaincatalog.Document{ID: "d1", Kind: domaincatalog.KindListing, Slug: "desk-lamp", Active: true, CreatedAt: t0}
	b := &domaincatalog.Document{ID: "d2", Kind: domaincatalog.KindListing, Slug: "desk-lamp", Active: true, CreatedAt: t0}
	c := &domaincatalog.Document{ID: "d3", Kind: domaincatalog.KindRequest, Slug: "desk-lamp", Active: true, CreatedAt: t0}

	require.NoError(t, repo.Create(ctx, a))
	require.ErrorIs(t, repo.Create(ctx, b), domaincatalog.ErrSlugTaken)
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.BySlug(ctx, domaincatalog.KindListing, "desk-lamp")
	require.NoError(t, err)
	assert.Equal(t, domaincatalog.DocumentID("d1"), got.ID)

	require.NoError(t, repo.Delete(ctx, "d1"))
	require.NoError(t, repo.Create(ctx, b))
}

func TestCatalogRepositoryListActiveSkipsInactive(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository()
	require.NoError(t, repo.Create(ctx, &domaincatalog.Document{ID: "d1", Kind: domaincatalog.KindListing, Slug: "a", Active: true, CreatedAt: t0}))
	require.NoError(t, repo.Create(ctx, &domaincatalog.Document{ID: "d2", Kind: domaincatalog.KindListing, Slug: "b", Active: false, CreatedAt: t0}))
	require.NoError(t, repo.Create(ctx, &domaincatalog.Document{ID: "d3", Kind: domaincatalog.KindListing, Slug: "c", Active: true, CreatedAt: t0.Add(time.Hour)}))

	items, err := repo.ListActive(ctx, domaincatalog.KindListing)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domaincatalog.DocumentID("d3"), items[0].ID)

	// returned documents are copies
	items[0].Title = "changed"
	again, _ := repo.ByID(ctx, "d3")
	assert.Empty(t, again.Title)
}

func TestUserRepositoryEmailIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	require.NoError(t, repo.Save(ctx, &domainuser.User{ID: "u1", Email: "Asha@Campus.edu"}))
	require.ErrorIs(t, repo.Save(ctx, &domainuser.User{ID: "u2", Email: "asha@campus.edu"}), domainuser.ErrEmailAlreadyUsed)

	got, err := repo.ByEmail(ctx, " asha@campus.edu ")
	require.NoError(t, err)
	assert.Equal(t, domainuser.ID("u1"), got.ID)

	require.NoError(t, repo.Save(ctx, &domainuser.User{ID: "u1", Email: "new@campus.edu"}))
	_, err = repo.ByEmail(ctx, "asha@campus.edu")
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
}

func TestSessionStoreExpiresAndRevokes(t *testing.T) {
	ctx := context.Background()
	now := t0
	store := NewSessionStore()
	store.Now = func() time.Time { return now }

	s1, err := domainauth.Open(domainauth.OpenParams{Token: "a", UserID: "u1", DeviceID: "phone", TTL: time.Hour, Now: t0})
	require.NoError(t, err)
	s2, err := domainauth.Open(domainauth.OpenParams{Token: "b", UserID: "u1", DeviceID: "laptop", TTL: 2 * time.Hour, Now: t0})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, s1))
	require.NoError(t, store.Save(ctx, s2))

	now = t0.Add(90 * time.Minute)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "laptop", got.DeviceID)

	require.NoError(t, store.DeleteByUser(ctx, "u1"))
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestKVScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	kv := NewKV()
	require.NoError(t, kv.Put(ctx, "device-a", domainwishlist.Key, []byte(`["d1"]`)))

	_, err := kv.Get(ctx, "device-b", domainwishlist.Key)
	assert.ErrorIs(t, err, domainwishlist.ErrKeyNotFound)

	raw, err := kv.Get(ctx, "device-a", domainwishlist.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `["d1"]`, string(raw))

	require.NoError(t, kv.Delete(ctx, "device-a", domainwishlist.Key))
	_, err = kv.Get(ctx, "device-a", domainwishlist.Key)
	assert.ErrorIs(t, err, domainwishlist.ErrKeyNotFound)
}
