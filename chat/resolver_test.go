package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopHub/models"
	"ShopHub/session"
	"ShopHub/store"
)

var alice = Identity{ID: "u1", Email: "alice@example.com", Name: "Alice"}

func TestResolvePreviousSession(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	conv := seedConversation(t, st, alice.ID)
	sessions.Save(conv.ID)

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
}

func TestResolvePreviousSessionReactivatesClosed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	conv := seedConversation(t, st, alice.ID)
	closed := models.StatusClosed
	require.NoError(t, st.UpdateConversation(ctx, conv.ID, store.ConversationPatch{Status: &closed}))
	sessions.Save(conv.ID)

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, models.StatusOpen, got.Status)

	stored, err := st.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, stored.Status)
}

func TestResolveStaleSessionDiscarded(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	sessions.Save("gone")

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, got)

	// The stale id was cleared and replaced by the new conversation's
	id, ok := sessions.Load()
	require.True(t, ok)
	assert.Equal(t, got.ID, id)
	assert.NotEqual(t, "gone", id)
}

func TestResolveForeignSessionDiscarded(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	other := seedConversation(t, st, "somebody-else")
	sessions.Save(other.ID)

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.NotEqual(t, other.ID, got.ID)
	assert.Equal(t, alice.ID, got.UserID)
}

func TestResolveOpenLookup(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	conv := seedConversation(t, st, alice.ID)

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	id, ok := sessions.Load()
	require.True(t, ok)
	assert.Equal(t, conv.ID, id)
}

func TestResolveRecentFallbackPrefersPendingReply(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	closed := models.StatusClosed

	stale := seedConversation(t, st, alice.ID)
	pending := seedConversation(t, st, alice.ID)
	fresh := seedConversation(t, st, alice.ID)
	for _, c := range []*models.Conversation{stale, pending, fresh} {
		require.NoError(t, st.UpdateConversation(ctx, c.ID, store.ConversationPatch{Status: &closed}))
	}
	unread := 2
	require.NoError(t, st.UpdateConversation(ctx, pending.ID, store.ConversationPatch{UnreadCount: &unread}))

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID, "a conversation still owed a reply wins over a fresher one")
	assert.Equal(t, models.StatusOpen, got.Status)
}

func TestResolveRecentFallbackMostRecent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	closed := models.StatusClosed

	older := seedConversation(t, st, alice.ID)
	latest := seedConversation(t, st, alice.ID)
	require.NoError(t, st.UpdateConversation(ctx, older.ID, store.ConversationPatch{Status: &closed}))
	require.NoError(t, st.UpdateConversation(ctx, latest.ID, store.ConversationPatch{Status: &closed, TouchUpdated: true}))

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
}

func TestResolveCreates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.UserID)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.Equal(t, models.WelcomeText, got.LastMessage)
	assert.Equal(t, "Alice", got.UserName)
	assert.Equal(t, alice.Email, got.UserEmail)
	assert.Zero(t, got.UnreadCount)

	msgs, err := st.QueryMessages(ctx, got.ID, store.MessageQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderSystem, msgs[0].SenderID)
	assert.Equal(t, models.WelcomeText, msgs[0].Text)
	assert.False(t, msgs[0].Read)
}

func TestResolveCreateNameFromEmail(t *testing.T) {
	st := store.NewMemory()
	sessions := session.NewMemory()

	got, err := NewResolver(st, sessions).Resolve(context.Background(), Identity{
		ID:    "u2",
		Email: "bob@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserName)
}

func TestResolveRepeatedYieldsOneConversation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	r := NewResolver(st, sessions)

	first, err := r.Resolve(ctx, alice)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	convs, err := st.QueryConversations(ctx, store.ConversationQuery{Participant: alice.ID})
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestResolveQueryFailureDegradesToCreate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.QueryErr = assert.AnError
	sessions := session.NewMemory()

	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.UserID)
}

func TestResolveTransientReadFailureKeepsSession(t *testing.T) {
	// A conversation the store cannot read right now must not cost the
	// customer their remembered session.
	ctx := context.Background()
	st := store.NewMemory()
	sessions := session.NewMemory()
	conv := seedConversation(t, st, alice.ID)
	sessions.Save(conv.ID)

	// Only lookups fail; the remembered conversation itself still loads, so
	// resolution succeeds through the session tier.
	st.QueryErr = assert.AnError
	got, err := NewResolver(st, sessions).Resolve(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	id, ok := sessions.Load()
	require.True(t, ok)
	assert.Equal(t, conv.ID, id)
}
