package host

import (
	"context"
	"testing"

	"github.com/olafkfreund/comunicado-sub000/internal/search"
	"github.com/olafkfreund/comunicado-sub000/internal/startup"
	"github.com/olafkfreund/comunicado-sub000/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	reg, err := startup.NewRegistry([]startup.Descriptor{{Name: "Database", Critical: true}})
	require.NoError(t, err)

	return NewHost(s, reg)
}

func TestHostStoreAndSearchRoundTrip(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	msg, err := store.NewMessage("invoice due", "please pay by friday", "Ada", "ada@example.com", 1000, false, 0, nil, 1000)
	require.NoError(t, err)
	msg.ID = 1

	convID, err := h.Store.StoreMessage(ctx, "thread-1", store.ProviderEmail, []store.Participant{{Address: "ada@example.com", Primary: true}}, msg)
	require.NoError(t, err)

	page, err := h.GetConversations(ctx, store.ConversationQuery{})
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	require.Equal(t, convID, page.Conversations[0].ID)

	results, err := h.RunSearch(ctx, search.Subject, "invoice", 0)
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
}

func TestHostToggleArchived(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	msg, err := store.NewMessage("", "hi", "Ada", "ada@example.com", 1000, true, 0, nil, 1000)
	require.NoError(t, err)
	msg.ID = 1
	convID, err := h.Store.StoreMessage(ctx, "thread-1", store.ProviderSMS, []store.Participant{{Address: "ada@example.com", Primary: true}}, msg)
	require.NoError(t, err)

	require.NoError(t, h.ToggleArchived(ctx, convID))
	page, err := h.GetConversations(ctx, store.ConversationQuery{})
	require.NoError(t, err)
	require.True(t, page.Conversations[0].Archived)

	require.NoError(t, h.ToggleArchived(ctx, convID))
	page, err = h.GetConversations(ctx, store.ConversationQuery{})
	require.NoError(t, err)
	require.False(t, page.Conversations[0].Archived)
}

func TestHostStartupProgress(t *testing.T) {
	h := newTestHost(t)
	snap := h.StartupProgress()
	require.False(t, snap.IsComplete)
	require.True(t, snap.IsVisible)

	require.NoError(t, h.Startup.StartPhase("Database"))
	require.NoError(t, h.Startup.CompletePhase("Database"))

	snap = h.StartupProgress()
	require.True(t, snap.IsComplete)
	require.False(t, snap.IsVisible)
}
