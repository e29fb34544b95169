package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func sampleMessage(t *testing.T, id int64, sentAt int64, read bool) Message {
	t.Helper()
	msg, err := NewMessage("hello subject", "hello body", "Ada Lovelace", "ada@example.com", sentAt, read, 0, nil, sentAt)
	require.NoError(t, err)
	msg.ID = id
	return msg
}

func TestStoreMessageCreatesConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", DisplayName: "Ada Lovelace", Primary: true}}
	msg := sampleMessage(t, 1, 1000, false)

	convID, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, msg)
	require.NoError(t, err)
	require.NotZero(t, convID)

	conversations, err := s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, "thread-1", conversations[0].ThreadID)
	require.Equal(t, 1, conversations[0].UnreadCount)
	require.Equal(t, int64(1000), conversations[0].LastMessageTimestamp)
	require.Len(t, conversations[0].Participants, 1)

	messages, err := s.GetMessages(ctx, convID, MessageQuery{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "hello body", messages[0].Body)
}

func TestStoreMessageReusesConversationByThreadID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", DisplayName: "Ada Lovelace", Primary: true}}

	id1, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 1, 1000, false))
	require.NoError(t, err)
	id2, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 2, 2000, false))
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	conversations, err := s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, 2, conversations[0].UnreadCount)
	require.Equal(t, int64(2000), conversations[0].LastMessageTimestamp)

	messages, err := s.GetMessages(ctx, id1, MessageQuery{})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, int64(1), messages[0].ID)
	require.Equal(t, int64(2), messages[1].ID)
}

func TestStoreMessageWithAttachment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	attachment, err := NewAttachment("photo.jpg", "image/jpeg", []byte{1, 2, 3, 4}, "")
	require.NoError(t, err)

	msg, err := NewMessage("", "see attached", "Ada Lovelace", "ada@example.com", 1000, false, 0, []Attachment{attachment}, 1000)
	require.NoError(t, err)
	msg.ID = 1

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	convID, err := s.StoreMessage(ctx, "thread-1", ProviderSMS, participants, msg)
	require.NoError(t, err)

	messages, err := s.GetMessages(ctx, convID, MessageQuery{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, KindRich, messages[0].Kind)
	require.Len(t, messages[0].Attachments, 1)
	require.Equal(t, int64(4), messages[0].Attachments[0].ByteLength)
	require.True(t, messages[0].Attachments[0].DownloadComplete)

	attachments, err := s.GetAttachments(ctx, messages[0].ID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
}

func TestMarkMessageReadDecrementsUnread(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	convID, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 1, 1000, false))
	require.NoError(t, err)

	require.NoError(t, s.MarkMessageRead(ctx, 1))

	conversations, err := s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.Equal(t, 0, conversations[0].UnreadCount)

	// marking an already-read message again must saturate at 0, never go negative
	require.NoError(t, s.MarkMessageRead(ctx, 1))
	conversations, err = s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.Equal(t, 0, conversations[0].UnreadCount)

	_ = convID
}

func TestMarkConversationReadClearsAllMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	convID, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 1, 1000, false))
	require.NoError(t, err)
	_, err = s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 2, 2000, false))
	require.NoError(t, err)

	require.NoError(t, s.MarkConversationRead(ctx, convID))

	conversations, err := s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.Equal(t, 0, conversations[0].UnreadCount)

	messages, err := s.GetMessages(ctx, convID, MessageQuery{})
	require.NoError(t, err)
	for _, m := range messages {
		require.True(t, m.Read)
	}
}

func TestMarkMessageReadNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.MarkMessageRead(context.Background(), 999)
	require.Error(t, err)
	require.True(t, Is(err, KindNotFound))
}

func TestArchiveConversation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	convID, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 1, 1000, false))
	require.NoError(t, err)

	require.NoError(t, s.ArchiveConversation(ctx, convID, true))
	conversations, err := s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.True(t, conversations[0].Archived)

	require.NoError(t, s.ArchiveConversation(ctx, convID, false))
	conversations, err = s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.False(t, conversations[0].Archived)
}

func TestArchiveConversationNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.ArchiveConversation(context.Background(), 999, true)
	require.Error(t, err)
	require.True(t, Is(err, KindNotFound))
}

func TestGetMessagesFiltersByReadState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	convID, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 1, 1000, true))
	require.NoError(t, err)
	_, err = s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 2, 2000, false))
	require.NoError(t, err)

	unread := false
	messages, err := s.GetMessages(ctx, convID, MessageQuery{Read: &unread})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, int64(2), messages[0].ID)
}

func TestCleanupOldMessagesRemovesEmptyConversations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	oldSentAt := int64(1) // far in the past relative to time.Now()
	_, err := s.StoreMessage(ctx, "thread-old", ProviderEmail, participants, sampleMessage(t, 1, oldSentAt, true))
	require.NoError(t, err)

	deleted, err := s.CleanupOldMessages(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	conversations, err := s.GetConversations(ctx, ConversationQuery{})
	require.NoError(t, err)
	require.Empty(t, conversations)
}

func TestCleanupOldMessagesAcrossFiveThreads(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		participants := []Participant{{Address: "ada@example.com", Primary: true}}
		threadID := "thread-" + string(rune('0'+i))
		_, err := s.StoreMessage(ctx, threadID, ProviderEmail, participants, sampleMessage(t, i, 1, true))
		require.NoError(t, err)
	}

	deleted, err := s.CleanupOldMessages(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), deleted)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.MessageCount)
	require.Zero(t, stats.ConversationCount)
}

func TestGetStatsEmptyStore(t *testing.T) {
	s := openTestStore(t)
	stats, err := s.GetStats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.ConversationCount)
	require.Zero(t, stats.MessageCount)
	require.Nil(t, stats.OldestMessageTimestamp)
	require.Nil(t, stats.NewestMessageTimestamp)
}

func TestGetStatsPopulated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	participants := []Participant{{Address: "ada@example.com", Primary: true}}
	_, err := s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 1, 1000, false))
	require.NoError(t, err)
	_, err = s.StoreMessage(ctx, "thread-1", ProviderEmail, participants, sampleMessage(t, 2, 2000, false))
	require.NoError(t, err)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ConversationCount)
	require.Equal(t, int64(2), stats.MessageCount)
	require.Equal(t, int64(1), stats.UnreadConversationCount)
	require.NotNil(t, stats.OldestMessageTimestamp)
	require.Equal(t, int64(1000), *stats.OldestMessageTimestamp)
	require.NotNil(t, stats.NewestMessageTimestamp)
	require.Equal(t, int64(2000), *stats.NewestMessageTimestamp)
}

func TestNewConversationFixesPrimaryInvariant(t *testing.T) {
	participants := []Participant{
		{Address: "a@example.com", Primary: true},
		{Address: "b@example.com", Primary: true},
	}
	conv, err := NewConversation("t1", ProviderSMS, participants, 1000)
	require.NoError(t, err)
	primaryCount := 0
	for _, p := range conv.Participants {
		if p.Primary {
			primaryCount++
		}
	}
	require.Equal(t, 1, primaryCount)
}

func TestNewMessageRejectsNonPositiveSentAt(t *testing.T) {
	_, err := NewMessage("", "body", "", "", 0, false, 0, nil, 1000)
	require.Error(t, err)
	require.True(t, Is(err, KindMalformed))
}
